package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tturner/labcheck/internal/config"
	"github.com/tturner/labcheck/internal/logging"
	"github.com/tturner/labcheck/internal/validation"
	"github.com/tturner/labcheck/internal/validation/fixtures"
)

type selfTestFlags struct {
	scenario string
	keep     bool
	verbose  bool
}

func newSelfTestCmd() *cobra.Command {
	flags := &selfTestFlags{}

	cmd := &cobra.Command{
		Use:   "selftest",
		Short: "Validate built-in synthetic submissions",
		Long: `Write synthetic submissions (challenge, evidence and a generated capture)
to a temporary directory and check that each one gets its expected verdict.`,
		Example: `  # Run every scenario
  labcheck selftest

  # Run one scenario and keep its files
  labcheck selftest --scenario http-backends --keep`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			return runSelfTest(cmd.OutOrStdout(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.scenario, "scenario", "", "Run only this scenario")
	cmd.Flags().BoolVar(&flags.keep, "keep", false, "Keep the generated submissions")
	cmd.Flags().BoolVar(&flags.verbose, "verbose", false, "Print each validation report")
	return cmd
}

func runSelfTest(out io.Writer, flags *selfTestFlags) error {
	scenarios := fixtures.Scenarios()
	if flags.scenario != "" {
		var picked []fixtures.Scenario
		var names []string
		for _, sc := range scenarios {
			names = append(names, sc.Name)
			if sc.Name == flags.scenario {
				picked = append(picked, sc)
			}
		}
		if len(picked) == 0 {
			return fmt.Errorf("unknown scenario %q (available: %s)", flags.scenario, strings.Join(names, ", "))
		}
		scenarios = picked
	}

	root, err := os.MkdirTemp("", "labcheck-selftest-")
	if err != nil {
		return fmt.Errorf("create selftest dir: %w", err)
	}
	if flags.keep {
		fmt.Fprintf(out, "Submissions kept in %s\n", root)
	} else {
		defer os.RemoveAll(root)
	}

	failures := 0
	for _, sc := range scenarios {
		ok, detail, err := runScenario(out, root, sc, flags.verbose)
		if err != nil {
			return fmt.Errorf("scenario %s: %w", sc.Name, err)
		}
		status := "ok"
		if !ok {
			status = "MISMATCH"
			failures++
		}
		fmt.Fprintf(out, "%-18s %-8s %s\n", sc.Name, status, detail)
	}
	fmt.Fprintf(out, "%d/%d scenarios behaved as expected\n", len(scenarios)-failures, len(scenarios))
	if failures > 0 {
		return fmt.Errorf("%d selftest scenarios misbehaved", failures)
	}
	return nil
}

// runScenario reports whether the verdict matched the scenario's expectation.
func runScenario(out io.Writer, root string, sc fixtures.Scenario, verbose bool) (bool, string, error) {
	opts, err := sc.Build()
	if err != nil {
		return false, "", err
	}
	sub, err := fixtures.WriteSubmission(filepath.Join(root, sc.Name), opts)
	if err != nil {
		return false, "", err
	}

	v := validation.NewValidator(config.DefaultExpectedWeek, opts.Secret)
	v.Now = func() time.Time { return fixtures.ValidationTime }
	if verbose {
		v.Logger = logging.NewWriterLogger(logging.LogLevelVerbose, out)
	}
	res := v.Validate(validation.Inputs{
		ChallengePath: sub.ChallengePath,
		EvidencePath:  sub.EvidencePath,
		CapturePath:   sub.CapturePath,
	})

	if res.OK != sc.WantOK {
		return false, fmt.Sprintf("want ok=%v, got %v %v", sc.WantOK, res.OK, res.Errors), nil
	}
	if !sc.WantOK {
		for _, e := range res.Errors {
			if strings.Contains(e, sc.WantError) {
				return true, "rejected: " + e, nil
			}
		}
		return false, fmt.Sprintf("missing error %q in %v", sc.WantError, res.Errors), nil
	}
	return true, fmt.Sprintf("accepted, %d warnings", len(res.Warnings)), nil
}
