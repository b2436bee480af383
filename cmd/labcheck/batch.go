package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/tturner/labcheck/internal/progress"
	"github.com/tturner/labcheck/internal/report"
	"github.com/tturner/labcheck/internal/validation"
)

type batchFlags struct {
	commonFlags
	dir         string
	week        int
	parallelism int
	reportJSON  string
	csv         string
	markdown    string
	noProgress  bool
}

func newBatchCmd() *cobra.Command {
	flags := &batchFlags{}

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Validate every submission under a directory",
		Long: `Validate every directory below --dir that contains a challenge.json.
Each submission uses the evidence.json and the first capture file next to it.
Exits 2 when any submission fails.`,
		Example: `  # Grade a cohort with eight workers
  labcheck batch --dir submissions/week11 --parallelism 8

  # Produce a spreadsheet and a Markdown summary
  labcheck batch --dir submissions/week11 --csv grades.csv --markdown summary.md`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if flags.dir == "" && len(args) > 0 {
				flags.dir = args[0]
			}
			if flags.dir == "" {
				return missingFlagError(cmd, "--dir")
			}
			return runBatch(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.dir, "dir", "", "Submissions root directory (required)")
	cmd.Flags().IntVar(&flags.week, "week", 0, "Expected lab week (default from config, 11)")
	cmd.Flags().IntVar(&flags.parallelism, "parallelism", 0, "Concurrent validations (default from config, 4)")
	cmd.Flags().StringVar(&flags.reportJSON, "report-json", "", "Write the batch report JSON to a file")
	cmd.Flags().StringVar(&flags.csv, "csv", "", "Write one CSV row per submission")
	cmd.Flags().StringVar(&flags.markdown, "markdown", "", "Write a Markdown summary")
	cmd.Flags().BoolVar(&flags.noProgress, "no-progress", false, "Do not draw the progress bar on stderr")
	flags.commonFlags.register(cmd)

	return cmd
}

func runBatch(cmd *cobra.Command, flags *batchFlags) error {
	cfg, err := flags.loadConfig()
	if err != nil {
		return err
	}
	if flags.week > 0 {
		cfg.ExpectedWeek = flags.week
	}
	parallelism := cfg.Batch.Parallelism
	if flags.parallelism > 0 {
		parallelism = flags.parallelism
	}
	logger, err := flags.newLogger(cfg)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Close()

	inputs, err := validation.DiscoverSubmissions(flags.dir)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no submissions found under %s (looked for %s)", flags.dir, validation.ChallengeFileName)
	}
	logger.Info("Validating %d submissions with %d workers", len(inputs), parallelism)

	v, err := validation.NewFromConfig(cfg, flags.resolveSecret(cfg), logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	var bar *progress.Bar
	if !flags.noProgress {
		bar = progress.NewBar(cmd.ErrOrStderr(), len(inputs), "Grading")
	}
	results, err := v.ValidateBatchFunc(ctx, inputs, parallelism, func(r validation.BatchResult) {
		bar.Done(r.Result.OK)
	})
	bar.Finish()
	if err != nil {
		return err
	}

	rep := report.NewBatchReport(flags.dir, version, cfg.ExpectedWeek, results)
	report.WriteBatchText(cmd.OutOrStdout(), rep, flags.verbose)
	if flags.reportJSON != "" {
		if err := report.WriteJSONFile(flags.reportJSON, rep); err != nil {
			return err
		}
	}
	if flags.csv != "" {
		if err := report.WriteBatchCSV(flags.csv, rep); err != nil {
			return err
		}
	}
	if flags.markdown != "" {
		f, err := os.Create(flags.markdown)
		if err != nil {
			return fmt.Errorf("create markdown report: %w", err)
		}
		report.WriteBatchMarkdown(f, rep)
		if err := f.Close(); err != nil {
			return fmt.Errorf("write markdown report: %w", err)
		}
	}

	if rep.Failed > 0 {
		return errSubmissionFailed
	}
	return nil
}
