package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/tturner/labcheck/internal/report"
	"github.com/tturner/labcheck/internal/validation"
)

type validateFlags struct {
	commonFlags
	challenge  string
	evidence   string
	pcap       string
	baseDir    string
	week       int
	json       bool
	reportJSON string
	copy       bool
}

func newValidateCmd() *cobra.Command {
	flags := &validateFlags{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate one submission",
		Long: `Validate a challenge, evidence manifest and packet capture together.
Every check runs even after a failure so the report lists all problems.
Exits 0 when the submission passes and 2 when it fails.`,
		Example: `  # Validate a submission in the current directory
  labcheck validate --challenge challenge.json --evidence evidence.json --pcap capture.pcapng

  # Show warnings and metrics, verify the signature with an explicit secret
  labcheck validate --challenge c.json --evidence e.json --pcap p.pcap --secret "$SECRET" --verbose

  # Write a JSON report and copy the text report to the clipboard
  labcheck validate --challenge c.json --evidence e.json --pcap p.pcap --report-json result.json --copy`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if err := requireFlags(cmd,
				submissionFlag{"--challenge", flags.challenge},
				submissionFlag{"--evidence", flags.evidence},
				submissionFlag{"--pcap", flags.pcap},
			); err != nil {
				return err
			}
			return runValidate(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.challenge, "challenge", "", "Challenge JSON file (required)")
	cmd.Flags().StringVar(&flags.evidence, "evidence", "", "Evidence JSON file (required)")
	cmd.Flags().StringVar(&flags.pcap, "pcap", "", "Capture file, pcap or pcapng (required)")
	cmd.Flags().StringVar(&flags.baseDir, "base-dir", "", "Directory artefact paths are relative to (default: the evidence file's directory)")
	cmd.Flags().IntVar(&flags.week, "week", 0, "Expected lab week (default from config, 11)")
	cmd.Flags().BoolVar(&flags.json, "json", false, "Print the report as JSON instead of text")
	cmd.Flags().StringVar(&flags.reportJSON, "report-json", "", "Write the JSON report to a file")
	cmd.Flags().BoolVar(&flags.copy, "copy", false, "Copy the verbose text report to the clipboard")
	flags.commonFlags.register(cmd)

	return cmd
}

func runValidate(cmd *cobra.Command, flags *validateFlags) error {
	cfg, err := flags.loadConfig()
	if err != nil {
		return err
	}
	if flags.week > 0 {
		cfg.ExpectedWeek = flags.week
	}
	logger, err := flags.newLogger(cfg)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Close()
	logger.LogStartup(flags.challenge, flags.evidence, flags.pcap, cfg.ExpectedWeek, flags.configPathForLog())

	v, err := validation.NewFromConfig(cfg, flags.resolveSecret(cfg), logger)
	if err != nil {
		return err
	}
	in := validation.Inputs{
		ChallengePath: flags.challenge,
		EvidencePath:  flags.evidence,
		CapturePath:   flags.pcap,
		BaseDir:       flags.baseDir,
	}
	if in.BaseDir == "" {
		in.BaseDir = cfg.BaseDir
	}
	res := v.Validate(in)

	rep := report.SubmissionReport{
		GeneratedAt:     report.FormatTimestamp(),
		LabcheckVersion: version,
		LabcheckCommit:  commit,
		ExpectedWeek:    cfg.ExpectedWeek,
		Inputs:          in,
		Result:          res,
	}
	out := cmd.OutOrStdout()
	if flags.json {
		if err := report.WriteJSON(out, rep); err != nil {
			return err
		}
	} else {
		report.WriteText(out, res, flags.verbose)
	}
	if flags.reportJSON != "" {
		if err := report.WriteJSONFile(flags.reportJSON, rep); err != nil {
			return err
		}
	}
	if flags.copy {
		var buf bytes.Buffer
		report.WriteText(&buf, res, true)
		if err := clipboard.WriteAll(buf.String()); err != nil {
			fmt.Fprintf(os.Stderr, "WARNING: could not copy report to clipboard: %v\n", err)
		}
	}

	if !res.OK {
		return errSubmissionFailed
	}
	return nil
}
