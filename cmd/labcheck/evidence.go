package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tturner/labcheck/internal/challenge"
	"github.com/tturner/labcheck/internal/errors"
	"github.com/tturner/labcheck/internal/evidence"
)

func newEvidenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evidence",
		Short: "Prepare evidence manifests",
	}
	cmd.AddCommand(newEvidenceBuildCmd())
	return cmd
}

type evidenceBuildFlags struct {
	challenge string
	pcap      string
	baseDir   string
	artefacts []string
	out       string
}

func newEvidenceBuildCmd() *cobra.Command {
	flags := &evidenceBuildFlags{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Write evidence.json for a capture and artefacts",
		Long: `Hash the capture and each artefact and write an evidence manifest bound
to the challenge's token and id. Artefact paths are recorded relative to
--base-dir and must stay inside it.`,
		Example: `  labcheck evidence build --challenge challenge.json --pcap capture.pcapng \
    --artefact out/report.json --artefact notes.md`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if err := requireFlags(cmd,
				submissionFlag{"--challenge", flags.challenge},
				submissionFlag{"--pcap", flags.pcap},
			); err != nil {
				return err
			}
			return runEvidenceBuild(cmd.OutOrStdout(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.challenge, "challenge", "", "Challenge JSON file (required)")
	cmd.Flags().StringVar(&flags.pcap, "pcap", "", "Capture file (required)")
	cmd.Flags().StringVar(&flags.baseDir, "base-dir", ".", "Directory artefact paths are relative to")
	cmd.Flags().StringArrayVar(&flags.artefacts, "artefact", nil, "Artefact file to include (repeatable)")
	cmd.Flags().StringVar(&flags.out, "out", "evidence.json", "Output file")
	return cmd
}

func runEvidenceBuild(out io.Writer, flags *evidenceBuildFlags) error {
	ch, err := challenge.Load(flags.challenge)
	if err != nil {
		return errors.WrapInputError(err, "challenge", flags.challenge)
	}
	ev, err := evidence.Build(evidence.BuildOptions{
		Challenge:   ch,
		CapturePath: flags.pcap,
		BaseDir:     flags.baseDir,
		Artefacts:   flags.artefacts,
	})
	if err != nil {
		return fmt.Errorf("build evidence: %w", err)
	}
	if err := ev.Save(flags.out); err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote %s: token %s, capture %s, %d artefacts\n", flags.out, ev.Token, ev.PcapSHA256, len(ev.Artefacts))
	return nil
}
