package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// errSubmissionFailed makes the process exit with status 2 without printing
// anything further; the report has already been written.
var errSubmissionFailed = errors.New("submission failed validation")

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "labcheck",
		Short: "Validate lab submissions against signed challenges",
		Long: `labcheck checks that a student's packet capture and evidence manifest
answer a personalised lab challenge: the challenge token must appear in the
traffic, the declared hashes must match, and the requirements of the week
(request counts, distinct backends, DNS lookups, TCP handshakes) must be met.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newChallengeCmd())
	rootCmd.AddCommand(newEvidenceCmd())
	rootCmd.AddCommand(newSelfTestCmd())

	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if cmd != cmd.Root() {
			fmt.Fprint(cmd.OutOrStdout(), cmd.UsageString())
			return
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Usage:\n  %s <command> [arguments] [options]\n\n", cmd.Name())
		fmt.Fprintf(out, "Available Commands:\n")
		for _, subCmd := range cmd.Commands() {
			if !subCmd.Hidden {
				fmt.Fprintf(out, "  %-15s %s\n", subCmd.Name(), subCmd.Short)
			}
		}
		fmt.Fprintf(out, "\nUse \"%s help <command>\" for more information about a command.\n", cmd.Name())
	})
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, errSubmissionFailed) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
