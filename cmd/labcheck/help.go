package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// handleHelpArg treats a bare "help" positional as --help, so
// "labcheck validate help" prints usage instead of failing on missing files.
func handleHelpArg(cmd *cobra.Command, args []string) bool {
	if len(args) == 0 || !strings.EqualFold(args[0], "help") {
		return false
	}
	_ = cmd.Help()
	return true
}

// submissionFlag pairs a flag name with the value it was given.
type submissionFlag struct {
	name  string
	value string
}

// requireFlags reports every empty flag at once, so a student fixing the
// command line does not discover the missing files one run at a time.
func requireFlags(cmd *cobra.Command, flags ...submissionFlag) error {
	var missing []string
	for _, f := range flags {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	switch len(missing) {
	case 0:
		return nil
	case 1:
		return missingFlagError(cmd, missing[0])
	}
	_ = cmd.Help()
	return fmt.Errorf("required flags %s not set", strings.Join(missing, ", "))
}

func missingFlagError(cmd *cobra.Command, flag string) error {
	_ = cmd.Help()
	return fmt.Errorf("required flag %s not set", flag)
}
