package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tern/internal/snapshot"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <snapshot>",
	Short: "Print a diagnostics snapshot written by exercise --report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open snapshot: %w", err)
		}
		defer f.Close()
		snap, err := snapshot.Decode(f)
		if err != nil {
			return err
		}
		renderSnapshot(cmd.OutOrStdout(), snap)
		return nil
	},
}
