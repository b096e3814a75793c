package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/R9295/thesis-public/internal/fuzzers"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the available fuzzer integrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		for _, name := range fuzzers.Names() {
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
				return err
			}
		}
		return nil
	},
}
