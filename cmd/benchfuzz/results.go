package main

import (
	"github.com/spf13/cobra"

	"github.com/R9295/thesis-public/internal/logging"
	"github.com/R9295/thesis-public/internal/results"
)

var resultsCmd = &cobra.Command{
	Use:   "results <folder>",
	Short: "Extract the corpus archives of every trial below a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jobs, _ := cmd.Flags().GetInt("jobs")
		_, err := results.Extract(cmd.Context(), args[0], jobs, logging.NewFuzzerLogger("results"))
		return err
	},
}

func init() {
	resultsCmd.Flags().Int("jobs", 0, "trials extracted concurrently (0 = one per CPU)")
}
