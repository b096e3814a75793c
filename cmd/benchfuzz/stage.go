package main

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/R9295/thesis-public/internal/logging"
	"github.com/R9295/thesis-public/internal/process"
	"github.com/R9295/thesis-public/internal/stager"
)

var stageCmd = &cobra.Command{
	Use:   "stage --dir <path> [--dir <path>...] -- <command> [args...]",
	Short: "Run a command with directories staged",
	Long:  "Snapshot every --dir in order, run the command, and restore the directories innermost-first whatever the command's outcome.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runStage,
}

func init() {
	stageCmd.Flags().StringArray("dir", nil, "directory to stage (repeatable, outermost first)")
	_ = stageCmd.MarkFlagRequired("dir")
}

func runStage(cmd *cobra.Command, args []string) error {
	c, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	dirs, _ := cmd.Flags().GetStringArray("dir")
	fs := afero.NewOsFs()
	env, err := buildEnvironment(fs, c)
	if err != nil {
		return err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	l := logging.NewFuzzerLogger("stage")
	s := stager.New(fs,
		stager.WithStagingDir(c.Build.StagingDir),
		stager.WithVerify(c.Build.Verify),
		stager.WithLogger(l))
	spec := process.Spec{
		Name:  args[0],
		Args:  args[1:],
		Env:   env.Environ(),
		Dir:   cwd,
		Quiet: c.Build.Quiet,
	}
	return s.Run(dirs, func() error {
		if err := process.Run(cmd.Context(), spec, l); err != nil {
			return fmt.Errorf("staged command: %w", err)
		}
		return nil
	})
}
