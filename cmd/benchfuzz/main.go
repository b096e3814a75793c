package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/R9295/thesis-public/internal/buildenv"
	"github.com/R9295/thesis-public/internal/config"
	"github.com/R9295/thesis-public/internal/constants"
	"github.com/R9295/thesis-public/internal/helpers"
	"github.com/R9295/thesis-public/internal/stager"
)

var log = helpers.BasicLogger()

// Exit code for a run that left a staged tree in an unknown state. The
// environment has to be rebuilt from scratch.
const exitCorrupted = 2

var rootCmd = &cobra.Command{
	Use:           "benchfuzz",
	Short:         "Build and run fuzzer integrations for benchmarking",
	Long:          "benchfuzz builds benchmarks for fuzzer integrations with the source and work trees staged and restored around each build, and runs and supervises the fuzzers.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(fuzzCmd)
	rootCmd.AddCommand(stageCmd)
	rootCmd.AddCommand(resultsCmd)
	rootCmd.AddCommand(envCmd)
	rootCmd.AddCommand(listCmd)

	rootCmd.PersistentFlags().String("config", helpers.Getenv(constants.ConfigEnv, constants.DefaultConfig), "path to the TOML config file")
	rootCmd.PersistentFlags().String("staging-dir", "", "directory staging copies are created in (overrides config)")
	rootCmd.PersistentFlags().Bool("verify", false, "verify restored trees against a digest taken at snapshot time")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		log.WithFields(logrus.Fields{"message": err.Error()}).Error()
		if stager.IsCorrupted(err) {
			os.Exit(exitCorrupted)
		}
		os.Exit(1)
	}
}

// loadConfig reads the config file named by --config and applies the
// persistent flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	c, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if dir, _ := cmd.Flags().GetString("staging-dir"); dir != "" {
		c.Build.StagingDir = dir
	}
	if verify, _ := cmd.Flags().GetBool("verify"); verify {
		c.Build.Verify = true
	}
	return c, nil
}

// buildEnvironment seeds the build configuration from the process
// environment and the configured env files.
func buildEnvironment(fs afero.Fs, c *config.Config) (*buildenv.Config, error) {
	env := buildenv.FromProcess()
	for _, f := range c.Build.EnvFiles {
		if err := env.LoadFile(fs, f); err != nil {
			return nil, err
		}
	}
	return env, nil
}
