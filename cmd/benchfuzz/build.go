package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/R9295/thesis-public/internal/builder"
	"github.com/R9295/thesis-public/internal/constants"
	"github.com/R9295/thesis-public/internal/fuzzers"
	"github.com/R9295/thesis-public/internal/logging"
	"github.com/R9295/thesis-public/internal/stager"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the benchmark for a fuzzer",
	Long:  "Configure the toolchain for $FUZZER and run the benchmark build script with $SRC and $WORK staged, restoring both afterwards.",
	Args:  cobra.NoArgs,
	RunE:  runBuild,
}

func init() {
	buildCmd.Flags().String("fuzzer", "", "fuzzer integration (default $FUZZER)")
	buildCmd.Flags().String("benchmark", "", "benchmark name (default $BENCHMARK)")
	buildCmd.Flags().String("script", "", "build script (overrides config)")
}

func runBuild(cmd *cobra.Command, _ []string) error {
	c, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	fs := afero.NewOsFs()
	env, err := buildEnvironment(fs, c)
	if err != nil {
		return err
	}
	for flag, key := range map[string]string{"fuzzer": constants.FuzzerEnv, "benchmark": constants.BenchmarkEnv} {
		if v, _ := cmd.Flags().GetString(flag); v != "" {
			env.Set(key, v)
		}
	}
	if script, _ := cmd.Flags().GetString("script"); script != "" {
		c.Build.Script = script
	}

	names, err := env.Require(constants.FuzzerEnv, constants.BenchmarkEnv)
	if err != nil {
		return err
	}
	f, err := fuzzers.Lookup(names[0])
	if err != nil {
		return err
	}

	l := logging.NewBenchmarkLogger(names[0], names[1])
	b := builder.New(c.Build.Script, l)
	b.Quiet = c.Build.Quiet
	bc := &fuzzers.BuildContext{
		Fs: fs,
		Stager: stager.New(fs,
			stager.WithStagingDir(c.Build.StagingDir),
			stager.WithVerify(c.Build.Verify),
			stager.WithLogger(l)),
		Step:   b,
		Env:    env,
		Logger: l,
		Extra:  c.Build.ExtraStaged,
	}
	if err := f.Build(cmd.Context(), bc); err != nil {
		if stager.IsCorrupted(err) {
			l.Error("Build environment corrupted, rebuild from scratch")
		}
		return fmt.Errorf("building %s with %s: %w", names[1], names[0], err)
	}
	l.Info("Build finished")
	return nil
}
