package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/R9295/thesis-public/internal/constants"
	"github.com/R9295/thesis-public/internal/fuzzers"
	"github.com/R9295/thesis-public/internal/logging"
	"github.com/R9295/thesis-public/internal/storage"
	"github.com/R9295/thesis-public/internal/supervisor"
	"github.com/R9295/thesis-public/internal/types"
)

var fuzzCmd = &cobra.Command{
	Use:   "fuzz <input_corpus> <output_corpus> <target_binary>",
	Short: "Run a fuzzer against a built benchmark",
	Long:  "Prepare the fuzzing environment for $FUZZER and run it from $OUT. With --supervise the fuzzer is restarted on failure and its crashes, stats and corpus are collected until $MAX_TOTAL_TIME.",
	Args:  cobra.ExactArgs(3),
	RunE:  runFuzz,
}

func init() {
	fuzzCmd.Flags().String("fuzzer", "", "fuzzer integration (default $FUZZER)")
	fuzzCmd.Flags().Bool("supervise", true, "run under supervision")
}

func runFuzz(cmd *cobra.Command, args []string) error {
	c, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	fs := afero.NewOsFs()
	env, err := buildEnvironment(fs, c)
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("fuzzer"); v != "" {
		env.Set(constants.FuzzerEnv, v)
	}
	vals, err := env.Require(constants.FuzzerEnv, constants.OutDirEnv)
	if err != nil {
		return err
	}
	f, err := fuzzers.Lookup(vals[0])
	if err != nil {
		return err
	}

	req := types.FuzzRequest{
		Benchmark:    types.Benchmark{Name: env.Get(constants.BenchmarkEnv), Fuzzer: f.Name()},
		InputCorpus:  args[0],
		OutputCorpus: args[1],
		TargetBinary: args[2],
		OutDir:       vals[1],
		Env:          env.Environ(),
	}
	l := logging.NewBenchmarkLogger(req.Benchmark.Fuzzer, req.Benchmark.Name)

	if supervise, _ := cmd.Flags().GetBool("supervise"); !supervise {
		return fuzzers.Fuzz(cmd.Context(), fs, f, req, l)
	}

	spec, err := f.Command(fs, req)
	if err != nil {
		return err
	}
	spec.Quiet = c.Fuzz.Quiet

	opts := supervisor.Options{
		Name:            req.Benchmark.Fuzzer + "-" + req.Benchmark.Name,
		OutputDir:       fuzzers.OutputDir(f, req),
		MaxTotalTime:    c.Fuzz.MaxTotalTime.Duration,
		StatsInterval:   c.Fuzz.StatsInterval.Duration,
		ArchiveInterval: c.Fuzz.ArchiveInterval.Duration,
	}
	if c.Fuzz.StorageDir != "" {
		opts.Storage, err = storage.Init(fs, c.Fuzz.Storage, c.Fuzz.StorageDir)
		if err != nil {
			return fmt.Errorf("initializing storage: %w", err)
		}
	}
	return supervisor.Run(cmd.Context(), l, spec, opts)
}
