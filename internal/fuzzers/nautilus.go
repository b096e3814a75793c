package fuzzers

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/R9295/thesis-public/internal/constants"
	"github.com/R9295/thesis-public/internal/process"
	"github.com/R9295/thesis-public/internal/types"
)

// Nautilus is the grammar based fuzzer. Everything about a run except the
// grammar is read from the config.ron copied next to it.
type Nautilus struct{}

func (Nautilus) Name() string { return "nautilus" }

// grammarFor picks the grammar for a benchmark by name. Order matters: a
// name matching several languages gets the first.
func grammarFor(benchmark string) (string, error) {
	name := strings.ToLower(benchmark)
	var grammar string
	switch {
	case strings.Contains(name, "php"):
		grammar = "php_custom.py"
	case strings.Contains(name, "ruby"):
		grammar = "ruby_custom.py"
	case strings.Contains(name, "jerryscript"), strings.Contains(name, "javascript"):
		grammar = "javascript_new.py"
	case strings.Contains(name, "lua"):
		grammar = "lua.py"
	default:
		return "", fmt.Errorf("%w %q: no grammar available", ErrUnsupportedBenchmark, benchmark)
	}
	return filepath.Join(constants.NautilusGrammars, grammar), nil
}

func (Nautilus) Build(ctx context.Context, bc *BuildContext) error {
	out, err := bc.outDir()
	if err != nil {
		return err
	}
	grammar, err := grammarFor(bc.Env.Get(constants.BenchmarkEnv))
	if err != nil {
		return err
	}
	if err := copyFile(bc.Fs, grammar, filepath.Join(out, "grammar.py")); err != nil {
		return fmt.Errorf("installing grammar: %w", err)
	}

	bc.useAFLCompilers()
	for _, f := range []string{constants.NautilusFuzzer, constants.NautilusConfig} {
		if err := copyInto(bc.Fs, f, out); err != nil {
			return fmt.Errorf("installing %s: %w", filepath.Base(f), err)
		}
	}
	bc.Env.Set("AFL_LLVM_INSTRUMENT", "CLASSIC")
	return bc.stagedBuild(ctx)
}

func (Nautilus) Command(fs afero.Fs, req types.FuzzRequest) (process.Spec, error) {
	env, err := prepareFuzzEnvironment(fs, req)
	if err != nil {
		return process.Spec{}, err
	}
	if err := fs.MkdirAll(Nautilus{}.OutputDir(req), 0755); err != nil {
		return process.Spec{}, err
	}
	return process.Spec{
		Name: filepath.Join(req.OutDir, filepath.Base(constants.NautilusFuzzer)),
		Env:  env,
		Dir:  req.OutDir,
	}, nil
}

// OutputDir is fixed by config.ron relative to the working directory.
func (Nautilus) OutputDir(req types.FuzzRequest) string {
	return filepath.Join(req.OutDir, "out")
}
