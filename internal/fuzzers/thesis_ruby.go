package fuzzers

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/R9295/thesis-public/internal/constants"
	"github.com/R9295/thesis-public/internal/process"
	"github.com/R9295/thesis-public/internal/types"
)

const rubyDictionary = "afl++.dict"

// ThesisRuby is the Ruby unparser fuzzer. The build has AFL++ dump the
// target's comparison operands into a dictionary in $OUT.
type ThesisRuby struct{}

func (ThesisRuby) Name() string { return "thesis_ruby" }

func (ThesisRuby) Build(ctx context.Context, bc *BuildContext) error {
	out, err := bc.outDir()
	if err != nil {
		return err
	}
	bc.useAFLCompilers()
	bc.Env.Set("AFL_LLVM_DICT2FILE", filepath.Join(out, rubyDictionary))
	bc.Env.Set("AFL_LLVM_DICT2FILE_NO_MAIN", "1")

	if err := copyInto(bc.Fs, constants.UnparserRubyFuzzer, out); err != nil {
		return fmt.Errorf("installing fuzzer: %w", err)
	}
	return bc.stagedBuild(ctx)
}

func (ThesisRuby) Command(fs afero.Fs, req types.FuzzRequest) (process.Spec, error) {
	env, err := prepareFuzzEnvironment(fs, req)
	if err != nil {
		return process.Spec{}, err
	}
	return process.Spec{
		Name: filepath.Join(req.OutDir, filepath.Base(constants.UnparserRubyFuzzer)),
		Args: []string{
			"-S",
			"-c", "0",
			"-m", "200",
			"-o", req.OutputCorpus,
			"-x", rubyDictionary,
			"-t", "1000",
			"-g", "1000",
			req.TargetBinary,
		},
		Env: env,
		Dir: req.OutDir,
	}, nil
}
