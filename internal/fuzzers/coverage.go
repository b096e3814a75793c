package fuzzers

import (
	"context"

	"github.com/spf13/afero"

	"github.com/R9295/thesis-public/internal/constants"
	"github.com/R9295/thesis-public/internal/process"
	"github.com/R9295/thesis-public/internal/types"
)

var coverageFlags = []string{
	"-fprofile-instr-generate",
	"-fcoverage-mapping",
	"-gline-tables-only",
}

// Coverage builds clang source-based coverage binaries for measuring the
// corpora produced by the other fuzzers.
type Coverage struct{}

func (Coverage) Name() string { return "coverage" }

func (Coverage) Build(ctx context.Context, bc *BuildContext) error {
	bc.Env.AppendFlags("CFLAGS", coverageFlags...)
	bc.Env.AppendFlags("CXXFLAGS", coverageFlags...)
	bc.Env.Set("CC", constants.ClangCC)
	bc.Env.Set("CXX", constants.ClangCXX)
	bc.Env.Set(constants.FuzzerLibEnv, constants.LibFuzzerLib)
	return bc.stagedBuild(ctx)
}

func (Coverage) Command(afero.Fs, types.FuzzRequest) (process.Spec, error) {
	return process.Spec{}, ErrFuzzUnsupported
}
