// Package fuzzers holds the per-fuzzer build and run integrations. Each one
// configures the toolchain for its fuzzer, copies the fuzzer's runtime files
// into $OUT and runs the benchmark build with the source and work trees
// staged.
package fuzzers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/R9295/thesis-public/internal/buildenv"
	"github.com/R9295/thesis-public/internal/builder"
	"github.com/R9295/thesis-public/internal/constants"
	"github.com/R9295/thesis-public/internal/helpers"
	"github.com/R9295/thesis-public/internal/logging"
	"github.com/R9295/thesis-public/internal/process"
	"github.com/R9295/thesis-public/internal/stager"
	"github.com/R9295/thesis-public/internal/types"
)

var (
	ErrFuzzUnsupported      = errors.New("fuzzer does not support fuzzing")
	ErrUnsupportedBenchmark = errors.New("unsupported benchmark")
)

// Build time sanitizer settings: the instrumented build runs configure
// checks that must not abort.
const (
	buildASANOptions  = "abort_on_error=0:allocator_may_return_null=1"
	buildUBSANOptions = "abort_on_error=0"
)

var (
	runtimeASANOptions = strings.Join([]string{
		"abort_on_error=1",
		"detect_leaks=0",
		"malloc_context_size=0",
		"symbolize=0",
		"allocator_may_return_null=1",
		"detect_odr_violation=0",
		"handle_segv=0",
		"handle_sigbus=0",
		"handle_abort=0",
		"handle_sigfpe=0",
		"handle_sigill=0",
	}, ":")
	runtimeUBSANOptions = strings.Join([]string{
		"abort_on_error=1",
		"allocator_release_to_os_interval_ms=500",
		"handle_abort=0",
		"handle_segv=0",
		"handle_sigbus=0",
		"handle_sigfpe=0",
		"handle_sigill=0",
		"print_stacktrace=0",
		"symbolize=0",
		"symbolize_inline_frames=0",
	}, ":")
)

// Fuzzer is one fuzzer integration.
type Fuzzer interface {
	Name() string
	// Build configures bc.Env for the fuzzer and runs the staged build.
	Build(ctx context.Context, bc *BuildContext) error
	// Command prepares the fuzzing run described by req and returns the
	// command that performs it.
	Command(fs afero.Fs, req types.FuzzRequest) (process.Spec, error)
}

// BuildContext is everything a Fuzzer needs to build a benchmark. Env is
// modified in place by Build.
type BuildContext struct {
	Fs     afero.Fs
	Stager *stager.Stager
	Step   builder.Step
	Env    *buildenv.Config
	Logger logging.Logger
	// Extra directories staged along with $SRC and $WORK.
	Extra []string
}

func (bc *BuildContext) stagedBuild(ctx context.Context) error {
	return builder.StagedBuild(ctx, bc.Stager, bc.Step, bc.Env, bc.Extra...)
}

func (bc *BuildContext) outDir() (string, error) {
	dirs, err := bc.Env.Require(constants.OutDirEnv)
	if err != nil {
		return "", err
	}
	return dirs[0], nil
}

// useAFLCompilers points the build at the AFL++ compiler wrappers with the
// build time sanitizer options and the AFL driver as fuzzer library.
func (bc *BuildContext) useAFLCompilers() {
	bc.Env.Set("CC", constants.AFLClangFast)
	bc.Env.Set("CXX", constants.AFLClangFastPlus)
	bc.Env.Set("ASAN_OPTIONS", buildASANOptions)
	bc.Env.Set("UBSAN_OPTIONS", buildUBSANOptions)
	bc.Env.Set(constants.FuzzerLibEnv, constants.AFLDriverLib)
}

var registry = map[string]Fuzzer{}

func register(f Fuzzer) {
	registry[f.Name()] = f
}

func init() {
	register(Coverage{})
	register(Nautilus{})
	register(ThesisRuby{})
}

// Lookup returns the integration registered under name.
func Lookup(name string) (Fuzzer, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown fuzzer %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return f, nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// OutputDir returns where f writes its findings for req: the output corpus
// unless the fuzzer chooses its own location.
func OutputDir(f Fuzzer, req types.FuzzRequest) string {
	if o, ok := f.(interface {
		OutputDir(types.FuzzRequest) string
	}); ok {
		return o.OutputDir(req)
	}
	return req.OutputCorpus
}

// Fuzz prepares and runs f in the foreground until it exits or ctx is done.
func Fuzz(ctx context.Context, fs afero.Fs, f Fuzzer, req types.FuzzRequest, l logging.Logger) error {
	spec, err := f.Command(fs, req)
	if err != nil {
		return err
	}
	return process.Run(ctx, spec, l)
}

// prepareFuzzEnvironment returns the fuzzer process environment with the
// runtime sanitizer options and makes sure the input corpus has a seed.
func prepareFuzzEnvironment(fs afero.Fs, req types.FuzzRequest) ([]string, error) {
	env := buildenv.FromEnviron(req.Env)
	env.Set("ASAN_OPTIONS", runtimeASANOptions)
	env.Set("UBSAN_OPTIONS", runtimeUBSANOptions)
	if req.InputCorpus != "" {
		if _, err := helpers.CreateSeedFileForEmptyCorpus(fs, req.InputCorpus); err != nil {
			return nil, fmt.Errorf("seeding %s: %w", req.InputCorpus, err)
		}
	}
	return env.Environ(), nil
}

// copyInto copies the file src into dir, keeping its permission bits.
func copyInto(fs afero.Fs, src, dir string) error {
	return copyFile(fs, src, filepath.Join(dir, filepath.Base(src)))
}

func copyFile(fs afero.Fs, src, dst string) (err error) {
	info, err := fs.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", src)
	}
	in, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err = io.Copy(out, in); err != nil {
		return fmt.Errorf("copying %s to %s: %w", src, dst, err)
	}
	return fs.Chmod(dst, info.Mode().Perm())
}
