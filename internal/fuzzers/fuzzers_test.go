package fuzzers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R9295/thesis-public/internal/buildenv"
	"github.com/R9295/thesis-public/internal/constants"
	"github.com/R9295/thesis-public/internal/logging"
	"github.com/R9295/thesis-public/internal/stager"
	"github.com/R9295/thesis-public/internal/types"
)

// fakeStep records the configuration it was run with and dirties the
// source tree like a real build would.
type fakeStep struct {
	fs   afero.Fs
	runs int
	env  map[string]string
	err  error
}

func (f *fakeStep) Build(_ context.Context, cfg *buildenv.Config) error {
	f.runs++
	f.env = map[string]string{}
	for _, k := range cfg.Keys() {
		f.env[k] = cfg.Get(k)
	}
	if err := afero.WriteFile(f.fs, filepath.Join(cfg.Get("SRC"), "config.status"), []byte("x"), 0644); err != nil {
		return err
	}
	return f.err
}

func newBuildContext(t *testing.T, benchmark string) (*BuildContext, *fakeStep) {
	t.Helper()
	fs := afero.NewMemMapFs()
	for _, d := range []string{"/src/project", "/work", "/out", "/tmp"} {
		require.NoError(t, fs.MkdirAll(d, 0755))
	}
	require.NoError(t, afero.WriteFile(fs, "/src/project/main.c", []byte("int main;"), 0644))

	grammars := []string{"php_custom.py", "ruby_custom.py", "javascript_new.py", "lua.py"}
	files := map[string]os.FileMode{
		constants.NautilusFuzzer:     0755,
		constants.NautilusConfig:     0644,
		constants.UnparserRubyFuzzer: 0755,
	}
	for _, g := range grammars {
		files[filepath.Join(constants.NautilusGrammars, g)] = 0644
	}
	for name, mode := range files {
		require.NoError(t, fs.MkdirAll(filepath.Dir(name), 0755))
		require.NoError(t, afero.WriteFile(fs, name, []byte(filepath.Base(name)), mode))
	}

	step := &fakeStep{fs: fs}
	return &BuildContext{
		Fs:     fs,
		Stager: stager.New(fs, stager.WithStagingDir("/tmp")),
		Step:   step,
		Env: buildenv.FromEnviron([]string{
			"SRC=/src",
			"WORK=/work",
			"OUT=/out",
			"BENCHMARK=" + benchmark,
			"CFLAGS=-O1",
		}),
		Logger: logging.Discard(),
	}, step
}

func assertSourceRestored(t *testing.T, fs afero.Fs) {
	t.Helper()
	exists, err := afero.Exists(fs, "/src/config.status")
	require.NoError(t, err)
	assert.False(t, exists, "source tree was not restored")
	data, err := afero.ReadFile(fs, "/src/project/main.c")
	require.NoError(t, err)
	assert.Equal(t, "int main;", string(data))
}

func TestLookup(t *testing.T) {
	assert.Equal(t, []string{"coverage", "nautilus", "thesis_ruby"}, Names())

	f, err := Lookup("nautilus")
	require.NoError(t, err)
	assert.Equal(t, "nautilus", f.Name())

	_, err = Lookup("afl")
	assert.ErrorContains(t, err, "coverage, nautilus, thesis_ruby")
}

func TestCoverageBuild(t *testing.T) {
	bc, step := newBuildContext(t, "libxml2_xml")
	require.NoError(t, Coverage{}.Build(context.Background(), bc))

	assert.Equal(t, 1, step.runs)
	assert.Equal(t, "-O1 -fprofile-instr-generate -fcoverage-mapping -gline-tables-only", step.env["CFLAGS"])
	assert.Equal(t, "-fprofile-instr-generate -fcoverage-mapping -gline-tables-only", step.env["CXXFLAGS"])
	assert.Equal(t, "clang", step.env["CC"])
	assert.Equal(t, "clang++", step.env["CXX"])
	assert.Equal(t, "/usr/lib/libFuzzer.a", step.env["FUZZER_LIB"])
	assertSourceRestored(t, bc.Fs)

	_, err := Coverage{}.Command(bc.Fs, types.FuzzRequest{})
	assert.ErrorIs(t, err, ErrFuzzUnsupported)
}

func TestGrammarFor(t *testing.T) {
	cases := map[string]string{
		"php_php-fuzz-parser":     "php_custom.py",
		"ruby_fuzz_regexp":        "ruby_custom.py",
		"jerryscript_parse":       "javascript_new.py",
		"quickjs_javascript_eval": "javascript_new.py",
		"LUA_parser":              "lua.py",
	}
	for benchmark, want := range cases {
		got, err := grammarFor(benchmark)
		require.NoError(t, err, benchmark)
		assert.Equal(t, filepath.Join("/nautilus/grammars", want), got, benchmark)
	}

	_, err := grammarFor("libpng_read_fuzzer")
	assert.ErrorIs(t, err, ErrUnsupportedBenchmark)
}

func TestNautilusBuild(t *testing.T) {
	bc, step := newBuildContext(t, "mruby_ruby_fuzzer")
	require.NoError(t, Nautilus{}.Build(context.Background(), bc))

	assert.Equal(t, "/afl/afl-clang-fast", step.env["CC"])
	assert.Equal(t, "/afl/afl-clang-fast++", step.env["CXX"])
	assert.Equal(t, "/libAFLDriver.a", step.env["FUZZER_LIB"])
	assert.Equal(t, "abort_on_error=0:allocator_may_return_null=1", step.env["ASAN_OPTIONS"])
	assert.Equal(t, "abort_on_error=0", step.env["UBSAN_OPTIONS"])
	assert.Equal(t, "CLASSIC", step.env["AFL_LLVM_INSTRUMENT"])

	grammar, err := afero.ReadFile(bc.Fs, "/out/grammar.py")
	require.NoError(t, err)
	assert.Equal(t, "ruby_custom.py", string(grammar))

	info, err := bc.Fs.Stat("/out/fuzzer")
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())
	exists, err := afero.Exists(bc.Fs, "/out/config.ron")
	require.NoError(t, err)
	assert.True(t, exists)

	assertSourceRestored(t, bc.Fs)
}

func TestNautilusBuildUnsupportedBenchmark(t *testing.T) {
	bc, step := newBuildContext(t, "libpng_read_fuzzer")
	err := Nautilus{}.Build(context.Background(), bc)
	assert.ErrorIs(t, err, ErrUnsupportedBenchmark)
	assert.Zero(t, step.runs)
}

func TestThesisRubyBuildFailureIsRestored(t *testing.T) {
	bc, step := newBuildContext(t, "ruby_fuzz_regexp")
	step.err = errors.New("make: *** [all] Error 2")

	err := ThesisRuby{}.Build(context.Background(), bc)
	assert.ErrorIs(t, err, step.err)
	assert.False(t, stager.IsCorrupted(err))

	assert.Equal(t, "/out/afl++.dict", step.env["AFL_LLVM_DICT2FILE"])
	assert.Equal(t, "1", step.env["AFL_LLVM_DICT2FILE_NO_MAIN"])
	exists, err := afero.Exists(bc.Fs, "/out/unparser-ruby")
	require.NoError(t, err)
	assert.True(t, exists)
	assertSourceRestored(t, bc.Fs)
}

func TestBuildRequiresOut(t *testing.T) {
	bc, step := newBuildContext(t, "ruby_fuzz_regexp")
	bc.Env.Unset("OUT")
	assert.ErrorContains(t, ThesisRuby{}.Build(context.Background(), bc), "OUT")
	assert.Zero(t, step.runs)
}

func TestThesisRubyCommand(t *testing.T) {
	fs := afero.NewMemMapFs()
	spec, err := ThesisRuby{}.Command(fs, types.FuzzRequest{
		InputCorpus:  "/corpus/in",
		OutputCorpus: "/corpus/out",
		TargetBinary: "/out/ruby_fuzz_regexp",
		OutDir:       "/out",
		Env:          []string{"PATH=/usr/bin", "ASAN_OPTIONS=detect_leaks=1"},
	})
	require.NoError(t, err)

	assert.Equal(t, "/out/unparser-ruby", spec.Name)
	assert.Equal(t, "/out", spec.Dir)
	assert.Equal(t, []string{
		"-S", "-c", "0", "-m", "200", "-o", "/corpus/out",
		"-x", "afl++.dict", "-t", "1000", "-g", "1000", "/out/ruby_fuzz_regexp",
	}, spec.Args)
	assert.Contains(t, spec.Env, "PATH=/usr/bin")
	assert.Contains(t, spec.Env, "ASAN_OPTIONS="+runtimeASANOptions)
	assert.Contains(t, spec.Env, "UBSAN_OPTIONS="+runtimeUBSANOptions)

	seed, err := afero.ReadFile(fs, "/corpus/in/default_seed")
	require.NoError(t, err)
	assert.Equal(t, "hi", string(seed))
}

func TestNautilusCommand(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/corpus/in/seed-1", []byte("1+1"), 0644))

	req := types.FuzzRequest{InputCorpus: "/corpus/in", OutDir: "/out"}
	spec, err := Nautilus{}.Command(fs, req)
	require.NoError(t, err)
	assert.Equal(t, "/out/fuzzer", spec.Name)
	assert.Empty(t, spec.Args)
	assert.Equal(t, "/out", spec.Dir)

	isDir, err := afero.IsDir(fs, "/out/out")
	require.NoError(t, err)
	assert.True(t, isDir)
	exists, err := afero.Exists(fs, "/corpus/in/default_seed")
	require.NoError(t, err)
	assert.False(t, exists, "non-empty corpus must not be seeded")

	_, err = Nautilus{}.Command(fs, req)
	assert.NoError(t, err, "existing output directory")
}

func TestRuntimeSanitizerOptions(t *testing.T) {
	assert.Equal(t, "abort_on_error=1:detect_leaks=0:malloc_context_size=0:symbolize=0:"+
		"allocator_may_return_null=1:detect_odr_violation=0:handle_segv=0:handle_sigbus=0:"+
		"handle_abort=0:handle_sigfpe=0:handle_sigill=0", runtimeASANOptions)
	assert.Equal(t, "abort_on_error=1:allocator_release_to_os_interval_ms=500:handle_abort=0:"+
		"handle_segv=0:handle_sigbus=0:handle_sigfpe=0:handle_sigill=0:print_stacktrace=0:"+
		"symbolize=0:symbolize_inline_frames=0", runtimeUBSANOptions)
}

func TestOutputDir(t *testing.T) {
	req := types.FuzzRequest{OutputCorpus: "/corpus/out", OutDir: "/out"}
	assert.Equal(t, "/out/out", OutputDir(Nautilus{}, req))
	assert.Equal(t, "/corpus/out", OutputDir(ThesisRuby{}, req))
}
