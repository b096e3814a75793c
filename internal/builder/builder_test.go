package builder

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
	"github.com/R9295/thesis-public/internal/logging"
	"github.com/R9295/thesis-public/internal/stager"
)

// A build script in the OSS-Fuzz style that cannot run twice in the same tree.
const buildScript = `
if [ -e "$SRC/configured" ]; then
  echo "already configured" >&2
  exit 1
fi
touch "$SRC/configured"
mkdir -p "$WORK/obj"
echo "$CC $LIB_FUZZING_ENGINE" > "$WORK/obj/cmdline"
cp "$WORK/obj/cmdline" "$OUT/fuzz-target"
`

type fixture struct {
	src, work, out string
	cfg            *buildenv.Config
}

func newFixture(t *testing.T, script string) fixture {
	t.Helper()
	root := t.TempDir()
	f := fixture{
		src:  filepath.Join(root, "src"),
		work: filepath.Join(root, "work"),
		out:  filepath.Join(root, "out"),
	}
	for _, d := range []string{f.src, f.work, f.out} {
		require.NoError(t, os.Mkdir(d, 0755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(f.src, "build.sh"), []byte(script), 0755))

	f.cfg = buildenv.FromEnviron([]string{
		"PATH=" + os.Getenv("PATH"),
		"SRC=" + f.src,
		"WORK=" + f.work,
		"OUT=" + f.out,
		"BENCHMARK=libxml2_xml",
		"FUZZER=coverage",
		"CC=clang",
		"FUZZER_LIB=/usr/lib/libFuzzer.a",
	})
	return f
}

func TestBuildPassesExplicitEnvironment(t *testing.T) {
	f := newFixture(t, buildScript)
	b := New(filepath.Join(f.src, "build.sh"), logging.Discard())

	require.NoError(t, b.Build(context.Background(), f.cfg))

	data, err := os.ReadFile(filepath.Join(f.out, "fuzz-target"))
	require.NoError(t, err)
	assert.Equal(t, "clang /usr/lib/libFuzzer.a\n", string(data))

	_, ok := f.cfg.Lookup("LIB_FUZZING_ENGINE")
	assert.False(t, ok, "Build must not modify the caller's config")
}

func TestBuildFailure(t *testing.T) {
	f := newFixture(t, "echo 'clang: error: no input files' >&2\nexit 2\n")
	b := New(filepath.Join(f.src, "build.sh"), logging.Discard())

	err := b.Build(context.Background(), f.cfg)
	var be *BuildError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, 2, be.Exit)
	assert.Contains(t, be.Tail, "clang: error: no input files")
}

func TestStagedBuildCanRunTwice(t *testing.T) {
	f := newFixture(t, buildScript)
	s := stager.New(afero.NewOsFs(), stager.WithStagingDir(t.TempDir()), stager.WithVerify(true))
	b := New(filepath.Join(f.src, "build.sh"), logging.Discard())

	for i := 0; i < 2; i++ {
		require.NoError(t, StagedBuild(context.Background(), s, b, f.cfg), "build %d", i)
	}

	_, err := os.Stat(filepath.Join(f.src, "configured"))
	assert.True(t, os.IsNotExist(err), "source tree not restored")
	_, err = os.Stat(filepath.Join(f.work, "obj"))
	assert.True(t, os.IsNotExist(err), "work tree not restored")
	_, err = os.Stat(filepath.Join(f.out, "fuzz-target"))
	assert.NoError(t, err, "artifacts outside the staged trees are kept")
}

func TestStagedBuildFailureRestores(t *testing.T) {
	f := newFixture(t, "touch \"$SRC/half-built\"\nrm -f \"$SRC/build.sh.orig\"\nexit 1\n")
	require.NoError(t, os.WriteFile(filepath.Join(f.src, "build.sh.orig"), []byte("orig"), 0644))
	s := stager.New(afero.NewOsFs(), stager.WithStagingDir(t.TempDir()))
	b := New(filepath.Join(f.src, "build.sh"), logging.Discard())

	err := StagedBuild(context.Background(), s, b, f.cfg)
	var be *BuildError
	require.True(t, errors.As(err, &be))
	assert.False(t, stager.IsCorrupted(err))

	_, err = os.Stat(filepath.Join(f.src, "half-built"))
	assert.True(t, os.IsNotExist(err))
	data, err := os.ReadFile(filepath.Join(f.src, "build.sh.orig"))
	require.NoError(t, err)
	assert.Equal(t, "orig", string(data))
}

func TestStagedBuildRequiresDirectories(t *testing.T) {
	s := stager.New(afero.NewMemMapFs())
	b := New("", logging.Discard())
	err := StagedBuild(context.Background(), s, b, buildenv.FromEnviron([]string{"SRC=/src"}))
	assert.ErrorContains(t, err, "WORK")
}

func TestBuildDefaultsToScriptInSource(t *testing.T) {
	f := newFixture(t, buildScript)
	b := New("", logging.Discard())

	require.NoError(t, b.Build(context.Background(), f.cfg))
	_, err := os.Stat(filepath.Join(f.src, "configured"))
	assert.NoError(t, err, "build.sh in $SRC was not run")

	assert.Equal(t, "/other/build.sh", ScriptFor(buildenv.FromEnviron([]string{"SRC=/other"}), ""))
	assert.Equal(t, "/custom.sh", ScriptFor(f.cfg, "/custom.sh"))
}
