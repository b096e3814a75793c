package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("BENCHFUZZ_OPTIONS", "")
	t.Setenv("MAX_TOTAL_TIME", "")

	c, err := Load(filepath.Join(t.TempDir(), "none.toml"))
	require.NoError(t, err)
	assert.Empty(t, c.Build.Script)
	assert.Equal(t, 24*time.Hour, c.Fuzz.MaxTotalTime.Duration)
	assert.False(t, c.Build.Verify)
}

func TestLoadFileAndOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "benchfuzz.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[build]
staging_dir = "/scratch"
env_files = ["/benchmark.env"]
extra_staged = ["/src/aflplusplus"]

[fuzz]
stats_interval = "30s"
archive_interval = "15m"
storage_dir = "/storage"
`), 0644))

	t.Setenv("BENCHFUZZ_OPTIONS", "verify=1:suppressFuzzerOutput=1:storageDir=/out/storage")
	t.Setenv("MAX_TOTAL_TIME", "3600")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/scratch", c.Build.StagingDir)
	assert.Equal(t, []string{"/benchmark.env"}, c.Build.EnvFiles)
	assert.Equal(t, []string{"/src/aflplusplus"}, c.Build.ExtraStaged)
	assert.True(t, c.Build.Verify)
	assert.True(t, c.Fuzz.Quiet)
	assert.Equal(t, "/out/storage", c.Fuzz.StorageDir)
	assert.Equal(t, "local", c.Fuzz.Storage)
	assert.Equal(t, 30*time.Second, c.Fuzz.StatsInterval.Duration)
	assert.Equal(t, time.Hour, c.Fuzz.MaxTotalTime.Duration)
}

func TestLoadRejectsBadInput(t *testing.T) {
	t.Setenv("MAX_TOTAL_TIME", "")
	t.Setenv("BENCHFUZZ_OPTIONS", "strategy=robin")
	_, err := Load("")
	assert.ErrorContains(t, err, "strategy")

	t.Setenv("BENCHFUZZ_OPTIONS", "")
	t.Setenv("MAX_TOTAL_TIME", "soon")
	_, err = Load("")
	assert.Error(t, err)

	t.Setenv("MAX_TOTAL_TIME", "")
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[fuzz]\nstats_interval = \"often\"\n"), 0644))
	_, err = Load(path)
	assert.Error(t, err)
}
