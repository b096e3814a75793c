package helpers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetenv(t *testing.T) {
	t.Setenv("TEST_ENV", "set")
	result := Getenv("TEST_ENV", "unset")
	assert.Equal(t, "set", result)

	os.Unsetenv("TEST_ENV")
	result = Getenv("TEST_ENV", "unset")
	assert.Equal(t, "unset", result)
}

func TestParseOptions(t *testing.T) {
	opts, err := ParseOptions("abort_on_error=1:detect_leaks=0::symbolize=")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"abort_on_error": "1",
		"detect_leaks":   "0",
		"symbolize":      "",
	}, opts)

	opts, err = ParseOptions("")
	require.NoError(t, err)
	assert.Empty(t, opts)

	_, err = ParseOptions("verify")
	assert.Error(t, err)
}

func TestCreateSeedFileForEmptyCorpus(t *testing.T) {
	fs := afero.NewMemMapFs()
	created, err := CreateSeedFileForEmptyCorpus(fs, "/corpus")
	require.NoError(t, err)
	assert.True(t, created)

	data, err := afero.ReadFile(fs, filepath.Join("/corpus", "default_seed"))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))

	// A second call leaves the now non-empty corpus alone.
	created, err = CreateSeedFileForEmptyCorpus(fs, "/corpus")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestExists(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/a", []byte("x"), 0644))

	ok, err := Exists(fs, "/a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Exists(fs, "/b")
	require.NoError(t, err)
	assert.False(t, ok)
}
