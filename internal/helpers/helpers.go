package helpers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/R9295/thesis-public/internal/constants"
)

// ParseOptions splits a colon separated list of key=value pairs, the format
// used by BENCHFUZZ_OPTIONS and the sanitizer option variables.
func ParseOptions(raw string) (map[string]string, error) {
	ret := map[string]string{}
	if raw == "" {
		return ret, nil
	}
	for _, v := range strings.Split(raw, ":") {
		if v == "" {
			continue
		}
		key, val, ok := strings.Cut(v, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("malformed option %q", v)
		}
		ret[key] = val
	}
	return ret, nil
}

func Getenv(key, def string) string {
	temp := os.Getenv(key)
	if len(temp) == 0 {
		return def
	}
	return temp
}

func BasicLogger() *logrus.Logger {
	logger := &logrus.Logger{
		Out:       os.Stderr,
		Formatter: new(logrus.JSONFormatter),
		Hooks:     make(logrus.LevelHooks),
		Level:     logrus.DebugLevel,
	}

	return logger
}

func Exists(fs afero.Fs, filename string) (bool, error) {
	exists, err := afero.Exists(fs, filename)
	if err != nil {
		return false, fmt.Errorf("file existence check for %s: %w", filename, err)
	}
	return exists, nil
}

// CreateSeedFileForEmptyCorpus writes a single non-empty seed into dir when
// dir has no entries. Fuzzers that refuse to start on an empty corpus need it.
func CreateSeedFileForEmptyCorpus(fs afero.Fs, dir string) (bool, error) {
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return false, err
	}
	empty, err := afero.IsEmpty(fs, dir)
	if err != nil {
		return false, err
	}
	if !empty {
		return false, nil
	}
	seed := filepath.Join(dir, constants.DefaultSeedName)
	return true, afero.WriteFile(fs, seed, []byte("hi"), 0644)
}
