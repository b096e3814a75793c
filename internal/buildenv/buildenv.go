// Package buildenv holds the environment handed to a build or fuzzing
// process. Integrations change a Config instead of the process environment,
// so nothing leaks from one invocation into the next.
package buildenv

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"github.com/subosito/gotenv"
)

type Config struct {
	vars map[string]string
}

func New() *Config {
	return &Config{vars: map[string]string{}}
}

// FromEnviron builds a Config from KEY=VALUE pairs, as returned by os.Environ.
func FromEnviron(environ []string) *Config {
	c := New()
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		c.vars[k] = v
	}
	return c
}

// FromProcess snapshots the current process environment.
func FromProcess() *Config {
	return FromEnviron(os.Environ())
}

func (c *Config) Set(key, value string) {
	c.vars[key] = value
}

func (c *Config) Get(key string) string {
	return c.vars[key]
}

func (c *Config) Lookup(key string) (string, bool) {
	v, ok := c.vars[key]
	return v, ok
}

func (c *Config) Unset(key string) {
	delete(c.vars, key)
}

// AppendFlags appends flags to the space separated list stored under key.
func (c *Config) AppendFlags(key string, flags ...string) {
	var existing []string
	if v := c.vars[key]; v != "" {
		existing = strings.Split(v, " ")
	}
	c.vars[key] = strings.Join(append(existing, flags...), " ")
}

func (c *Config) Merge(vars map[string]string) {
	for k, v := range vars {
		c.vars[k] = v
	}
}

func (c *Config) Clone() *Config {
	n := New()
	n.Merge(c.vars)
	return n
}

func (c *Config) Keys() []string {
	keys := make([]string, 0, len(c.vars))
	for k := range c.vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Environ returns the variables as sorted KEY=VALUE pairs.
func (c *Config) Environ() []string {
	keys := c.Keys()
	env := make([]string, len(keys))
	for i, k := range keys {
		env[i] = k + "=" + c.vars[k]
	}
	return env
}

// LoadFile merges the variables of a dotenv style file into the Config.
func (c *Config) LoadFile(fs afero.Fs, path string) error {
	f, err := fs.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	vars, err := gotenv.StrictParse(f)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	c.Merge(vars)
	return nil
}

// Require returns the values of keys, or an error naming the first one
// that is unset or empty.
func (c *Config) Require(keys ...string) ([]string, error) {
	vals := make([]string, len(keys))
	for i, k := range keys {
		v := c.vars[k]
		if v == "" {
			return nil, fmt.Errorf("no environment variable found for %s", k)
		}
		vals[i] = v
	}
	return vals, nil
}
