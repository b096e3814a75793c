// Package builder invokes the benchmark's build script, the opaque external
// build procedure every fuzzer integration ends with.
package builder

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/R9295/thesis-public/internal/buildenv"
	"github.com/R9295/thesis-public/internal/constants"
	"github.com/R9295/thesis-public/internal/logging"
	"github.com/R9295/thesis-public/internal/process"
	"github.com/R9295/thesis-public/internal/stager"
)

// BuildError reports that the build script ran and failed.
type BuildError struct {
	Script string
	Exit   int
	Tail   []string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build script %s failed with exit code %d", e.Script, e.Exit)
}

type Builder struct {
	Shell  string
	Script string
	Quiet  bool
	logger logging.Logger
}

// New returns a Builder for script. An empty script means build.sh in the
// $SRC of the configuration each build runs with.
func New(script string, l logging.Logger) *Builder {
	return &Builder{
		Shell:  constants.BuildShell,
		Script: script,
		logger: l,
	}
}

// Build runs the build script with exactly the variables in cfg, plus
// LIB_FUZZING_ENGINE which OSS-Fuzz style scripts expect to point at the
// fuzzer library. cfg itself is not modified.
func (b *Builder) Build(ctx context.Context, cfg *buildenv.Config) error {
	env := cfg.Clone()
	env.Set(constants.FuzzEngineEnv, env.Get(constants.FuzzerLibEnv))

	script := ScriptFor(env, b.Script)
	b.logger.Info(fmt.Sprintf("Building benchmark %s with fuzzer %s",
		env.Get(constants.BenchmarkEnv), env.Get(constants.FuzzerEnv)))

	err := process.Run(ctx, process.Spec{
		Name:  b.Shell,
		Args:  []string{"-ex", script},
		Env:   env.Environ(),
		Dir:   env.Get(constants.SourceDirEnv),
		Quiet: b.Quiet,
	}, b.logger)

	var exitErr *process.ExitError
	if errors.As(err, &exitErr) {
		for _, line := range exitErr.Tail {
			b.logger.Error(line)
		}
		return &BuildError{Script: script, Exit: exitErr.Exit, Tail: exitErr.Tail}
	}
	return err
}

// ScriptFor returns script, or build.sh in the $SRC of cfg when script is
// empty.
func ScriptFor(cfg *buildenv.Config, script string) string {
	if script != "" {
		return script
	}
	return filepath.Join(cfg.Get(constants.SourceDirEnv), constants.BuildScriptName)
}

// Step is a build procedure run against an explicit configuration.
type Step interface {
	Build(ctx context.Context, cfg *buildenv.Config) error
}

// StagedBuild runs step with $SRC, $WORK and then any extra directories
// snapshotted, and restores them afterwards whatever the outcome.
func StagedBuild(ctx context.Context, s *stager.Stager, step Step, cfg *buildenv.Config, extra ...string) error {
	dirs, err := cfg.Require(constants.SourceDirEnv, constants.WorkDirEnv)
	if err != nil {
		return err
	}
	return s.Run(append(dirs, extra...), func() error {
		return step.Build(ctx, cfg)
	})
}
