// Package supervisor runs a fuzzing trial as a tree of suture services: the
// fuzzer itself plus the services that collect what it produces.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/R9295/thesis-public/internal/logging"
	"github.com/R9295/thesis-public/internal/process"
	"github.com/R9295/thesis-public/internal/storage"
)

func New(l logging.Logger, name string) *suture.Supervisor {
	spec := suture.Spec{
		EventHook: func(e suture.Event) {
			l.Info(e.String())
		},
		FailureDecay:     30,               // 30 second decay
		FailureThreshold: 1,                // 1 failure
		FailureBackoff:   30 * time.Second, // Wait for 30 seconds after threshold hit
		Timeout:          30 * time.Second, // 30 seconds for service to terminate
	}

	supervisor := suture.New(name, spec)
	return supervisor
}

type TargetStats struct {
	ID             string  `json:"id"`
	TestsPerSecond float64 `json:"tests_per_second"`
	BugsFound      int     `json:"bugs_found"`
}

type Options struct {
	// Name identifies the trial in logs and stats.
	Name string
	// OutputDir is where the fuzzer writes its corpus, crashes and stats.
	OutputDir string
	// Storage receives crash payloads and corpus archives. Nil disables both.
	Storage         storage.Handler
	MaxTotalTime    time.Duration
	StatsInterval   time.Duration
	ArchiveInterval time.Duration
	// Stats, if set, receives every parsed stats sample.
	Stats chan<- *TargetStats
}

// Run serves the fuzzer described by spec together with its collection
// services until MaxTotalTime elapses, ctx is cancelled, or the fuzzer exits
// cleanly. Reaching the time limit is not an error.
func Run(ctx context.Context, l logging.Logger, spec process.Spec, opts Options) error {
	if opts.MaxTotalTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.MaxTotalTime)
		defer cancel()
	}

	sup := New(l, opts.Name)
	sup.Add(NewFuzzerService(spec, l))
	if opts.Storage != nil && opts.OutputDir != "" {
		sup.Add(NewCrashService(opts.OutputDir, opts.Storage, l))
		if opts.ArchiveInterval > 0 {
			sup.Add(NewCorpusArchiveService(opts.OutputDir, opts.Storage, opts.ArchiveInterval, l))
		}
	}
	if opts.StatsInterval > 0 && opts.OutputDir != "" {
		sup.Add(NewStatsService(opts.Name, opts.OutputDir, opts.StatsInterval, l, opts.Stats))
	}

	l.Info(fmt.Sprintf("Fuzzing %s for up to %s", opts.Name, opts.MaxTotalTime))
	err := sup.Serve(ctx)
	switch {
	case err == nil,
		errors.Is(err, suture.ErrTerminateSupervisorTree),
		errors.Is(err, context.DeadlineExceeded):
		return nil
	default:
		return err
	}
}
