// Package results unpacks the corpus snapshots a benchmarking experiment
// stores per trial, so coverage can be measured on them.
package results

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/mholt/archiver/v3"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/R9295/thesis-public/internal/logging"
)

var ErrNoTrials = errors.New("no trials found")

type Summary struct {
	Trials   int
	Archives int
	Bytes    int64
}

// FindTrials returns every directory named trial-* at any depth below
// folder, sorted.
func FindTrials(fs afero.Fs, folder string) ([]string, error) {
	var trials []string
	err := afero.Walk(fs, folder, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && strings.HasPrefix(info.Name(), "trial-") {
			trials = append(trials, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(trials)
	return trials, nil
}

// Extract unpacks every corpus/*.tar.gz of every trial below folder into the
// corpus directory it sits in. Up to jobs trials are extracted at once; jobs
// <= 0 means one per CPU.
func Extract(ctx context.Context, folder string, jobs int, l logging.Logger) (Summary, error) {
	fs := afero.NewOsFs()
	trials, err := FindTrials(fs, folder)
	if err != nil {
		return Summary{}, err
	}
	if len(trials) == 0 {
		return Summary{}, fmt.Errorf("%w in %s", ErrNoTrials, folder)
	}
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	var archives, size atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(trials)))
	for _, trial := range trials {
		g.Go(func() error {
			n, b, err := extractTrial(gctx, fs, trial, l)
			archives.Add(int64(n))
			size.Add(b)
			return err
		})
	}
	err = g.Wait()

	s := Summary{Trials: len(trials), Archives: int(archives.Load()), Bytes: size.Load()}
	l.Info(fmt.Sprintf("Extracted %d corpus archives (%s) from %d trials",
		s.Archives, humanize.Bytes(uint64(s.Bytes)), s.Trials))
	return s, err
}

func extractTrial(ctx context.Context, fs afero.Fs, trial string, l logging.Logger) (int, int64, error) {
	corpus := filepath.Join(trial, "corpus")
	snapshots, err := afero.Glob(fs, filepath.Join(corpus, "*.tar.gz"))
	if err != nil {
		return 0, 0, err
	}
	sort.Strings(snapshots)

	l.Info(fmt.Sprintf("Extracting %s", filepath.Base(trial)))
	var size int64
	for i, snapshot := range snapshots {
		if err := ctx.Err(); err != nil {
			return i, size, err
		}
		info, err := fs.Stat(snapshot)
		if err != nil {
			return i, size, err
		}
		l.Info(fmt.Sprintf("    extracting %s (%s)", filepath.Base(snapshot), humanize.Bytes(uint64(info.Size()))))

		tgz := archiver.NewTarGz()
		tgz.OverwriteExisting = true
		if err := tgz.Unarchive(snapshot, corpus); err != nil {
			return i, size, fmt.Errorf("extracting %s: %w", snapshot, err)
		}
		size += info.Size()
	}
	return len(snapshots), size, nil
}
