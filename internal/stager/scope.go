package stager

import (
	"github.com/hashicorp/go-multierror"
)

// Scope holds the snapshots taken for one build step. Snapshots are restored
// innermost-acquired-first, so a directory nested inside an earlier one is put
// back before its parent.
type Scope struct {
	stager    *Stager
	snapshots []*Snapshot
	released  bool
}

func (s *Stager) Begin() *Scope {
	return &Scope{stager: s}
}

// Acquire snapshots path and pushes it onto the scope.
func (sc *Scope) Acquire(path string) error {
	if sc.released {
		return ErrScopeReleased
	}
	snap, err := sc.stager.Snapshot(path)
	if err != nil {
		return err
	}
	sc.snapshots = append(sc.snapshots, snap)
	return nil
}

// Paths returns the staged paths in acquisition order.
func (sc *Scope) Paths() []string {
	paths := make([]string, len(sc.snapshots))
	for i, snap := range sc.snapshots {
		paths[i] = snap.Path
	}
	return paths
}

// Release restores every snapshot in reverse acquisition order. A failed
// restore does not stop the remaining ones; all failures are returned.
func (sc *Scope) Release() error {
	if sc.released {
		return ErrScopeReleased
	}
	sc.released = true

	var result *multierror.Error
	for i := len(sc.snapshots) - 1; i >= 0; i-- {
		if err := sc.stager.Restore(sc.snapshots[i]); err != nil {
			result = multierror.Append(result, err)
		}
	}
	sc.snapshots = nil
	return result.ErrorOrNil()
}
