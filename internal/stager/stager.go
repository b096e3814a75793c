// Package stager snapshots directory trees before a build step runs and puts
// them back afterwards, so a build that is not idempotent can be run again
// against the same source and work directories.
//
// A snapshot is a full recursive copy. It is owned by the scope that took it
// and is consumed exactly once by Restore.
package stager

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"

	"github.com/R9295/thesis-public/internal/constants"
	"github.com/R9295/thesis-public/internal/logging"
)

// Stager takes and restores snapshots on one filesystem. A path can be held
// by at most one snapshot at a time.
type Stager struct {
	fs         afero.Fs
	stagingDir string
	verify     bool
	logger     logging.Logger

	mu   sync.Mutex
	held map[string]bool
}

// Option configures a Stager.
type Option func(*Stager)

// WithStagingDir sets the directory under which staging copies are created.
// The OS temp directory is used when dir is empty.
func WithStagingDir(dir string) Option {
	return func(s *Stager) { s.stagingDir = dir }
}

// WithVerify makes Restore compare a digest of the restored tree against the
// digest taken at snapshot time.
func WithVerify(verify bool) Option {
	return func(s *Stager) { s.verify = verify }
}

// WithLogger sets where staging and restore events are reported.
func WithLogger(l logging.Logger) Option {
	return func(s *Stager) { s.logger = l }
}

// New returns a Stager working on fs.
func New(fs afero.Fs, opts ...Option) *Stager {
	s := &Stager{
		fs:     fs,
		logger: logging.Discard(),
		held:   map[string]bool{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot is the staged copy of one directory.
type Snapshot struct {
	Path  string
	Files int
	Bytes int64

	root     string
	staged   string
	digest   string
	consumed bool
}

// Snapshot copies the tree at path into a private staging directory. A
// symlinked path is resolved first and the directory it points to is staged.
func (s *Stager) Snapshot(path string) (*Snapshot, error) {
	path, err := s.resolve(path)
	if err != nil {
		return nil, &StagingError{Path: path, Err: err}
	}
	if err := s.hold(path); err != nil {
		return nil, &StagingError{Path: path, Err: err}
	}

	snap, err := s.stage(path)
	if err != nil {
		s.release(path)
		return nil, &StagingError{Path: path, Err: err}
	}
	s.logger.Info(fmt.Sprintf("Staged %s (%s in %d files)", path, humanize.Bytes(uint64(snap.Bytes)), snap.Files))
	return snap, nil
}

func (s *Stager) resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path, err
	}
	if s.fs.Name() != "OsFs" {
		return abs, nil
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return abs, err
	}
	if resolved != abs {
		s.logger.Info(fmt.Sprintf("Staging %s through symlink %s", resolved, abs))
	}
	return resolved, nil
}

func (s *Stager) stage(path string) (*Snapshot, error) {
	// Walk does not follow a symlinked root, so neither may this check.
	var info os.FileInfo
	var err error
	if l, ok := s.fs.(afero.Lstater); ok {
		info, _, err = l.LstatIfPossible(path)
	} else {
		info, err = s.fs.Stat(path)
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, ErrNotDirectory
	}

	root, err := afero.TempDir(s.fs, s.stagingDir, constants.StagingPrefix)
	if err != nil {
		return nil, err
	}
	if within(root, path) {
		_ = removeAll(s.fs, root)
		return nil, fmt.Errorf("staging directory %s is inside the staged tree", root)
	}
	snap := &Snapshot{
		Path:   path,
		root:   root,
		staged: filepath.Join(root, filepath.Base(path)),
	}

	stats, err := copyTree(s.fs, path, snap.staged)
	if err == nil && s.verify {
		snap.digest, err = treeDigest(s.fs, path)
	}
	if err != nil {
		_ = removeAll(s.fs, root)
		return nil, err
	}
	snap.Files = stats.files
	snap.Bytes = stats.bytes
	return snap, nil
}

// Restore deletes whatever is at snap.Path and puts the staged copy in its
// place. The staging copy is discarded whether or not the restore succeeds.
func (s *Stager) Restore(snap *Snapshot) error {
	if snap.consumed {
		return ErrConsumed
	}
	snap.consumed = true
	defer s.release(snap.Path)

	restoreErr := s.restore(snap)
	if err := removeAll(s.fs, snap.root); err != nil {
		s.logger.Error(fmt.Sprintf("Could not discard staging copy %s: %s", snap.root, err.Error()))
	}
	if restoreErr != nil {
		err := &RestoreError{Path: snap.Path, Err: restoreErr}
		s.logger.Error(err.Error())
		return err
	}
	s.logger.Info(fmt.Sprintf("Restored %s", snap.Path))
	return nil
}

func (s *Stager) restore(snap *Snapshot) error {
	if err := removeAll(s.fs, snap.Path); err != nil {
		return fmt.Errorf("removing live tree: %w", err)
	}
	if err := s.fs.MkdirAll(filepath.Dir(snap.Path), 0755); err != nil {
		return err
	}
	if err := s.moveBack(snap.staged, snap.Path); err != nil {
		return err
	}
	if !s.verify {
		return nil
	}
	digest, err := treeDigest(s.fs, snap.Path)
	if err != nil {
		return err
	}
	if digest != snap.digest {
		return ErrDigestMismatch
	}
	return nil
}

// moveBack renames the staged tree into place on the OS filesystem and falls
// back to copying it, which also covers staging roots on another device.
func (s *Stager) moveBack(staged, path string) error {
	if s.fs.Name() == "OsFs" {
		if err := s.fs.Rename(staged, path); err == nil {
			return nil
		}
		_ = removeAll(s.fs, path)
	}
	if _, err := copyTree(s.fs, staged, path); err != nil {
		return fmt.Errorf("copying staged tree back: %w", err)
	}
	return nil
}

func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (s *Stager) hold(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held[path] {
		return ErrAlreadyStaged
	}
	s.held[path] = true
	return nil
}

func (s *Stager) release(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.held, path)
}

// Run snapshots every path in order, runs step, and restores the paths in
// reverse order on every exit path, including a panic in step. If a snapshot
// fails, the paths already staged are restored and step is not run.
//
// A failure of step is returned as is when restoration succeeds. When
// restoration fails too, both are returned in a multierror and IsCorrupted
// reports true.
func (s *Stager) Run(paths []string, step func() error) (err error) {
	scope := s.Begin()
	defer func() {
		r := recover()
		if rerr := scope.Release(); rerr != nil {
			if r != nil {
				s.logger.Error(fmt.Sprintf("Restoration failed while recovering from panic: %s", rerr.Error()))
			}
			if err == nil {
				err = rerr
			} else {
				err = multierror.Append(err, rerr)
			}
		}
		if r != nil {
			panic(r)
		}
	}()

	for _, p := range paths {
		if err := scope.Acquire(p); err != nil {
			return err
		}
	}
	return step()
}
