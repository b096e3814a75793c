package supervisor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"

	"github.com/R9295/thesis-public/internal/helpers"
	"github.com/R9295/thesis-public/internal/logging"
	"github.com/R9295/thesis-public/internal/storage"
)

// crashDirs are the directories AFL style fuzzers put findings in.
var crashDirs = map[string]bool{
	"crashes": true,
	"hangs":   true,
}

// CrashService watches the fuzzer output tree and saves every new crash or
// hang to storage. Directories are watched recursively as they appear.
type CrashService struct {
	logger  logging.Logger
	dir     string
	storage storage.Handler
	poll    time.Duration
	seen    map[string]bool
}

func NewCrashService(dir string, h storage.Handler, l logging.Logger) *CrashService {
	return &CrashService{
		logger:  l,
		dir:     dir,
		storage: h,
		poll:    time.Second,
		seen:    map[string]bool{},
	}
}

func (s *CrashService) String() string {
	return "CrashService"
}

func (s *CrashService) Serve(ctx context.Context) error {
	s.logger.Info("CrashService starting")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Wait for the fuzzer to create its output directory
	s.logger.Info("CrashService waiting for output directory")
	if err := waitFor(ctx, s.dir, s.poll); err != nil {
		return err
	}
	if err := s.watchTree(watcher, s.dir); err != nil {
		return err
	}

	s.logger.Info("CrashService watching output directory")
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("CrashService: watcher closed")
			}
			if !ev.Has(fsnotify.Create) {
				continue
			}
			info, err := os.Stat(ev.Name)
			if err != nil {
				continue
			}
			if info.IsDir() {
				if err := s.watchTree(watcher, ev.Name); err != nil {
					s.logger.Error(fmt.Sprintf("CrashService: %s", err.Error()))
				}
				continue
			}
			s.found(ev.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("CrashService: watcher closed")
			}
			s.logger.Error(fmt.Sprintf("CrashService: %s", err.Error()))
		case <-ctx.Done():
			s.logger.Info("CrashService stopping")
			return ctx.Err()
		}
	}
}

// watchTree adds root and every directory below it to the watcher and saves
// crashes that were written before the watch was in place.
func (s *CrashService) watchTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return watcher.Add(path)
		}
		s.found(path)
		return nil
	})
}

func (s *CrashService) found(path string) {
	if !crashDirs[filepath.Base(filepath.Dir(path))] || strings.Contains(path, "README.txt") || s.seen[path] {
		return
	}
	s.seen[path] = true
	s.logger.Info(fmt.Sprintf("Bug found: %s", filepath.Base(path)))
	if _, err := s.storage.SavePayload(path); err != nil {
		s.logger.Error(fmt.Sprintf("CrashService could not save bug payload: %s", err.Error()))
	}
}

func waitFor(ctx context.Context, path string, poll time.Duration) error {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		exists, err := helpers.Exists(afero.NewOsFs(), path)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
