package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/R9295/thesis-public/internal/logging"
	"github.com/R9295/thesis-public/internal/storage"
)

// CorpusArchiveService snapshots the fuzzer output directory into storage at
// a fixed interval and once more when the trial ends.
type CorpusArchiveService struct {
	logger   logging.Logger
	dir      string
	storage  storage.Handler
	interval time.Duration
	seq      int
}

func NewCorpusArchiveService(dir string, h storage.Handler, interval time.Duration, l logging.Logger) *CorpusArchiveService {
	return &CorpusArchiveService{
		logger:   l,
		dir:      dir,
		storage:  h,
		interval: interval,
	}
}

func (s *CorpusArchiveService) String() string {
	return "CorpusArchiveService"
}

func (s *CorpusArchiveService) Serve(ctx context.Context) error {
	s.logger.Info("CorpusArchiveService starting")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.archive()
			s.logger.Info("CorpusArchiveService stopping")
			return ctx.Err()
		case <-ticker.C:
			s.archive()
		}
	}
}

// archive keeps the sequence number of a failed attempt so archive names
// stay contiguous.
func (s *CorpusArchiveService) archive() {
	dest, err := s.storage.ArchiveCorpus(s.dir, s.seq+1)
	if err != nil {
		s.logger.Error(fmt.Sprintf("CorpusArchiveService could not archive corpus: %s", err.Error()))
		return
	}
	s.seq++
	s.logger.Info(fmt.Sprintf("CorpusArchiveService wrote %s", dest))
}
