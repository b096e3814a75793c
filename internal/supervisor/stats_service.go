package supervisor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/R9295/thesis-public/internal/constants"
	"github.com/R9295/thesis-public/internal/logging"
)

// StatsService periodically reads the fuzzer_stats files below the output
// directory and reports the combined throughput and findings.
type StatsService struct {
	logger   logging.Logger
	target   string
	dir      string
	interval time.Duration
	stats    chan<- *TargetStats
}

func NewStatsService(target, dir string, interval time.Duration, l logging.Logger, stats chan<- *TargetStats) *StatsService {
	return &StatsService{
		logger:   l,
		target:   target,
		dir:      dir,
		interval: interval,
		stats:    stats,
	}
}

func (s *StatsService) String() string {
	return "StatsService"
}

func (s *StatsService) Serve(ctx context.Context) error {
	s.logger.Info("StatsService watching statistics")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("StatsService stopping")
			return ctx.Err()
		case <-ticker.C:
			newStats, err := s.collect()
			if err != nil {
				s.logger.Error(fmt.Sprintf("StatsService %s", err.Error()))
				continue
			}
			if newStats == nil {
				continue
			}
			s.logger.Info(fmt.Sprintf("StatsService %.2f execs/s, %d bugs found",
				newStats.TestsPerSecond, newStats.BugsFound))
			if s.stats != nil {
				select {
				case s.stats <- newStats:
				default:
				}
			}
		}
	}
}

// collect sums the stats of every fuzzer instance under the output
// directory. It returns nil when no instance has written stats yet.
func (s *StatsService) collect() (*TargetStats, error) {
	var files []string
	err := filepath.Walk(s.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if !info.IsDir() && info.Name() == constants.FuzzerStatsFile {
			files = append(files, path)
		}
		return nil
	})
	if err != nil || len(files) == 0 {
		return nil, err
	}

	total := &TargetStats{ID: s.target}
	for _, name := range files {
		f, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		st, err := parseStats(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		total.TestsPerSecond += st.TestsPerSecond
		total.BugsFound += st.BugsFound
	}
	return total, nil
}

// parseStats reads an AFL style stats file of "key : value" lines. Newer
// AFL++ names the finding counters saved_crashes and saved_hangs.
func parseStats(r io.Reader) (*TargetStats, error) {
	statsMap := map[string]string{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		k, v, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		statsMap[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	newStats := TargetStats{}
	execsPerSecond, err := strconv.ParseFloat(statsMap["execs_per_sec"], 64)
	if err != nil {
		return nil, fmt.Errorf("could not parse execs_per_sec: %w", err)
	}
	newStats.TestsPerSecond = execsPerSecond

	for _, keys := range [][]string{{"unique_crashes", "saved_crashes"}, {"unique_hangs", "saved_hangs"}} {
		n, err := firstInt(statsMap, keys...)
		if err != nil {
			return nil, err
		}
		newStats.BugsFound += n
	}
	return &newStats, nil
}

func firstInt(m map[string]string, keys ...string) (int, error) {
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("could not parse %s: %w", k, err)
		}
		return n, nil
	}
	return 0, fmt.Errorf("none of %s present", strings.Join(keys, ", "))
}
