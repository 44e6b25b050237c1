package cleanup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ecommerce-etl/internal/util"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Result summarizes one sweep
type Result struct {
	Scanned int `json:"scanned"`
	Deleted int `json:"deleted"`
}

// Sweeper removes expired files from the top level of its directories.
// Summaries, reports and lock files are never removed.
type Sweeper struct {
	dirs      []string
	retention time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewSweeper creates a sweeper keeping files for retentionDays
func NewSweeper(dirs []string, retentionDays int, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = util.GetLogger()
	}
	return &Sweeper{
		dirs:      dirs,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		logger:    logger,
		now:       time.Now,
	}
}

// Protected reports whether name is exempt from retention
func Protected(name string) bool {
	return strings.Contains(name, "summary") ||
		strings.Contains(name, "report") ||
		strings.HasSuffix(name, ".lock")
}

// Run deletes every expired file. Errors on individual files do not stop the
// sweep; they are returned together.
func (s *Sweeper) Run(ctx context.Context) (*Result, error) {
	res := &Result{}
	now := s.now()
	var errs error

	for _, dir := range s.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("read %s: %w", dir, err))
			continue
		}

		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return res, multierr.Append(errs, err)
			}
			if !entry.Type().IsRegular() {
				continue
			}
			res.Scanned++
			if Protected(entry.Name()) {
				continue
			}

			info, err := entry.Info()
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			if now.Sub(info.ModTime()) <= s.retention {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			if err := os.Remove(path); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("remove %s: %w", path, err))
				continue
			}
			res.Deleted++
			util.FilesCleanedTotal.Inc()
			s.logger.Debug("Removed expired file", zap.String("path", path))
		}
	}

	s.logger.Info("Cleanup completed",
		zap.Int("scanned", res.Scanned),
		zap.Int("deleted", res.Deleted))
	return res, errs
}
