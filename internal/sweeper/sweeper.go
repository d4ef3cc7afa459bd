// Package sweeper reclaims expired jobs and their artifacts. It is the
// only defense against unbounded growth of the registry and the
// filesystem.
package sweeper

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shtefko55/toolsy/internal/config"
	"github.com/shtefko55/toolsy/internal/models"
	"github.com/shtefko55/toolsy/internal/observability"
	"github.com/shtefko55/toolsy/internal/progress"
	"github.com/shtefko55/toolsy/internal/registry"
	"github.com/shtefko55/toolsy/internal/storage"
)

// Sweeper periodically evicts jobs older than their kind-specific
// maximum age, regardless of status, and removes orphaned files from
// the artifact namespaces.
type Sweeper struct {
	store  registry.Store
	dirs   *storage.Dirs
	broker *progress.Broker

	interval        time.Duration
	transformMaxAge time.Duration
	captureMaxAge   time.Duration

	cron   *cron.Cron
	logger *slog.Logger
}

// New creates a sweeper from the retention configuration.
func New(cfg config.RetentionConfig, store registry.Store, dirs *storage.Dirs, broker *progress.Broker, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		store:           store,
		dirs:            dirs,
		broker:          broker,
		interval:        cfg.SweepInterval,
		transformMaxAge: cfg.TransformMaxAge,
		captureMaxAge:   cfg.CaptureMaxAge,
		logger:          observability.WithComponent(logger, "sweeper"),
	}
}

// Start schedules the sweep on its fixed period.
func (s *Sweeper) Start() error {
	s.cron = cron.New()
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, s.Sweep); err != nil {
		return fmt.Errorf("scheduling sweep: %w", err)
	}
	s.cron.Start()
	s.logger.Info("sweeper started",
		"interval", s.interval,
		"transform_max_age", s.transformMaxAge,
		"capture_max_age", s.captureMaxAge,
	)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Info("sweeper stopped")
}

// Sweep runs one pass: expired jobs first, then orphaned files.
func (s *Sweeper) Sweep() {
	now := time.Now()
	evicted := s.sweepJobs(now)
	orphans := s.sweepOrphans(now)

	if evicted > 0 || orphans > 0 {
		s.logger.Info("sweep finished", "evicted_jobs", evicted, "orphaned_files", orphans)
	}
}

// maxAge returns the retention ceiling for a job kind. Captures keep
// their larger artifacts around longer to survive slow transfers.
func (s *Sweeper) maxAge(kind models.JobKind) time.Duration {
	if kind == models.JobKindCapture {
		return s.captureMaxAge
	}
	return s.transformMaxAge
}

// sweepJobs evicts every job whose age exceeds its kind's ceiling.
// Status is irrelevant: a processing job whose adapter never reached a
// terminal state is exactly what this exists to forget. The in-flight
// adapter is not cancelled, only the record and visible files go.
func (s *Sweeper) sweepJobs(now time.Time) int {
	evicted := 0
	for _, job := range s.store.List() {
		age := now.Sub(job.CreatedAt)
		if age <= s.maxAge(job.Kind) {
			continue
		}

		id := job.ID.String()
		s.logger.Info("evicting expired job",
			"job_id", id,
			"kind", job.Kind,
			"status", job.Status,
			"age", age.Truncate(time.Second),
		)

		if job.SourcePath != "" {
			if err := s.dirs.Uploads.Remove(job.SourcePath); err != nil {
				s.logger.Warn("failed to remove expired upload", "job_id", id, "error", err)
			}
		}
		if job.OutputPath != "" {
			if err := s.dirs.Outputs.Remove(job.OutputPath); err != nil {
				s.logger.Warn("failed to remove expired artifact", "job_id", id, "error", err)
			}
		}

		job.MarkEvicted()
		s.broker.PublishJob(job)
		s.store.Delete(id)
		evicted++
	}
	return evicted
}

// sweepOrphans removes files in the artifact namespaces that no live
// job references and that are older than the largest retention ceiling.
// Temp files age out on the same ceiling.
func (s *Sweeper) sweepOrphans(now time.Time) int {
	referenced := make(map[string]bool)
	for _, job := range s.store.List() {
		if job.SourcePath != "" {
			referenced["uploads/"+job.SourcePath] = true
		}
		if job.OutputPath != "" {
			referenced["outputs/"+job.OutputPath] = true
		}
	}

	ceiling := s.transformMaxAge
	if s.captureMaxAge > ceiling {
		ceiling = s.captureMaxAge
	}

	removed := 0
	removed += s.sweepNamespace(s.dirs.Uploads, "uploads", referenced, now, ceiling)
	removed += s.sweepNamespace(s.dirs.Outputs, "outputs", referenced, now, ceiling)
	removed += s.sweepNamespace(s.dirs.Temp, "", nil, now, ceiling)
	return removed
}

func (s *Sweeper) sweepNamespace(sandbox *storage.Sandbox, prefix string, referenced map[string]bool, now time.Time, ceiling time.Duration) int {
	entries, err := sandbox.List("")
	if err != nil {
		s.logger.Warn("failed to list namespace", "dir", sandbox.BaseDir(), "error", err)
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if referenced != nil && referenced[prefix+"/"+entry.Name()] {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) <= ceiling {
			continue
		}

		if err := sandbox.Remove(entry.Name()); err != nil {
			s.logger.Warn("failed to remove orphaned file",
				"path", filepath.Join(sandbox.BaseDir(), entry.Name()),
				"error", err,
			)
			continue
		}
		s.logger.Debug("removed orphaned file", "dir", sandbox.BaseDir(), "name", entry.Name())
		removed++
	}
	return removed
}
