// Package service orchestrates job submission, execution and delivery
// on top of the registry, storage and pipeline adapters.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/shtefko55/toolsy/internal/capture"
	"github.com/shtefko55/toolsy/internal/config"
	"github.com/shtefko55/toolsy/internal/ffmpeg"
	"github.com/shtefko55/toolsy/internal/models"
	"github.com/shtefko55/toolsy/internal/observability"
	"github.com/shtefko55/toolsy/internal/pipeline"
	"github.com/shtefko55/toolsy/internal/progress"
	"github.com/shtefko55/toolsy/internal/registry"
	"github.com/shtefko55/toolsy/internal/selector"
	"github.com/shtefko55/toolsy/internal/storage"
)

// JobService accepts transform and capture submissions, runs each job
// on its own adapter goroutine, and serves status and delivery.
type JobService struct {
	store     registry.Store
	broker    *progress.Broker
	dirs      *storage.Dirs
	resolver  *capture.Resolver
	prober    *ffmpeg.Prober
	transform pipeline.Adapter
	capturer  pipeline.Adapter

	jobTimeout    time.Duration
	deliveryGrace time.Duration
	maxCaptureLen time.Duration
	sem           chan struct{}
	wg            sync.WaitGroup
	logger        *slog.Logger
}

// NewJobService wires the service from its collaborators. Submissions
// beyond the configured concurrency stay queued until a slot frees up.
func NewJobService(
	cfg *config.Config,
	store registry.Store,
	broker *progress.Broker,
	dirs *storage.Dirs,
	resolver *capture.Resolver,
	prober *ffmpeg.Prober,
	transform pipeline.Adapter,
	capturer pipeline.Adapter,
	logger *slog.Logger,
) *JobService {
	maxConcurrent := cfg.Jobs.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &JobService{
		store:         store,
		broker:        broker,
		dirs:          dirs,
		resolver:      resolver,
		prober:        prober,
		transform:     transform,
		capturer:      capturer,
		jobTimeout:    cfg.Jobs.JobTimeout,
		deliveryGrace: cfg.Retention.DeliveryGrace,
		maxCaptureLen: cfg.Capture.MaxDuration,
		sem:           make(chan struct{}, maxConcurrent),
		logger:        observability.WithComponent(logger, "job_service"),
	}
}

// SubmitTransform accepts an uploaded source and a target request. The
// request is validated against the capability table before any upload
// bytes are written. The returned job is queued; the caller observes
// progress via the broker or by polling.
func (s *JobService) SubmitTransform(ctx context.Context, source io.Reader, filename string, req models.OutputRequest) (*models.Job, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	job := models.NewJob(models.JobKindTransform, req)
	job.OriginalLabel = filename

	uploadName := job.ID.String() + sourceExtension(filename)
	if err := s.writeUpload(uploadName, source); err != nil {
		return nil, fmt.Errorf("storing upload: %w", err)
	}
	job.SourcePath = uploadName

	if err := s.store.Create(job); err != nil {
		_ = s.dirs.Uploads.Remove(uploadName)
		return nil, err
	}

	s.logger.Info("transform accepted",
		"job_id", job.ID.String(),
		"format", req.Format,
		"quality", req.Quality,
		"source", filename,
	)

	s.broker.PublishJob(job)
	s.launch(job.ID.String(), s.transform)
	return job.Clone(), nil
}

// SubmitCapture accepts a remote video URL and a target request. The
// URL is resolved and the rendition selected synchronously so invalid
// sources are rejected before a job exists.
func (s *JobService) SubmitCapture(ctx context.Context, rawURL string, req models.OutputRequest) (*models.Job, error) {
	normalizeCaptureRequest(&req)
	if err := req.Validate(); err != nil {
		return nil, err
	}

	video, err := s.resolver.Resolve(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if pipeline.MaxDurationExceeded(video, s.maxCaptureLen) {
		return nil, fmt.Errorf("%w: video runs %s, longer than the configured maximum %s",
			models.ErrInvalidSource, video.Duration, s.maxCaptureLen)
	}

	rendition, err := selector.Select(video.Renditions, req)
	if err != nil {
		return nil, err
	}

	job := models.NewJob(models.JobKindCapture, req)
	job.SourceURL = rawURL
	job.RenditionID = rendition.ID
	job.OriginalLabel = video.Title

	if err := s.store.Create(job); err != nil {
		return nil, err
	}

	s.logger.Info("capture accepted",
		"job_id", job.ID.String(),
		"url", rawURL,
		"rendition", rendition.ID,
		"format", req.Format,
	)

	s.broker.PublishJob(job)
	s.launch(job.ID.String(), s.capturer)
	return job.Clone(), nil
}

// Probe synchronously inspects an uploaded source without creating a
// job. The bytes land in the temp namespace and are removed before
// Probe returns.
func (s *JobService) Probe(ctx context.Context, source io.Reader, filename string) (*ffmpeg.SourceInfo, error) {
	tempFile, err := s.dirs.Temp.CreateTemp("", "probe-*"+sourceExtension(filename))
	if err != nil {
		return nil, err
	}
	tempPath := tempFile.Name()
	defer os.Remove(tempPath)

	if _, err := io.Copy(tempFile, source); err != nil {
		tempFile.Close()
		return nil, fmt.Errorf("storing probe input: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return nil, err
	}

	info, err := s.prober.ProbeSimple(ctx, tempPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidSource, err)
	}
	return info, nil
}

// GetJob returns a snapshot of a job, or ErrJobNotFound.
func (s *JobService) GetJob(id string) (*models.Job, error) {
	return s.store.Get(id)
}

// ListJobs returns snapshots of all jobs.
func (s *JobService) ListJobs() []*models.Job {
	return s.store.List()
}

// Delivery is an open artifact stream for a completed job.
type Delivery struct {
	Job      *models.Job
	File     *os.File
	Size     int64
	Filename string
	MimeType string
}

// OpenDelivery opens the artifact of a completed job for streaming.
// ErrJobNotFound for unknown ids, ErrJobNotReady before completion,
// ErrArtifactMissing when the file is gone.
func (s *JobService) OpenDelivery(id string) (*Delivery, error) {
	job, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobStatusCompleted {
		return nil, models.ErrJobNotReady
	}

	file, err := s.dirs.Outputs.Open(job.OutputPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, models.ErrArtifactMissing
		}
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}

	spec, _ := job.Request.FormatSpec()
	return &Delivery{
		Job:      job,
		File:     file,
		Size:     info.Size(),
		Filename: downloadFilename(job, spec),
		MimeType: spec.MimeType,
	}, nil
}

// FinishDelivery schedules artifact deletion and registry removal
// after the grace delay. Called only after a fully successful
// transfer; a failed or interrupted transfer leaves the job fetchable.
func (s *JobService) FinishDelivery(id string) {
	job, err := s.store.Get(id)
	if err != nil {
		return
	}

	s.logger.Debug("delivery finished, scheduling eviction",
		"job_id", id,
		"grace", s.deliveryGrace,
	)

	outputPath := job.OutputPath
	time.AfterFunc(s.deliveryGrace, func() {
		s.Evict(id, outputPath)
	})
}

// Evict deletes a job's artifact and removes its record, publishing
// the terminal evicted event. Deletion is idempotent.
func (s *JobService) Evict(id, outputPath string) {
	if outputPath != "" {
		if err := s.dirs.Outputs.Remove(outputPath); err != nil {
			s.logger.Warn("failed to remove artifact", "job_id", id, "error", err)
		}
	}

	if job, err := s.store.Get(id); err == nil {
		job.MarkEvicted()
		s.broker.PublishJob(job)
	}
	s.store.Delete(id)
}

// Close waits for running adapters to finish.
func (s *JobService) Close() {
	s.wg.Wait()
}

// launch runs the job on its own goroutine. The semaphore bounds
// concurrency; a job waiting for a slot stays queued.
func (s *JobService) launch(id string, adapter pipeline.Adapter) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.sem <- struct{}{}
		defer func() { <-s.sem }()

		job, err := s.store.Get(id)
		if err != nil {
			// Swept while waiting for a slot
			return
		}
		if job.Status != models.JobStatusQueued {
			return
		}

		ctx := context.Background()
		if s.jobTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.jobTimeout)
			defer cancel()
		}

		adapter.Run(ctx, job, s.callbacks(id))
	}()
}

// callbacks wires adapter events into the registry and the broker.
// Registry updates against a terminal record are dropped by the store,
// so a spurious late callback can never resurrect a finished job.
func (s *JobService) callbacks(id string) pipeline.Callbacks {
	return pipeline.Callbacks{
		OnStart: func() {
			s.updateAndPublish(id, func(j *models.Job) { j.MarkProcessing() })
		},
		OnProgress: func(percent int, _ string) {
			s.updateAndPublish(id, func(j *models.Job) { j.SetProgress(percent) })
		},
		OnComplete: func(outputPath string) {
			s.updateAndPublish(id, func(j *models.Job) { j.MarkCompleted(outputPath) })
		},
		OnError: func(err error) {
			s.logger.Warn("job failed", "job_id", id, "error", err)
			s.updateAndPublish(id, func(j *models.Job) { j.MarkFailed(err) })
		},
	}
}

func (s *JobService) updateAndPublish(id string, fn func(*models.Job)) {
	before, err := s.store.Get(id)
	if err != nil || before.IsTerminal() {
		return
	}
	if err := s.store.Update(id, fn); err != nil {
		return
	}
	if after, err := s.store.Get(id); err == nil {
		s.broker.PublishJob(after)
	}
}

func (s *JobService) writeUpload(name string, source io.Reader) error {
	file, err := s.dirs.Uploads.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return err
	}
	if _, err := io.Copy(file, source); err != nil {
		file.Close()
		_ = s.dirs.Uploads.Remove(name)
		return err
	}
	return file.Close()
}

// normalizeCaptureRequest fills capture defaults: audio-only captures
// land in mp3, the rest in mp4, and an audio-kind format implies the
// audio-only selection path.
func normalizeCaptureRequest(req *models.OutputRequest) {
	req.Normalize()
	if req.Format == "" {
		if req.AudioOnly {
			req.Format = "mp3"
		} else {
			req.Format = "mp4"
		}
	}
	if spec, ok := models.LookupFormat(req.Format); ok && spec.Kind == models.FormatKindAudio {
		req.AudioOnly = true
	}
}

// sourceExtension returns a safe extension for an uploaded filename.
func sourceExtension(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if ext == "" || len(ext) > 8 {
		return ".bin"
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ".bin"
		}
	}
	return ext
}

// downloadFilename builds the user-facing filename for a delivery from
// the sanitized original label and the output extension.
func downloadFilename(job *models.Job, spec models.FormatSpec) string {
	base := storage.SanitizeFilename(storage.StripExtension(job.OriginalLabel))
	return base + spec.Extension
}
