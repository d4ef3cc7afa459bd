package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/shtefko55/toolsy/internal/capture"
	"github.com/shtefko55/toolsy/internal/models"
	"github.com/shtefko55/toolsy/internal/observability"
	"github.com/shtefko55/toolsy/internal/selector"
	"github.com/shtefko55/toolsy/internal/storage"
)

// Progress split for captures: the stream download owns the first
// span, the ffmpeg pass the remainder up to the running cap.
const (
	downloadPercentSpan = 85
	encodePercentSpan   = maxRunningPercent - downloadPercentSpan
)

// Capture materializes the chosen rendition of a remote video and
// re-encodes it into the requested output format.
type Capture struct {
	resolver   *capture.Resolver
	ffmpegPath string
	dirs       *storage.Dirs
	logger     *slog.Logger
}

// NewCapture creates the capture adapter.
func NewCapture(resolver *capture.Resolver, ffmpegPath string, dirs *storage.Dirs, logger *slog.Logger) *Capture {
	return &Capture{
		resolver:   resolver,
		ffmpegPath: ffmpegPath,
		dirs:       dirs,
		logger:     observability.WithComponent(logger, "capture"),
	}
}

// Run executes the capture. The job's SourceURL was validated and its
// rendition selected at submit time; stream URLs expire, so the video
// is resolved again here.
func (c *Capture) Run(ctx context.Context, job *models.Job, cb Callbacks) {
	logger := observability.WithJobID(c.logger, job.ID.String())

	spec, err := job.Request.FormatSpec()
	if err != nil {
		cb.fail(err)
		return
	}
	tier, err := job.Request.Tier()
	if err != nil {
		cb.fail(err)
		return
	}

	cb.start()

	video, err := c.resolver.Resolve(ctx, job.SourceURL)
	if err != nil {
		cb.fail(err)
		return
	}

	rendition, err := c.pickRendition(video, job)
	if err != nil {
		cb.fail(err)
		return
	}

	downloadPath, err := c.download(ctx, video, rendition, job, cb)
	if err != nil {
		cb.fail(err)
		return
	}
	defer func() {
		if err := removeAbs(downloadPath); err != nil {
			logger.Warn("failed to remove downloaded stream", "path", downloadPath, "error", err)
		}
	}()

	tempFile, err := c.dirs.Temp.CreateTemp("", job.ID.String()+"-*"+spec.Extension)
	if err != nil {
		cb.fail(err)
		return
	}
	tempPath := tempFile.Name()
	tempFile.Close()

	cmd := BuildEncodeCommand(c.ffmpegPath, downloadPath, tempPath, spec, tier, job.Request)
	logger.Debug("starting ffmpeg", "command", cmd.String(), "rendition", rendition.ID)

	encodeCb := cb
	encodeCb.OnProgress = func(percent int, message string) {
		cb.progress(downloadPercentSpan+percent*encodePercentSpan/100, message)
	}

	if err := runWithProgress(ctx, cmd, video.Duration, encodeCb); err != nil {
		if rmErr := removeAbs(tempPath); rmErr != nil {
			logger.Warn("failed to remove partial output", "path", tempPath, "error", rmErr)
		}
		cb.fail(classifyEngineError(err))
		return
	}

	outName := job.ID.String() + spec.Extension
	if err := c.dirs.Outputs.AtomicPublish(tempPath, outName); err != nil {
		if rmErr := removeAbs(tempPath); rmErr != nil {
			logger.Warn("failed to remove partial output", "path", tempPath, "error", rmErr)
		}
		cb.fail(fmt.Errorf("publishing output: %w", err))
		return
	}

	logger.Info("capture completed", "output", outName, "title", video.Title)
	cb.complete(outName)
}

// pickRendition finds the rendition chosen at submit time, re-running
// selection when the remote site no longer offers it.
func (c *Capture) pickRendition(video *capture.Video, job *models.Job) (capture.Rendition, error) {
	for _, r := range video.Renditions {
		if r.ID == job.RenditionID {
			return r, nil
		}
	}
	return selector.Select(video.Renditions, job.Request)
}

// download streams the rendition into the temp namespace, reporting
// byte progress against the expected content length.
func (c *Capture) download(ctx context.Context, video *capture.Video, rendition capture.Rendition, job *models.Job, cb Callbacks) (string, error) {
	stream, size, err := c.resolver.OpenStream(ctx, video, rendition)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	if size <= 0 {
		size = rendition.ContentLength
	}

	tempFile, err := c.dirs.Temp.CreateTemp("", job.ID.String()+"-dl-*")
	if err != nil {
		return "", err
	}
	downloadPath := tempFile.Name()

	var written int64
	buf := make([]byte, 64*1024)
	lastPercent := -1

	for {
		if err := ctx.Err(); err != nil {
			tempFile.Close()
			_ = removeAbs(downloadPath)
			return "", err
		}

		n, readErr := stream.Read(buf)
		if n > 0 {
			if _, writeErr := tempFile.Write(buf[:n]); writeErr != nil {
				tempFile.Close()
				_ = removeAbs(downloadPath)
				return "", writeErr
			}
			written += int64(n)
			if size > 0 {
				if percent := int(written * downloadPercentSpan / size); percent != lastPercent {
					lastPercent = percent
					cb.progress(percent, "downloading")
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			tempFile.Close()
			_ = removeAbs(downloadPath)
			return "", fmt.Errorf("downloading rendition: %w", readErr)
		}
	}

	if err := tempFile.Close(); err != nil {
		_ = removeAbs(downloadPath)
		return "", err
	}

	info, err := os.Stat(downloadPath)
	if err != nil || info.Size() == 0 {
		_ = removeAbs(downloadPath)
		return "", fmt.Errorf("%w: downloaded stream is empty", models.ErrInvalidSource)
	}

	return downloadPath, nil
}

// MaxDurationExceeded reports whether a resolved video is longer than
// the configured capture ceiling.
func MaxDurationExceeded(video *capture.Video, max time.Duration) bool {
	return max > 0 && video.Duration > max
}
