package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shtefko55/toolsy/internal/ffmpeg"
	"github.com/shtefko55/toolsy/internal/models"
	"github.com/shtefko55/toolsy/internal/observability"
	"github.com/shtefko55/toolsy/internal/storage"
)

// Transform converts an uploaded local file into the requested output
// format with a single ffmpeg invocation.
type Transform struct {
	ffmpegPath string
	prober     *ffmpeg.Prober
	dirs       *storage.Dirs
	inputGrace time.Duration
	logger     *slog.Logger
}

// NewTransform creates the transform adapter. inputGrace is how long
// the consumed upload lingers after a successful transform.
func NewTransform(ffmpegPath string, prober *ffmpeg.Prober, dirs *storage.Dirs, inputGrace time.Duration, logger *slog.Logger) *Transform {
	return &Transform{
		ffmpegPath: ffmpegPath,
		prober:     prober,
		dirs:       dirs,
		inputGrace: inputGrace,
		logger:     observability.WithComponent(logger, "transform"),
	}
}

// Run executes the transform. The job's SourcePath names the upload
// inside the uploads namespace and is owned exclusively by this job.
func (t *Transform) Run(ctx context.Context, job *models.Job, cb Callbacks) {
	logger := observability.WithJobID(t.logger, job.ID.String())

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

	inputAbs, err := t.dirs.Uploads.ResolvePath(job.SourcePath)
	if err != nil {
		cb.fail(err)
		return
	}

	probe, err := t.prober.Probe(ctx, inputAbs)
	if err != nil {
		t.discardInput(job.SourcePath, logger)
		cb.fail(fmt.Errorf("%w: %v", models.ErrInvalidSource, err))
		return
	}
	if spec.Kind == models.FormatKindVideo && probe.GetVideoStream() == nil {
		t.discardInput(job.SourcePath, logger)
		cb.fail(fmt.Errorf("%w: source has no video stream", models.ErrInvalidSource))
		return
	}
	if probe.GetAudioStream() == nil && probe.GetVideoStream() == nil {
		t.discardInput(job.SourcePath, logger)
		cb.fail(fmt.Errorf("%w: source has no decodable streams", models.ErrInvalidSource))
		return
	}
	duration := probe.Duration()

	outName := job.ID.String() + spec.Extension
	tempFile, err := t.dirs.Temp.CreateTemp("", job.ID.String()+"-*"+spec.Extension)
	if err != nil {
		t.discardInput(job.SourcePath, logger)
		cb.fail(err)
		return
	}
	tempPath := tempFile.Name()
	tempFile.Close()

	cmd := BuildEncodeCommand(t.ffmpegPath, inputAbs, tempPath, spec, tier, job.Request)

	logger.Debug("starting ffmpeg", "command", cmd.String(), "duration_ms", duration.Milliseconds())

	if err := runWithProgress(ctx, cmd, duration, cb); err != nil {
		t.discardTemp(tempPath, logger)
		t.discardInput(job.SourcePath, logger)
		cb.fail(classifyEngineError(err))
		return
	}

	if err := t.dirs.Outputs.AtomicPublish(tempPath, outName); err != nil {
		t.discardTemp(tempPath, logger)
		t.discardInput(job.SourcePath, logger)
		cb.fail(fmt.Errorf("publishing output: %w", err))
		return
	}

	// Input cleanup is deferred past the terminal event so a probe or
	// read still in flight doesn't race the delete.
	source := job.SourcePath
	time.AfterFunc(t.inputGrace, func() {
		t.discardInput(source, logger)
	})

	logger.Info("transform completed", "output", outName)
	cb.complete(outName)
}

func (t *Transform) discardInput(sourcePath string, logger *slog.Logger) {
	if err := t.dirs.Uploads.Remove(sourcePath); err != nil {
		logger.Warn("failed to remove consumed upload", "path", sourcePath, "error", err)
	}
}

func (t *Transform) discardTemp(tempPath string, logger *slog.Logger) {
	if err := removeAbs(tempPath); err != nil {
		logger.Warn("failed to remove partial output", "path", tempPath, "error", err)
	}
}

// BuildEncodeCommand assembles the ffmpeg invocation for one encode:
// the format's codecs, the tier's bitrate or CRF, and the request's
// overrides.
func BuildEncodeCommand(ffmpegPath, input, output string, spec models.FormatSpec, tier models.TierParams, req models.OutputRequest) *ffmpeg.Command {
	b := ffmpeg.NewCommandBuilder(ffmpegPath).
		HideBanner().
		Stats().
		Overwrite().
		Input(input)

	if spec.Kind == models.FormatKindAudio {
		b.NoVideo()
	} else {
		b.VideoCodec(spec.VideoCodec)
		if tier.CRF > 0 {
			b.CRF(tier.CRF)
		}
		// CRF-only mode for vp9 needs the bitrate cap disabled
		if spec.VideoCodec == "libvpx-vp9" {
			b.OutputArgs("-b:v", "0")
		}
	}

	b.AudioCodec(spec.AudioCodec)
	if tier.AudioBitrate != "" {
		b.AudioBitrate(tier.AudioBitrate)
	}
	if req.SampleRate > 0 {
		b.SampleRate(req.SampleRate)
	}
	if req.Channels > 0 {
		b.AudioChannels(req.Channels)
	}

	return b.Format(spec.FFmpegMuxer()).Output(output).Build()
}

// runWithProgress runs cmd, converting its time-based progress into
// percentages against the probed duration.
func runWithProgress(ctx context.Context, cmd *ffmpeg.Command, duration time.Duration, cb Callbacks) error {
	progressCh := make(chan ffmpeg.Progress, 16)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for p := range progressCh {
			if duration <= 0 {
				continue
			}
			percent := int(p.Time * 100 / duration)
			cb.progress(percent, "transcoding")
		}
	}()

	err := cmd.RunWithProgress(ctx, progressCh)
	close(progressCh)
	<-done
	return err
}
