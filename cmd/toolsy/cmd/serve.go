package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shtefko55/toolsy/internal/capture"
	"github.com/shtefko55/toolsy/internal/ffmpeg"
	internalhttp "github.com/shtefko55/toolsy/internal/http"
	"github.com/shtefko55/toolsy/internal/http/handlers"
	"github.com/shtefko55/toolsy/internal/models"
	"github.com/shtefko55/toolsy/internal/pipeline"
	"github.com/shtefko55/toolsy/internal/progress"
	"github.com/shtefko55/toolsy/internal/registry"
	"github.com/shtefko55/toolsy/internal/service"
	"github.com/shtefko55/toolsy/internal/startup"
	"github.com/shtefko55/toolsy/internal/storage"
	"github.com/shtefko55/toolsy/internal/sweeper"
	"github.com/shtefko55/toolsy/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the toolsy server",
	Long: `Start the toolsy HTTP server and API.

The server provides:
- REST API for submitting transform and capture jobs
- Artifact download with single-delivery eviction
- Job progress over server-sent events at /api/v1/events
- Health check endpoint at /health`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "host to bind to (overrides config)")
	serveCmd.Flags().Int("port", 0, "port to listen on (overrides config)")
	serveCmd.Flags().String("data-dir", "", "base directory for uploads and artifacts (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cmd.Flags().Changed("host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.Storage.BaseDir, _ = cmd.Flags().GetString("data-dir")
	}

	logger := setupLogger(cfg)

	dirs, err := storage.NewDirs(cfg.Storage.UploadPath(), cfg.Storage.OutputPath(), cfg.Storage.TempPath())
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	// The registry is in-memory, so files left on disk from a previous
	// run belong to no job and have to go before we accept work.
	removed, err := startup.CleanStorage(logger, dirs)
	if err != nil {
		logger.Warn("failed to clean storage on startup",
			slog.String("error", err.Error()),
		)
	} else if removed > 0 {
		logger.Info("cleaned stale files on startup",
			slog.Int("removed_count", removed),
		)
	}

	store := registry.NewMemoryStore()

	broker := progress.NewBroker(cfg.Events.SubscriberBuffer, logger)
	defer broker.Close()

	detector := ffmpeg.NewBinaryDetector(cfg.FFmpeg.BinaryPath, cfg.FFmpeg.ProbePath)
	ffmpegPath := cfg.FFmpeg.BinaryPath
	ffprobePath := cfg.FFmpeg.ProbePath
	if info, err := detector.Detect(cmd.Context()); err != nil {
		logger.Warn("ffmpeg detection failed, transforms and captures will fail until resolved",
			slog.String("error", err.Error()),
		)
	} else {
		ffmpegPath = info.FFmpegPath
		ffprobePath = info.FFprobePath
		logger.Info("detected ffmpeg",
			slog.String("version", info.Version),
			slog.String("ffmpeg_path", info.FFmpegPath),
			slog.String("ffprobe_path", info.FFprobePath),
		)
		logMissingFormats(logger, info)
	}

	prober := ffmpeg.NewProber(ffprobePath)
	resolver := capture.NewResolver(cfg.Capture.HTTPTimeout)
	transform := pipeline.NewTransform(ffmpegPath, prober, dirs, cfg.Retention.DeliveryGrace, logger)
	capturer := pipeline.NewCapture(resolver, ffmpegPath, dirs, logger)

	jobService := service.NewJobService(cfg, store, broker, dirs, resolver, prober, transform, capturer, logger)
	defer jobService.Close()

	sw := sweeper.New(cfg.Retention, store, dirs, broker, logger)
	if err := sw.Start(); err != nil {
		return fmt.Errorf("starting retention sweeper: %w", err)
	}
	defer sw.Stop()

	server := internalhttp.NewServer(cfg.Server, logger, version.Version)

	healthHandler := handlers.NewHealthHandler(version.Version, store, detector, cfg.Storage.BaseDir)
	healthHandler.Register(server.API())

	capabilitiesHandler := handlers.NewCapabilitiesHandler(detector, logger)
	capabilitiesHandler.Register(server.API())

	jobHandler := handlers.NewJobHandler(jobService)
	jobHandler.Register(server.API())

	uploadHandler := handlers.NewUploadHandler(jobService, int64(cfg.Storage.MaxUploadSize), logger)
	uploadHandler.RegisterRaw(server.Router())

	downloadHandler := handlers.NewDownloadHandler(jobService, logger)
	downloadHandler.RegisterRaw(server.Router())

	eventsHandler := handlers.NewEventsHandler(broker, cfg.Events.HeartbeatPeriod, logger)
	eventsHandler.RegisterRaw(server.Router())

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	logger.Info("starting toolsy server",
		slog.String("host", cfg.Server.Host),
		slog.Int("port", cfg.Server.Port),
		slog.String("version", version.Version),
	)

	return server.ListenAndServe(ctx)
}

// logMissingFormats warns about output formats the detected ffmpeg
// build cannot produce. Requests for them will fail at encode time.
func logMissingFormats(logger *slog.Logger, info *ffmpeg.BinaryInfo) {
	for _, spec := range models.SupportedFormats() {
		var missing []string
		for _, encoder := range spec.Encoders() {
			if !info.HasEncoder(encoder) {
				missing = append(missing, encoder)
			}
		}
		if !info.HasMuxer(spec.FFmpegMuxer()) {
			missing = append(missing, "muxer "+spec.FFmpegMuxer())
		}
		if len(missing) > 0 {
			logger.Warn("output format unavailable in this ffmpeg build",
				slog.String("format", spec.Name),
				slog.Any("missing", missing),
			)
		}
	}
}
