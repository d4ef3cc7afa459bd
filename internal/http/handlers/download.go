package handlers

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shtefko55/toolsy/internal/service"
)

// DownloadHandler streams completed artifacts. A fully transferred
// download schedules the job's eviction; an interrupted one leaves the
// artifact fetchable for a retry.
type DownloadHandler struct {
	jobService *service.JobService
	logger     *slog.Logger
}

// NewDownloadHandler creates a new download handler.
func NewDownloadHandler(jobService *service.JobService, logger *slog.Logger) *DownloadHandler {
	return &DownloadHandler{
		jobService: jobService,
		logger:     logger,
	}
}

// RegisterRaw registers the download route on the router.
func (h *DownloadHandler) RegisterRaw(router chi.Router) {
	router.Get("/api/v1/jobs/{id}/download", h.Download)
}

// Download streams the artifact of a completed job.
func (h *DownloadHandler) Download(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	delivery, err := h.jobService.OpenDelivery(id)
	if err != nil {
		writeError(w, err)
		return
	}
	defer delivery.File.Close()

	w.Header().Set("Content-Type", delivery.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(delivery.Size, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", delivery.Filename))

	written, err := io.Copy(w, delivery.File)
	if err != nil || written != delivery.Size {
		// Partial transfer: keep the artifact so the client can retry.
		h.logger.Warn("download interrupted",
			"job_id", id,
			"written", written,
			"size", delivery.Size,
			"error", err,
		)
		return
	}

	h.jobService.FinishDelivery(id)
}
