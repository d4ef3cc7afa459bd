package handlers

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shtefko55/toolsy/internal/models"
	"github.com/shtefko55/toolsy/internal/service"
)

// multipartMemory is the in-memory threshold for multipart parsing;
// larger uploads spill to disk.
const multipartMemory = 32 << 20

// UploadHandler handles the multipart endpoints: transform submission
// and source probing. These bypass Huma because the request body is a
// file stream, not JSON.
type UploadHandler struct {
	jobService *service.JobService
	maxUpload  int64
	logger     *slog.Logger
}

// NewUploadHandler creates a new upload handler. maxUpload of 0
// disables the request size cap.
func NewUploadHandler(jobService *service.JobService, maxUpload int64, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{
		jobService: jobService,
		maxUpload:  maxUpload,
		logger:     logger,
	}
}

// RegisterRaw registers the multipart routes on the router.
func (h *UploadHandler) RegisterRaw(router chi.Router) {
	router.Post("/api/v1/transforms", h.SubmitTransform)
	router.Post("/api/v1/probe", h.Probe)
}

// SubmitTransform accepts a multipart upload with a "file" part and
// format/quality fields, and queues a transform job.
func (h *UploadHandler) SubmitTransform(w http.ResponseWriter, r *http.Request) {
	file, header, err := h.openUpload(w, r)
	if err != nil {
		return
	}
	defer file.Close()

	req := models.OutputRequest{
		Format:       r.FormValue("format"),
		Quality:      models.Quality(r.FormValue("quality")),
		AudioBitrate: r.FormValue("audio_bitrate"),
	}
	if v := r.FormValue("sample_rate"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			req.SampleRate = n
		}
	}
	if v := r.FormValue("channels"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			req.Channels = n
		}
	}

	job, err := h.jobService.SubmitTransform(r.Context(), file, header.Filename, req)
	if err != nil {
		writeError(w, err)
		return
	}

	h.logger.Debug("upload accepted",
		"job_id", job.ID.String(),
		"filename", header.Filename,
		"size", header.Size,
	)

	writeJSON(w, http.StatusAccepted, JobFromModel(job))
}

// Probe inspects an uploaded file and returns its container, duration
// and track layout without creating a job.
func (h *UploadHandler) Probe(w http.ResponseWriter, r *http.Request) {
	file, header, err := h.openUpload(w, r)
	if err != nil {
		return
	}
	defer file.Close()

	info, err := h.jobService.Probe(r.Context(), file, header.Filename)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

// openUpload applies the size cap and extracts the "file" part. On
// failure it writes the error response and returns a non-nil error.
func (h *UploadHandler) openUpload(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{
				Title:  http.StatusText(http.StatusRequestEntityTooLarge),
				Status: http.StatusRequestEntityTooLarge,
				Detail: "upload exceeds the configured size limit",
			})
			return nil, nil, err
		}
		writeJSON(w, http.StatusBadRequest, errorBody{
			Title:  http.StatusText(http.StatusBadRequest),
			Status: http.StatusBadRequest,
			Detail: "malformed multipart request",
		})
		return nil, nil, err
	}

	part, partHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Title:  http.StatusText(http.StatusBadRequest),
			Status: http.StatusBadRequest,
			Detail: "missing \"file\" part",
		})
		return nil, nil, err
	}

	return part, partHeader, nil
}
