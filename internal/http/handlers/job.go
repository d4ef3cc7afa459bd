// Package handlers provides the HTTP API handlers for toolsy.
package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/shtefko55/toolsy/internal/models"
	"github.com/shtefko55/toolsy/internal/service"
)

// JobHandler handles job submission and inspection endpoints.
type JobHandler struct {
	jobService *service.JobService
}

// NewJobHandler creates a new job handler.
func NewJobHandler(jobService *service.JobService) *JobHandler {
	return &JobHandler{
		jobService: jobService,
	}
}

// JobResponse is the API representation of a job.
type JobResponse struct {
	ID          string     `json:"id" doc:"Job identifier"`
	Kind        string     `json:"kind" doc:"transform or capture"`
	Status      string     `json:"status" doc:"queued, processing, completed, failed or evicted"`
	Progress    int        `json:"progress" doc:"0-100, monotonic; 100 only when completed"`
	SourceURL   string     `json:"source_url,omitempty"`
	Label       string     `json:"label,omitempty" doc:"Original filename or video title"`
	Format      string     `json:"format"`
	Quality     string     `json:"quality"`
	ErrorDetail string     `json:"error_detail,omitempty"`
	DownloadRef string     `json:"download_ref,omitempty" doc:"Set when the artifact is ready"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// JobFromModel converts a job record to its API representation.
func JobFromModel(job *models.Job) JobResponse {
	resp := JobResponse{
		ID:          job.ID.String(),
		Kind:        string(job.Kind),
		Status:      string(job.Status),
		Progress:    job.Progress,
		SourceURL:   job.SourceURL,
		Label:       job.OriginalLabel,
		Format:      job.Request.Format,
		Quality:     string(job.Request.Quality),
		ErrorDetail: job.ErrorDetail,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
		CompletedAt: job.CompletedAt,
	}
	if job.Status == models.JobStatusCompleted {
		resp.DownloadRef = "/api/v1/jobs/" + resp.ID + "/download"
	}
	return resp
}

// SubmitCaptureBody is the request body for capture submissions.
type SubmitCaptureBody struct {
	URL        string `json:"url" doc:"Remote video page URL"`
	Format     string `json:"format,omitempty" doc:"Output format; defaults to mp4, or mp3 for audio-only"`
	Quality    string `json:"quality,omitempty" doc:"low, medium, high or lossless" enum:"low,medium,high,lossless,"`
	Resolution string `json:"resolution,omitempty" doc:"highest or a target like 720p"`
	AudioOnly  bool   `json:"audio_only,omitempty" doc:"Extract audio only"`
}

// SubmitCaptureInput is the input for capture submissions.
type SubmitCaptureInput struct {
	Body SubmitCaptureBody
}

// SubmitCaptureOutput is the output for capture submissions.
type SubmitCaptureOutput struct {
	Status int
	Body   JobResponse
}

// ListJobsOutput is the output for listing jobs.
type ListJobsOutput struct {
	Body struct {
		Jobs []JobResponse `json:"jobs"`
	}
}

// GetJobInput is the input for fetching one job.
type GetJobInput struct {
	ID string `path:"id" doc:"Job identifier"`
}

// GetJobOutput is the output for fetching one job.
type GetJobOutput struct {
	Body JobResponse
}

// Register registers the JSON job routes with the API.
func (h *JobHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "submitCapture",
		Method:        "POST",
		Path:          "/api/v1/captures",
		Summary:       "Submit capture job",
		Description:   "Resolves a remote video, selects a rendition and queues an asynchronous capture job",
		Tags:          []string{"Jobs"},
		DefaultStatus: 202,
	}, h.SubmitCapture)

	huma.Register(api, huma.Operation{
		OperationID: "listJobs",
		Method:      "GET",
		Path:        "/api/v1/jobs",
		Summary:     "List jobs",
		Description: "Returns all tracked jobs",
		Tags:        []string{"Jobs"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getJob",
		Method:      "GET",
		Path:        "/api/v1/jobs/{id}",
		Summary:     "Get job",
		Description: "Returns one job by id",
		Tags:        []string{"Jobs"},
	}, h.GetByID)
}

// SubmitCapture queues a capture job for a remote video URL.
func (h *JobHandler) SubmitCapture(ctx context.Context, input *SubmitCaptureInput) (*SubmitCaptureOutput, error) {
	req := models.OutputRequest{
		Format:     input.Body.Format,
		Quality:    models.Quality(input.Body.Quality),
		Resolution: input.Body.Resolution,
		AudioOnly:  input.Body.AudioOnly,
	}

	job, err := h.jobService.SubmitCapture(ctx, input.Body.URL, req)
	if err != nil {
		return nil, humaError(err)
	}

	return &SubmitCaptureOutput{
		Status: 202,
		Body:   JobFromModel(job),
	}, nil
}

// List returns all tracked jobs.
func (h *JobHandler) List(ctx context.Context, input *struct{}) (*ListJobsOutput, error) {
	jobs := h.jobService.ListJobs()

	output := &ListJobsOutput{}
	output.Body.Jobs = make([]JobResponse, 0, len(jobs))
	for _, job := range jobs {
		output.Body.Jobs = append(output.Body.Jobs, JobFromModel(job))
	}
	return output, nil
}

// GetByID returns one job.
func (h *JobHandler) GetByID(ctx context.Context, input *GetJobInput) (*GetJobOutput, error) {
	job, err := h.jobService.GetJob(input.ID)
	if err != nil {
		return nil, humaError(err)
	}
	return &GetJobOutput{Body: JobFromModel(job)}, nil
}

// humaError maps service errors to Huma HTTP errors.
func humaError(err error) error {
	var validation models.ErrValidation
	switch {
	case errors.Is(err, models.ErrJobNotFound):
		return huma.Error404NotFound("job not found")
	case errors.Is(err, models.ErrJobNotReady):
		return huma.Error409Conflict("job is not ready for download")
	case errors.Is(err, models.ErrArtifactMissing):
		return huma.Error410Gone("artifact no longer available")
	case errors.Is(err, models.ErrInvalidSource),
		errors.Is(err, models.ErrNoRenditionAvailable),
		errors.Is(err, models.ErrUnsupportedFormat),
		errors.Is(err, models.ErrInvalidQuality),
		errors.Is(err, models.ErrFormatRequired),
		errors.Is(err, models.ErrURLRequired),
		errors.Is(err, models.ErrInvalidURL),
		errors.As(err, &validation):
		return huma.Error422UnprocessableEntity(err.Error())
	default:
		return huma.Error500InternalServerError("internal error", err)
	}
}
