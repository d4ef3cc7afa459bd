package models

// JobKind determines which source/selector path produced a job.
type JobKind string

const (
	// JobKindTransform is a local format/quality conversion of an uploaded file.
	JobKindTransform JobKind = "transform"
	// JobKindCapture materializes a chosen rendition of a remote video.
	JobKindCapture JobKind = "capture"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusQueued indicates the job is accepted but not yet running.
	JobStatusQueued JobStatus = "queued"
	// JobStatusProcessing indicates the adapter is running the job.
	JobStatusProcessing JobStatus = "processing"
	// JobStatusCompleted indicates the artifact is ready for download.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the adapter reported a terminal failure.
	JobStatusFailed JobStatus = "failed"
	// JobStatusEvicted indicates the job was removed by delivery or the sweeper.
	JobStatusEvicted JobStatus = "evicted"
)

// maxRunningProgress caps progress reported while a job is still
// processing. 100 is reserved for the terminal completed transition so
// observers can treat it as an unambiguous done signal.
const maxRunningProgress = 95

// Job is one tracked asynchronous transform or capture request.
type Job struct {
	// ID is the opaque external handle for status/progress/download.
	ID ULID `json:"id"`

	// Kind selects the transform or capture pipeline.
	Kind JobKind `json:"kind"`

	// SourcePath is the exclusively owned local input file. Set for
	// transforms; empty for captures.
	SourcePath string `json:"-"`

	// SourceURL is the remote video URL. Set for captures.
	SourceURL string `json:"source_url,omitempty"`

	// RenditionID identifies the rendition chosen at submit time for
	// captures.
	RenditionID string `json:"rendition_id,omitempty"`

	// Request is the user's declared output target.
	Request OutputRequest `json:"request"`

	// OriginalLabel is the human-facing name (original filename or video
	// title) used to build the download filename. Never used as a path
	// component without sanitization.
	OriginalLabel string `json:"original_label,omitempty"`

	// Status is the current lifecycle state.
	Status JobStatus `json:"status"`

	// Progress is 0-100, monotonically non-decreasing while processing.
	Progress int `json:"progress"`

	// OutputPath is set exactly when Status is completed.
	OutputPath string `json:"-"`

	// ErrorDetail is present only when Status is failed.
	ErrorDetail string `json:"error_detail,omitempty"`

	CreatedAt Time  `json:"created_at"`
	UpdatedAt Time  `json:"updated_at"`
	// CompletedAt is the time the job reached a terminal state.
	CompletedAt *Time `json:"completed_at,omitempty"`
}

// NewJob creates a queued job with a fresh ULID.
func NewJob(kind JobKind, request OutputRequest) *Job {
	now := Now()
	return &Job{
		ID:        NewULID(),
		Kind:      kind,
		Request:   request,
		Status:    JobStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate performs basic validation on the job.
func (j *Job) Validate() error {
	if j.Kind == "" {
		return ErrJobKindRequired
	}
	if j.SourcePath == "" && j.SourceURL == "" {
		return ErrSourceRequired
	}
	return nil
}

// IsTerminal returns true if the job reached a state with no outgoing
// transitions except eviction.
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed || j.Status == JobStatusEvicted
}

// MarkProcessing records the adapter start.
func (j *Job) MarkProcessing() {
	j.Status = JobStatusProcessing
	j.UpdatedAt = Now()
}

// SetProgress applies a running progress update. Values are clamped to
// [0, 95] and never allowed to decrease.
func (j *Job) SetProgress(percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > maxRunningProgress {
		percent = maxRunningProgress
	}
	if percent > j.Progress {
		j.Progress = percent
	}
	j.UpdatedAt = Now()
}

// MarkCompleted records the terminal success with the produced artifact.
// Progress becomes exactly 100 here and nowhere else.
func (j *Job) MarkCompleted(outputPath string) {
	j.Status = JobStatusCompleted
	j.OutputPath = outputPath
	j.Progress = 100
	now := Now()
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorDetail = ""
}

// MarkFailed records the terminal failure.
func (j *Job) MarkFailed(err error) {
	j.Status = JobStatusFailed
	if err != nil {
		j.ErrorDetail = err.Error()
	}
	now := Now()
	j.UpdatedAt = now
	j.CompletedAt = &now
}

// MarkEvicted records removal by delivery or the sweeper.
func (j *Job) MarkEvicted() {
	j.Status = JobStatusEvicted
	now := Now()
	j.UpdatedAt = now
	if j.CompletedAt == nil {
		j.CompletedAt = &now
	}
}

// Clone returns a copy safe to hand outside the registry lock.
func (j *Job) Clone() *Job {
	clone := *j
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		clone.CompletedAt = &t
	}
	return &clone
}
