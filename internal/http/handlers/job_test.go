package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shtefko55/toolsy/internal/config"
	"github.com/shtefko55/toolsy/internal/ffmpeg"
	"github.com/shtefko55/toolsy/internal/models"
	"github.com/shtefko55/toolsy/internal/pipeline"
	"github.com/shtefko55/toolsy/internal/progress"
	"github.com/shtefko55/toolsy/internal/registry"
	"github.com/shtefko55/toolsy/internal/service"
	"github.com/shtefko55/toolsy/internal/storage"
)

// fakeAdapter satisfies pipeline.Adapter without an external engine.
type fakeAdapter struct {
	run func(ctx context.Context, job *models.Job, cb pipeline.Callbacks)
}

func (f *fakeAdapter) Run(ctx context.Context, job *models.Job, cb pipeline.Callbacks) {
	if f.run != nil {
		f.run(ctx, job, cb)
	}
}

type testEnv struct {
	svc     *service.JobService
	store   registry.Store
	broker  *progress.Broker
	dirs    *storage.Dirs
	adapter *fakeAdapter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	base := t.TempDir()
	dirs, err := storage.NewDirs(base+"/uploads", base+"/outputs", base+"/tmp")
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Jobs.MaxConcurrent = 2
	cfg.Jobs.JobTimeout = 5 * time.Second
	cfg.Retention.DeliveryGrace = 20 * time.Millisecond

	logger := slog.New(slog.DiscardHandler)
	store := registry.NewMemoryStore()
	broker := progress.NewBroker(32, logger)
	adapter := &fakeAdapter{}
	svc := service.NewJobService(cfg, store, broker, dirs, nil, ffmpeg.NewProber(""), adapter, nil, logger)

	return &testEnv{svc: svc, store: store, broker: broker, dirs: dirs, adapter: adapter}
}

// seedCompletedJob puts a completed job with an artifact on disk into
// the registry, bypassing the pipeline.
func seedCompletedJob(t *testing.T, env *testEnv, label, content string) *models.Job {
	t.Helper()

	job := models.NewJob(models.JobKindTransform, models.OutputRequest{Format: "mp3", Quality: models.QualityHigh})
	job.SourcePath = job.ID.String() + ".wav"
	job.OriginalLabel = label
	require.NoError(t, env.store.Create(job))

	outName := job.ID.String() + ".mp3"
	f, err := env.dirs.Outputs.OpenFile(outName, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, env.store.Update(job.ID.String(), func(j *models.Job) {
		j.MarkCompleted(outName)
	}))

	got, err := env.store.Get(job.ID.String())
	require.NoError(t, err)
	return got
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var se huma.StatusError
	require.ErrorAs(t, err, &se)
	return se.GetStatus()
}

func TestJobHandler_GetByID_NotFound(t *testing.T) {
	env := newTestEnv(t)
	handler := NewJobHandler(env.svc)

	_, err := handler.GetByID(t.Context(), &GetJobInput{ID: "nope"})
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestJobHandler_GetByID_ReturnsJob(t *testing.T) {
	env := newTestEnv(t)
	handler := NewJobHandler(env.svc)

	job := seedCompletedJob(t, env, "My Song.wav", "encoded")

	output, err := handler.GetByID(t.Context(), &GetJobInput{ID: job.ID.String()})
	require.NoError(t, err)

	assert.Equal(t, job.ID.String(), output.Body.ID)
	assert.Equal(t, "completed", output.Body.Status)
	assert.Equal(t, 100, output.Body.Progress)
	assert.Equal(t, "/api/v1/jobs/"+job.ID.String()+"/download", output.Body.DownloadRef)
}

func TestJobHandler_List(t *testing.T) {
	env := newTestEnv(t)
	handler := NewJobHandler(env.svc)

	seedCompletedJob(t, env, "a.wav", "x")
	seedCompletedJob(t, env, "b.wav", "y")

	output, err := handler.List(t.Context(), &struct{}{})
	require.NoError(t, err)
	assert.Len(t, output.Body.Jobs, 2)
}

func TestJobFromModel_DownloadRefOnlyWhenCompleted(t *testing.T) {
	job := models.NewJob(models.JobKindCapture, models.OutputRequest{Format: "mp4", Quality: models.QualityHigh})
	job.SourceURL = "https://example.com/watch?v=abc"

	assert.Empty(t, JobFromModel(job).DownloadRef)

	job.MarkCompleted(job.ID.String() + ".mp4")
	assert.NotEmpty(t, JobFromModel(job).DownloadRef)
}

func TestHumaError_StatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", models.ErrJobNotFound, http.StatusNotFound},
		{"not ready", models.ErrJobNotReady, http.StatusConflict},
		{"artifact missing", models.ErrArtifactMissing, http.StatusGone},
		{"invalid source", models.ErrInvalidSource, http.StatusUnprocessableEntity},
		{"no rendition", models.ErrNoRenditionAvailable, http.StatusUnprocessableEntity},
		{"unsupported format", models.ErrUnsupportedFormat, http.StatusUnprocessableEntity},
		{"validation", models.ErrValidation{Field: "resolution", Message: "bad"}, http.StatusUnprocessableEntity},
		{"unknown", assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusOf(t, humaError(tt.err)))
			assert.Equal(t, tt.want, statusForError(tt.err))
		})
	}
}
