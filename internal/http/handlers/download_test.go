package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shtefko55/toolsy/internal/models"
)

func newDownloadRouter(env *testEnv) *chi.Mux {
	router := chi.NewRouter()
	NewDownloadHandler(env.svc, slog.New(slog.DiscardHandler)).RegisterRaw(router)
	return router
}

func TestDownload_StreamsArtifactAndEvicts(t *testing.T) {
	env := newTestEnv(t)
	router := newDownloadRouter(env)

	job := seedCompletedJob(t, env, "My Song.wav", "encoded bytes")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/jobs/"+job.ID.String()+"/download", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/mpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "13", rec.Header().Get("Content-Length"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="My Song.mp3"`)
	assert.Equal(t, "encoded bytes", rec.Body.String())

	// A full transfer schedules eviction after the grace period.
	require.Eventually(t, func() bool {
		_, err := env.svc.GetJob(job.ID.String())
		return errors.Is(err, models.ErrJobNotFound)
	}, 2*time.Second, 5*time.Millisecond)

	exists, err := env.dirs.Outputs.Exists(job.ID.String() + ".mp3")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDownload_ErrorTaxonomy(t *testing.T) {
	env := newTestEnv(t)
	router := newDownloadRouter(env)

	queued := models.NewJob(models.JobKindTransform, models.OutputRequest{Format: "mp3", Quality: models.QualityHigh})
	queued.SourcePath = queued.ID.String() + ".wav"
	require.NoError(t, env.store.Create(queued))

	missing := seedCompletedJob(t, env, "gone.wav", "x")
	require.NoError(t, env.dirs.Outputs.Remove(missing.ID.String()+".mp3"))

	tests := []struct {
		name string
		id   string
		want int
	}{
		{"unknown job", "nope", http.StatusNotFound},
		{"not yet completed", queued.ID.String(), http.StatusConflict},
		{"artifact swept", missing.ID.String(), http.StatusGone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/jobs/"+tt.id+"/download", nil))
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}
