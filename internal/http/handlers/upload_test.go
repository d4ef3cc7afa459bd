package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shtefko55/toolsy/internal/models"
	"github.com/shtefko55/toolsy/internal/pipeline"
)

func newUploadRouter(env *testEnv, maxUpload int64) *chi.Mux {
	router := chi.NewRouter()
	NewUploadHandler(env.svc, maxUpload, slog.New(slog.DiscardHandler)).RegisterRaw(router)
	return router
}

// multipartBody builds a multipart request body with a file part and
// extra form fields.
func multipartBody(t *testing.T, filename, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestSubmitTransform_Accepted(t *testing.T) {
	env := newTestEnv(t)
	env.adapter.run = func(ctx context.Context, job *models.Job, cb pipeline.Callbacks) {}
	router := newUploadRouter(env, 0)

	body, contentType := multipartBody(t, "My Song.wav", "raw audio", map[string]string{
		"format":  "mp3",
		"quality": "high",
	})
	req := httptest.NewRequest("POST", "/api/v1/transforms", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp JobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "transform", resp.Kind)
	assert.Equal(t, "queued", resp.Status)
	assert.Equal(t, "mp3", resp.Format)
	assert.Equal(t, "My Song.wav", resp.Label)

	// The job is now in the registry.
	_, err := env.svc.GetJob(resp.ID)
	assert.NoError(t, err)
}

func TestSubmitTransform_UnsupportedFormat(t *testing.T) {
	env := newTestEnv(t)
	router := newUploadRouter(env, 0)

	body, contentType := multipartBody(t, "song.wav", "raw", map[string]string{"format": "xyz"})
	req := httptest.NewRequest("POST", "/api/v1/transforms", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSubmitTransform_MissingFilePart(t *testing.T) {
	env := newTestEnv(t)
	router := newUploadRouter(env, 0)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("format", "mp3"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/v1/transforms", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitTransform_TooLarge(t *testing.T) {
	env := newTestEnv(t)
	router := newUploadRouter(env, 64)

	body, contentType := multipartBody(t, "big.wav", string(bytes.Repeat([]byte("a"), 1024)), map[string]string{
		"format": "mp3",
	})
	req := httptest.NewRequest("POST", "/api/v1/transforms", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestProbe_UnreadableSource(t *testing.T) {
	// The prober has no ffprobe binary configured, so any probe fails
	// as an invalid source.
	env := newTestEnv(t)
	router := newUploadRouter(env, 0)

	body, contentType := multipartBody(t, "noise.bin", "not media", nil)
	req := httptest.NewRequest("POST", "/api/v1/probe", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
