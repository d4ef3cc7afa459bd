package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shtefko55/toolsy/internal/models"
)

// errorBody mirrors the RFC 7807 shape Huma uses so raw routes and
// Huma routes fail the same way.
type errorBody struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps service errors onto the HTTP status taxonomy used
// across the API.
func writeError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	detail := err.Error()
	if status == http.StatusInternalServerError {
		detail = "internal error"
	}
	writeJSON(w, status, errorBody{
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	})
}

func statusForError(err error) int {
	var validation models.ErrValidation
	switch {
	case errors.Is(err, models.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrJobNotReady):
		return http.StatusConflict
	case errors.Is(err, models.ErrArtifactMissing):
		return http.StatusGone
	case errors.Is(err, models.ErrInvalidSource),
		errors.Is(err, models.ErrNoRenditionAvailable),
		errors.Is(err, models.ErrUnsupportedFormat),
		errors.Is(err, models.ErrInvalidQuality),
		errors.Is(err, models.ErrFormatRequired),
		errors.Is(err, models.ErrURLRequired),
		errors.Is(err, models.ErrInvalidURL),
		errors.As(err, &validation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
