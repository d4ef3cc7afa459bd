package handlers

import (
	"context"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/shtefko55/toolsy/internal/ffmpeg"
	"github.com/shtefko55/toolsy/internal/models"
)

// CapabilitiesHandler reports the supported output formats
// cross-checked against the detected ffmpeg build.
type CapabilitiesHandler struct {
	detector *ffmpeg.BinaryDetector
	logger   *slog.Logger
}

// NewCapabilitiesHandler creates a new capabilities handler.
func NewCapabilitiesHandler(detector *ffmpeg.BinaryDetector, logger *slog.Logger) *CapabilitiesHandler {
	return &CapabilitiesHandler{
		detector: detector,
		logger:   logger,
	}
}

// FormatCapability describes one output format the API accepts and
// whether the local ffmpeg build can actually produce it.
type FormatCapability struct {
	Name      string   `json:"name"`
	Kind      string   `json:"kind" doc:"audio or video"`
	Extension string   `json:"extension"`
	MimeType  string   `json:"mime_type"`
	Qualities []string `json:"qualities"`
	Available bool     `json:"available" doc:"False when the ffmpeg build lacks a required encoder or muxer"`
}

// CapabilitiesBody is the capabilities response body.
type CapabilitiesBody struct {
	FFmpegVersion string             `json:"ffmpeg_version,omitempty"`
	FFmpegPath    string             `json:"ffmpeg_path,omitempty"`
	Formats       []FormatCapability `json:"formats"`
}

// CapabilitiesOutput is the capabilities response.
type CapabilitiesOutput struct {
	Body CapabilitiesBody
}

// qualityOrder fixes the enumeration order of quality tiers.
var qualityOrder = []models.Quality{models.QualityLow, models.QualityMedium, models.QualityHigh, models.QualityLossless}

// Register registers the capabilities route with the API.
func (h *CapabilitiesHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getCapabilities",
		Method:      "GET",
		Path:        "/api/v1/capabilities",
		Summary:     "List capabilities",
		Description: "Returns the supported output formats and quality tiers, checked against the local ffmpeg build",
		Tags:        []string{"System"},
	}, h.GetCapabilities)
}

// GetCapabilities returns the capability table. When ffmpeg detection
// fails the formats are still listed, all marked unavailable.
func (h *CapabilitiesHandler) GetCapabilities(ctx context.Context, input *struct{}) (*CapabilitiesOutput, error) {
	var info *ffmpeg.BinaryInfo
	if h.detector != nil {
		detected, err := h.detector.Detect(ctx)
		if err != nil {
			h.logger.Warn("ffmpeg detection failed", "error", err)
		} else {
			info = detected
		}
	}

	output := &CapabilitiesOutput{}
	if info != nil {
		output.Body.FFmpegVersion = info.Version
		output.Body.FFmpegPath = info.FFmpegPath
	}

	specs := models.SupportedFormats()
	output.Body.Formats = make([]FormatCapability, 0, len(specs))
	for _, spec := range specs {
		output.Body.Formats = append(output.Body.Formats, FormatCapability{
			Name:      spec.Name,
			Kind:      string(spec.Kind),
			Extension: spec.Extension,
			MimeType:  spec.MimeType,
			Qualities: qualities(spec),
			Available: formatAvailable(info, spec),
		})
	}

	return output, nil
}

func qualities(spec models.FormatSpec) []string {
	names := make([]string, 0, len(spec.Tiers))
	for _, q := range qualityOrder {
		if _, ok := spec.Tiers[q]; ok {
			names = append(names, string(q))
		}
	}
	return names
}

// formatAvailable reports whether the detected ffmpeg build carries
// every encoder and the muxer the format needs.
func formatAvailable(info *ffmpeg.BinaryInfo, spec models.FormatSpec) bool {
	if info == nil {
		return false
	}
	for _, encoder := range spec.Encoders() {
		if !info.HasEncoder(encoder) {
			return false
		}
	}
	return info.HasMuxer(spec.FFmpegMuxer())
}
