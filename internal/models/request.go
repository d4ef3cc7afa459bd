package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// OutputRequest is the user's declared target for a job: the output
// format and quality tier, optional encoder overrides, and for capture
// jobs the rendition resolution policy.
type OutputRequest struct {
	// Format is a supported output format name ("mp3", "mp4", ...).
	Format string `json:"format"`

	// Quality is the encoding quality tier. Defaults to high.
	Quality Quality `json:"quality,omitempty"`

	// SampleRate overrides the output audio sample rate in Hz (0 = source).
	SampleRate int `json:"sample_rate,omitempty"`

	// AudioBitrate overrides the tier's audio bitrate ("192k"). Empty uses
	// the tier value.
	AudioBitrate string `json:"audio_bitrate,omitempty"`

	// Channels overrides the output channel count (0 = source).
	Channels int `json:"channels,omitempty"`

	// Resolution is the capture rendition policy: "highest" or a target
	// vertical resolution like "720p". Ignored for transforms.
	Resolution string `json:"resolution,omitempty"`

	// AudioOnly requests an audio-only capture.
	AudioOnly bool `json:"audio_only,omitempty"`
}

// resolutionPattern matches target resolutions like "720p" or "1080".
var resolutionPattern = regexp.MustCompile(`^([0-9]{3,4})p?$`)

// Normalize fills tier defaults in place.
func (r *OutputRequest) Normalize() {
	r.Format = strings.ToLower(strings.TrimSpace(r.Format))
	if r.Quality == "" {
		r.Quality = QualityHigh
	}
	if r.Resolution == "" {
		r.Resolution = "highest"
	}
}

// Validate checks the request against the capability table. The format
// must be in the supported set and the quality a known tier.
func (r *OutputRequest) Validate() error {
	if r.Format == "" {
		return ErrFormatRequired
	}
	if _, ok := LookupFormat(r.Format); !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, r.Format)
	}
	if !ValidQuality(r.Quality) {
		return ErrInvalidQuality
	}
	if r.Resolution != "" && r.Resolution != "highest" && !resolutionPattern.MatchString(r.Resolution) {
		return ErrValidation{Field: "resolution", Message: "must be \"highest\" or a vertical resolution like \"720p\""}
	}
	return nil
}

// TargetHeight returns the requested vertical resolution, or 0 when the
// request asks for the highest available rendition.
func (r *OutputRequest) TargetHeight() int {
	if r.Resolution == "" || r.Resolution == "highest" {
		return 0
	}
	m := resolutionPattern.FindStringSubmatch(r.Resolution)
	if m == nil {
		return 0
	}
	h, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return h
}

// FormatSpec resolves the capability table entry for this request.
func (r *OutputRequest) FormatSpec() (FormatSpec, error) {
	spec, ok := LookupFormat(r.Format)
	if !ok {
		return FormatSpec{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, r.Format)
	}
	return spec, nil
}

// Tier resolves the encoder parameters for this request's quality tier,
// applying any explicit overrides.
func (r *OutputRequest) Tier() (TierParams, error) {
	spec, err := r.FormatSpec()
	if err != nil {
		return TierParams{}, err
	}
	tier := spec.Tiers[r.Quality]
	if r.AudioBitrate != "" {
		tier.AudioBitrate = r.AudioBitrate
	}
	return tier, nil
}
