package models

// Quality is a named output quality tier.
type Quality string

const (
	// QualityLow is the smallest-artifact tier.
	QualityLow Quality = "low"
	// QualityMedium is the balanced tier.
	QualityMedium Quality = "medium"
	// QualityHigh is the default tier.
	QualityHigh Quality = "high"
	// QualityLossless requests lossless encoding where the container
	// supports it, or the highest lossy tier where it does not.
	QualityLossless Quality = "lossless"
)

// ValidQuality reports whether q is a known quality tier.
func ValidQuality(q Quality) bool {
	switch q {
	case QualityLow, QualityMedium, QualityHigh, QualityLossless:
		return true
	}
	return false
}

// FormatKind distinguishes audio-only from audio+video containers.
type FormatKind string

const (
	// FormatKindAudio is an audio-only output container.
	FormatKindAudio FormatKind = "audio"
	// FormatKindVideo is an audio+video output container.
	FormatKindVideo FormatKind = "video"
)

// TierParams holds the encoder parameters for one quality tier of a format.
type TierParams struct {
	// AudioBitrate is the target audio bitrate ("96k", "256k"). Empty for
	// lossless audio codecs.
	AudioBitrate string `json:"audio_bitrate,omitempty"`
	// CRF is the constant rate factor for video encoders. Zero means
	// encoder default.
	CRF int `json:"crf,omitempty"`
}

// FormatSpec describes one supported output format: its container,
// codecs and per-tier encoder parameters.
type FormatSpec struct {
	Name       string                 `json:"name"`
	Kind       FormatKind             `json:"kind"`
	Extension  string                 `json:"extension"`
	MimeType   string                 `json:"mime_type"`
	AudioCodec string                 `json:"audio_codec"`
	VideoCodec string                 `json:"video_codec,omitempty"`
	// Muxer is the ffmpeg output format name when it differs from Name.
	Muxer string                 `json:"-"`
	Tiers map[Quality]TierParams `json:"tiers"`
}

// Encoders returns the ffmpeg encoder names this format depends on.
func (f FormatSpec) Encoders() []string {
	encoders := []string{f.AudioCodec}
	if f.VideoCodec != "" {
		encoders = append(encoders, f.VideoCodec)
	}
	return encoders
}

// FFmpegMuxer returns the ffmpeg -f muxer name for this format.
func (f FormatSpec) FFmpegMuxer() string {
	if f.Muxer != "" {
		return f.Muxer
	}
	return f.Name
}

// formatOrder fixes the enumeration order of the capability table.
var formatOrder = []string{"mp3", "m4a", "ogg", "opus", "flac", "wav", "mp4", "webm", "mkv"}

// supportedFormats is the fixed capability table for transform outputs.
var supportedFormats = map[string]FormatSpec{
	"mp3": {
		Name: "mp3", Kind: FormatKindAudio, Extension: ".mp3",
		MimeType: "audio/mpeg", AudioCodec: "libmp3lame",
		Tiers: map[Quality]TierParams{
			QualityLow:      {AudioBitrate: "96k"},
			QualityMedium:   {AudioBitrate: "160k"},
			QualityHigh:     {AudioBitrate: "256k"},
			QualityLossless: {AudioBitrate: "320k"}, // mp3 is lossy, cap at 320k
		},
	},
	"m4a": {
		Name: "m4a", Kind: FormatKindAudio, Extension: ".m4a",
		MimeType: "audio/mp4", AudioCodec: "aac", Muxer: "ipod",
		Tiers: map[Quality]TierParams{
			QualityLow:      {AudioBitrate: "96k"},
			QualityMedium:   {AudioBitrate: "160k"},
			QualityHigh:     {AudioBitrate: "256k"},
			QualityLossless: {AudioBitrate: "320k"},
		},
	},
	"ogg": {
		Name: "ogg", Kind: FormatKindAudio, Extension: ".ogg",
		MimeType: "audio/ogg", AudioCodec: "libvorbis",
		Tiers: map[Quality]TierParams{
			QualityLow:      {AudioBitrate: "96k"},
			QualityMedium:   {AudioBitrate: "160k"},
			QualityHigh:     {AudioBitrate: "256k"},
			QualityLossless: {AudioBitrate: "320k"},
		},
	},
	"opus": {
		Name: "opus", Kind: FormatKindAudio, Extension: ".opus",
		MimeType: "audio/opus", AudioCodec: "libopus",
		Tiers: map[Quality]TierParams{
			QualityLow:      {AudioBitrate: "64k"},
			QualityMedium:   {AudioBitrate: "128k"},
			QualityHigh:     {AudioBitrate: "192k"},
			QualityLossless: {AudioBitrate: "256k"},
		},
	},
	"flac": {
		Name: "flac", Kind: FormatKindAudio, Extension: ".flac",
		MimeType: "audio/flac", AudioCodec: "flac",
		Tiers: map[Quality]TierParams{
			QualityLow:      {},
			QualityMedium:   {},
			QualityHigh:     {},
			QualityLossless: {},
		},
	},
	"wav": {
		Name: "wav", Kind: FormatKindAudio, Extension: ".wav",
		MimeType: "audio/wav", AudioCodec: "pcm_s16le",
		Tiers: map[Quality]TierParams{
			QualityLow:      {},
			QualityMedium:   {},
			QualityHigh:     {},
			QualityLossless: {},
		},
	},
	"mp4": {
		Name: "mp4", Kind: FormatKindVideo, Extension: ".mp4",
		MimeType: "video/mp4", AudioCodec: "aac", VideoCodec: "libx264",
		Tiers: map[Quality]TierParams{
			QualityLow:      {AudioBitrate: "96k", CRF: 32},
			QualityMedium:   {AudioBitrate: "128k", CRF: 26},
			QualityHigh:     {AudioBitrate: "192k", CRF: 20},
			QualityLossless: {AudioBitrate: "256k", CRF: 16},
		},
	},
	"webm": {
		Name: "webm", Kind: FormatKindVideo, Extension: ".webm",
		MimeType: "video/webm", AudioCodec: "libopus", VideoCodec: "libvpx-vp9",
		Tiers: map[Quality]TierParams{
			QualityLow:      {AudioBitrate: "96k", CRF: 40},
			QualityMedium:   {AudioBitrate: "128k", CRF: 33},
			QualityHigh:     {AudioBitrate: "192k", CRF: 27},
			QualityLossless: {AudioBitrate: "256k", CRF: 22},
		},
	},
	"mkv": {
		Name: "mkv", Kind: FormatKindVideo, Extension: ".mkv",
		MimeType: "video/x-matroska", AudioCodec: "aac", VideoCodec: "libx264",
		Muxer: "matroska",
		Tiers: map[Quality]TierParams{
			QualityLow:      {AudioBitrate: "96k", CRF: 32},
			QualityMedium:   {AudioBitrate: "128k", CRF: 26},
			QualityHigh:     {AudioBitrate: "192k", CRF: 20},
			QualityLossless: {AudioBitrate: "256k", CRF: 16},
		},
	},
}

// LookupFormat returns the spec for a supported output format name.
func LookupFormat(name string) (FormatSpec, bool) {
	spec, ok := supportedFormats[name]
	return spec, ok
}

// SupportedFormats returns the capability table in a fixed order.
func SupportedFormats() []FormatSpec {
	specs := make([]FormatSpec, 0, len(formatOrder))
	for _, name := range formatOrder {
		specs = append(specs, supportedFormats[name])
	}
	return specs
}
