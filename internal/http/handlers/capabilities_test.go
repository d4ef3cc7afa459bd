package handlers

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shtefko55/toolsy/internal/ffmpeg"
	"github.com/shtefko55/toolsy/internal/models"
)

func TestCapabilities_ListsFormatsWithoutFFmpeg(t *testing.T) {
	handler := NewCapabilitiesHandler(nil, slog.New(slog.DiscardHandler))

	output, err := handler.GetCapabilities(t.Context(), &struct{}{})
	require.NoError(t, err)

	require.Len(t, output.Body.Formats, len(models.SupportedFormats()))
	for _, f := range output.Body.Formats {
		assert.False(t, f.Available, "format %s cannot be available without ffmpeg", f.Name)
		assert.NotEmpty(t, f.Qualities)
	}
	assert.Empty(t, output.Body.FFmpegVersion)
}

func TestCapabilities_QualitiesInTierOrder(t *testing.T) {
	spec, ok := models.LookupFormat("mp3")
	require.True(t, ok)

	assert.Equal(t, []string{"low", "medium", "high", "lossless"}, qualities(spec))
}

func TestFormatAvailable(t *testing.T) {
	mp3, ok := models.LookupFormat("mp3")
	require.True(t, ok)
	webm, ok := models.LookupFormat("webm")
	require.True(t, ok)

	info := &ffmpeg.BinaryInfo{
		Encoders: []string{"libmp3lame", "libopus"},
		Formats: []ffmpeg.FormatInfo{
			{Name: "mp3", CanMux: true},
		},
	}

	assert.True(t, formatAvailable(info, mp3))
	assert.False(t, formatAvailable(info, webm), "missing libvpx-vp9 encoder and webm muxer")
	assert.False(t, formatAvailable(nil, mp3))
}
