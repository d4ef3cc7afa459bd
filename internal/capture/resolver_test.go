package capture

import (
	"testing"
	"time"

	"github.com/kkdai/youtube/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shtefko55/toolsy/internal/models"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr error
	}{
		{"valid https", "https://www.youtube.com/watch?v=abc123", nil},
		{"valid http", "http://youtu.be/abc123", nil},
		{"empty", "", models.ErrURLRequired},
		{"whitespace", "   ", models.ErrURLRequired},
		{"no scheme", "youtube.com/watch?v=abc", models.ErrInvalidURL},
		{"wrong scheme", "ftp://example.com/video", models.ErrInvalidURL},
		{"scheme only", "https://", models.ErrInvalidURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateURL(tt.url)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestRenditionFromFormat(t *testing.T) {
	t.Run("progressive video with audio", func(t *testing.T) {
		f := youtube.Format{
			ItagNo:        22,
			MimeType:      `video/mp4; codecs="avc1.64001F, mp4a.40.2"`,
			QualityLabel:  "720p",
			Width:         1280,
			Height:        720,
			Bitrate:       1500000,
			AudioChannels: 2,
			ContentLength: 52428800,
		}

		rend := renditionFromFormat(f)
		assert.Equal(t, "itag-22", rend.ID)
		assert.True(t, rend.HasVideo)
		assert.True(t, rend.HasAudio)
		assert.Equal(t, 720, rend.Height)
		assert.Equal(t, 1500000, rend.AudioBitrate)
		assert.Equal(t, int64(52428800), rend.ContentLength)
	})

	t.Run("adaptive video only", func(t *testing.T) {
		f := youtube.Format{
			ItagNo:       137,
			MimeType:     `video/mp4; codecs="avc1.640028"`,
			QualityLabel: "1080p",
			Height:       1080,
			Bitrate:      4500000,
		}

		rend := renditionFromFormat(f)
		assert.True(t, rend.HasVideo)
		assert.False(t, rend.HasAudio)
		assert.Zero(t, rend.AudioBitrate)
	})

	t.Run("audio only", func(t *testing.T) {
		f := youtube.Format{
			ItagNo:        140,
			MimeType:      `audio/mp4; codecs="mp4a.40.2"`,
			Bitrate:       128000,
			AudioChannels: 2,
		}

		rend := renditionFromFormat(f)
		assert.False(t, rend.HasVideo)
		assert.True(t, rend.HasAudio)
		assert.Equal(t, 128000, rend.AudioBitrate)
	})
}

func TestResolver_OpenStream_RequiresResolvedVideo(t *testing.T) {
	r := NewResolver(30 * time.Second)
	video := &Video{ID: "abc", Title: "detached"}

	_, _, err := r.OpenStream(t.Context(), video, Rendition{ID: "itag-22"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not resolved")
}
