// Package capture resolves remote video references into downloadable
// renditions.
package capture

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"

	"github.com/shtefko55/toolsy/internal/models"
)

// Rendition is one downloadable representation of a remote video.
type Rendition struct {
	ID            string `json:"id"`
	MimeType      string `json:"mime_type"`
	QualityLabel  string `json:"quality_label,omitempty"`
	Width         int    `json:"width,omitempty"`
	Height        int    `json:"height,omitempty"`
	HasVideo      bool   `json:"has_video"`
	HasAudio      bool   `json:"has_audio"`
	Bitrate       int    `json:"bitrate,omitempty"`
	AudioBitrate  int    `json:"audio_bitrate,omitempty"`
	AudioChannels int    `json:"audio_channels,omitempty"`
	ContentLength int64  `json:"content_length,omitempty"`

	itag int
}

// Video is a resolved remote video with its enumerable renditions.
type Video struct {
	ID         string
	Title      string
	Author     string
	Duration   time.Duration
	Renditions []Rendition

	src *youtube.Video
}

// Resolver resolves remote URLs and opens rendition streams.
type Resolver struct {
	client youtube.Client
}

// NewResolver creates a resolver whose HTTP requests time out after
// httpTimeout. A zero timeout uses the default HTTP client.
func NewResolver(httpTimeout time.Duration) *Resolver {
	r := &Resolver{}
	if httpTimeout > 0 {
		r.client.HTTPClient = &http.Client{Timeout: httpTimeout}
	}
	return r
}

// Resolve fetches metadata for a remote video URL and enumerates its
// renditions. Unsupported or unreachable sources fail with
// ErrInvalidSource.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (*Video, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}

	src, err := r.client.GetVideoContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidSource, err)
	}

	video := &Video{
		ID:       src.ID,
		Title:    src.Title,
		Author:   src.Author,
		Duration: src.Duration,
		src:      src,
	}

	for _, f := range src.Formats {
		video.Renditions = append(video.Renditions, renditionFromFormat(f))
	}

	if len(video.Renditions) == 0 {
		return nil, fmt.Errorf("%w: no downloadable renditions", models.ErrInvalidSource)
	}

	return video, nil
}

// OpenStream opens the byte stream for a rendition of a resolved video.
// The returned size is the expected content length, 0 when unknown.
func (r *Resolver) OpenStream(ctx context.Context, video *Video, rendition Rendition) (io.ReadCloser, int64, error) {
	if video.src == nil {
		return nil, 0, fmt.Errorf("video was not resolved by this resolver")
	}

	formats := video.src.Formats.Itag(rendition.itag)
	if len(formats) == 0 {
		return nil, 0, fmt.Errorf("rendition %s no longer available", rendition.ID)
	}

	stream, size, err := r.client.GetStreamContext(ctx, video.src, &formats[0])
	if err != nil {
		return nil, 0, fmt.Errorf("opening rendition stream: %w", err)
	}
	return stream, size, nil
}

func renditionFromFormat(f youtube.Format) Rendition {
	hasVideo := strings.HasPrefix(f.MimeType, "video/")
	hasAudio := strings.HasPrefix(f.MimeType, "audio/") || f.AudioChannels > 0

	rend := Rendition{
		ID:            fmt.Sprintf("itag-%d", f.ItagNo),
		MimeType:      f.MimeType,
		QualityLabel:  f.QualityLabel,
		Width:         f.Width,
		Height:        f.Height,
		HasVideo:      hasVideo,
		HasAudio:      hasAudio,
		Bitrate:       f.Bitrate,
		AudioChannels: f.AudioChannels,
		ContentLength: f.ContentLength,
		itag:          f.ItagNo,
	}
	if hasAudio {
		rend.AudioBitrate = f.Bitrate
	}
	return rend
}

func validateURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return models.ErrURLRequired
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", models.ErrInvalidURL, rawURL)
	}
	return nil
}
