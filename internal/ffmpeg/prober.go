package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ProbeResult contains the complete ffprobe output.
type ProbeResult struct {
	Format  ProbeFormat   `json:"format"`
	Streams []ProbeStream `json:"streams"`
}

// ProbeFormat contains container format information.
type ProbeFormat struct {
	Filename       string            `json:"filename"`
	NumStreams     int               `json:"nb_streams"`
	FormatName     string            `json:"format_name"`
	FormatLongName string            `json:"format_long_name"`
	Duration       string            `json:"duration"`
	Size           string            `json:"size"`
	BitRate        string            `json:"bit_rate"`
	Tags           map[string]string `json:"tags"`
}

// ProbeStream contains stream information.
type ProbeStream struct {
	Index         int               `json:"index"`
	CodecName     string            `json:"codec_name"`
	CodecLongName string            `json:"codec_long_name"`
	Profile       string            `json:"profile"`
	CodecType     string            `json:"codec_type"` // video, audio, subtitle, data
	Width         int               `json:"width,omitempty"`
	Height        int               `json:"height,omitempty"`
	PixFmt        string            `json:"pix_fmt,omitempty"`
	SampleFmt     string            `json:"sample_fmt,omitempty"`
	SampleRate    string            `json:"sample_rate,omitempty"`
	Channels      int               `json:"channels,omitempty"`
	ChannelLayout string            `json:"channel_layout,omitempty"`
	RFrameRate    string            `json:"r_frame_rate,omitempty"`
	AvgFrameRate  string            `json:"avg_frame_rate,omitempty"`
	Duration      string            `json:"duration,omitempty"`
	BitRate       string            `json:"bit_rate,omitempty"`
	Disposition   ProbeDisposition  `json:"disposition,omitempty"`
	Tags          map[string]string `json:"tags,omitempty"`
}

// ProbeDisposition contains stream disposition flags.
type ProbeDisposition struct {
	Default     int `json:"default"`
	Forced      int `json:"forced"`
	AttachedPic int `json:"attached_pic"`
}

// VideoTrackInfo describes a video track in a probed source.
type VideoTrackInfo struct {
	Index     int     `json:"index"`
	Codec     string  `json:"codec"`
	Profile   string  `json:"profile,omitempty"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Framerate float64 `json:"framerate,omitempty"`
	Bitrate   int     `json:"bitrate,omitempty"`
	PixFmt    string  `json:"pix_fmt,omitempty"`
	IsDefault bool    `json:"is_default"`
}

// AudioTrackInfo describes an audio track in a probed source.
type AudioTrackInfo struct {
	Index         int    `json:"index"`
	Codec         string `json:"codec"`
	Profile       string `json:"profile,omitempty"`
	SampleRate    int    `json:"sample_rate,omitempty"`
	Channels      int    `json:"channels"`
	ChannelLayout string `json:"channel_layout,omitempty"`
	Bitrate       int    `json:"bitrate,omitempty"`
	IsDefault     bool   `json:"is_default"`
}

// SourceInfo is a simplified view of a probed media source.
type SourceInfo struct {
	Container string        `json:"container,omitempty"`
	Duration  time.Duration `json:"-"`
	// DurationMs is the duration in milliseconds, 0 when unknown.
	DurationMs  int64  `json:"duration_ms"`
	SizeBytes   int64  `json:"size_bytes,omitempty"`
	Bitrate     int    `json:"bitrate,omitempty"`
	Title       string `json:"title,omitempty"`
	StreamCount int    `json:"stream_count"`

	VideoTracks []VideoTrackInfo `json:"video_tracks,omitempty"`
	AudioTracks []AudioTrackInfo `json:"audio_tracks,omitempty"`
}

// Prober handles ffprobe operations.
type Prober struct {
	ffprobePath string
	timeout     time.Duration
}

// NewProber creates a new source prober.
func NewProber(ffprobePath string) *Prober {
	return &Prober{
		ffprobePath: ffprobePath,
		timeout:     30 * time.Second,
	}
}

// WithTimeout sets the probe timeout.
func (p *Prober) WithTimeout(timeout time.Duration) *Prober {
	p.timeout = timeout
	return p
}

// Probe inspects a file or URL and returns detailed information.
func (p *Prober) Probe(ctx context.Context, source string) (*ProbeResult, error) {
	if p.ffprobePath == "" {
		return nil, fmt.Errorf("ffprobe not available")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
	}

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		args = append(args,
			"-reconnect", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", "5",
		)
	}

	args = append(args, source)

	cmd := exec.CommandContext(ctx, p.ffprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("probe timeout after %v", p.timeout)
		}
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	var result ProbeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("parsing ffprobe output: %w", err)
	}

	return &result, nil
}

// ProbeSimple inspects a source and returns simplified information.
func (p *Prober) ProbeSimple(ctx context.Context, source string) (*SourceInfo, error) {
	result, err := p.Probe(ctx, source)
	if err != nil {
		return nil, err
	}
	return Simplify(result), nil
}

// Simplify converts a detailed probe result into SourceInfo.
func Simplify(result *ProbeResult) *SourceInfo {
	info := &SourceInfo{
		Container:   result.Format.FormatName,
		StreamCount: result.Format.NumStreams,
	}

	info.Duration = result.Duration()
	info.DurationMs = info.Duration.Milliseconds()

	if result.Format.Size != "" {
		if size, err := strconv.ParseInt(result.Format.Size, 10, 64); err == nil {
			info.SizeBytes = size
		}
	}
	if result.Format.BitRate != "" {
		if br, err := strconv.Atoi(result.Format.BitRate); err == nil {
			info.Bitrate = br
		}
	}
	if title, ok := result.Format.Tags["title"]; ok {
		info.Title = title
	}

	for _, stream := range result.Streams {
		switch stream.CodecType {
		case "video":
			// Cover art shows up as a video stream with attached_pic set
			if stream.Disposition.AttachedPic == 1 {
				continue
			}
			track := VideoTrackInfo{
				Index:     stream.Index,
				Codec:     stream.CodecName,
				Profile:   stream.Profile,
				Width:     stream.Width,
				Height:    stream.Height,
				PixFmt:    stream.PixFmt,
				Framerate: stream.Framerate(),
				IsDefault: stream.Disposition.Default == 1,
			}
			if stream.BitRate != "" {
				if br, err := strconv.Atoi(stream.BitRate); err == nil {
					track.Bitrate = br
				}
			}
			info.VideoTracks = append(info.VideoTracks, track)

		case "audio":
			track := AudioTrackInfo{
				Index:         stream.Index,
				Codec:         stream.CodecName,
				Profile:       stream.Profile,
				Channels:      stream.Channels,
				ChannelLayout: stream.ChannelLayout,
				IsDefault:     stream.Disposition.Default == 1,
			}
			if stream.SampleRate != "" {
				if sr, err := strconv.Atoi(stream.SampleRate); err == nil {
					track.SampleRate = sr
				}
			}
			if stream.BitRate != "" {
				if br, err := strconv.Atoi(stream.BitRate); err == nil {
					track.Bitrate = br
				}
			}
			info.AudioTracks = append(info.AudioTracks, track)
		}
	}

	return info
}

// parseFramerate parses a framerate string like "30000/1001" or "25/1".
func parseFramerate(fr string) float64 {
	parts := strings.Split(fr, "/")
	if len(parts) != 2 {
		if f, err := strconv.ParseFloat(fr, 64); err == nil {
			return f
		}
		return 0
	}

	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}

// Duration returns the container duration, 0 when unknown.
func (r *ProbeResult) Duration() time.Duration {
	dur := r.Format.Duration
	if dur == "" {
		// Some containers only carry per-stream durations
		for _, s := range r.Streams {
			if s.Duration != "" {
				dur = s.Duration
				break
			}
		}
	}
	if dur == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(dur, 64); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}
	return 0
}

// GetVideoStream returns the first real video stream, skipping cover art.
func (r *ProbeResult) GetVideoStream() *ProbeStream {
	for i := range r.Streams {
		if r.Streams[i].CodecType == "video" && r.Streams[i].Disposition.AttachedPic != 1 {
			return &r.Streams[i]
		}
	}
	return nil
}

// GetAudioStream returns the first audio stream from the probe result.
func (r *ProbeResult) GetAudioStream() *ProbeStream {
	for i := range r.Streams {
		if r.Streams[i].CodecType == "audio" {
			return &r.Streams[i]
		}
	}
	return nil
}

// Framerate returns the framerate for a video stream.
func (s *ProbeStream) Framerate() float64 {
	if s.AvgFrameRate != "" {
		if f := parseFramerate(s.AvgFrameRate); f > 0 {
			return f
		}
	}
	if s.RFrameRate != "" {
		return parseFramerate(s.RFrameRate)
	}
	return 0
}

// HasVideo returns true if the source has at least one real video track.
func (info *SourceInfo) HasVideo() bool {
	return len(info.VideoTracks) > 0
}

// HasAudio returns true if the source has at least one audio track.
func (info *SourceInfo) HasAudio() bool {
	return len(info.AudioTracks) > 0
}

// IsAudioOnly returns true if the source has audio but no video.
func (info *SourceInfo) IsAudioOnly() bool {
	return len(info.AudioTracks) > 0 && len(info.VideoTracks) == 0
}
