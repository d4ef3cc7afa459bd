package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// BinaryInfo contains information about the ffmpeg/ffprobe installation.
type BinaryInfo struct {
	FFmpegPath    string       `json:"ffmpeg_path"`
	FFprobePath   string       `json:"ffprobe_path"`
	Version       string       `json:"version"`
	MajorVersion  int          `json:"major_version"`
	MinorVersion  int          `json:"minor_version"`
	Configuration string       `json:"configuration,omitempty"`
	Encoders      []string     `json:"encoders,omitempty"`
	Formats       []FormatInfo `json:"formats,omitempty"`
}

// FormatInfo represents container information from ffmpeg.
type FormatInfo struct {
	Name     string `json:"name"`
	LongName string `json:"long_name,omitempty"`
	CanMux   bool   `json:"can_mux"`
	CanDemux bool   `json:"can_demux"`
}

// BinaryDetector handles detection and caching of ffmpeg binaries.
type BinaryDetector struct {
	ffmpegPath  string
	ffprobePath string

	mu           sync.RWMutex
	info         *BinaryInfo
	lastDetected time.Time
	cacheTTL     time.Duration
}

// NewBinaryDetector creates a new binary detector. Either path may be
// empty, in which case the binary is located via environment variables
// and PATH.
func NewBinaryDetector(ffmpegPath, ffprobePath string) *BinaryDetector {
	return &BinaryDetector{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		cacheTTL:    5 * time.Minute,
	}
}

// WithCacheTTL sets the cache TTL for binary detection.
func (d *BinaryDetector) WithCacheTTL(ttl time.Duration) *BinaryDetector {
	d.cacheTTL = ttl
	return d
}

// Detect detects ffmpeg and ffprobe binaries and their capabilities.
func (d *BinaryDetector) Detect(ctx context.Context) (*BinaryInfo, error) {
	d.mu.RLock()
	if d.info != nil && time.Since(d.lastDetected) < d.cacheTTL {
		info := d.info
		d.mu.RUnlock()
		return info, nil
	}
	d.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()

	// Double-check after acquiring write lock
	if d.info != nil && time.Since(d.lastDetected) < d.cacheTTL {
		return d.info, nil
	}

	info, err := d.detect(ctx)
	if err != nil {
		return nil, err
	}

	d.info = info
	d.lastDetected = time.Now()
	return info, nil
}

// Clear clears the cached binary information.
func (d *BinaryDetector) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.info = nil
}

// detect performs the actual binary detection.
func (d *BinaryDetector) detect(ctx context.Context) (*BinaryInfo, error) {
	info := &BinaryInfo{}

	// ffmpeg is required. Search order: configured path ->
	// TOOLSY_FFMPEG_BINARY env var -> ./ffmpeg -> PATH
	ffmpegPath := d.ffmpegPath
	if ffmpegPath == "" {
		var err error
		ffmpegPath, err = findBinary("ffmpeg", "TOOLSY_FFMPEG_BINARY")
		if err != nil {
			return nil, fmt.Errorf("ffmpeg not found: %w", err)
		}
	}
	info.FFmpegPath = ffmpegPath

	// ffprobe is needed for source inspection; probing a source fails
	// without it but capability reporting still works.
	ffprobePath := d.ffprobePath
	if ffprobePath == "" {
		if found, err := findBinary("ffprobe", "TOOLSY_FFPROBE_BINARY"); err == nil {
			ffprobePath = found
		}
	}
	info.FFprobePath = ffprobePath

	version, err := d.getVersion(ctx, ffmpegPath)
	if err != nil {
		return nil, fmt.Errorf("getting ffmpeg version: %w", err)
	}
	info.Version = version.Full
	info.MajorVersion = version.Major
	info.MinorVersion = version.Minor
	info.Configuration = version.Configuration

	if encoders, err := d.getEncoders(ctx, ffmpegPath); err == nil {
		info.Encoders = encoders
	}

	if formats, err := d.getFormats(ctx, ffmpegPath); err == nil {
		info.Formats = formats
	}

	return info, nil
}

// findBinary locates an executable. The env var wins, then a copy next
// to the working directory, then PATH.
func findBinary(name, envVar string) (string, error) {
	if envPath := os.Getenv(envVar); envPath != "" && isExecutable(envPath) {
		return envPath, nil
	}

	if local := "./" + name; isExecutable(local) {
		return local, nil
	}

	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("binary %s not found", name)
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0111 != 0
}

// versionInfo holds parsed version information.
type versionInfo struct {
	Full          string
	Major         int
	Minor         int
	Configuration string
}

var ffmpegVersionRe = regexp.MustCompile(`^n?(\d+)\.(\d+)`)

// getVersion extracts version information from ffmpeg.
func (d *BinaryDetector) getVersion(ctx context.Context, ffmpegPath string) (*versionInfo, error) {
	cmd := exec.CommandContext(ctx, ffmpegPath, "-version")
	output, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	info := &versionInfo{}
	for _, line := range strings.Split(string(output), "\n") {
		switch {
		case strings.HasPrefix(line, "ffmpeg version"):
			// "ffmpeg version 6.0 Copyright..." or "ffmpeg version n6.0-2-g..."
			parts := strings.Fields(line)
			if len(parts) >= 3 {
				info.Full = parts[2]
				if matches := ffmpegVersionRe.FindStringSubmatch(parts[2]); len(matches) >= 3 {
					info.Major, _ = strconv.Atoi(matches[1])
					info.Minor, _ = strconv.Atoi(matches[2])
				}
			}
		case strings.HasPrefix(line, "configuration:"):
			info.Configuration = strings.TrimSpace(strings.TrimPrefix(line, "configuration:"))
		}
	}

	if info.Full == "" {
		return nil, fmt.Errorf("failed to parse ffmpeg version")
	}
	return info, nil
}

// getEncoders retrieves available encoders.
func (d *BinaryDetector) getEncoders(ctx context.Context, ffmpegPath string) ([]string, error) {
	cmd := exec.CommandContext(ctx, ffmpegPath, "-encoders", "-hide_banner")
	output, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	var encoders []string
	inList := false

	for _, line := range strings.Split(string(output), "\n") {
		if strings.Contains(line, "------") {
			inList = true
			continue
		}
		if !inList {
			continue
		}

		// Format: "V....D encoder_name description"
		line = strings.TrimLeft(line, " ")
		if len(line) < 8 {
			continue
		}
		if line[0] != 'V' && line[0] != 'A' && line[0] != 'S' {
			continue
		}

		parts := strings.Fields(strings.TrimSpace(line[6:]))
		if len(parts) >= 1 && parts[0] != "" {
			encoders = append(encoders, parts[0])
		}
	}

	return encoders, nil
}

// getFormats retrieves available container formats.
func (d *BinaryDetector) getFormats(ctx context.Context, ffmpegPath string) ([]FormatInfo, error) {
	cmd := exec.CommandContext(ctx, ffmpegPath, "-formats", "-hide_banner")
	output, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	var formats []FormatInfo
	inList := false

	for _, line := range strings.Split(string(output), "\n") {
		if strings.Contains(line, "--") {
			inList = true
			continue
		}
		if !inList || len(line) < 4 {
			continue
		}

		flags := strings.TrimSpace(line[:3])
		parts := strings.SplitN(strings.TrimSpace(line[3:]), " ", 2)
		if len(parts) < 1 {
			continue
		}

		format := FormatInfo{
			Name:     parts[0],
			CanDemux: strings.Contains(flags, "D"),
			CanMux:   strings.Contains(flags, "E"),
		}
		if len(parts) > 1 {
			format.LongName = strings.TrimSpace(parts[1])
		}
		if format.Name != "" {
			formats = append(formats, format)
		}
	}

	return formats, nil
}

// HasEncoder returns true if the encoder is available.
func (info *BinaryInfo) HasEncoder(name string) bool {
	return slices.Contains(info.Encoders, name)
}

// HasMuxer returns true if the container is available for muxing.
// Muxer names may be comma-separated lists like "matroska,webm".
func (info *BinaryInfo) HasMuxer(name string) bool {
	for _, f := range info.Formats {
		if !f.CanMux {
			continue
		}
		for _, n := range strings.Split(f.Name, ",") {
			if n == name {
				return true
			}
		}
	}
	return false
}

// JSON returns the binary info as a JSON string.
func (info *BinaryInfo) JSON() string {
	data, _ := json.MarshalIndent(info, "", "  ")
	return string(data)
}
