// Package ffmpeg wraps the ffmpeg and ffprobe binaries: command
// construction, progress parsing, source probing and capability
// detection.
package ffmpeg

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Command represents one ffmpeg invocation.
type Command struct {
	Binary    string
	Args      []string
	Input     string
	Output    string
	LogLevel  string
	Overwrite bool

	cmd     *exec.Cmd
	started time.Time
	mu      sync.RWMutex

	// Recent stderr lines kept for error reporting
	stderrLines []string
	stderrMu    sync.RWMutex
}

// Progress represents ffmpeg progress information parsed from stderr.
type Progress struct {
	Frame     int64         `json:"frame"`
	FPS       float64       `json:"fps"`
	Bitrate   string        `json:"bitrate"`
	TotalSize int64         `json:"total_size"`
	Time      time.Duration `json:"time"`
	Speed     float64       `json:"speed"`
}

// CommandBuilder builds ffmpeg commands with a fluent API.
type CommandBuilder struct {
	binary     string
	globalArgs []string
	inputArgs  []string
	input      string
	filterArgs []string
	outputArgs []string
	output     string
	logLevel   string
	overwrite  bool
}

// NewCommandBuilder creates a new ffmpeg command builder.
func NewCommandBuilder(ffmpegPath string) *CommandBuilder {
	return &CommandBuilder{
		binary:   ffmpegPath,
		logLevel: "error",
	}
}

// LogLevel sets the ffmpeg log level.
func (b *CommandBuilder) LogLevel(level string) *CommandBuilder {
	b.logLevel = level
	return b
}

// HideBanner hides the ffmpeg banner.
func (b *CommandBuilder) HideBanner() *CommandBuilder {
	b.globalArgs = append(b.globalArgs, "-hide_banner")
	return b
}

// Overwrite enables output file overwriting.
func (b *CommandBuilder) Overwrite() *CommandBuilder {
	b.overwrite = true
	return b
}

// Stats enables progress stats output even at quiet log levels.
func (b *CommandBuilder) Stats() *CommandBuilder {
	b.globalArgs = append(b.globalArgs, "-stats")
	return b
}

// Input sets the input source.
func (b *CommandBuilder) Input(input string) *CommandBuilder {
	b.input = input
	return b
}

// InputArgs adds arbitrary input arguments.
func (b *CommandBuilder) InputArgs(args ...string) *CommandBuilder {
	b.inputArgs = append(b.inputArgs, args...)
	return b
}

// AudioCodec sets the audio codec.
func (b *CommandBuilder) AudioCodec(codec string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-c:a", codec)
	return b
}

// VideoCodec sets the video codec.
func (b *CommandBuilder) VideoCodec(codec string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-c:v", codec)
	return b
}

// AudioBitrate sets the audio bitrate.
func (b *CommandBuilder) AudioBitrate(bitrate string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-b:a", bitrate)
	return b
}

// CRF sets the constant rate factor for video encoders.
func (b *CommandBuilder) CRF(crf int) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-crf", strconv.Itoa(crf))
	return b
}

// VideoPreset sets the encoding preset.
func (b *CommandBuilder) VideoPreset(preset string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-preset", preset)
	return b
}

// VideoFilter adds a video filter.
func (b *CommandBuilder) VideoFilter(filter string) *CommandBuilder {
	b.filterArgs = append(b.filterArgs, filter)
	return b
}

// AudioChannels sets the number of audio channels.
func (b *CommandBuilder) AudioChannels(channels int) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-ac", strconv.Itoa(channels))
	return b
}

// SampleRate sets the output audio sample rate in Hz.
func (b *CommandBuilder) SampleRate(rate int) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-ar", strconv.Itoa(rate))
	return b
}

// NoVideo drops all video streams from the output.
func (b *CommandBuilder) NoVideo() *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-vn")
	return b
}

// Format sets the output muxer explicitly.
func (b *CommandBuilder) Format(muxer string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-f", muxer)
	return b
}

// OutputArgs adds arbitrary output arguments.
func (b *CommandBuilder) OutputArgs(args ...string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, args...)
	return b
}

// Output sets the output destination.
func (b *CommandBuilder) Output(output string) *CommandBuilder {
	b.output = output
	return b
}

// Build builds the command.
func (b *CommandBuilder) Build() *Command {
	var args []string

	// Global args (loglevel, banner, etc.)
	args = append(args, "-loglevel", b.logLevel)
	args = append(args, b.globalArgs...)

	if b.overwrite {
		args = append(args, "-y")
	}

	// Input args
	args = append(args, b.inputArgs...)
	args = append(args, "-i", b.input)

	if len(b.filterArgs) > 0 {
		args = append(args, "-vf", strings.Join(b.filterArgs, ","))
	}

	// Output args
	args = append(args, b.outputArgs...)
	args = append(args, b.output)

	return &Command{
		Binary:      b.binary,
		Args:        args,
		Input:       b.input,
		Output:      b.output,
		LogLevel:    b.logLevel,
		Overwrite:   b.overwrite,
		stderrLines: make([]string, 0, 100),
	}
}

// String returns the command as a string.
func (c *Command) String() string {
	return c.Binary + " " + strings.Join(c.Args, " ")
}

// Run executes the command and waits for completion.
func (c *Command) Run(ctx context.Context) error {
	c.mu.Lock()
	c.cmd = exec.CommandContext(ctx, c.Binary, c.Args...)
	c.started = time.Now()
	c.mu.Unlock()

	return c.cmd.Run()
}

// RunWithProgress runs the command, reporting parsed progress on
// progressCh until the process exits. The channel is not closed; the
// returned error is the process outcome.
func (c *Command) RunWithProgress(ctx context.Context, progressCh chan<- Progress) error {
	c.mu.Lock()
	c.cmd = exec.CommandContext(ctx, c.Binary, c.Args...)
	c.started = time.Now()

	stderr, err := c.cmd.StderrPipe()
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("getting stderr pipe: %w", err)
	}
	c.mu.Unlock()

	if err := c.cmd.Start(); err != nil {
		return fmt.Errorf("starting command: %w", err)
	}

	parseDone := make(chan struct{})
	go func() {
		defer close(parseDone)
		c.parseProgress(stderr, progressCh)
	}()

	waitErr := c.cmd.Wait()
	<-parseDone

	if waitErr != nil {
		if tail := c.StderrTail(); tail != "" {
			return fmt.Errorf("%w: %s", waitErr, tail)
		}
	}
	return waitErr
}

// Duration returns how long the command has been running.
func (c *Command) Duration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.started.IsZero() {
		return 0
	}
	return time.Since(c.started)
}

// Kill terminates the ffmpeg process.
func (c *Command) Kill() error {
	c.mu.RLock()
	cmd := c.cmd
	c.mu.RUnlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

// Regex patterns for parsing ffmpeg stderr stats lines.
var (
	frameRe   = regexp.MustCompile(`frame=\s*(\d+)`)
	fpsRe     = regexp.MustCompile(`fps=\s*([\d.]+)`)
	bitrateRe = regexp.MustCompile(`bitrate=\s*([\d.]+\s*\w+/s)`)
	sizeRe    = regexp.MustCompile(`size=\s*(\d+)`)
	timeRe    = regexp.MustCompile(`time=(\d+):(\d+):(\d+).(\d+)`)
	speedRe   = regexp.MustCompile(`speed=\s*([\d.]+)x`)
)

// parseProgress parses ffmpeg progress output from stderr. Every line is
// also kept in the stderr ring buffer for error reporting.
func (c *Command) parseProgress(r io.Reader, progressCh chan<- Progress) {
	scanner := bufio.NewScanner(r)
	// ffmpeg emits stats with \r separators, not newlines
	scanner.Split(scanCRLines)
	progress := Progress{}

	for scanner.Scan() {
		line := scanner.Text()
		c.recordStderr(line)

		matched := false

		if matches := frameRe.FindStringSubmatch(line); len(matches) > 1 {
			progress.Frame, _ = strconv.ParseInt(matches[1], 10, 64)
			matched = true
		}

		if matches := fpsRe.FindStringSubmatch(line); len(matches) > 1 {
			progress.FPS, _ = strconv.ParseFloat(matches[1], 64)
			matched = true
		}

		if matches := bitrateRe.FindStringSubmatch(line); len(matches) > 1 {
			progress.Bitrate = matches[1]
			matched = true
		}

		if matches := sizeRe.FindStringSubmatch(line); len(matches) > 1 {
			progress.TotalSize, _ = strconv.ParseInt(matches[1], 10, 64)
			matched = true
		}

		if matches := timeRe.FindStringSubmatch(line); len(matches) > 4 {
			hours, _ := strconv.Atoi(matches[1])
			mins, _ := strconv.Atoi(matches[2])
			secs, _ := strconv.Atoi(matches[3])
			centis, _ := strconv.Atoi(matches[4])
			progress.Time = time.Duration(hours)*time.Hour +
				time.Duration(mins)*time.Minute +
				time.Duration(secs)*time.Second +
				time.Duration(centis)*10*time.Millisecond
			matched = true
		}

		if matches := speedRe.FindStringSubmatch(line); len(matches) > 1 {
			progress.Speed, _ = strconv.ParseFloat(matches[1], 64)
			matched = true
		}

		if !matched {
			continue
		}

		select {
		case progressCh <- progress:
		default:
			// Don't block if channel is full
		}
	}
}

// scanCRLines is a bufio.SplitFunc that treats both \r and \n as line
// terminators, since ffmpeg rewrites its stats line with \r.
func scanCRLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	for i, b := range data {
		if b == '\n' || b == '\r' {
			return i + 1, data[:i], nil
		}
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// recordStderr stores a stderr line in the ring buffer.
func (c *Command) recordStderr(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	const maxLines = 100

	c.stderrMu.Lock()
	if len(c.stderrLines) >= maxLines {
		c.stderrLines = c.stderrLines[1:]
	}
	c.stderrLines = append(c.stderrLines, line)
	c.stderrMu.Unlock()
}

// GetStderrLines returns the recent stderr lines captured from ffmpeg.
func (c *Command) GetStderrLines() []string {
	c.stderrMu.RLock()
	defer c.stderrMu.RUnlock()

	lines := make([]string, len(c.stderrLines))
	copy(lines, c.stderrLines)
	return lines
}

// StderrTail returns the last non-stats stderr line, the most likely
// human-readable cause of a failure.
func (c *Command) StderrTail() string {
	lines := c.GetStderrLines()
	for i := len(lines) - 1; i >= 0; i-- {
		if !strings.HasPrefix(lines[i], "frame=") && !strings.HasPrefix(lines[i], "size=") {
			return lines[i]
		}
	}
	return ""
}
