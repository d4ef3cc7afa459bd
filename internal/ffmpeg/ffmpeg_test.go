package ffmpeg

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandBuilder_Build(t *testing.T) {
	cmd := NewCommandBuilder("/usr/bin/ffmpeg").
		HideBanner().
		Overwrite().
		Input("/tmp/in.wav").
		AudioCodec("libmp3lame").
		AudioBitrate("192k").
		NoVideo().
		Format("mp3").
		Output("/tmp/out.mp3").
		Build()

	assert.Equal(t, "/usr/bin/ffmpeg", cmd.Binary)
	assert.Equal(t, []string{
		"-loglevel", "error",
		"-hide_banner",
		"-y",
		"-i", "/tmp/in.wav",
		"-c:a", "libmp3lame",
		"-b:a", "192k",
		"-vn",
		"-f", "mp3",
		"/tmp/out.mp3",
	}, cmd.Args)
}

func TestCommandBuilder_VideoArgs(t *testing.T) {
	cmd := NewCommandBuilder("ffmpeg").
		LogLevel("warning").
		Input("in.mkv").
		VideoCodec("libx264").
		CRF(23).
		VideoPreset("medium").
		VideoFilter("scale=-2:720").
		AudioCodec("aac").
		Output("out.mp4").
		Build()

	args := strings.Join(cmd.Args, " ")
	assert.Contains(t, args, "-loglevel warning")
	assert.Contains(t, args, "-c:v libx264")
	assert.Contains(t, args, "-crf 23")
	assert.Contains(t, args, "-preset medium")
	assert.Contains(t, args, "-vf scale=-2:720")

	// Filter must precede output codec args which precede the output path
	assert.Less(t, strings.Index(args, "-vf"), strings.Index(args, "out.mp4"))
	assert.Equal(t, "out.mp4", cmd.Args[len(cmd.Args)-1])
}

func TestCommandBuilder_InputArgsBeforeInput(t *testing.T) {
	cmd := NewCommandBuilder("ffmpeg").
		InputArgs("-ss", "10").
		Input("in.mp3").
		Output("out.ogg").
		Build()

	args := strings.Join(cmd.Args, " ")
	assert.Less(t, strings.Index(args, "-ss 10"), strings.Index(args, "-i in.mp3"))
}

func TestCommandBuilder_SampleRateAndChannels(t *testing.T) {
	cmd := NewCommandBuilder("ffmpeg").
		Input("in.flac").
		AudioChannels(2).
		SampleRate(44100).
		Output("out.wav").
		Build()

	args := strings.Join(cmd.Args, " ")
	assert.Contains(t, args, "-ac 2")
	assert.Contains(t, args, "-ar 44100")
}

func TestCommand_ParseProgress(t *testing.T) {
	cmd := NewCommandBuilder("ffmpeg").Input("in").Output("out").Build()

	// ffmpeg rewrites the stats line using \r
	stderr := "frame=  120 fps= 30 q=28.0 size=    1024kB time=00:01:30.50 bitrate= 512.0kbits/s speed=2.01x\r" +
		"frame=  240 fps= 30 q=28.0 size=    2048kB time=00:03:00.00 bitrate= 512.0kbits/s speed=2.05x\r"

	progressCh := make(chan Progress, 10)
	cmd.parseProgress(strings.NewReader(stderr), progressCh)
	close(progressCh)

	var updates []Progress
	for p := range progressCh {
		updates = append(updates, p)
	}
	require.Len(t, updates, 2)

	assert.Equal(t, int64(120), updates[0].Frame)
	assert.Equal(t, 30.0, updates[0].FPS)
	assert.Equal(t, 90500*time.Millisecond, updates[0].Time)
	assert.Equal(t, 2.01, updates[0].Speed)

	assert.Equal(t, int64(240), updates[1].Frame)
	assert.Equal(t, 3*time.Minute, updates[1].Time)
}

func TestCommand_ParseProgress_IgnoresNonStatsLines(t *testing.T) {
	cmd := NewCommandBuilder("ffmpeg").Input("in").Output("out").Build()

	stderr := "Input #0, mp3, from 'in.mp3':\n" +
		"  Duration: 00:03:00.00, start: 0.000000, bitrate: 128 kb/s\n" +
		"[mp3 @ 0x55] Header missing\n"

	progressCh := make(chan Progress, 10)
	cmd.parseProgress(strings.NewReader(stderr), progressCh)
	close(progressCh)

	count := 0
	for range progressCh {
		count++
	}
	// The Duration line contains "bitrate:" but not "bitrate=", so
	// nothing should match
	assert.Zero(t, count)

	lines := cmd.GetStderrLines()
	assert.Len(t, lines, 3)
	assert.Equal(t, "[mp3 @ 0x55] Header missing", lines[2])
}

func TestCommand_ParseProgress_DoesNotBlockOnFullChannel(t *testing.T) {
	cmd := NewCommandBuilder("ffmpeg").Input("in").Output("out").Build()

	var b strings.Builder
	for i := 0; i < 50; i++ {
		b.WriteString("time=00:00:01.00 speed=1.0x\r")
	}

	progressCh := make(chan Progress, 1)
	done := make(chan struct{})
	go func() {
		cmd.parseProgress(strings.NewReader(b.String()), progressCh)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("parseProgress blocked on full channel")
	}
}

func TestCommand_StderrRingBuffer(t *testing.T) {
	cmd := NewCommandBuilder("ffmpeg").Input("in").Output("out").Build()

	for i := 0; i < 150; i++ {
		cmd.recordStderr("line")
	}
	assert.Len(t, cmd.GetStderrLines(), 100)

	cmd.recordStderr("   ")
	assert.Len(t, cmd.GetStderrLines(), 100, "blank lines are dropped")
}

func TestCommand_StderrTail(t *testing.T) {
	cmd := NewCommandBuilder("ffmpeg").Input("in").Output("out").Build()

	cmd.recordStderr("in.mp3: Invalid data found when processing input")
	cmd.recordStderr("frame=  120 fps= 30")
	cmd.recordStderr("size=    1024kB time=00:01:30.50")

	assert.Equal(t, "in.mp3: Invalid data found when processing input", cmd.StderrTail())
}

func TestScanCRLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"newlines", "a\nb\nc", []string{"a", "b", "c"}},
		{"carriage returns", "a\rb\rc", []string{"a", "b", "c"}},
		{"mixed", "a\r\nb", []string{"a", "", "b"}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			advance, token := 0, []byte(nil)
			data := []byte(tt.input)
			for len(data) > 0 {
				advance, token, _ = scanCRLines(data, true)
				if advance == 0 {
					break
				}
				got = append(got, string(token))
				data = data[advance:]
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

const sampleProbeJSON = `{
  "streams": [
    {
      "index": 0,
      "codec_name": "h264",
      "codec_type": "video",
      "profile": "High",
      "width": 1920,
      "height": 1080,
      "pix_fmt": "yuv420p",
      "avg_frame_rate": "30000/1001",
      "bit_rate": "4500000",
      "disposition": {"default": 1}
    },
    {
      "index": 1,
      "codec_name": "aac",
      "codec_type": "audio",
      "profile": "LC",
      "sample_rate": "48000",
      "channels": 2,
      "channel_layout": "stereo",
      "bit_rate": "192000",
      "disposition": {"default": 1}
    },
    {
      "index": 2,
      "codec_name": "mjpeg",
      "codec_type": "video",
      "disposition": {"default": 0, "attached_pic": 1}
    }
  ],
  "format": {
    "filename": "sample.mp4",
    "nb_streams": 3,
    "format_name": "mov,mp4,m4a,3gp,3g2,mj2",
    "duration": "185.480000",
    "size": "104857600",
    "bit_rate": "4692000",
    "tags": {"title": "Sample Clip"}
  }
}`

func TestSimplify(t *testing.T) {
	var result ProbeResult
	require.NoError(t, json.Unmarshal([]byte(sampleProbeJSON), &result))

	info := Simplify(&result)

	assert.Equal(t, "mov,mp4,m4a,3gp,3g2,mj2", info.Container)
	assert.Equal(t, int64(185480), info.DurationMs)
	assert.Equal(t, int64(104857600), info.SizeBytes)
	assert.Equal(t, 4692000, info.Bitrate)
	assert.Equal(t, "Sample Clip", info.Title)

	require.Len(t, info.VideoTracks, 1, "attached_pic stream is not a video track")
	vt := info.VideoTracks[0]
	assert.Equal(t, "h264", vt.Codec)
	assert.Equal(t, 1920, vt.Width)
	assert.Equal(t, 1080, vt.Height)
	assert.InDelta(t, 29.97, vt.Framerate, 0.01)
	assert.True(t, vt.IsDefault)

	require.Len(t, info.AudioTracks, 1)
	at := info.AudioTracks[0]
	assert.Equal(t, "aac", at.Codec)
	assert.Equal(t, 48000, at.SampleRate)
	assert.Equal(t, 2, at.Channels)
	assert.Equal(t, 192000, at.Bitrate)

	assert.True(t, info.HasVideo())
	assert.True(t, info.HasAudio())
	assert.False(t, info.IsAudioOnly())
}

func TestSourceInfo_IsAudioOnly(t *testing.T) {
	info := &SourceInfo{
		AudioTracks: []AudioTrackInfo{{Codec: "mp3", Channels: 2}},
	}
	assert.True(t, info.IsAudioOnly())
	assert.False(t, info.HasVideo())
}

func TestProbeResult_Duration(t *testing.T) {
	tests := []struct {
		name   string
		result ProbeResult
		want   time.Duration
	}{
		{
			name:   "format duration",
			result: ProbeResult{Format: ProbeFormat{Duration: "12.5"}},
			want:   12500 * time.Millisecond,
		},
		{
			name: "stream duration fallback",
			result: ProbeResult{
				Streams: []ProbeStream{{CodecType: "audio", Duration: "42.0"}},
			},
			want: 42 * time.Second,
		},
		{
			name:   "unknown",
			result: ProbeResult{},
			want:   0,
		},
		{
			name:   "garbage",
			result: ProbeResult{Format: ProbeFormat{Duration: "N/A"}},
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.result.Duration())
		})
	}
}

func TestProbeResult_GetVideoStream_SkipsCoverArt(t *testing.T) {
	result := ProbeResult{
		Streams: []ProbeStream{
			{Index: 0, CodecType: "video", CodecName: "mjpeg", Disposition: ProbeDisposition{AttachedPic: 1}},
			{Index: 1, CodecType: "audio", CodecName: "flac"},
		},
	}
	assert.Nil(t, result.GetVideoStream())
	require.NotNil(t, result.GetAudioStream())
	assert.Equal(t, "flac", result.GetAudioStream().CodecName)
}

func TestParseFramerate(t *testing.T) {
	assert.InDelta(t, 29.97, parseFramerate("30000/1001"), 0.01)
	assert.Equal(t, 25.0, parseFramerate("25/1"))
	assert.Equal(t, 24.0, parseFramerate("24"))
	assert.Zero(t, parseFramerate("0/0"))
	assert.Zero(t, parseFramerate("nonsense"))
}

func TestBinaryInfo_HasEncoder(t *testing.T) {
	info := &BinaryInfo{Encoders: []string{"libmp3lame", "aac", "libx264"}}
	assert.True(t, info.HasEncoder("libmp3lame"))
	assert.False(t, info.HasEncoder("libopus"))
}

func TestBinaryInfo_HasMuxer(t *testing.T) {
	info := &BinaryInfo{Formats: []FormatInfo{
		{Name: "mp3", CanMux: true, CanDemux: true},
		{Name: "matroska,webm", CanMux: true},
		{Name: "ogg", CanMux: false, CanDemux: true},
	}}

	assert.True(t, info.HasMuxer("mp3"))
	assert.True(t, info.HasMuxer("webm"))
	assert.True(t, info.HasMuxer("matroska"))
	assert.False(t, info.HasMuxer("ogg"), "demux-only format")
	assert.False(t, info.HasMuxer("ipod"))
}

func TestBinaryDetector_Caching(t *testing.T) {
	d := NewBinaryDetector("/nonexistent/ffmpeg", "")
	d.mu.Lock()
	d.info = &BinaryInfo{Version: "6.0"}
	d.lastDetected = time.Now()
	d.mu.Unlock()

	info, err := d.Detect(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "6.0", info.Version)

	d.Clear()
	d.mu.RLock()
	assert.Nil(t, d.info)
	d.mu.RUnlock()
}
