package ffmpeg

import (
	"context"
	"encoding/json"
	"os/exec"
	"strconv"
	"time"

	"github.com/recapd/recapd/internal/recaperr"
)

// ProbeResult is the subset of ffprobe output the engine consumes.
type ProbeResult struct {
	DurationSeconds float64
	SizeBytes       int64
	Format          string
	SampleRate      int
	Channels        int
}

// Prober runs ffprobe against local media files.
type Prober struct {
	ffprobePath string
	timeout     time.Duration
}

// NewProber creates a prober for the given ffprobe binary.
func NewProber(ffprobePath string) *Prober {
	return &Prober{ffprobePath: ffprobePath, timeout: 30 * time.Second}
}

// WithTimeout overrides the probe timeout.
func (p *Prober) WithTimeout(timeout time.Duration) *Prober {
	p.timeout = timeout
	return p
}

type probeOutput struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		Size       string `json:"size"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
}

// Probe inspects a media file.
func (p *Prober) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	if p.ffprobePath == "" {
		return nil, recaperr.NewConfigurationError("ffmpeg.probe_path", "ffprobe binary not available")
	}

	ctx, cancelCtx := context.WithTimeout(ctx, p.timeout)
	defer cancelCtx()

	out, err := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	).Output()
	if err != nil {
		return nil, recaperr.NewAudioProcessingError(path, "", err)
	}

	var raw probeOutput
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, recaperr.NewAudioProcessingError(path, "unparseable ffprobe output", err)
	}

	result := &ProbeResult{Format: raw.Format.FormatName}
	result.DurationSeconds, _ = strconv.ParseFloat(raw.Format.Duration, 64)
	result.SizeBytes, _ = strconv.ParseInt(raw.Format.Size, 10, 64)
	for _, s := range raw.Streams {
		if s.CodecType == "audio" {
			result.SampleRate, _ = strconv.Atoi(s.SampleRate)
			result.Channels = s.Channels
			break
		}
	}
	return result, nil
}
