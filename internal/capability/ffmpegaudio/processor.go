// Package ffmpegaudio implements the audio extraction and conditioning
// capabilities on top of the ffmpeg wrapper.
package ffmpegaudio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/recapd/recapd/internal/cancel"
	"github.com/recapd/recapd/internal/ffmpeg"
	"github.com/recapd/recapd/internal/recaperr"
	"github.com/recapd/recapd/internal/storage"
)

// loudnormFilter is the EBU R128 normalization used for both extraction
// and standalone conditioning.
const loudnormFilter = "loudnorm=I=-16:TP=-1.5:LRA=11"

// codecForFormat maps output formats onto ffmpeg audio encoders.
var codecForFormat = map[string]string{
	"m4a":  "aac",
	"mp3":  "libmp3lame",
	"wav":  "pcm_s16le",
	"flac": "flac",
}

// bitrateForQuality maps quality tags onto lossy encoder bitrates.
// Lossless formats ignore the quality tag.
var bitrateForQuality = map[string]string{
	"low":    "96k",
	"medium": "128k",
	"high":   "192k",
}

// Processor implements capability.AudioExtractor and
// capability.AudioConditioner.
type Processor struct {
	bins   *ffmpeg.Binaries
	prober *ffmpeg.Prober
	logger *slog.Logger
}

// New creates a Processor over detected ffmpeg binaries.
func New(bins *ffmpeg.Binaries, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{bins: bins, logger: logger}
	if bins.FFprobe != "" {
		p.prober = ffmpeg.NewProber(bins.FFprobe)
	}
	return p
}

// Extract writes the audio track of input to targetDir as
// {stem}_extracted.{format}.
func (p *Processor) Extract(ctx context.Context, token *cancel.Token, input, targetDir, format, quality string, normalize bool) (string, error) {
	codec, ok := codecForFormat[format]
	if !ok {
		return "", recaperr.NewValidationError("audio_format", "unsupported audio format: "+format)
	}
	if err := os.MkdirAll(targetDir, 0o750); err != nil {
		return "", recaperr.NewFileOperationError("mkdir", targetDir, err)
	}

	output := filepath.Join(targetDir, storage.Stem(input)+"_extracted."+format)
	builder := ffmpeg.NewCommandBuilder(p.bins.FFmpeg).
		HideBanner().
		Overwrite().
		Input(input).
		NoVideo().
		AudioCodec(codec)
	if bitrate, lossy := bitrateForQuality[quality]; lossy && format != "wav" && format != "flac" {
		builder.AudioBitrate(bitrate)
	}
	if normalize {
		builder.AudioFilter(loudnormFilter)
	}
	builder.Output(output)

	p.logger.Debug("extracting audio",
		slog.String("input", input), slog.String("output", output), slog.String("format", format))
	if err := builder.Build().Run(ctx, token); err != nil {
		return "", err
	}
	return output, nil
}

// AdjustVolume applies a fixed gain in dB.
func (p *Processor) AdjustVolume(ctx context.Context, token *cancel.Token, in, out string, gainDB float64) (string, error) {
	err := ffmpeg.NewCommandBuilder(p.bins.FFmpeg).
		HideBanner().
		Overwrite().
		Input(in).
		AudioFilter(fmt.Sprintf("volume=%gdB", gainDB)).
		Output(out).
		Build().Run(ctx, token)
	if err != nil {
		return "", err
	}
	return out, nil
}

// NormalizeLoudness applies EBU R128 loudness normalization.
func (p *Processor) NormalizeLoudness(ctx context.Context, token *cancel.Token, in, out string) (string, error) {
	err := ffmpeg.NewCommandBuilder(p.bins.FFmpeg).
		HideBanner().
		Overwrite().
		Input(in).
		AudioFilter(loudnormFilter).
		Output(out).
		Build().Run(ctx, token)
	if err != nil {
		return "", err
	}
	return out, nil
}

// Convert transcodes in to the given format.
func (p *Processor) Convert(ctx context.Context, token *cancel.Token, in, out, format, quality string) (string, error) {
	codec, ok := codecForFormat[format]
	if !ok {
		return "", recaperr.NewValidationError("audio_format", "unsupported audio format: "+format)
	}

	builder := ffmpeg.NewCommandBuilder(p.bins.FFmpeg).
		HideBanner().
		Overwrite().
		Input(in).
		AudioCodec(codec)
	if bitrate, lossy := bitrateForQuality[quality]; lossy && format != "wav" && format != "flac" {
		builder.AudioBitrate(bitrate)
	}
	if err := builder.Output(out).Build().Run(ctx, token); err != nil {
		return "", err
	}
	return out, nil
}

// EnsureWav16kMono returns a 16 kHz mono PCM WAV rendition of in, reusing
// the input when it already matches.
func (p *Processor) EnsureWav16kMono(ctx context.Context, token *cancel.Token, in string) (string, error) {
	if strings.EqualFold(filepath.Ext(in), ".wav") && p.prober != nil {
		if info, err := p.prober.Probe(ctx, in); err == nil &&
			info.SampleRate == 16000 && info.Channels == 1 {
			return in, nil
		}
	}

	out := strings.TrimSuffix(in, filepath.Ext(in)) + "_16k.wav"
	err := ffmpeg.NewCommandBuilder(p.bins.FFmpeg).
		HideBanner().
		Overwrite().
		Input(in).
		AudioCodec("pcm_s16le").
		SampleRate(16000).
		Channels(1).
		Output(out).
		Build().Run(ctx, token)
	if err != nil {
		return "", err
	}
	return out, nil
}
