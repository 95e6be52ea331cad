// Package capability defines the contracts between the workflow engine and
// its external dependencies: audio processing, speech-to-text, LLM
// summarization, and credential resolution. Implementations live in
// subpackages; the engine depends only on these interfaces.
package capability

import (
	"context"

	"github.com/recapd/recapd/internal/cancel"
)

// AudioExtractor pulls the audio track out of a video container.
type AudioExtractor interface {
	// Extract writes the audio of input into targetDir in the given format
	// and quality, optionally loudness-normalizing, and returns the output
	// path.
	Extract(ctx context.Context, token *cancel.Token, input, targetDir, format, quality string, normalize bool) (string, error)
}

// AudioConditioner transforms audio files ahead of transcription.
type AudioConditioner interface {
	// AdjustVolume applies a gain in dB and returns the output path.
	AdjustVolume(ctx context.Context, token *cancel.Token, in, out string, gainDB float64) (string, error)
	// NormalizeLoudness applies EBU R128 loudness normalization.
	NormalizeLoudness(ctx context.Context, token *cancel.Token, in, out string) (string, error)
	// Convert transcodes to another format.
	Convert(ctx context.Context, token *cancel.Token, in, out, format, quality string) (string, error)
	// EnsureWav16kMono returns a 16 kHz mono WAV rendition of in, creating
	// it when needed.
	EnsureWav16kMono(ctx context.Context, token *cancel.Token, in string) (string, error)
}

// Transcriber converts audio into a diarized transcript artifact.
type Transcriber interface {
	// Transcribe runs speech-to-text and returns the path of the written
	// transcript JSON.
	Transcribe(ctx context.Context, token *cancel.Token, audioPath, model, language, outputDir string) (string, error)
}

// SummarizeRequest describes one summarization call.
type SummarizeRequest struct {
	TranscriptPath string
	Provider       string
	Model          string
	Template       string
	AutoDetect     bool
	OutputDir      string
}

// SummarizeOutput reports where the summary landed and how it was produced.
type SummarizeOutput struct {
	SummaryPath  string
	MarkdownPath string
	Template     string
	AutoDetected bool
	Provider     string
	Model        string
}

// Summarizer turns a transcript into a structured summary.
type Summarizer interface {
	Summarize(ctx context.Context, token *cancel.Token, req SummarizeRequest) (*SummarizeOutput, error)
}

// CredentialStore resolves provider credentials by canonical name
// (OPENAI_API_KEY, ANTHROPIC_API_KEY, REPLICATE_API_TOKEN).
type CredentialStore interface {
	// Get returns the credential or "" when unset.
	Get(name string) string
}
