package models

// StageResult is the tagged per-step output stored in the engine's final
// result map under the step name. Skipped steps carry a marker and reason;
// executed steps carry their typed payload.
type StageResult interface {
	// IsSkipped reports whether the step was gated out at runtime.
	IsSkipped() bool
}

// SkippedResult marks a step that was gated out at runtime.
type SkippedResult struct {
	Skipped bool   `json:"skipped"`
	Reason  string `json:"reason,omitempty"`
}

// Skipped builds a SkippedResult with the given reason.
func Skipped(reason string) SkippedResult {
	return SkippedResult{Skipped: true, Reason: reason}
}

func (SkippedResult) IsSkipped() bool { return true }

// ExtractResult is the payload of a completed extract_audio step.
type ExtractResult struct {
	InputFile  string `json:"input_file"`
	OutputFile string `json:"output_file"`
	Format     string `json:"format"`
	Quality    string `json:"quality"`
}

func (ExtractResult) IsSkipped() bool { return false }

// ProcessedFile records one conditioning sub-step applied to the audio chain.
type ProcessedFile struct {
	Operation  string `json:"operation"`
	OutputFile string `json:"output_file"`
}

// ProcessResult is the payload of a completed process_audio step. OutputFile
// is the last file in the conditioning chain; downstream stages consume it.
type ProcessResult struct {
	ProcessedFiles []ProcessedFile `json:"processed_files"`
	OutputFile     string          `json:"output_file"`
}

func (ProcessResult) IsSkipped() bool { return false }

// TranscribeResult is the payload of a completed transcribe step.
type TranscribeResult struct {
	AudioFile      string `json:"audio_file"`
	Model          string `json:"model"`
	Language       string `json:"language"`
	TranscriptFile string `json:"transcript_file"`
}

func (TranscribeResult) IsSkipped() bool { return false }

// SummarizeResult is the payload of a completed summarize step.
type SummarizeResult struct {
	TranscriptFile string `json:"transcript_file"`
	Provider       string `json:"provider"`
	Model          string `json:"model"`
	Template       string `json:"template"`
	SummaryFile    string `json:"summary_file"`
}

func (SummarizeResult) IsSkipped() bool { return false }
