// Package models holds the shared data types of the workflow engine:
// workflow configuration, step declarations, stage results, progress
// snapshots, and durable job records.
package models

import (
	"github.com/recapd/recapd/internal/input"
	"github.com/recapd/recapd/internal/recaperr"
)

// Canonical step names in execution order.
const (
	StepExtractAudio = "extract_audio"
	StepProcessAudio = "process_audio"
	StepTranscribe   = "transcribe"
	StepSummarize    = "summarize"
)

// StepOrder is the fixed execution order of the pipeline.
var StepOrder = []string{StepExtractAudio, StepProcessAudio, StepTranscribe, StepSummarize}

// WorkflowConfig describes a single workflow run. It is built by the caller
// and treated as read-only by the engine once validated.
type WorkflowConfig struct {
	InputFile string
	OutputDir string

	// Step gates.
	ExtractAudio bool
	ProcessAudio bool
	Transcribe   bool
	Summarize    bool

	// Audio extraction.
	AudioFormat  string
	AudioQuality string

	// Audio conditioning.
	NormalizeAudio bool
	IncreaseVolume bool
	VolumeGainDB   float64
	OutputFormats  []string

	// Transcription.
	TranscribeModel string
	Language        string

	// Summarization.
	SummaryTemplate    string
	Provider           string
	Model              string
	AutoDetectTemplate bool
}

// NewWorkflowConfig returns a config with every step gate enabled.
func NewWorkflowConfig(inputFile, outputDir string) *WorkflowConfig {
	return &WorkflowConfig{
		InputFile:    inputFile,
		OutputDir:    outputDir,
		ExtractAudio: true,
		ProcessAudio: true,
		Transcribe:   true,
		Summarize:    true,
	}
}

// Validate enforces the gate/kind invariants for an input of the given kind:
// at least one gate must be enabled, extraction requires video, transcription
// requires audio to exist or be producible, and summarization requires a
// transcript source.
func (c *WorkflowConfig) Validate(kind input.Kind) error {
	if !c.ExtractAudio && !c.ProcessAudio && !c.Transcribe && !c.Summarize {
		return recaperr.NewValidationError("steps", "at least one workflow step must be enabled")
	}
	if c.ExtractAudio && kind != input.KindVideo {
		return recaperr.NewValidationError("extract_audio",
			"audio extraction requires a video input, got "+kind.String())
	}
	if c.Transcribe && kind != input.KindVideo && kind != input.KindAudio {
		return recaperr.NewValidationError("transcribe",
			"transcription requires a video or audio input, got "+kind.String())
	}
	if c.Summarize && !c.Transcribe && kind != input.KindTranscript {
		return recaperr.NewValidationError("summarize",
			"summarization requires transcription to be enabled or a transcript input")
	}
	return nil
}

// WorkflowStep is a declarative step record produced by the step factory.
type WorkflowStep struct {
	Name string
	// Enabled reflects the matching gate in the workflow config.
	Enabled bool
	// RequiredKind, when set, restricts the step to inputs of that kind.
	// Steps gated by runtime engine state leave it nil.
	RequiredKind *input.Kind
	// Settings carries the step's materialized parameters.
	Settings map[string]any
}

// CanExecute reports whether the step runs for an input of the given kind.
func (s WorkflowStep) CanExecute(kind input.Kind) bool {
	if !s.Enabled {
		return false
	}
	return s.RequiredKind == nil || *s.RequiredKind == kind
}
