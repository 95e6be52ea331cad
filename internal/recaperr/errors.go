// Package recaperr defines the error taxonomy shared across the workflow
// engine. Callers classify failures by kind to decide whether to recover,
// resume, or report.
package recaperr

import (
	"errors"
	"fmt"
)

// Sentinel errors for control-flow conditions.
var (
	// ErrCancelled indicates a cancellation token was tripped by the caller.
	ErrCancelled = errors.New("operation cancelled")

	// ErrInterrupted indicates a process shutdown signal was received.
	ErrInterrupted = errors.New("operation interrupted by shutdown")

	// ErrPoolClosed indicates a task was submitted after pool shutdown.
	ErrPoolClosed = errors.New("worker pool is closed")
)

// IsCancellation reports whether err is a cancellation or interruption.
// Both terminate a run without representing a failure of the work itself.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, ErrInterrupted)
}

// ValidationError indicates invalid caller input: an unsafe path, an
// unsupported extension, an oversized file, or a malformed field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation error: %s", e.Message)
	}
	return fmt.Sprintf("validation error on %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError indicates a referenced file was absent at operation time.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("file not found: %s", e.Path)
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(path string) *NotFoundError {
	return &NotFoundError{Path: path}
}

// FileOperationError indicates an I/O failure during read, write, copy,
// or move.
type FileOperationError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileOperationError) Error() string {
	return fmt.Sprintf("file operation %s failed on %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileOperationError) Unwrap() error { return e.Err }

// NewFileOperationError creates a new FileOperationError.
func NewFileOperationError(op, path string, err error) *FileOperationError {
	return &FileOperationError{Op: op, Path: path, Err: err}
}

// ConfigurationError indicates a missing or malformed credential, an
// unreachable ffmpeg binary, or another startup precondition failure.
// These surface before any stage runs.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(field, message string) *ConfigurationError {
	return &ConfigurationError{Field: field, Message: message}
}

// AudioProcessingError indicates an ffmpeg non-zero exit or an unparseable
// probe result.
type AudioProcessingError struct {
	Input  string
	Stderr string
	Err    error
}

func (e *AudioProcessingError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("audio processing failed for %s: %v: %s", e.Input, e.Err, e.Stderr)
	}
	return fmt.Sprintf("audio processing failed for %s: %v", e.Input, e.Err)
}

func (e *AudioProcessingError) Unwrap() error { return e.Err }

// NewAudioProcessingError creates a new AudioProcessingError.
func NewAudioProcessingError(input, stderr string, err error) *AudioProcessingError {
	return &AudioProcessingError{Input: input, Stderr: stderr, Err: err}
}

// TranscriptionError indicates an STT provider failure: a rejected upload,
// a terminal polling failure, or exhausted retries.
type TranscriptionError struct {
	Provider string
	Message  string
	Err      error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcription failed (%s): %s", e.Provider, e.Message)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

// NewTranscriptionError creates a new TranscriptionError.
func NewTranscriptionError(provider, message string, err error) *TranscriptionError {
	return &TranscriptionError{Provider: provider, Message: message, Err: err}
}

// LLMErrorKind sub-classifies summarization provider failures.
type LLMErrorKind string

const (
	// LLMErrorAuth indicates an authentication or authorization failure.
	LLMErrorAuth LLMErrorKind = "auth"
	// LLMErrorRateLimit indicates the provider rejected the request due to rate limiting.
	LLMErrorRateLimit LLMErrorKind = "rate_limit"
	// LLMErrorTimeout indicates the request timed out.
	LLMErrorTimeout LLMErrorKind = "timeout"
	// LLMErrorNetwork indicates a transport-level failure.
	LLMErrorNetwork LLMErrorKind = "network"
	// LLMErrorProvider indicates any other provider-side failure.
	LLMErrorProvider LLMErrorKind = "provider"
)

// LLMProviderError indicates a summarization provider failure.
type LLMProviderError struct {
	Provider string
	Kind     LLMErrorKind
	Err      error
}

func (e *LLMProviderError) Error() string {
	return fmt.Sprintf("llm provider %s failed (%s): %v", e.Provider, e.Kind, e.Err)
}

func (e *LLMProviderError) Unwrap() error { return e.Err }

// NewLLMProviderError creates a new LLMProviderError.
func NewLLMProviderError(provider string, kind LLMErrorKind, err error) *LLMProviderError {
	return &LLMProviderError{Provider: provider, Kind: kind, Err: err}
}

// StageError wraps a stage failure with the failing step name. The executor
// attaches it before propagating; cancellation and interruption are never
// wrapped.
type StageError struct {
	Step string
	Err  error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("workflow step %s: %v", e.Step, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError creates a new StageError.
func NewStageError(step string, err error) *StageError {
	return &StageError{Step: step, Err: err}
}
