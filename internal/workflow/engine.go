package workflow

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/recapd/recapd/internal/cancel"
	"github.com/recapd/recapd/internal/capability"
	"github.com/recapd/recapd/internal/input"
	"github.com/recapd/recapd/internal/jobstore"
	"github.com/recapd/recapd/internal/models"
	"github.com/recapd/recapd/internal/recaperr"
	"github.com/recapd/recapd/internal/shutdown"
	"github.com/recapd/recapd/internal/storage"
	"github.com/recapd/recapd/internal/transcript"
)

// Capabilities bundles the external operations the engine dispatches to.
type Capabilities struct {
	Extractor   capability.AudioExtractor
	Conditioner capability.AudioConditioner
	Transcriber capability.Transcriber
	Summarizer  capability.Summarizer
}

// Engine orchestrates one workflow run: validate, pre-seed engine state by
// input kind, build and filter the step list, then delegate to the executor.
type Engine struct {
	validator *Validator
	factory   StepFactory
	executor  *Executor
	caps      Capabilities
	layout    *storage.Layout
	shutdown  *shutdown.Manager
	state     *jobstore.StateManager
	logger    *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithValidator replaces the default validator.
func WithValidator(v *Validator) EngineOption {
	return func(e *Engine) { e.validator = v }
}

// WithExecutor replaces the default executor.
func WithExecutor(x *Executor) EngineOption {
	return func(e *Engine) { e.executor = x }
}

// WithStateManager enables durable job-state checkpoints for runs.
func WithStateManager(m *jobstore.StateManager) EngineOption {
	return func(e *Engine) { e.state = m }
}

// NewEngine creates an Engine. layout is required; the shutdown manager is
// optional and enables scratch-file cleanup on interrupt.
func NewEngine(caps Capabilities, layout *storage.Layout, sm *shutdown.Manager, logger *slog.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		caps:      caps,
		layout:    layout,
		shutdown:  sm,
		logger:    logger,
		validator: &Validator{},
		executor:  NewExecutor(sm, logger),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// runState carries the inter-stage slots of one run.
type runState struct {
	cfg    *models.WorkflowConfig
	kind   input.Kind
	stem   string
	audio  string
	transc *transcript.Transcript
}

// Execute runs the workflow described by cfg. jobID identifies the run in
// durable state; an empty id is replaced with a fresh UUID. The returned map
// holds one StageResult per executed step, keyed by step name.
func (e *Engine) Execute(ctx context.Context, token *cancel.Token, jobID string, cfg *models.WorkflowConfig, progress ProgressFunc) (map[string]models.StageResult, error) {
	if jobID == "" {
		jobID = uuid.NewString()
	}

	canonical, kind, err := e.validator.Validate(cfg)
	if err != nil {
		return nil, err
	}

	st := &runState{cfg: cfg, kind: kind, stem: storage.Stem(canonical)}
	if err := e.preSeed(st); err != nil {
		return nil, err
	}

	if e.state != nil {
		if err := e.state.StartJob(jobID, map[string]any{
			"input_file": canonical,
			"input_kind": kind.String(),
		}); err != nil {
			return nil, err
		}
	}

	steps := FilterExecutable(e.factory.Build(cfg), kind)
	bound := e.bind(st, steps)

	names := make([]string, 0, len(steps))
	for _, s := range steps {
		names = append(names, s.Name)
	}
	wrapped := e.wrapProgress(models.NewWorkflowProgress(names), progress)
	results, runErr := e.executor.Run(ctx, token, bound, wrapped)

	if e.state != nil {
		switch {
		case runErr == nil:
			if err := e.state.CompleteJob(stateOutputs(results)); err != nil {
				e.logger.Warn("completing job state", slog.String("error", err.Error()))
			}
		case recaperr.IsCancellation(runErr):
			// Leave the state running; the shutdown handler marks it
			// interrupted on exit.
		default:
			if err := e.state.FailJob(runErr); err != nil {
				e.logger.Warn("failing job state", slog.String("error", err.Error()))
			}
		}
	}

	if runErr != nil {
		return results, runErr
	}
	return results, nil
}

// preSeed populates the inter-stage slots by input kind. Audio inputs seed
// the audio slot directly; transcript inputs are loaded up front so their
// format errors surface before any stage runs; video inputs seed nothing.
func (e *Engine) preSeed(st *runState) error {
	switch st.kind {
	case input.KindAudio:
		st.audio = st.cfg.InputFile
	case input.KindTranscript:
		tr, err := transcript.Load(st.cfg.InputFile)
		if err != nil {
			return err
		}
		st.transc = tr
	}
	return nil
}

func (e *Engine) bind(st *runState, steps []models.WorkflowStep) []BoundStep {
	bound := make([]BoundStep, 0, len(steps))
	for _, step := range steps {
		var fn StepFunc
		switch step.Name {
		case models.StepExtractAudio:
			fn = e.stepExtractAudio(st)
		case models.StepProcessAudio:
			fn = e.stepProcessAudio(st)
		case models.StepTranscribe:
			fn = e.stepTranscribe(st)
		case models.StepSummarize:
			fn = e.stepSummarize(st)
		}
		bound = append(bound, BoundStep{WorkflowStep: step, Run: fn})
	}
	return bound
}

// wrapProgress folds executor ticks into a WorkflowProgress snapshot and
// checkpoints it to the durable job state before forwarding to the caller.
func (e *Engine) wrapProgress(snapshot *models.WorkflowProgress, progress ProgressFunc) ProgressFunc {
	var lastStage string
	var stageStart time.Time
	return func(idx, total int, name, msg string) {
		if lastStage != "" {
			snapshot.SetStage(lastStage, models.StageComplete, time.Since(stageStart).Seconds(), "")
		}
		if name != "complete" {
			snapshot.SetStage(name, models.StageActive, 0, msg)
			lastStage = name
			stageStart = time.Now()
		} else {
			lastStage = ""
		}

		if e.state != nil {
			if err := e.state.UpdateState(map[string]any{
				"current_step":    name,
				"step_index":      idx,
				"total_steps":     total,
				"overall_percent": snapshot.OverallPercent,
			}); err != nil {
				e.logger.Warn("updating job state", slog.String("error", err.Error()))
			}
		}
		if progress != nil {
			progress(idx, total, name, msg)
		}
	}
}

func (e *Engine) stepExtractAudio(st *runState) StepFunc {
	return func(ctx context.Context, token *cancel.Token, settings map[string]any) (models.StageResult, error) {
		if st.kind != input.KindVideo {
			return models.Skipped("Not a video file"), nil
		}

		format := settingString(settings, "format")
		if format == "" {
			format = "m4a"
		}
		quality := settingString(settings, "quality")
		targetDir := e.layout.AudioDir(st.stem)
		if err := os.MkdirAll(targetDir, 0o750); err != nil {
			return nil, recaperr.NewFileOperationError("mkdir", targetDir, err)
		}

		out, err := e.withScratch(targetDir, func() (string, error) {
			return e.caps.Extractor.Extract(ctx, token, st.cfg.InputFile, targetDir, format, quality, true)
		})
		if err != nil {
			return nil, err
		}

		st.audio = out
		return models.ExtractResult{
			InputFile:  st.cfg.InputFile,
			OutputFile: out,
			Format:     format,
			Quality:    quality,
		}, nil
	}
}

func (e *Engine) stepProcessAudio(st *runState) StepFunc {
	return func(ctx context.Context, token *cancel.Token, settings map[string]any) (models.StageResult, error) {
		if st.kind == input.KindTranscript {
			return models.Skipped(""), nil
		}
		if st.audio == "" {
			return nil, errors.New("no audio file available for processing")
		}

		var processed []models.ProcessedFile
		current := st.audio

		if settingBool(settings, "increase_volume") {
			out := withSuffix(current, "_volume")
			result, err := e.withScratch(out, func() (string, error) {
				return e.caps.Conditioner.AdjustVolume(ctx, token, current, out, settingFloat(settings, "volume_gain_db"))
			})
			if err != nil {
				return nil, err
			}
			processed = append(processed, models.ProcessedFile{Operation: "volume_adjustment", OutputFile: result})
			current = result
		}

		if settingBool(settings, "normalize") {
			out := withSuffix(current, "_normalized")
			result, err := e.withScratch(out, func() (string, error) {
				return e.caps.Conditioner.NormalizeLoudness(ctx, token, current, out)
			})
			if err != nil {
				return nil, err
			}
			processed = append(processed, models.ProcessedFile{Operation: "normalization", OutputFile: result})
			current = result
		}

		quality := settingString(settings, "quality")
		for _, format := range settingStrings(settings, "output_formats") {
			if strings.EqualFold(format, fileFormat(current)) {
				continue
			}
			out := withExt(current, format)
			result, err := e.withScratch(out, func() (string, error) {
				return e.caps.Conditioner.Convert(ctx, token, current, out, format, quality)
			})
			if err != nil {
				return nil, err
			}
			processed = append(processed, models.ProcessedFile{Operation: "conversion", OutputFile: result})
			current = result
		}

		st.audio = current
		return models.ProcessResult{ProcessedFiles: processed, OutputFile: current}, nil
	}
}

func (e *Engine) stepTranscribe(st *runState) StepFunc {
	return func(ctx context.Context, token *cancel.Token, settings map[string]any) (models.StageResult, error) {
		if st.kind == input.KindTranscript {
			return models.Skipped(""), nil
		}
		if st.audio == "" {
			return nil, errors.New("no audio file available for transcription")
		}

		wav, err := e.caps.Conditioner.EnsureWav16kMono(ctx, token, st.audio)
		if err != nil {
			return nil, err
		}

		outputDir := e.layout.TranscriptDir(st.stem)
		if err := os.MkdirAll(outputDir, 0o750); err != nil {
			return nil, recaperr.NewFileOperationError("mkdir", outputDir, err)
		}

		model := settingString(settings, "model")
		language := settingString(settings, "language")
		path, err := e.withScratch(outputDir, func() (string, error) {
			return e.caps.Transcriber.Transcribe(ctx, token, wav, model, language, outputDir)
		})
		if err != nil {
			return nil, err
		}

		// Segments load lazily in summarize; only the artifact path matters
		// here.
		st.transc = &transcript.Transcript{OutputFile: path}
		return models.TranscribeResult{
			AudioFile:      wav,
			Model:          model,
			Language:       language,
			TranscriptFile: path,
		}, nil
	}
}

func (e *Engine) stepSummarize(st *runState) StepFunc {
	return func(ctx context.Context, token *cancel.Token, settings map[string]any) (models.StageResult, error) {
		if st.transc == nil || st.transc.OutputFile == "" {
			return nil, errors.New("no transcript available for summarization")
		}

		template := settingString(settings, "template")
		outputDir := st.cfg.OutputDir
		if outputDir == "" {
			tag := template
			if tag == "" {
				tag = "default"
			}
			outputDir = e.layout.SummaryDir(st.stem, tag)
		}

		out, err := e.caps.Summarizer.Summarize(ctx, token, capability.SummarizeRequest{
			TranscriptPath: st.transc.OutputFile,
			Provider:       settingString(settings, "provider"),
			Model:          settingString(settings, "model"),
			Template:       template,
			AutoDetect:     settingBool(settings, "auto_detect"),
			OutputDir:      outputDir,
		})
		if err != nil {
			return nil, err
		}

		return models.SummarizeResult{
			TranscriptFile: st.transc.OutputFile,
			Provider:       out.Provider,
			Model:          out.Model,
			Template:       out.Template,
			SummaryFile:    out.SummaryPath,
		}, nil
	}
}

// withScratch registers path with the shutdown manager for the duration of
// fn so an interrupt removes partial output, then unregisters it on success
// so finished artifacts survive exit.
func (e *Engine) withScratch(path string, fn func() (string, error)) (string, error) {
	if e.shutdown != nil {
		e.shutdown.RegisterTempPath(path)
	}
	out, err := fn()
	if err != nil {
		return "", err
	}
	if e.shutdown != nil {
		e.shutdown.UnregisterTempPath(path)
	}
	return out, nil
}

// stateOutputs flattens the artifact paths out of a result map for the
// durable job state.
func stateOutputs(results map[string]models.StageResult) map[string]any {
	outputs := make(map[string]any)
	for name, result := range results {
		switch r := result.(type) {
		case models.ExtractResult:
			outputs[name] = r.OutputFile
		case models.ProcessResult:
			outputs[name] = r.OutputFile
		case models.TranscribeResult:
			outputs[name] = r.TranscriptFile
		case models.SummarizeResult:
			outputs[name] = r.SummaryFile
		}
	}
	return map[string]any{"outputs": outputs}
}

func withSuffix(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + suffix + ext
}

func withExt(path, format string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + "." + format
}

func fileFormat(path string) string {
	return strings.TrimPrefix(filepath.Ext(path), ".")
}
