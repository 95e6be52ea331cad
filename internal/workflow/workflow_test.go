package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recapd/recapd/internal/cancel"
	"github.com/recapd/recapd/internal/capability"
	"github.com/recapd/recapd/internal/input"
	"github.com/recapd/recapd/internal/jobstore"
	"github.com/recapd/recapd/internal/models"
	"github.com/recapd/recapd/internal/recaperr"
	"github.com/recapd/recapd/internal/shutdown"
	"github.com/recapd/recapd/internal/storage"
)

// callRecorder collects capability invocations in order.
type callRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *callRecorder) record(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
}

func (r *callRecorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *callRecorder) count(name string) int {
	n := 0
	for _, c := range r.names() {
		if c == name {
			n++
		}
	}
	return n
}

type fakeExtractor struct {
	rec *callRecorder
	err error
}

func (f *fakeExtractor) Extract(_ context.Context, _ *cancel.Token, input, targetDir, format, _ string, _ bool) (string, error) {
	f.rec.record("extract")
	if f.err != nil {
		return "", f.err
	}
	out := filepath.Join(targetDir, storage.Stem(input)+"_extracted."+format)
	return out, os.WriteFile(out, []byte("audio"), 0o640)
}

type fakeConditioner struct {
	rec *callRecorder
}

func (f *fakeConditioner) AdjustVolume(_ context.Context, _ *cancel.Token, _, out string, _ float64) (string, error) {
	f.rec.record("adjust_volume")
	return out, os.WriteFile(out, []byte("audio"), 0o640)
}

func (f *fakeConditioner) NormalizeLoudness(_ context.Context, _ *cancel.Token, _, out string) (string, error) {
	f.rec.record("normalize_loudness")
	return out, os.WriteFile(out, []byte("audio"), 0o640)
}

func (f *fakeConditioner) Convert(_ context.Context, _ *cancel.Token, _, out, _, _ string) (string, error) {
	f.rec.record("convert")
	return out, os.WriteFile(out, []byte("audio"), 0o640)
}

func (f *fakeConditioner) EnsureWav16kMono(_ context.Context, _ *cancel.Token, in string) (string, error) {
	f.rec.record("ensure_wav_16k_mono")
	out := withExt(in, "wav")
	return out, os.WriteFile(out, []byte("wav"), 0o640)
}

type fakeTranscriber struct {
	rec    *callRecorder
	before func() error
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _ *cancel.Token, audioPath, _, _, outputDir string) (string, error) {
	f.rec.record("transcribe")
	if f.before != nil {
		if err := f.before(); err != nil {
			return "", err
		}
	}
	out := filepath.Join(outputDir, storage.Stem(audioPath)+".json")
	return out, os.WriteFile(out, []byte(`[{"start":0,"end":1,"text":"hello"}]`), 0o640)
}

type fakeSummarizer struct {
	rec *callRecorder
}

func (f *fakeSummarizer) Summarize(_ context.Context, _ *cancel.Token, req capability.SummarizeRequest) (*capability.SummarizeOutput, error) {
	f.rec.record("summarize")
	if err := os.MkdirAll(req.OutputDir, 0o750); err != nil {
		return nil, err
	}
	path := filepath.Join(req.OutputDir, "summary.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o640); err != nil {
		return nil, err
	}
	template := req.Template
	if template == "" {
		template = "default"
	}
	return &capability.SummarizeOutput{
		SummaryPath: path,
		Template:    template,
		Provider:    req.Provider,
		Model:       req.Model,
	}, nil
}

type fixture struct {
	rec         *callRecorder
	engine      *Engine
	layout      *storage.Layout
	shutdown    *shutdown.Manager
	transcriber *fakeTranscriber
}

func newFixture(t *testing.T, opts ...EngineOption) *fixture {
	t.Helper()
	layout, err := storage.NewLayout(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)

	rec := &callRecorder{}
	sm := shutdown.NewManager(nil)
	transcriber := &fakeTranscriber{rec: rec}
	caps := Capabilities{
		Extractor:   &fakeExtractor{rec: rec},
		Conditioner: &fakeConditioner{rec: rec},
		Transcriber: transcriber,
		Summarizer:  &fakeSummarizer{rec: rec},
	}
	return &fixture{
		rec:         rec,
		engine:      NewEngine(caps, layout, sm, nil, opts...),
		layout:      layout,
		shutdown:    sm,
		transcriber: transcriber,
	}
}

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o640))
	return path
}

func TestTranscriptOnlyInput(t *testing.T) {
	f := newFixture(t)
	in := writeInput(t, "in.json", `{"segments":[{"start":0,"end":1,"text":"hello"}]}`)

	cfg := &models.WorkflowConfig{
		InputFile: in,
		Summarize: true,
		Provider:  "openai",
		Model:     "gpt-4o-mini",
	}

	results, err := f.engine.Execute(context.Background(), nil, "", cfg, nil)
	require.NoError(t, err)

	require.Contains(t, results, models.StepSummarize)
	sum, ok := results[models.StepSummarize].(models.SummarizeResult)
	require.True(t, ok)
	assert.FileExists(t, sum.SummaryFile)
	assert.NotContains(t, results, models.StepExtractAudio)

	assert.Equal(t, 1, f.rec.count("summarize"))
	assert.Equal(t, 0, f.rec.count("transcribe"))
}

func TestAudioInputFullDownstream(t *testing.T) {
	f := newFixture(t)
	in := writeInput(t, "meeting.m4a", "audio-bytes")

	cfg := &models.WorkflowConfig{
		InputFile:      in,
		ProcessAudio:   true,
		Transcribe:     true,
		Summarize:      true,
		NormalizeAudio: true,
		OutputFormats:  []string{"m4a"},
		Provider:       "openai",
		Model:          "gpt-4o-mini",
	}

	results, err := f.engine.Execute(context.Background(), nil, "", cfg, nil)
	require.NoError(t, err)

	assert.NotContains(t, results, models.StepExtractAudio)

	proc, ok := results[models.StepProcessAudio].(models.ProcessResult)
	require.True(t, ok)
	ops := make([]string, 0, len(proc.ProcessedFiles))
	for _, p := range proc.ProcessedFiles {
		ops = append(ops, p.Operation)
	}
	assert.Contains(t, ops, "normalization")
	// Output already in m4a, so no conversion entry.
	assert.NotContains(t, ops, "conversion")

	assert.Equal(t, 1, f.rec.count("ensure_wav_16k_mono"))

	sum := results[models.StepSummarize].(models.SummarizeResult)
	assert.FileExists(t, sum.SummaryFile)
}

func TestVideoFullPipelineCallOrder(t *testing.T) {
	f := newFixture(t)
	in := writeInput(t, "call.mp4", "video-bytes")

	cfg := models.NewWorkflowConfig(in, "")
	cfg.NormalizeAudio = true
	cfg.Provider = "openai"
	cfg.Model = "gpt-4o-mini"

	results, err := f.engine.Execute(context.Background(), nil, "", cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"extract", "normalize_loudness", "ensure_wav_16k_mono", "transcribe", "summarize",
	}, f.rec.names())

	extract := results[models.StepExtractAudio].(models.ExtractResult)
	proc := results[models.StepProcessAudio].(models.ProcessResult)
	assert.NotEqual(t, extract.OutputFile, proc.OutputFile)
	tr := results[models.StepTranscribe].(models.TranscribeResult)
	assert.Contains(t, tr.AudioFile, "_normalized")
}

func TestCancellationMidTranscribe(t *testing.T) {
	f := newFixture(t)
	in := writeInput(t, "meeting.m4a", "audio-bytes")

	token := cancel.NewToken()
	f.transcriber.before = func() error {
		token.Cancel()
		return recaperr.ErrCancelled
	}

	cfg := &models.WorkflowConfig{
		InputFile:  in,
		Transcribe: true,
		Summarize:  true,
	}

	_, err := f.engine.Execute(context.Background(), token, "", cfg, nil)
	assert.ErrorIs(t, err, recaperr.ErrCancelled)
	assert.Equal(t, 0, f.rec.count("summarize"))
}

func TestInterruptedRunRecovery(t *testing.T) {
	f := newFixture(t)
	state := jobstore.NewStateManager(f.layout, f.shutdown, nil)
	f.engine.state = state

	in := writeInput(t, "meeting.m4a", "audio-bytes")
	f.transcriber.before = func() error {
		f.shutdown.Request()
		return recaperr.ErrInterrupted
	}

	cfg := &models.WorkflowConfig{
		InputFile:  in,
		Transcribe: true,
		Summarize:  true,
	}

	_, err := f.engine.Execute(context.Background(), nil, "job-interrupted", cfg, nil)
	assert.ErrorIs(t, err, recaperr.ErrInterrupted)

	f.shutdown.RunCleanup()

	interrupted, err := jobstore.InterruptedJobs(f.layout, nil)
	require.NoError(t, err)
	ids := make([]string, 0, len(interrupted))
	for _, s := range interrupted {
		ids = append(ids, s.JobID)
	}
	assert.Contains(t, ids, "job-interrupted")
}

func TestJobStateCompleted(t *testing.T) {
	f := newFixture(t)
	state := jobstore.NewStateManager(f.layout, f.shutdown, nil)
	f.engine.state = state

	in := writeInput(t, "in.json", `[{"start":0,"end":1,"text":"hello"}]`)
	cfg := &models.WorkflowConfig{
		InputFile: in,
		Summarize: true,
		Provider:  "openai",
	}

	_, err := f.engine.Execute(context.Background(), nil, "job-done", cfg, nil)
	require.NoError(t, err)

	f.shutdown.RunCleanup()
	interrupted, err := jobstore.InterruptedJobs(f.layout, nil)
	require.NoError(t, err)
	assert.Empty(t, interrupted)
}

func TestProgressMonotonicAndFinalTick(t *testing.T) {
	f := newFixture(t)
	in := writeInput(t, "meeting.m4a", "audio-bytes")

	cfg := &models.WorkflowConfig{
		InputFile:  in,
		Transcribe: true,
		Summarize:  true,
	}

	type tick struct {
		idx, total int
		name       string
	}
	var ticks []tick
	_, err := f.engine.Execute(context.Background(), nil, "", cfg, func(idx, total int, name, _ string) {
		ticks = append(ticks, tick{idx, total, name})
	})
	require.NoError(t, err)

	require.NotEmpty(t, ticks)
	for i := 1; i < len(ticks); i++ {
		assert.GreaterOrEqual(t, ticks[i].idx, ticks[i-1].idx)
	}
	last := ticks[len(ticks)-1]
	assert.Equal(t, "complete", last.name)
	assert.Equal(t, last.total, last.idx)
}

func TestProcessAudioWithoutAudioFails(t *testing.T) {
	f := newFixture(t)
	in := writeInput(t, "call.mp4", "video-bytes")

	// Video input without extraction leaves the audio slot empty.
	cfg := &models.WorkflowConfig{
		InputFile:    in,
		ProcessAudio: true,
	}

	_, err := f.engine.Execute(context.Background(), nil, "", cfg, nil)
	var stageErr *recaperr.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, models.StepProcessAudio, stageErr.Step)
}

func TestValidatorRejectsTraversal(t *testing.T) {
	f := newFixture(t)
	cfg := &models.WorkflowConfig{InputFile: "../../../etc/passwd.mp4", Summarize: true, Transcribe: true}

	_, err := f.engine.Execute(context.Background(), nil, "", cfg, nil)
	var valErr *recaperr.ValidationError
	require.ErrorAs(t, err, &valErr)
}

func TestValidatorGateInvariants(t *testing.T) {
	f := newFixture(t)
	in := writeInput(t, "meeting.m4a", "audio-bytes")

	// Extraction demands a video input.
	cfg := &models.WorkflowConfig{InputFile: in, ExtractAudio: true, Transcribe: true}
	_, err := f.engine.Execute(context.Background(), nil, "", cfg, nil)
	var valErr *recaperr.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "extract_audio", valErr.Field)
}

func TestFactoryOrderAndFilter(t *testing.T) {
	cfg := models.NewWorkflowConfig("in.mp4", "")
	steps := StepFactory{}.Build(cfg)

	names := make([]string, 0, len(steps))
	for _, s := range steps {
		names = append(names, s.Name)
	}
	assert.Equal(t, models.StepOrder, names)

	filtered := FilterExecutable(steps, input.KindAudio)
	for _, s := range filtered {
		assert.NotEqual(t, models.StepExtractAudio, s.Name)
	}
	assert.Len(t, filtered, 3)
}

func TestExecutorWrapsStepErrors(t *testing.T) {
	x := NewExecutor(nil, nil)
	steps := []BoundStep{{
		WorkflowStep: models.WorkflowStep{Name: "boom"},
		Run: func(context.Context, *cancel.Token, map[string]any) (models.StageResult, error) {
			return nil, assert.AnError
		},
	}}

	_, err := x.Run(context.Background(), nil, steps, nil)
	var stageErr *recaperr.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "boom", stageErr.Step)
}

func TestExecutorPropagatesCancellationUnwrapped(t *testing.T) {
	x := NewExecutor(nil, nil)
	token := cancel.NewToken()
	token.Cancel()

	ran := false
	steps := []BoundStep{{
		WorkflowStep: models.WorkflowStep{Name: "never"},
		Run: func(context.Context, *cancel.Token, map[string]any) (models.StageResult, error) {
			ran = true
			return nil, nil
		},
	}}

	_, err := x.Run(context.Background(), token, steps, nil)
	assert.ErrorIs(t, err, recaperr.ErrCancelled)
	assert.False(t, ran)

	var stageErr *recaperr.StageError
	assert.False(t, errors.As(err, &stageErr))
}
