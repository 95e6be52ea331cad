package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recapd/recapd/internal/input"
)

func TestWorkflowConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*WorkflowConfig)
		kind    input.Kind
		wantErr string
	}{
		{"all gates video", func(c *WorkflowConfig) {}, input.KindVideo, ""},
		{"no gates", func(c *WorkflowConfig) {
			c.ExtractAudio, c.ProcessAudio, c.Transcribe, c.Summarize = false, false, false, false
		}, input.KindVideo, "at least one"},
		{"extract on audio input", func(c *WorkflowConfig) {}, input.KindAudio, "video input"},
		{"audio without extraction", func(c *WorkflowConfig) {
			c.ExtractAudio = false
		}, input.KindAudio, ""},
		{"transcribe on transcript input", func(c *WorkflowConfig) {
			c.ExtractAudio = false
			c.ProcessAudio = false
		}, input.KindTranscript, "video or audio"},
		{"summarize only on transcript", func(c *WorkflowConfig) {
			c.ExtractAudio, c.ProcessAudio, c.Transcribe = false, false, false
		}, input.KindTranscript, ""},
		{"summarize only on audio", func(c *WorkflowConfig) {
			c.ExtractAudio, c.ProcessAudio, c.Transcribe = false, false, false
		}, input.KindAudio, "transcript"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewWorkflowConfig("in.mp4", "out")
			tt.mutate(cfg)
			err := cfg.Validate(tt.kind)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestWorkflowStepCanExecute(t *testing.T) {
	video := input.KindVideo

	step := WorkflowStep{Name: StepExtractAudio, Enabled: true, RequiredKind: &video}
	assert.True(t, step.CanExecute(input.KindVideo))
	assert.False(t, step.CanExecute(input.KindAudio))

	step.Enabled = false
	assert.False(t, step.CanExecute(input.KindVideo))

	unrestricted := WorkflowStep{Name: StepSummarize, Enabled: true}
	assert.True(t, unrestricted.CanExecute(input.KindTranscript))
	assert.True(t, unrestricted.CanExecute(input.KindVideo))
}

func TestStageResultJSON(t *testing.T) {
	t.Run("skipped", func(t *testing.T) {
		b, err := json.Marshal(Skipped("Not a video file"))
		require.NoError(t, err)
		assert.JSONEq(t, `{"skipped":true,"reason":"Not a video file"}`, string(b))
	})

	t.Run("extract payload", func(t *testing.T) {
		r := ExtractResult{InputFile: "in.mp4", OutputFile: "out.m4a", Format: "m4a", Quality: "medium"}
		b, err := json.Marshal(r)
		require.NoError(t, err)
		assert.NotContains(t, string(b), "skipped")
		assert.Contains(t, string(b), `"output_file":"out.m4a"`)
	})

	t.Run("result map round trip", func(t *testing.T) {
		results := map[string]StageResult{
			StepExtractAudio: Skipped("Not a video file"),
			StepSummarize:    SummarizeResult{SummaryFile: "s.md", Provider: "openai"},
		}
		b, err := json.Marshal(results)
		require.NoError(t, err)
		assert.Contains(t, string(b), `"summary_file":"s.md"`)
	})
}

func TestStageResultSkippedMarker(t *testing.T) {
	assert.True(t, Skipped("").IsSkipped())
	assert.False(t, ExtractResult{}.IsSkipped())
	assert.False(t, ProcessResult{}.IsSkipped())
	assert.False(t, TranscribeResult{}.IsSkipped())
	assert.False(t, SummarizeResult{}.IsSkipped())
}

func TestWorkflowProgress(t *testing.T) {
	p := NewWorkflowProgress(StepOrder)
	assert.Equal(t, float64(0), p.OverallPercent)
	assert.Len(t, p.PerStage, 4)

	p.SetStage(StepExtractAudio, StageActive, 0, "Executing extract_audio...")
	assert.Equal(t, StepExtractAudio, p.CurrentStage)
	assert.Equal(t, float64(0), p.OverallPercent)

	p.SetStage(StepExtractAudio, StageComplete, 1.5, "")
	assert.InDelta(t, 25.0, p.OverallPercent, 0.001)

	p.SetStage(StepProcessAudio, StageComplete, 0.5, "")
	p.SetStage(StepTranscribe, StageComplete, 12, "")
	p.SetStage(StepSummarize, StageComplete, 4, "")
	assert.InDelta(t, 100.0, p.OverallPercent, 0.001)
}

func TestJobRecordJSON(t *testing.T) {
	rec := JobRecord{JobID: "abc", JobType: "workflow", Status: JobStarted}
	b, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"status":"started"`)
	assert.NotContains(t, string(b), "completed_at")

	var back JobRecord
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, rec.JobID, back.JobID)
}
