package workflow

import (
	"github.com/recapd/recapd/internal/input"
	"github.com/recapd/recapd/internal/models"
)

// StepFactory materializes the declarative step list from a workflow config.
type StepFactory struct{}

// Build returns the four steps in fixed execution order with their settings
// populated from the config. Only extract_audio carries a RequiredKind; the
// remaining steps are gated at runtime by engine state.
func (StepFactory) Build(cfg *models.WorkflowConfig) []models.WorkflowStep {
	video := input.KindVideo
	return []models.WorkflowStep{
		{
			Name:         models.StepExtractAudio,
			Enabled:      cfg.ExtractAudio,
			RequiredKind: &video,
			Settings: map[string]any{
				"format":  cfg.AudioFormat,
				"quality": cfg.AudioQuality,
			},
		},
		{
			Name:    models.StepProcessAudio,
			Enabled: cfg.ProcessAudio,
			Settings: map[string]any{
				"normalize":       cfg.NormalizeAudio,
				"increase_volume": cfg.IncreaseVolume,
				"volume_gain_db":  cfg.VolumeGainDB,
				"output_formats":  cfg.OutputFormats,
				"quality":         cfg.AudioQuality,
			},
		},
		{
			Name:    models.StepTranscribe,
			Enabled: cfg.Transcribe,
			Settings: map[string]any{
				"model":    cfg.TranscribeModel,
				"language": cfg.Language,
			},
		},
		{
			Name:    models.StepSummarize,
			Enabled: cfg.Summarize,
			Settings: map[string]any{
				"template":    cfg.SummaryTemplate,
				"provider":    cfg.Provider,
				"model":       cfg.Model,
				"auto_detect": cfg.AutoDetectTemplate,
			},
		},
	}
}

// FilterExecutable keeps the steps whose CanExecute predicate holds for the
// given input kind.
func FilterExecutable(steps []models.WorkflowStep, kind input.Kind) []models.WorkflowStep {
	out := make([]models.WorkflowStep, 0, len(steps))
	for _, s := range steps {
		if s.CanExecute(kind) {
			out = append(out, s)
		}
	}
	return out
}

// Typed accessors for step settings. Missing or mistyped keys yield the zero
// value.

func settingString(settings map[string]any, key string) string {
	if v, ok := settings[key].(string); ok {
		return v
	}
	return ""
}

func settingBool(settings map[string]any, key string) bool {
	if v, ok := settings[key].(bool); ok {
		return v
	}
	return false
}

func settingFloat(settings map[string]any, key string) float64 {
	if v, ok := settings[key].(float64); ok {
		return v
	}
	return 0
}

func settingStrings(settings map[string]any, key string) []string {
	if v, ok := settings[key].([]string); ok {
		return v
	}
	return nil
}
