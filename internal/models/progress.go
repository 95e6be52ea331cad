package models

// StageStatus is the lifecycle state of a single stage within a progress
// snapshot.
type StageStatus string

const (
	StagePending  StageStatus = "pending"
	StageActive   StageStatus = "active"
	StageComplete StageStatus = "complete"
	StageError    StageStatus = "error"
)

// StageProgress is the per-stage entry of a progress snapshot.
type StageProgress struct {
	Status         StageStatus `json:"status"`
	ElapsedSeconds float64     `json:"elapsed_seconds"`
	Message        string      `json:"message,omitempty"`
}

// WorkflowProgress is a point-in-time snapshot of a run. Overall percent is
// derived from completed stages over total stages.
type WorkflowProgress struct {
	OverallPercent float64                  `json:"overall_percent"`
	CurrentStage   string                   `json:"current_stage"`
	StageMessage   string                   `json:"stage_message,omitempty"`
	PerStage       map[string]StageProgress `json:"per_stage"`
}

// NewWorkflowProgress returns a snapshot with every named stage pending.
func NewWorkflowProgress(stages []string) *WorkflowProgress {
	per := make(map[string]StageProgress, len(stages))
	for _, name := range stages {
		per[name] = StageProgress{Status: StagePending}
	}
	return &WorkflowProgress{PerStage: per}
}

// SetStage updates one stage entry and recomputes the overall percentage.
func (p *WorkflowProgress) SetStage(name string, status StageStatus, elapsed float64, message string) {
	p.PerStage[name] = StageProgress{Status: status, ElapsedSeconds: elapsed, Message: message}
	if status == StageActive {
		p.CurrentStage = name
		p.StageMessage = message
	}
	p.recompute()
}

func (p *WorkflowProgress) recompute() {
	if len(p.PerStage) == 0 {
		return
	}
	done := 0
	for _, s := range p.PerStage {
		if s.Status == StageComplete {
			done++
		}
	}
	p.OverallPercent = float64(done) / float64(len(p.PerStage)) * 100
}
