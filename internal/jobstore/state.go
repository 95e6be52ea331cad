package jobstore

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/recapd/recapd/internal/models"
	"github.com/recapd/recapd/internal/recaperr"
	"github.com/recapd/recapd/internal/shutdown"
	"github.com/recapd/recapd/internal/storage"
)

// StateManager writes the live checkpoint of one engine run to
// {job_id}.state.json. A shutdown handler registered at StartJob marks the
// state interrupted if the process goes down mid-run; completing or failing
// the job unregisters it.
type StateManager struct {
	layout   *storage.Layout
	shutdown *shutdown.Manager
	logger   *slog.Logger

	mu         sync.Mutex
	jobID      string
	status     models.StateStatus
	fields     map[string]any
	unregister func()
}

// NewStateManager creates a manager over the given layout.
func NewStateManager(layout *storage.Layout, sm *shutdown.Manager, logger *slog.Logger) *StateManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &StateManager{layout: layout, shutdown: sm, logger: logger}
}

func stateFile(id string) string {
	return path.Join(jobsDir, id+stateSuffix)
}

// StartJob writes a running checkpoint and hooks the shutdown chain.
func (m *StateManager) StartJob(jobID string, initial map[string]any) error {
	if jobID == "" {
		return recaperr.NewValidationError("job_id", "job id is required")
	}

	m.mu.Lock()
	m.jobID = jobID
	m.status = models.StateRunning
	m.fields = make(map[string]any, len(initial))
	for k, v := range initial {
		m.fields[k] = v
	}
	m.mu.Unlock()

	if m.shutdown != nil {
		m.unregister = m.shutdown.RegisterHandler(m.markInterrupted)
	}
	return m.persist()
}

// UpdateState merges fields into the checkpoint and persists it.
func (m *StateManager) UpdateState(fields map[string]any) error {
	m.mu.Lock()
	if m.jobID == "" {
		m.mu.Unlock()
		return recaperr.NewValidationError("job_id", "no job started")
	}
	for k, v := range fields {
		m.fields[k] = v
	}
	m.mu.Unlock()
	return m.persist()
}

// CompleteJob writes a completed checkpoint and detaches from the shutdown
// chain.
func (m *StateManager) CompleteJob(result map[string]any) error {
	return m.finish(models.StateCompleted, result)
}

// FailJob writes a failed checkpoint with the error message and detaches
// from the shutdown chain.
func (m *StateManager) FailJob(runErr error) error {
	fields := map[string]any{}
	if runErr != nil {
		fields["error"] = runErr.Error()
	}
	return m.finish(models.StateFailed, fields)
}

func (m *StateManager) finish(status models.StateStatus, fields map[string]any) error {
	m.mu.Lock()
	if m.jobID == "" {
		m.mu.Unlock()
		return recaperr.NewValidationError("job_id", "no job started")
	}
	m.status = status
	for k, v := range fields {
		m.fields[k] = v
	}
	unregister := m.unregister
	m.unregister = nil
	m.mu.Unlock()

	if unregister != nil {
		unregister()
	}
	return m.persist()
}

// markInterrupted runs from the shutdown cleanup chain.
func (m *StateManager) markInterrupted() {
	m.mu.Lock()
	if m.jobID == "" || m.status != models.StateRunning {
		m.mu.Unlock()
		return
	}
	m.status = models.StateInterrupted
	m.mu.Unlock()

	if err := m.persist(); err != nil {
		m.logger.Error("marking job interrupted failed", slog.Any("error", err))
	}
}

func (m *StateManager) persist() error {
	m.mu.Lock()
	state := models.JobState{
		JobID:     m.jobID,
		Status:    m.status,
		UpdatedAt: time.Now().UTC(),
		Fields:    make(map[string]any, len(m.fields)),
	}
	for k, v := range m.fields {
		state.Fields[k] = v
	}
	m.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return recaperr.NewFileOperationError("marshal", stateFile(state.JobID), err)
	}
	if err := m.layout.AtomicWrite(stateFile(state.JobID), data); err != nil {
		return recaperr.NewFileOperationError("write", stateFile(state.JobID), err)
	}
	return nil
}

// InterruptedJobs scans the jobs directory for interrupted state files.
// Used at startup to surface runs that need resumption.
func InterruptedJobs(layout *storage.Layout, logger *slog.Logger) ([]models.JobState, error) {
	if logger == nil {
		logger = slog.Default()
	}
	entries, err := layout.List(jobsDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, recaperr.NewFileOperationError("list", jobsDir, err)
	}

	var interrupted []models.JobState
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, stateSuffix) {
			continue
		}
		data, err := layout.ReadFile(path.Join(jobsDir, name))
		if err != nil {
			continue
		}
		var state models.JobState
		if err := json.Unmarshal(data, &state); err != nil {
			logger.Warn("malformed job state", slog.String("file", name), slog.Any("error", err))
			continue
		}
		if state.Status == models.StateInterrupted {
			interrupted = append(interrupted, state)
		}
	}
	return interrupted, nil
}
