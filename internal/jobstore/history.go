// Package jobstore persists job state as JSON files under the data jobs
// directory: one {job_id}.json history record per job, plus a
// {job_id}.state.json live checkpoint while a job runs. All writes go
// through atomic temp-then-rename so readers never see partial files.
package jobstore

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/recapd/recapd/internal/models"
	"github.com/recapd/recapd/internal/recaperr"
	"github.com/recapd/recapd/internal/storage"
)

const (
	jobsDir        = "jobs"
	stateSuffix    = ".state.json"
	historySuffix  = ".json"
	defaultListCap = 50
)

// HistoryStore is the durable per-job history log.
type HistoryStore struct {
	layout *storage.Layout
	logger *slog.Logger
}

// NewHistoryStore creates a store over the given layout.
func NewHistoryStore(layout *storage.Layout, logger *slog.Logger) *HistoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryStore{layout: layout, logger: logger}
}

func historyFile(id string) string {
	return path.Join(jobsDir, id+historySuffix)
}

// Save writes the record, replacing any prior file. JobID is required.
func (s *HistoryStore) Save(rec *models.JobRecord) error {
	if rec.JobID == "" {
		return recaperr.NewValidationError("job_id", "job id is required")
	}
	now := time.Now().UTC()
	if rec.StartedAt.IsZero() {
		rec.StartedAt = now
	}
	rec.UpdatedAt = now

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return recaperr.NewFileOperationError("marshal", historyFile(rec.JobID), err)
	}
	if err := s.layout.AtomicWrite(historyFile(rec.JobID), data); err != nil {
		return recaperr.NewFileOperationError("write", historyFile(rec.JobID), err)
	}
	return nil
}

// Get returns the record for id, or nil if absent. Malformed files are
// logged and treated as absent.
func (s *HistoryStore) Get(id string) (*models.JobRecord, error) {
	data, err := s.layout.ReadFile(historyFile(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, recaperr.NewFileOperationError("read", historyFile(id), err)
	}

	var rec models.JobRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		s.logger.Warn("malformed job record",
			slog.String("job_id", id), slog.Any("error", err))
		return nil, nil
	}
	return &rec, nil
}

// Update merges patch onto the stored record and stamps updated_at.
// Reports whether the job existed.
func (s *HistoryStore) Update(id string, patch map[string]any) (bool, error) {
	data, err := s.layout.ReadFile(historyFile(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, recaperr.NewFileOperationError("read", historyFile(id), err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		s.logger.Warn("malformed job record",
			slog.String("job_id", id), slog.Any("error", err))
		return false, nil
	}
	for k, v := range patch {
		fields[k] = v
	}
	fields["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)

	merged, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return false, recaperr.NewFileOperationError("marshal", historyFile(id), err)
	}
	if err := s.layout.AtomicWrite(historyFile(id), merged); err != nil {
		return false, recaperr.NewFileOperationError("write", historyFile(id), err)
	}
	return true, nil
}

// Delete removes the record. Absent files are not an error.
func (s *HistoryStore) Delete(id string) error {
	err := s.layout.Remove(historyFile(id))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return recaperr.NewFileOperationError("delete", historyFile(id), err)
	}
	return nil
}

// ListOptions filter a listing.
type ListOptions struct {
	Limit  int
	Status models.JobStatus
	Since  time.Time
}

// List returns history records ordered by file mtime descending. Listing is
// best-effort: concurrent writers may reorder within a scan.
func (s *HistoryStore) List(opts ListOptions) ([]*models.JobRecord, error) {
	entries, err := s.layout.List(jobsDir)
	if err != nil {
		return nil, recaperr.NewFileOperationError("list", jobsDir, err)
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultListCap
	}

	type candidate struct {
		id    string
		mtime time.Time
	}
	var candidates []candidate
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasSuffix(name, stateSuffix) || !strings.HasSuffix(name, historySuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{
			id:    strings.TrimSuffix(name, historySuffix),
			mtime: info.ModTime(),
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].mtime.After(candidates[j].mtime)
	})

	var records []*models.JobRecord
	for _, c := range candidates {
		if len(records) >= opts.Limit {
			break
		}
		rec, err := s.Get(c.id)
		if err != nil || rec == nil {
			continue
		}
		if opts.Status != "" && rec.Status != opts.Status {
			continue
		}
		if !opts.Since.IsZero() && rec.StartedAt.Before(opts.Since) {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// CleanupOlderThan deletes history records whose file mtime is older than
// the cutoff and returns the count removed.
func (s *HistoryStore) CleanupOlderThan(retention time.Duration) (int, error) {
	entries, err := s.layout.List(jobsDir)
	if err != nil {
		return 0, recaperr.NewFileOperationError("list", jobsDir, err)
	}
	cutoff := time.Now().Add(-retention)

	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasSuffix(name, stateSuffix) || !strings.HasSuffix(name, historySuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := s.layout.Remove(path.Join(jobsDir, name)); err != nil {
			s.logger.Warn("history cleanup failed",
				slog.String("file", name), slog.Any("error", err))
			continue
		}
		removed++
	}
	return removed, nil
}

// Stats summarizes the history store.
type Stats struct {
	Total    int                      `json:"total"`
	ByStatus map[models.JobStatus]int `json:"by_status"`
	Oldest   time.Time                `json:"oldest,omitzero"`
	Newest   time.Time                `json:"newest,omitzero"`
}

// Stats counts records by status and tracks the oldest and newest start
// times.
func (s *HistoryStore) Stats() (Stats, error) {
	records, err := s.List(ListOptions{Limit: 1 << 30})
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{ByStatus: make(map[models.JobStatus]int)}
	for _, rec := range records {
		stats.Total++
		stats.ByStatus[rec.Status]++
		if stats.Oldest.IsZero() || rec.StartedAt.Before(stats.Oldest) {
			stats.Oldest = rec.StartedAt
		}
		if rec.StartedAt.After(stats.Newest) {
			stats.Newest = rec.StartedAt
		}
	}
	return stats, nil
}
