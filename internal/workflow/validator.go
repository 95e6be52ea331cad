// Package workflow orchestrates the staged pipeline: audio extraction,
// conditioning, transcription, and summarization. The engine binds
// declarative steps to capability calls; the executor runs them in order
// with progress emission and typed failure propagation.
package workflow

import (
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v4/disk"

	"github.com/recapd/recapd/internal/input"
	"github.com/recapd/recapd/internal/models"
	"github.com/recapd/recapd/internal/recaperr"
)

// Validator performs run preflight: path safety, kind classification, size
// cap, gate invariants, output directory creation, and a free-disk check.
type Validator struct {
	// AllowedRoot, when set, confines inputs to that directory.
	AllowedRoot string
	// MaxInputSizeMB caps media inputs; zero applies the default.
	MaxInputSizeMB int
	// MinFreeSpaceMB, when positive, requires that much free space on the
	// output volume before a run starts.
	MinFreeSpaceMB int
}

// Validate canonicalizes the config's input path, classifies it, and checks
// every preflight condition. On success the config's InputFile is replaced
// with the canonical path and the detected kind is returned.
func (v *Validator) Validate(cfg *models.WorkflowConfig) (string, input.Kind, error) {
	canonical, kind, err := input.ValidateWorkflowInput(cfg.InputFile, v.MaxInputSizeMB, input.ValidateOptions{
		AllowedRoot: v.AllowedRoot,
	})
	if err != nil {
		return "", kind, err
	}

	if err := cfg.Validate(kind); err != nil {
		return "", kind, err
	}

	if cfg.OutputDir != "" {
		if err := os.MkdirAll(cfg.OutputDir, 0o750); err != nil {
			return "", kind, recaperr.NewFileOperationError("mkdir", cfg.OutputDir, err)
		}
		if err := v.checkFreeSpace(cfg.OutputDir); err != nil {
			return "", kind, err
		}
	}

	cfg.InputFile = canonical
	return canonical, kind, nil
}

func (v *Validator) checkFreeSpace(dir string) error {
	if v.MinFreeSpaceMB <= 0 {
		return nil
	}
	usage, err := disk.Usage(dir)
	if err != nil {
		return recaperr.NewFileOperationError("statfs", dir, err)
	}
	required := uint64(v.MinFreeSpaceMB) * 1024 * 1024
	if usage.Free < required {
		return recaperr.NewValidationError("disk_space",
			fmt.Sprintf("insufficient free space: %d MB available, %d MB required",
				usage.Free/(1024*1024), v.MinFreeSpaceMB))
	}
	return nil
}
