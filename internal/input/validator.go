package input

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/recapd/recapd/internal/recaperr"
)

// DefaultMaxMediaSizeMB is the size cap applied to video and audio inputs
// when the caller does not supply one. Transcripts are not size-gated.
const DefaultMaxMediaSizeMB = 500

// maxPathLength rejects paths longer than the common Windows MAX_PATH limit
// so artifacts stay portable.
const maxPathLength = 260

// traversalTokens are rejected anywhere in a path, including URL-encoded
// variants that decode to "..".
var traversalTokens = []string{"..", "%2e%2e", "%2E%2E", "%2e.", ".%2e", "%252e"}

// windowsReservedNames are device names that must not be used as basenames.
var windowsReservedNames = map[string]bool{
	"con": true, "prn": true, "aux": true, "nul": true,
	"com1": true, "com2": true, "com3": true, "com4": true,
	"com5": true, "com6": true, "com7": true, "com8": true, "com9": true,
	"lpt1": true, "lpt2": true, "lpt3": true, "lpt4": true,
	"lpt5": true, "lpt6": true, "lpt7": true, "lpt8": true, "lpt9": true,
}

// ValidateOptions control path validation.
type ValidateOptions struct {
	// AllowedRoot, when set, requires the canonical path to resolve inside
	// this directory.
	AllowedRoot string
}

// ValidatePath rejects directory traversal tokens, control characters,
// Windows-reserved basenames, over-long paths, and paths escaping the
// optional allowed root. It returns the cleaned absolute path. No I/O is
// performed beyond canonicalization.
func ValidatePath(path string, opts ValidateOptions) (string, error) {
	if path == "" {
		return "", recaperr.NewValidationError("path", "path is empty")
	}
	if len(path) > maxPathLength {
		return "", recaperr.NewValidationError("path", "path exceeds maximum length")
	}

	lower := strings.ToLower(path)
	for _, token := range traversalTokens {
		if strings.Contains(lower, strings.ToLower(token)) {
			return "", recaperr.NewValidationError("path", "path contains traversal token")
		}
	}

	for _, r := range path {
		if r < 0x20 || r == 0x7f {
			return "", recaperr.NewValidationError("path", "path contains control characters")
		}
	}

	base := strings.ToLower(filepath.Base(path))
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	if windowsReservedNames[base] {
		return "", recaperr.NewValidationError("path", "path uses a reserved basename")
	}

	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", recaperr.NewValidationError("path", "path cannot be canonicalized")
	}

	if opts.AllowedRoot != "" {
		root, err := filepath.Abs(opts.AllowedRoot)
		if err != nil {
			return "", recaperr.NewValidationError("allowed_root", "allowed root cannot be canonicalized")
		}
		if abs != root && !strings.HasPrefix(abs, root+string(filepath.Separator)) {
			return "", recaperr.NewValidationError("path", "path escapes allowed root")
		}
	}

	return abs, nil
}

// ValidateFileSize enforces the media size cap on the file at path.
// Transcripts are exempt. maxMB <= 0 applies the default cap.
func ValidateFileSize(path string, maxMB int, kind Kind) error {
	if !kind.IsMedia() {
		return nil
	}
	if maxMB <= 0 {
		maxMB = DefaultMaxMediaSizeMB
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return recaperr.NewNotFoundError(path)
		}
		return recaperr.NewFileOperationError("stat", path, err)
	}

	limit := int64(maxMB) * 1024 * 1024
	if info.Size() > limit {
		return recaperr.NewValidationError("file_size",
			fmt.Sprintf("file exceeds maximum size of %d MB", maxMB))
	}
	return nil
}

// ValidateWorkflowInput composes path safety, classification, and the size
// cap. It returns the canonical path and detected kind.
func ValidateWorkflowInput(path string, maxMB int, opts ValidateOptions) (string, Kind, error) {
	canonical, err := ValidatePath(path, opts)
	if err != nil {
		return "", KindUnknown, err
	}

	kind := Classify(canonical)
	if kind == KindUnknown {
		return "", KindUnknown, recaperr.NewValidationError("path", "unsupported file extension")
	}

	if _, err := os.Stat(canonical); err != nil {
		if os.IsNotExist(err) {
			return "", kind, recaperr.NewNotFoundError(canonical)
		}
		return "", kind, recaperr.NewFileOperationError("stat", canonical, err)
	}

	if err := ValidateFileSize(canonical, maxMB, kind); err != nil {
		return "", kind, err
	}

	return canonical, kind, nil
}
