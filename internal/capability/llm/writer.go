package llm

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/recapd/recapd/internal/recaperr"
	"github.com/recapd/recapd/internal/storage"
)

// summaryMetadata is the JSON artifact shape.
type summaryMetadata struct {
	Transcript   string    `json:"transcript"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	ChunkSeconds int       `json:"chunk_seconds"`
	CoDPasses    int       `json:"cod_passes"`
	Template     string    `json:"template"`
	TemplateName string    `json:"template_name"`
	AutoDetected bool      `json:"auto_detected"`
	Timestamp    time.Time `json:"timestamp"`
	Summary      string    `json:"summary"`
}

// writeArtifacts writes {stem}.summary.json and {stem}.summary.md into
// outputDir and returns both paths.
func writeArtifacts(transcriptPath, outputDir string, meta summaryMetadata) (string, string, error) {
	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		return "", "", recaperr.NewFileOperationError("mkdir", outputDir, err)
	}
	stem := storage.Stem(transcriptPath)

	jsonPath := filepath.Join(outputDir, stem+".summary.json")
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", "", recaperr.NewFileOperationError("marshal", jsonPath, err)
	}
	if err := os.WriteFile(jsonPath, data, 0o640); err != nil {
		return "", "", recaperr.NewFileOperationError("write", jsonPath, err)
	}

	mdPath := filepath.Join(outputDir, stem+".summary.md")
	md := fmt.Sprintf("# %s\n\n- **Template:** %s (%s)\n- **Provider:** %s\n- **Model:** %s\n- **Generated:** %s\n\n---\n\n%s\n",
		stem, meta.TemplateName, meta.Template, meta.Provider, meta.Model,
		meta.Timestamp.Format(time.RFC3339), meta.Summary)
	if err := os.WriteFile(mdPath, []byte(md), 0o640); err != nil {
		return "", "", recaperr.NewFileOperationError("write", mdPath, err)
	}

	return jsonPath, mdPath, nil
}
