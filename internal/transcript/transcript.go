// Package transcript defines the transcript data model and the readers and
// writers for the supported on-disk formats: JSON (canonical), plain text,
// SRT, and WebVTT.
package transcript

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/recapd/recapd/internal/recaperr"
)

// Word is a word-level timing entry within a segment.
type Word struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Segment is one diarized utterance.
type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker string  `json:"speaker,omitempty"`
	Words   []Word  `json:"words,omitempty"`
}

// Transcript is a parsed transcript. Duration is the end time of the last
// segment.
type Transcript struct {
	Segments   []Segment
	Duration   float64
	OutputFile string
}

// Load reads a transcript from path, dispatching on the file extension.
// JSON accepts both a bare segment array and a {"segments": [...]} wrapper.
// Plain text becomes a single untimed segment.
func Load(path string) (*Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, recaperr.NewNotFoundError(path)
		}
		return nil, recaperr.NewFileOperationError("read", path, err)
	}

	var segments []Segment
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		segments, err = parseJSON(data)
	case ".txt":
		segments = parseText(data)
	case ".srt":
		segments, err = parseSRT(data)
	case ".vtt":
		segments, err = parseWebVTT(data)
	default:
		return nil, recaperr.NewValidationError("transcript", "unsupported transcript format: "+filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, recaperr.NewValidationError("transcript", "transcript contains no segments")
	}

	return &Transcript{
		Segments:   segments,
		Duration:   segments[len(segments)-1].End,
		OutputFile: path,
	}, nil
}

func parseJSON(data []byte) ([]Segment, error) {
	var segments []Segment
	if err := json.Unmarshal(data, &segments); err == nil {
		return segments, nil
	}

	var wrapper struct {
		Segments []Segment `json:"segments"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, recaperr.NewValidationError("transcript", "malformed transcript JSON")
	}
	return wrapper.Segments, nil
}

func parseText(data []byte) []Segment {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil
	}
	return []Segment{{Text: text}}
}

// Text returns the plain text of the transcript, one segment per line with
// speaker prefixes when present.
func (t *Transcript) Text() string {
	var b strings.Builder
	for i, seg := range t.Segments {
		if i > 0 {
			b.WriteByte('\n')
		}
		if seg.Speaker != "" {
			b.WriteString("[" + seg.Speaker + "] ")
		}
		b.WriteString(seg.Text)
	}
	return b.String()
}

// Chunks splits the segments into consecutive windows of at most seconds of
// audio each, measured from each window's first segment start. A
// non-positive window returns a single chunk.
func (t *Transcript) Chunks(seconds float64) [][]Segment {
	if seconds <= 0 || len(t.Segments) == 0 {
		return [][]Segment{t.Segments}
	}

	var chunks [][]Segment
	var current []Segment
	windowStart := t.Segments[0].Start
	for _, seg := range t.Segments {
		if len(current) > 0 && seg.End-windowStart > seconds {
			chunks = append(chunks, current)
			current = nil
			windowStart = seg.Start
		}
		current = append(current, seg)
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}
