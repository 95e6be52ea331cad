package storage

import (
	"path/filepath"
	"strings"
)

// Directory names under the data base directory.
const (
	videoDirName      = "video"
	audioDirName      = "audio"
	transcriptDirName = "transcript"
	summaryDirName    = "summary"
	tempDirName       = "temp"
	jobsDirName       = "jobs"
)

// processingSuffixes are stripped from file stems so every artifact of a
// recording lands in the same per-stem directory regardless of which
// intermediate file produced it.
var processingSuffixes = []string{"_extracted", "_volume", "_normalized"}

// Layout maps workflow artifacts onto the data directory tree:
//
//	video/                                 source video files
//	audio/{stem}/                          intermediate audio artifacts
//	transcript/{stem}/{stem}.json          primary transcript
//	summary/{stem}/{template}/             per-template summaries
//	temp/                                  scratch, cleaned at shutdown
//	jobs/                                  job records and state checkpoints
type Layout struct {
	*Sandbox
}

// NewLayout creates a Layout rooted at baseDir and ensures the tree exists.
func NewLayout(baseDir string) (*Layout, error) {
	sb, err := NewSandbox(baseDir)
	if err != nil {
		return nil, err
	}
	l := &Layout{Sandbox: sb}
	if err := l.EnsureTree(); err != nil {
		return nil, err
	}
	return l, nil
}

// EnsureTree creates the top-level data directories.
func (l *Layout) EnsureTree() error {
	for _, dir := range []string{videoDirName, audioDirName, transcriptDirName, summaryDirName, tempDirName, jobsDirName} {
		if err := l.MkdirAll(dir); err != nil {
			return err
		}
	}
	return nil
}

// Stem returns the artifact stem for a file path: the basename without
// extension, with known processing suffixes stripped.
func Stem(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for changed := true; changed; {
		changed = false
		for _, suffix := range processingSuffixes {
			if strings.HasSuffix(stem, suffix) {
				stem = strings.TrimSuffix(stem, suffix)
				changed = true
			}
		}
	}
	return stem
}

// VideoDir returns the absolute source-video directory.
func (l *Layout) VideoDir() string {
	return filepath.Join(l.BaseDir(), videoDirName)
}

// AudioDir returns the absolute audio artifact directory for a stem.
func (l *Layout) AudioDir(stem string) string {
	return filepath.Join(l.BaseDir(), audioDirName, stem)
}

// AudioPath returns the path of an audio artifact in the given format.
func (l *Layout) AudioPath(stem, format string) string {
	return filepath.Join(l.AudioDir(stem), stem+"."+format)
}

// TranscriptDir returns the absolute transcript directory for a stem.
func (l *Layout) TranscriptDir(stem string) string {
	return filepath.Join(l.BaseDir(), transcriptDirName, stem)
}

// TranscriptPath returns the primary transcript JSON path for a stem.
func (l *Layout) TranscriptPath(stem string) string {
	return filepath.Join(l.TranscriptDir(stem), stem+".json")
}

// SummaryDir returns the summary directory for a stem and template.
func (l *Layout) SummaryDir(stem, template string) string {
	return filepath.Join(l.BaseDir(), summaryDirName, stem, template)
}

// SummaryPath returns a summary artifact path; ext is "json" or "md".
func (l *Layout) SummaryPath(stem, template, ext string) string {
	return filepath.Join(l.SummaryDir(stem, template), stem+".summary."+ext)
}

// TempDir returns the absolute scratch directory.
func (l *Layout) TempDir() string {
	return filepath.Join(l.BaseDir(), tempDirName)
}

// JobsDir returns the absolute job store directory.
func (l *Layout) JobsDir() string {
	return filepath.Join(l.BaseDir(), jobsDirName)
}
