// Package input classifies and validates workflow input files. Kind
// detection is a closed extension allow-list; anything else is unknown and
// rejected before the pipeline starts.
package input

import (
	"path/filepath"
	"strings"
)

// Kind identifies the category of an input file.
type Kind string

const (
	// KindVideo is a video container requiring audio extraction.
	KindVideo Kind = "video"
	// KindAudio is an audio file ready for conditioning and transcription.
	KindAudio Kind = "audio"
	// KindTranscript is a pre-existing transcript (json, txt, srt).
	KindTranscript Kind = "transcript"
	// KindUnknown is anything outside the allow-lists.
	KindUnknown Kind = "unknown"
)

// Extension allow-lists. Extensions are matched lowercase without the dot.
var (
	videoExtensions      = map[string]bool{"mp4": true, "mkv": true, "avi": true, "mov": true, "wmv": true, "flv": true, "webm": true, "m4v": true}
	audioExtensions      = map[string]bool{"m4a": true, "mka": true, "ogg": true, "mp3": true, "wav": true, "webm": true, "flac": true}
	transcriptExtensions = map[string]bool{"json": true, "txt": true, "srt": true}
)

// Classify returns the Kind of the file at path based on its extension.
// webm appears in both the video and audio lists; it classifies as video
// since extraction handles audio-only containers transparently.
func Classify(path string) Kind {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch {
	case videoExtensions[ext]:
		return KindVideo
	case audioExtensions[ext]:
		return KindAudio
	case transcriptExtensions[ext]:
		return KindTranscript
	default:
		return KindUnknown
	}
}

// IsMedia reports whether the kind is subject to the media size cap.
func (k Kind) IsMedia() bool {
	return k == KindVideo || k == KindAudio
}

// String returns the kind tag.
func (k Kind) String() string { return string(k) }
