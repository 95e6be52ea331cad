package transcript

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/recapd/recapd/internal/recaperr"
)

// parseSRT parses SubRip subtitles: numbered blocks separated by blank
// lines, timecoded HH:MM:SS,mmm --> HH:MM:SS,mmm. A leading [name] on the
// text becomes the segment speaker.
func parseSRT(data []byte) ([]Segment, error) {
	return parseCues(data, ",")
}

// parseWebVTT parses WebVTT: same cue structure with a WEBVTT header and
// dot-separated milliseconds. <v name> voice tags become the speaker.
func parseWebVTT(data []byte) ([]Segment, error) {
	return parseCues(data, ".")
}

func parseCues(data []byte, msSep string) ([]Segment, error) {
	var segments []Segment
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		inCue      bool
		start, end float64
		textLines  []string
	)
	flush := func() {
		if inCue && len(textLines) > 0 {
			text := strings.Join(textLines, " ")
			speaker, text := splitSpeaker(text)
			segments = append(segments, Segment{Start: start, End: end, Text: text, Speaker: speaker})
		}
		inCue = false
		textLines = nil
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			flush()
		case strings.Contains(line, "-->"):
			flush()
			var err error
			start, end, err = parseCueTiming(line, msSep)
			if err != nil {
				return nil, err
			}
			inCue = true
		case inCue:
			textLines = append(textLines, line)
		}
		// Lines before the first timing (WEBVTT header, cue numbers, ids)
		// are skipped.
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, recaperr.NewValidationError("transcript", "unreadable subtitle data: "+err.Error())
	}
	return segments, nil
}

func parseCueTiming(line, msSep string) (float64, float64, error) {
	parts := strings.SplitN(line, "-->", 2)
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
		return 0, 0, recaperr.NewValidationError("transcript", "malformed cue timing: "+line)
	}
	start, err := parseTimecode(strings.Fields(parts[0])[0], msSep)
	if err != nil {
		return 0, 0, err
	}
	end, err := parseTimecode(strings.Fields(parts[1])[0], msSep)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// parseTimecode accepts HH:MM:SS<sep>mmm and MM:SS<sep>mmm.
func parseTimecode(tc, msSep string) (float64, error) {
	malformed := func() error {
		return recaperr.NewValidationError("transcript", "malformed timecode: "+tc)
	}

	main, msPart, ok := strings.Cut(tc, msSep)
	ms := 0
	if ok {
		var err error
		ms, err = strconv.Atoi(msPart)
		if err != nil {
			return 0, malformed()
		}
	}

	fields := strings.Split(main, ":")
	if len(fields) < 2 || len(fields) > 3 {
		return 0, malformed()
	}
	seconds := 0
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return 0, malformed()
		}
		seconds = seconds*60 + n
	}
	return float64(seconds) + float64(ms)/1000, nil
}

func splitSpeaker(text string) (speaker, rest string) {
	if strings.HasPrefix(text, "[") {
		if i := strings.Index(text, "]"); i > 1 {
			return text[1:i], strings.TrimSpace(text[i+1:])
		}
	}
	if strings.HasPrefix(text, "<v ") {
		if i := strings.Index(text, ">"); i > 3 {
			rest = strings.TrimSpace(strings.TrimSuffix(text[i+1:], "</v>"))
			return text[3:i], rest
		}
	}
	return "", text
}

// WriteSRT writes segments as SubRip subtitles with HH:MM:SS,mmm timecodes
// and bracketed speaker prefixes when a speaker is present.
func WriteSRT(w io.Writer, segments []Segment) error {
	for i, seg := range segments {
		text := seg.Text
		if seg.Speaker != "" {
			text = "[" + seg.Speaker + "] " + text
		}
		_, err := fmt.Fprintf(w, "%d\n%s --> %s\n%s\n\n",
			i+1, formatTimecode(seg.Start), formatTimecode(seg.End), text)
		if err != nil {
			return err
		}
	}
	return nil
}

// SaveSRT writes the transcript as an SRT file at path.
func (t *Transcript) SaveSRT(path string) error {
	var buf bytes.Buffer
	if err := WriteSRT(&buf, t.Segments); err != nil {
		return recaperr.NewFileOperationError("write", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return recaperr.NewFileOperationError("write", path, err)
	}
	return nil
}

func formatTimecode(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	ms := int(seconds*1000 + 0.5)
	h := ms / 3600000
	m := ms % 3600000 / 60000
	s := ms % 60000 / 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms%1000)
}
