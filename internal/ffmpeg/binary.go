// Package ffmpeg wraps the ffmpeg and ffprobe binaries for audio
// extraction, conditioning, and probing. Commands honor context and
// cancellation tokens; failures carry captured stderr.
package ffmpeg

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/recapd/recapd/internal/recaperr"
)

// Binaries holds the resolved tool paths.
type Binaries struct {
	FFmpeg  string
	FFprobe string
	Version string
}

var versionPattern = regexp.MustCompile(`ffmpeg version (\S+)`)

// Detect resolves the ffmpeg and ffprobe binaries. Search order: explicit
// override, RECAPD_FFMPEG_BINARY / RECAPD_FFPROBE_BINARY, a sibling binary
// in the working directory, then PATH. ffmpeg is required; ffprobe is
// optional (probing degrades).
func Detect(ctx context.Context, ffmpegOverride, ffprobeOverride string) (*Binaries, error) {
	ffmpegPath, err := findBinary("ffmpeg", ffmpegOverride, "RECAPD_FFMPEG_BINARY")
	if err != nil {
		return nil, recaperr.NewConfigurationError("ffmpeg.binary_path",
			"ffmpeg binary not found; install ffmpeg or set ffmpeg.binary_path")
	}

	b := &Binaries{FFmpeg: ffmpegPath}
	if probePath, err := findBinary("ffprobe", ffprobeOverride, "RECAPD_FFPROBE_BINARY"); err == nil {
		b.FFprobe = probePath
	}

	out, err := exec.CommandContext(ctx, ffmpegPath, "-version").Output()
	if err != nil {
		return nil, recaperr.NewConfigurationError("ffmpeg.binary_path",
			"ffmpeg binary is not executable: "+err.Error())
	}
	b.Version = ParseVersion(string(out))
	return b, nil
}

// ParseVersion extracts the version token from `ffmpeg -version` output.
func ParseVersion(output string) string {
	if m := versionPattern.FindStringSubmatch(output); m != nil {
		return m[1]
	}
	return "unknown"
}

func findBinary(name, override, envKey string) (string, error) {
	if override != "" {
		if _, err := os.Stat(override); err != nil {
			return "", err
		}
		return override, nil
	}
	if env := os.Getenv(envKey); env != "" {
		if _, err := os.Stat(env); err == nil {
			return env, nil
		}
	}
	if local, err := filepath.Abs("./" + name); err == nil {
		if info, err := os.Stat(local); err == nil && !info.IsDir() && info.Mode()&0111 != 0 {
			return local, nil
		}
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(path) == "" {
		return "", exec.ErrNotFound
	}
	return path, nil
}
