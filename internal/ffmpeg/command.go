package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/recapd/recapd/internal/cancel"
	"github.com/recapd/recapd/internal/recaperr"
)

// stderrCaptureLimit caps how much ffmpeg stderr is retained for error
// reporting.
const stderrCaptureLimit = 16 * 1024

// CommandBuilder assembles an ffmpeg invocation with a fluent API.
type CommandBuilder struct {
	binary     string
	globalArgs []string
	input      string
	outputArgs []string
	output     string
	logLevel   string
	overwrite  bool
}

// NewCommandBuilder creates a builder for the given ffmpeg binary.
func NewCommandBuilder(ffmpegPath string) *CommandBuilder {
	return &CommandBuilder{binary: ffmpegPath, logLevel: "error"}
}

// LogLevel sets the ffmpeg log level.
func (b *CommandBuilder) LogLevel(level string) *CommandBuilder {
	b.logLevel = level
	return b
}

// HideBanner suppresses the startup banner.
func (b *CommandBuilder) HideBanner() *CommandBuilder {
	b.globalArgs = append(b.globalArgs, "-hide_banner")
	return b
}

// Overwrite allows replacing an existing output file.
func (b *CommandBuilder) Overwrite() *CommandBuilder {
	b.overwrite = true
	return b
}

// Input sets the input file.
func (b *CommandBuilder) Input(path string) *CommandBuilder {
	b.input = path
	return b
}

// NoVideo drops all video streams.
func (b *CommandBuilder) NoVideo() *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-vn")
	return b
}

// AudioCodec sets the audio encoder.
func (b *CommandBuilder) AudioCodec(codec string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-c:a", codec)
	return b
}

// AudioBitrate sets the audio bitrate (e.g. "192k").
func (b *CommandBuilder) AudioBitrate(bitrate string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-b:a", bitrate)
	return b
}

// AudioFilter appends an -af filter expression.
func (b *CommandBuilder) AudioFilter(filter string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-af", filter)
	return b
}

// SampleRate sets the output sample rate in Hz.
func (b *CommandBuilder) SampleRate(hz int) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-ar", strconv.Itoa(hz))
	return b
}

// Channels sets the output channel count.
func (b *CommandBuilder) Channels(n int) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-ac", strconv.Itoa(n))
	return b
}

// Format forces the output container format.
func (b *CommandBuilder) Format(format string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-f", format)
	return b
}

// Output sets the output file.
func (b *CommandBuilder) Output(path string) *CommandBuilder {
	b.output = path
	return b
}

// Args returns the assembled argument list.
func (b *CommandBuilder) Args() []string {
	args := []string{"-loglevel", b.logLevel}
	args = append(args, b.globalArgs...)
	if b.overwrite {
		args = append(args, "-y")
	}
	if b.input != "" {
		args = append(args, "-i", b.input)
	}
	args = append(args, b.outputArgs...)
	if b.output != "" {
		args = append(args, b.output)
	}
	return args
}

// Build finalizes the command.
func (b *CommandBuilder) Build() *Command {
	return &Command{binary: b.binary, args: b.Args(), input: b.input}
}

// Command is a runnable ffmpeg invocation.
type Command struct {
	binary string
	args   []string
	input  string
}

// String renders the command line for logging.
func (c *Command) String() string {
	return c.binary + " " + fmt.Sprint(c.args)
}

// Run executes ffmpeg. The process is killed when ctx is done or the token
// trips; cancellation surfaces as ErrCancelled. A non-zero exit returns an
// AudioProcessingError carrying the captured stderr tail.
func (c *Command) Run(ctx context.Context, token *cancel.Token) error {
	if token != nil {
		if err := token.Check(); err != nil {
			return err
		}
		var cancelCtx context.CancelFunc
		ctx, cancelCtx = token.Context(ctx)
		defer cancelCtx()
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.binary, c.args...)
	cmd.Stderr = &limitedWriter{w: &stderr, limit: stderrCaptureLimit}

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if token != nil && token.IsCancelled() {
		return recaperr.ErrCancelled
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return recaperr.NewAudioProcessingError(c.input, stderr.String(), err)
}

type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	remaining := l.limit - l.w.Len()
	if remaining > 0 {
		if len(p) > remaining {
			l.w.Write(p[:remaining])
		} else {
			l.w.Write(p)
		}
	}
	// Report full length so the process never blocks on stderr.
	return len(p), nil
}
