// Package llm implements the Summarizer capability over chat-completion
// providers. Long transcripts are summarized map-reduce style over time
// windows, then refined with chain-of-density passes; results are written
// as a JSON artifact plus a Markdown rendition.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/recapd/recapd/internal/cancel"
	"github.com/recapd/recapd/internal/capability"
	"github.com/recapd/recapd/internal/recaperr"
	"github.com/recapd/recapd/internal/transcript"
)

// Provider is a chat-completion backend.
type Provider interface {
	Name() string
	Complete(ctx context.Context, model, system, user string, maxTokens int) (string, error)
}

// Options configure a Summarizer.
type Options struct {
	ChunkSeconds    int
	CoDPasses       int
	MaxOutputTokens int
	Timeout         time.Duration
	Logger          *slog.Logger
}

// Summarizer implements capability.Summarizer by dispatching to a
// registered provider.
type Summarizer struct {
	providers map[string]Provider
	opts      Options
	logger    *slog.Logger
}

// NewSummarizer creates a Summarizer with the given providers.
func NewSummarizer(opts Options, providers ...Provider) *Summarizer {
	if opts.ChunkSeconds <= 0 {
		opts.ChunkSeconds = 600
	}
	if opts.CoDPasses < 0 {
		opts.CoDPasses = 0
	}
	if opts.MaxOutputTokens <= 0 {
		opts.MaxOutputTokens = 2048
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &Summarizer{providers: byName, opts: opts, logger: logger}
}

// Summarize implements capability.Summarizer.
func (s *Summarizer) Summarize(ctx context.Context, token *cancel.Token, req capability.SummarizeRequest) (*capability.SummarizeOutput, error) {
	provider, ok := s.providers[req.Provider]
	if !ok {
		return nil, recaperr.NewConfigurationError("summary.provider",
			"no configured provider "+req.Provider+"; check credentials")
	}
	if token != nil {
		if err := token.Check(); err != nil {
			return nil, err
		}
		var cancelCtx context.CancelFunc
		ctx, cancelCtx = token.Context(ctx)
		defer cancelCtx()
	}
	if s.opts.Timeout > 0 {
		var cancelCtx context.CancelFunc
		ctx, cancelCtx = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancelCtx()
	}

	tr, err := transcript.Load(req.TranscriptPath)
	if err != nil {
		return nil, err
	}

	tpl, autoDetected, err := s.resolveTemplate(req, tr)
	if err != nil {
		return nil, err
	}
	s.logger.Info("summarizing transcript",
		slog.String("transcript", req.TranscriptPath),
		slog.String("provider", provider.Name()),
		slog.String("template", tpl.Tag),
		slog.Bool("auto_detected", autoDetected))

	summary, err := s.generate(ctx, token, provider, req.Model, tpl, tr)
	if err != nil {
		if token != nil && token.IsCancelled() {
			return nil, recaperr.ErrCancelled
		}
		return nil, err
	}

	meta := summaryMetadata{
		Transcript:   req.TranscriptPath,
		Provider:     provider.Name(),
		Model:        req.Model,
		ChunkSeconds: s.opts.ChunkSeconds,
		CoDPasses:    s.opts.CoDPasses,
		Template:     tpl.Tag,
		TemplateName: tpl.Name,
		AutoDetected: autoDetected,
		Timestamp:    time.Now().UTC(),
		Summary:      summary,
	}
	jsonPath, mdPath, err := writeArtifacts(req.TranscriptPath, req.OutputDir, meta)
	if err != nil {
		return nil, err
	}

	return &capability.SummarizeOutput{
		SummaryPath:  jsonPath,
		MarkdownPath: mdPath,
		Template:     tpl.Tag,
		AutoDetected: autoDetected,
		Provider:     provider.Name(),
		Model:        req.Model,
	}, nil
}

func (s *Summarizer) resolveTemplate(req capability.SummarizeRequest, tr *transcript.Transcript) (Template, bool, error) {
	if req.AutoDetect {
		return DetectTemplate(tr.Text()), true, nil
	}
	tag := req.Template
	if tag == "" {
		tag = "default"
	}
	tpl, err := LookupTemplate(tag)
	return tpl, false, err
}

// generate runs the map-reduce pass over transcript chunks, then the
// chain-of-density refinement passes.
func (s *Summarizer) generate(ctx context.Context, token *cancel.Token, provider Provider, model string, tpl Template, tr *transcript.Transcript) (string, error) {
	chunks := tr.Chunks(float64(s.opts.ChunkSeconds))

	var summary string
	if len(chunks) == 1 {
		out, err := provider.Complete(ctx, model, tpl.System, chunkText(chunks[0]), s.opts.MaxOutputTokens)
		if err != nil {
			return "", err
		}
		summary = out
	} else {
		partials := make([]string, 0, len(chunks))
		for i, chunk := range chunks {
			if token != nil {
				if err := token.Check(); err != nil {
					return "", err
				}
			}
			prompt := fmt.Sprintf("Partial transcript (window %d of %d):\n\n%s", i+1, len(chunks), chunkText(chunk))
			out, err := provider.Complete(ctx, model, tpl.System, prompt, s.opts.MaxOutputTokens)
			if err != nil {
				return "", err
			}
			partials = append(partials, out)
		}

		merged := "Combine these windowed summaries of one meeting into a single coherent summary. " +
			"Deduplicate, keep chronology, keep all action items.\n\n" +
			strings.Join(partials, "\n\n---\n\n")
		out, err := provider.Complete(ctx, model, tpl.System, merged, s.opts.MaxOutputTokens)
		if err != nil {
			return "", err
		}
		summary = out
	}

	for pass := 0; pass < s.opts.CoDPasses; pass++ {
		if token != nil {
			if err := token.Check(); err != nil {
				return "", err
			}
		}
		prompt := "Rewrite the summary below to be denser: same length or shorter, but fold in " +
			"additional specific entities, names, numbers, and decisions from the transcript " +
			"that are missing. Do not drop existing specifics.\n\nSummary:\n" + summary +
			"\n\nTranscript:\n" + clip(tr.Text(), 24*1024)
		out, err := provider.Complete(ctx, model, tpl.System, prompt, s.opts.MaxOutputTokens)
		if err != nil {
			return "", err
		}
		summary = out
	}
	return summary, nil
}

func chunkText(segments []transcript.Segment) string {
	var b strings.Builder
	for i, seg := range segments {
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

func clip(s string, n int) string {
	if len(s) > n {
		return s[:n] + "\n...[clipped]"
	}
	return s
}
