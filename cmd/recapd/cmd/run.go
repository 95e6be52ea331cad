package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/recapd/recapd/internal/cancel"
	"github.com/recapd/recapd/internal/capability/envcreds"
	"github.com/recapd/recapd/internal/capability/ffmpegaudio"
	"github.com/recapd/recapd/internal/capability/llm"
	"github.com/recapd/recapd/internal/capability/replicate"
	"github.com/recapd/recapd/internal/config"
	"github.com/recapd/recapd/internal/ffmpeg"
	"github.com/recapd/recapd/internal/janitor"
	"github.com/recapd/recapd/internal/jobstore"
	"github.com/recapd/recapd/internal/models"
	"github.com/recapd/recapd/internal/shutdown"
	"github.com/recapd/recapd/internal/storage"
	"github.com/recapd/recapd/internal/workerpool"
	"github.com/recapd/recapd/internal/workflow"
)

var runFlags struct {
	outputDir          string
	extract            bool
	process            bool
	transcribe         bool
	summarize          bool
	audioFormat        string
	audioQuality       string
	normalize          bool
	gainDB             float64
	outputFormats      []string
	sttModel           string
	language           string
	template           string
	provider           string
	llmModel           string
	autoDetectTemplate bool
}

// runCmd executes one workflow over a single input file.
var runCmd = &cobra.Command{
	Use:   "run <input>",
	Short: "Run the summarization workflow on a recording or transcript",
	Long: `Run the staged pipeline on one input file.

Video inputs go through audio extraction, conditioning, transcription,
and summarization. Audio inputs skip extraction. Transcript inputs
(JSON, TXT, SRT, WebVTT) go straight to summarization.`,
	Args: cobra.ExactArgs(1),
	RunE: runWorkflow,
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runFlags.outputDir, "output-dir", "o", "", "summary output directory (default: summary tree under the data dir)")
	f.BoolVar(&runFlags.extract, "extract", true, "extract the audio track from video inputs")
	f.BoolVar(&runFlags.process, "process", true, "condition the audio before transcription")
	f.BoolVar(&runFlags.transcribe, "transcribe", true, "transcribe the audio")
	f.BoolVar(&runFlags.summarize, "summarize", true, "summarize the transcript")
	f.StringVar(&runFlags.audioFormat, "audio-format", "", "extracted audio format (m4a, mp3, wav, flac)")
	f.StringVar(&runFlags.audioQuality, "audio-quality", "", "extracted audio quality (low, medium, high)")
	f.BoolVar(&runFlags.normalize, "normalize", true, "apply loudness normalization")
	f.Float64Var(&runFlags.gainDB, "gain", 0, "volume gain in dB applied before normalization")
	f.StringSliceVar(&runFlags.outputFormats, "output-format", nil, "additional audio output formats")
	f.StringVar(&runFlags.sttModel, "stt-model", "", "speech-to-text model")
	f.StringVar(&runFlags.language, "language", "", "transcription language (BCP-47 or auto)")
	f.StringVar(&runFlags.template, "template", "", "summary template (default, sop, decision, brainstorm, requirements)")
	f.StringVar(&runFlags.provider, "provider", "", "summary provider (openai, anthropic)")
	f.StringVar(&runFlags.llmModel, "llm-model", "", "summary model")
	f.BoolVar(&runFlags.autoDetectTemplate, "auto-detect-template", false, "detect the summary template from transcript content")

	rootCmd.AddCommand(runCmd)
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	sm := shutdown.NewManager(logger)
	ctx, stop := sm.Listen(cmd.Context())
	defer stop()
	defer sm.RunCleanup()

	layout, err := storage.NewLayout(cfg.Storage.BaseDir)
	if err != nil {
		return err
	}

	creds := envcreds.NewStore(cfg.Credentials, logger)
	if err := creds.Validate(); err != nil {
		return err
	}

	caps, err := buildCapabilities(ctx, creds)
	if err != nil {
		return err
	}

	history := jobstore.NewHistoryStore(layout, logger)
	state := jobstore.NewStateManager(layout, sm, logger)

	reportInterrupted(layout)

	jan := janitor.New(history, layout, cfg.Jobs.HistoryRetention(), cfg.Storage.TempRetention(), logger)
	if err := jan.Start(); err != nil {
		return err
	}
	defer jan.Stop()

	engine := workflow.NewEngine(caps, layout, sm, logger,
		workflow.WithStateManager(state),
		workflow.WithValidator(&workflow.Validator{
			MaxInputSizeMB: cfg.Storage.MaxInputSizeMB,
			MinFreeSpaceMB: cfg.Storage.MinFreeSpaceMB,
		}))

	pool := workerpool.NewPool(cfg.Jobs.MaxConcurrent, logger)
	token := cancel.NewToken()

	// A signal cancels the running job so blocking subprocess and HTTP
	// calls unwind before cleanup.
	go func() {
		<-ctx.Done()
		token.Cancel()
	}()

	jobID := uuid.NewString()
	wcfg := workflowConfig(args[0], cfg)

	if err := history.Save(&models.JobRecord{
		JobID:     jobID,
		JobType:   "workflow",
		Status:    models.JobStarted,
		InputFile: wcfg.InputFile,
	}); err != nil {
		return err
	}

	taskID, err := pool.Submit("workflow "+jobID, func(taskCtx context.Context, tok *cancel.Token) (any, error) {
		return engine.Execute(taskCtx, tok, jobID, wcfg, printProgress)
	}, workerpool.WithToken(token))
	if err != nil {
		return err
	}

	result, err := pool.Result(context.Background(), taskID)
	if err != nil {
		return err
	}

	finishHistory(history, jobID, result)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Jobs.ShutdownTimeout)
	defer cancelShutdown()
	if err := pool.Shutdown(shutdownCtx); err != nil {
		logger.Warn("pool shutdown", "error", err)
	}

	if result.Err != nil {
		return result.Err
	}
	printResults(result.Value)
	return nil
}

// buildCapabilities wires the external subsystems: ffmpeg for extraction and
// conditioning, Replicate for transcription, and the configured LLM
// providers for summarization.
func buildCapabilities(ctx context.Context, creds *envcreds.Store) (workflow.Capabilities, error) {
	var caps workflow.Capabilities

	bins, err := ffmpeg.Detect(ctx, cfg.FFmpeg.BinaryPath, cfg.FFmpeg.ProbePath)
	if err != nil {
		return caps, err
	}
	processor := ffmpegaudio.New(bins, logger)
	caps.Extractor = processor
	caps.Conditioner = processor

	caps.Transcriber = replicate.New(creds.Get(envcreds.ReplicateAPIToken),
		replicate.WithMaxUploadMB(cfg.Transcription.MaxUploadMB),
		replicate.WithLogger(logger))

	var providers []llm.Provider
	if key := creds.Get(envcreds.OpenAIAPIKey); key != "" {
		providers = append(providers, llm.NewOpenAIProvider(key, ""))
	}
	if key := creds.Get(envcreds.AnthropicAPIKey); key != "" {
		providers = append(providers, llm.NewAnthropicProvider(key, ""))
	}
	caps.Summarizer = llm.NewSummarizer(llm.Options{
		ChunkSeconds:    cfg.Summary.ChunkSeconds,
		CoDPasses:       cfg.Summary.CoDPasses,
		MaxOutputTokens: cfg.Summary.MaxOutputTokens,
		Timeout:         cfg.Summary.Timeout,
		Logger:          logger,
	}, providers...)

	return caps, nil
}

// workflowConfig merges CLI flags over config defaults into one run config.
func workflowConfig(inputFile string, cfg *config.Config) *models.WorkflowConfig {
	wcfg := &models.WorkflowConfig{
		InputFile: inputFile,
		OutputDir: runFlags.outputDir,

		ExtractAudio: runFlags.extract,
		ProcessAudio: runFlags.process,
		Transcribe:   runFlags.transcribe,
		Summarize:    runFlags.summarize,

		AudioFormat:  firstNonEmpty(runFlags.audioFormat, cfg.Audio.Format),
		AudioQuality: firstNonEmpty(runFlags.audioQuality, cfg.Audio.Quality),

		NormalizeAudio: runFlags.normalize && cfg.Audio.Normalize,
		VolumeGainDB:   runFlags.gainDB,
		OutputFormats:  runFlags.outputFormats,

		TranscribeModel: firstNonEmpty(runFlags.sttModel, cfg.Transcription.Model),
		Language:        firstNonEmpty(runFlags.language, cfg.Transcription.Language),

		SummaryTemplate:    firstNonEmpty(runFlags.template, cfg.Summary.Template),
		Provider:           firstNonEmpty(runFlags.provider, cfg.Summary.Provider),
		Model:              firstNonEmpty(runFlags.llmModel, cfg.Summary.Model),
		AutoDetectTemplate: runFlags.autoDetectTemplate || cfg.Summary.AutoDetectTemplate,
	}
	if runFlags.gainDB != 0 {
		wcfg.IncreaseVolume = true
	} else if cfg.Audio.VolumeGainDB != 0 {
		wcfg.IncreaseVolume = true
		wcfg.VolumeGainDB = cfg.Audio.VolumeGainDB
	}
	return wcfg
}

// printProgress forwards executor ticks to stderr.
func printProgress(idx, total int, name, msg string) {
	fmt.Fprintf(os.Stderr, "[%d/%d] %s: %s\n", idx, total, name, msg)
}

// printResults summarizes artifact locations on stdout.
func printResults(value any) {
	results, ok := value.(map[string]models.StageResult)
	if !ok {
		return
	}
	for _, name := range models.StepOrder {
		result, ok := results[name]
		if !ok {
			continue
		}
		switch r := result.(type) {
		case models.SkippedResult:
			if r.Reason != "" {
				fmt.Printf("%-14s skipped (%s)\n", name, r.Reason)
			} else {
				fmt.Printf("%-14s skipped\n", name)
			}
		case models.ExtractResult:
			fmt.Printf("%-14s %s\n", name, r.OutputFile)
		case models.ProcessResult:
			fmt.Printf("%-14s %s\n", name, r.OutputFile)
		case models.TranscribeResult:
			fmt.Printf("%-14s %s\n", name, r.TranscriptFile)
		case models.SummarizeResult:
			fmt.Printf("%-14s %s\n", name, r.SummaryFile)
		}
	}
}

// finishHistory records the terminal status of the run.
func finishHistory(history *jobstore.HistoryStore, jobID string, result workerpool.TaskResult) {
	patch := map[string]any{}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	switch result.Status {
	case workerpool.TaskCompleted:
		patch["status"] = string(models.JobCompleted)
		patch["completed_at"] = now
		if results, ok := result.Value.(map[string]models.StageResult); ok {
			outputs := map[string]string{}
			for name, r := range results {
				if s, ok := r.(models.SummarizeResult); ok {
					outputs[name] = s.SummaryFile
				}
			}
			if len(outputs) > 0 {
				patch["outputs"] = outputs
			}
		}
	case workerpool.TaskCancelled:
		patch["status"] = string(models.JobInterrupted)
	default:
		patch["status"] = string(models.JobFailed)
		patch["failed_at"] = now
		if result.Err != nil {
			patch["error_message"] = result.Err.Error()
		}
	}
	if _, err := history.Update(jobID, patch); err != nil {
		logger.Warn("updating job history", "job_id", jobID, "error", err)
	}
}

// reportInterrupted warns about jobs a previous process left behind.
func reportInterrupted(layout *storage.Layout) {
	states, err := jobstore.InterruptedJobs(layout, logger)
	if err != nil {
		logger.Warn("scanning for interrupted jobs", "error", err)
		return
	}
	for _, s := range states {
		logger.Warn("previous run was interrupted", "job_id", s.JobID)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
