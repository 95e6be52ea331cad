// Package replicate implements the Transcriber capability against the
// Replicate HTTP API: upload the audio file, create a prediction for the
// configured diarization model, poll until it settles, and write the
// resulting segments as transcript JSON.
package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/recapd/recapd/internal/cancel"
	"github.com/recapd/recapd/internal/recaperr"
	"github.com/recapd/recapd/internal/storage"
)

const (
	defaultBaseURL      = "https://api.replicate.com/v1"
	defaultMaxUploadMB  = 100
	defaultPollInterval = 2 * time.Second
	maxRetries          = 4
)

// Client talks to the Replicate API.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	token        string
	maxUploadMB  int
	pollInterval time.Duration
	logger       *slog.Logger
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(url, "/") }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMaxUploadMB overrides the upload size cap.
func WithMaxUploadMB(mb int) Option {
	return func(c *Client) { c.maxUploadMB = mb }
}

// WithPollInterval overrides the prediction poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) { c.pollInterval = d }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a client with the given API token.
func New(apiToken string, opts ...Option) *Client {
	c := &Client{
		httpClient:   &http.Client{Timeout: 5 * time.Minute},
		baseURL:      defaultBaseURL,
		token:        apiToken,
		maxUploadMB:  defaultMaxUploadMB,
		pollInterval: defaultPollInterval,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  any             `json:"error"`
}

// Transcribe implements capability.Transcriber. The transcript is written
// to outputDir as {stem}.json.
func (c *Client) Transcribe(ctx context.Context, token *cancel.Token, audioPath, model, language, outputDir string) (string, error) {
	if c.token == "" {
		return "", recaperr.NewConfigurationError("replicate_api_token", "transcription requires a Replicate API token")
	}
	if token != nil {
		if err := token.Check(); err != nil {
			return "", err
		}
		var cancelCtx context.CancelFunc
		ctx, cancelCtx = token.Context(ctx)
		defer cancelCtx()
	}

	info, err := os.Stat(audioPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", recaperr.NewNotFoundError(audioPath)
		}
		return "", recaperr.NewFileOperationError("stat", audioPath, err)
	}
	if info.Size() > int64(c.maxUploadMB)*1024*1024 {
		return "", recaperr.NewTranscriptionError("replicate",
			fmt.Sprintf("audio exceeds upload cap of %d MB", c.maxUploadMB), nil)
	}

	path, err := c.run(ctx, token, audioPath, model, language, outputDir)
	if err != nil && token != nil && token.IsCancelled() {
		// In-flight HTTP errors caused by the trip collapse to cancellation.
		return "", recaperr.ErrCancelled
	}
	return path, err
}

func (c *Client) run(ctx context.Context, token *cancel.Token, audioPath, model, language, outputDir string) (string, error) {
	fileURL, err := c.upload(ctx, audioPath)
	if err != nil {
		return "", err
	}
	c.logger.Debug("audio uploaded", slog.String("audio", audioPath))

	pred, err := c.createPrediction(ctx, model, fileURL, language)
	if err != nil {
		return "", err
	}
	c.logger.Info("transcription started",
		slog.String("prediction_id", pred.ID), slog.String("model", model))

	pred, err = c.poll(ctx, token, pred.ID)
	if err != nil {
		return "", err
	}

	return c.writeTranscript(pred, audioPath, outputDir)
}

// upload pushes the audio file and returns its serving URL.
func (c *Client) upload(ctx context.Context, audioPath string) (string, error) {
	data, err := os.ReadFile(audioPath)
	if err != nil {
		return "", recaperr.NewFileOperationError("read", audioPath, err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("content", filepath.Base(audioPath))
	if err != nil {
		return "", recaperr.NewTranscriptionError("replicate", "building upload request", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", recaperr.NewTranscriptionError("replicate", "building upload request", err)
	}
	mw.Close()

	resp, err := c.doWithRetry(ctx, http.MethodPost, c.baseURL+"/files", body.Bytes(), mw.FormDataContentType())
	if err != nil {
		return "", err
	}

	var uploaded struct {
		URLs struct {
			Get string `json:"get"`
		} `json:"urls"`
	}
	if err := json.Unmarshal(resp, &uploaded); err != nil || uploaded.URLs.Get == "" {
		return "", recaperr.NewTranscriptionError("replicate", "upload response missing file URL", err)
	}
	return uploaded.URLs.Get, nil
}

func (c *Client) createPrediction(ctx context.Context, model, fileURL, language string) (*prediction, error) {
	input := map[string]any{"file_url": fileURL}
	if language != "" && language != "auto" {
		input["language"] = language
	}

	var url string
	payload := map[string]any{"input": input}
	if _, version, ok := strings.Cut(model, ":"); ok {
		// owner/name:version pins a model version.
		payload["version"] = version
		url = c.baseURL + "/predictions"
	} else if strings.Contains(model, "/") {
		url = c.baseURL + "/models/" + model + "/predictions"
	} else {
		payload["version"] = model
		url = c.baseURL + "/predictions"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, recaperr.NewTranscriptionError("replicate", "building prediction request", err)
	}

	resp, err := c.doWithRetry(ctx, http.MethodPost, url, body, "application/json")
	if err != nil {
		return nil, err
	}

	var pred prediction
	if err := json.Unmarshal(resp, &pred); err != nil || pred.ID == "" {
		return nil, recaperr.NewTranscriptionError("replicate", "malformed prediction response", err)
	}
	return &pred, nil
}

// poll waits for the prediction to settle, checking the token between
// polls.
func (c *Client) poll(ctx context.Context, token *cancel.Token, id string) (*prediction, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		resp, err := c.doWithRetry(ctx, http.MethodGet, c.baseURL+"/predictions/"+id, nil, "")
		if err != nil {
			return nil, err
		}
		var pred prediction
		if err := json.Unmarshal(resp, &pred); err != nil {
			return nil, recaperr.NewTranscriptionError("replicate", "malformed prediction response", err)
		}

		switch pred.Status {
		case "succeeded":
			return &pred, nil
		case "failed", "canceled":
			return nil, recaperr.NewTranscriptionError("replicate",
				fmt.Sprintf("prediction %s: %v", pred.Status, pred.Error), nil)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			if token != nil && token.IsCancelled() {
				return nil, recaperr.ErrCancelled
			}
			return nil, ctx.Err()
		}
	}
}

func (c *Client) writeTranscript(pred *prediction, audioPath, outputDir string) (string, error) {
	var output struct {
		Segments json.RawMessage `json:"segments"`
	}
	if err := json.Unmarshal(pred.Output, &output); err != nil || len(output.Segments) == 0 {
		// Some models return the segment array directly.
		if json.Valid(pred.Output) && bytes.HasPrefix(bytes.TrimSpace(pred.Output), []byte("[")) {
			output.Segments = pred.Output
		} else {
			return "", recaperr.NewTranscriptionError("replicate", "prediction output has no segments", err)
		}
	}

	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		return "", recaperr.NewFileOperationError("mkdir", outputDir, err)
	}
	path := filepath.Join(outputDir, storage.Stem(audioPath)+".json")
	if err := os.WriteFile(path, output.Segments, 0o640); err != nil {
		return "", recaperr.NewFileOperationError("write", path, err)
	}
	return path, nil
}

// doWithRetry performs an HTTP call with bounded exponential backoff.
// Network errors and 5xx/429 responses are retried; other statuses fail
// immediately.
func (c *Client) doWithRetry(ctx context.Context, method, url string, body []byte, contentType string) ([]byte, error) {
	operation := func() ([]byte, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, backoff.Permanent(recaperr.NewTranscriptionError("replicate", "building request", err))
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, recaperr.NewTranscriptionError("replicate", "request failed", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 32*1024*1024))
		if err != nil {
			return nil, recaperr.NewTranscriptionError("replicate", "reading response", err)
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return data, nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return nil, recaperr.NewTranscriptionError("replicate",
				fmt.Sprintf("%s returned %d", url, resp.StatusCode), nil)
		default:
			return nil, backoff.Permanent(recaperr.NewTranscriptionError("replicate",
				fmt.Sprintf("%s returned %d: %s", url, resp.StatusCode, truncate(data, 512)), nil))
		}
	}

	result, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(maxRetries))
	if err != nil {
		return nil, err
	}
	return result, nil
}

func truncate(data []byte, n int) string {
	if len(data) > n {
		return string(data[:n]) + "..."
	}
	return string(data)
}
