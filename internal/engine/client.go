/*
PURPOSE:
  Core client for interacting with Ollama-compatible APIs.
  Issues one timed generation request per call, measures TTFT and
  total duration, and extracts token counts from the response.

REQUIREMENTS:
  User-specified:
  - Streamed inference with TTFT measured at the first content chunk.
  - Non-streamed fallback where TTFT equals total duration (tagged).
  - Token counts come from the backend; never fabricate them.
  - Classify failures (unreachable, model not found, timeout,
    malformed response, generic HTTP).

  Implementation-discovered:
  - Needs http.Client with a tuned transport: ResponseHeaderTimeout
    covers the window where Ollama loads the model into memory.
  - Resilience against "garbage" JSON (invalid chunks in the stream).
  - No retry logic lives here. How to parse one response is this
    file's job; how to cope with failure is the Trial Executor's.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine/trial.go, internal/engine/runner.go,
    internal/cli
  - Uses: internal/config, internal/model, internal/output

ERROR HANDLING:
  - Every failure path returns a *engine.Error with a Kind.

IMPLEMENTATION RULES:
  - Use net/http.
  - Per-request deadlines come from the caller's context.
  - Parse streaming JSON line-by-line.

USAGE:
  c := engine.NewClient(cfg)
  outcome, err := c.Generate(ctx, "llama3.1:8b", prompt, cfg.Options())

SELF-HEALING INSTRUCTIONS:
  - If the Ollama API changes, update endpoints (/api/tags,
    /api/generate, /api/ps).

RELATED FILES:
  - internal/engine/errors.go
  - internal/engine/trial.go

MAINTENANCE:
  - Update for new Ollama API features.
*/

package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/daryltucker/canopy-bench/internal/config"
	"github.com/daryltucker/canopy-bench/internal/model"
	"github.com/daryltucker/canopy-bench/internal/output"
)

// maxStreamLine bounds a single NDJSON chunk. Ollama chunks are tiny,
// but a misbehaving backend should not OOM the scanner.
const maxStreamLine = 1 << 20

// Client talks to one Ollama-compatible backend. The underlying
// connection pool is shared read-only across concurrent trials.
type Client struct {
	baseURL string
	stream  bool
	http    *http.Client
}

// TrialOutcome is the raw measurement of one successful generation.
type TrialOutcome struct {
	TimingMode       model.TimingMode
	TimeToFirstToken time.Duration
	TotalDuration    time.Duration
	PromptTokens     int
	CompletionTokens int
}

// NewClient creates a Client for the configured backend.
func NewClient(cfg *config.Config) *Client {
	// Cruiser Note: We keep ResponseHeaderTimeout at the request budget
	// so a backend that hangs before the first byte (model loading) is
	// cut off by the same deadline as a slow generation.
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.RequestTimeout()

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		stream:  cfg.Stream,
		http: &http.Client{
			Transport: transport,
			// No client-level Timeout: the per-trial context carries
			// the deadline, and a client Timeout would also cap the
			// pre-flight calls.
		},
	}
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumPredict  int     `json:"num_predict"`
}

// generateChunk is one streamed fragment, or the whole envelope in
// non-streamed mode. Token counts only appear on the terminal chunk.
type generateChunk struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error"`
}

// Generate issues one generation request and measures it. The caller's
// context must carry the per-trial deadline.
func (c *Client) Generate(ctx context.Context, modelName, prompt string, opts model.GenerationOptions) (TrialOutcome, error) {
	if modelName == "" || prompt == "" {
		return TrialOutcome{}, errf(KindInvalidResponse, modelName, "model and prompt must be non-empty")
	}

	reqBody, err := json.Marshal(generateRequest{
		Model:  modelName,
		Prompt: prompt,
		Stream: c.stream,
		Options: generateOptions{
			Temperature: opts.Temperature,
			TopP:        opts.TopP,
			NumPredict:  opts.MaxTokens,
		},
	})
	if err != nil {
		return TrialOutcome{}, errf(KindInvalidResponse, modelName, "encoding request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(reqBody))
	if err != nil {
		return TrialOutcome{}, errf(KindInvalidResponse, modelName, "building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return TrialOutcome{}, classifyTransport(modelName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode == http.StatusNotFound || strings.Contains(string(body), "not found") {
			return TrialOutcome{}, errf(KindModelNotFound, modelName, "%s: %s", resp.Status, strings.TrimSpace(string(body)))
		}
		return TrialOutcome{}, errf(KindHTTP, modelName, "server error %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	if c.stream {
		return c.readStream(modelName, resp.Body, start)
	}
	return c.readAggregate(modelName, resp.Body, start)
}

// readStream consumes NDJSON chunks. TTFT is the wall-clock instant of
// the first chunk carrying response text; the terminal done chunk
// carries the token counts.
func (c *Client) readStream(modelName string, body io.Reader, start time.Time) (TrialOutcome, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStreamLine)

	var (
		ttft     time.Duration
		gotFirst bool
		final    generateChunk
		gotDone  bool
	)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var chunk generateChunk
		// Garbage resilience: skip invalid chunks instead of failing
		// the whole trial on one mangled line.
		if err := json.Unmarshal(line, &chunk); err != nil {
			output.Logger.Warn("Skipping invalid JSON chunk", "model", modelName, "chunk", string(line))
			continue
		}

		if chunk.Error != "" {
			if strings.Contains(chunk.Error, "not found") {
				return TrialOutcome{}, errf(KindModelNotFound, modelName, "%s", chunk.Error)
			}
			return TrialOutcome{}, errf(KindHTTP, modelName, "backend error: %s", chunk.Error)
		}

		if !gotFirst && chunk.Response != "" {
			ttft = time.Since(start)
			gotFirst = true
		}

		if chunk.Done {
			final = chunk
			gotDone = true
			break
		}
	}

	if err := scanner.Err(); err != nil {
		wrapped := errors.Wrap(err, "reading generation stream")
		return TrialOutcome{}, classifyTransport(modelName, wrapped)
	}
	if !gotDone {
		return TrialOutcome{}, errf(KindInvalidResponse, modelName, "stream ended without a done chunk")
	}

	total := time.Since(start)
	if !gotFirst {
		// Done arrived with no content fragments. The counts check
		// below will reject it, but keep TTFT consistent either way.
		ttft = total
	}

	return c.finishOutcome(modelName, model.TimingStream, ttft, total, final)
}

// readAggregate handles stream=false: one envelope, TTFT degrades to
// total duration and the outcome is tagged accordingly.
func (c *Client) readAggregate(modelName string, body io.Reader, start time.Time) (TrialOutcome, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		wrapped := errors.Wrap(err, "reading generation response")
		return TrialOutcome{}, classifyTransport(modelName, wrapped)
	}

	var envelope generateChunk
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return TrialOutcome{}, errf(KindInvalidResponse, modelName, "invalid JSON envelope: %v", err)
	}
	if envelope.Error != "" {
		if strings.Contains(envelope.Error, "not found") {
			return TrialOutcome{}, errf(KindModelNotFound, modelName, "%s", envelope.Error)
		}
		return TrialOutcome{}, errf(KindHTTP, modelName, "backend error: %s", envelope.Error)
	}
	if !envelope.Done {
		return TrialOutcome{}, errf(KindInvalidResponse, modelName, "response envelope not marked done")
	}

	total := time.Since(start)
	return c.finishOutcome(modelName, model.TimingAggregate, total, total, envelope)
}

// finishOutcome validates the terminal chunk and assembles the outcome.
// A missing completion-token count fails the trial: a tokens/second
// figure derived from a guessed count would corrupt every comparison.
func (c *Client) finishOutcome(modelName string, mode model.TimingMode, ttft, total time.Duration, final generateChunk) (TrialOutcome, error) {
	if final.EvalCount <= 0 {
		return TrialOutcome{}, errf(KindInvalidResponse, modelName, "backend reported no completion token count")
	}
	if total <= 0 {
		return TrialOutcome{}, errf(KindInvalidResponse, modelName, "measured zero total duration")
	}
	// PromptEvalCount may be absent when the backend serves the prompt
	// from cache; record it as reported.
	return TrialOutcome{
		TimingMode:       mode,
		TimeToFirstToken: ttft,
		TotalDuration:    total,
		PromptTokens:     final.PromptEvalCount,
		CompletionTokens: final.EvalCount,
	}, nil
}

// ListModels returns the names servable by the backend (/api/tags).
// Used by the pre-flight existence check and the list-models command.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, errf(KindInvalidResponse, "", "building request: %v", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransport("", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errf(KindHTTP, "", "bad status from /api/tags: %s", resp.Status)
	}

	var payload struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errf(KindInvalidResponse, "", "decoding /api/tags: %v", err)
	}

	var names []string
	for _, m := range payload.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// RunningModelMemory retrieves the resident size of a loaded model
// from /api/ps. Best-effort; 0 means the model was not found running.
func (c *Client) RunningModelMemory(ctx context.Context, modelName string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/ps", nil)
	if err != nil {
		return 0, errf(KindInvalidResponse, modelName, "building request: %v", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, classifyTransport(modelName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, errf(KindHTTP, modelName, "bad status from /api/ps: %s", resp.Status)
	}

	var payload struct {
		Models []struct {
			Name string `json:"name"`
			Size int64  `json:"size"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, errf(KindInvalidResponse, modelName, "decoding /api/ps: %v", err)
	}

	for _, m := range payload.Models {
		// Loosely match model name or exact match
		if m.Name == modelName || strings.HasPrefix(m.Name, modelName) {
			return m.Size, nil
		}
	}
	return 0, nil // not running (might have unloaded?)
}

// String identifies the client target, handy in logs.
func (c *Client) String() string {
	return fmt.Sprintf("ollama@%s", c.baseURL)
}
