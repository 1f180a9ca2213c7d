package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const openRouterAPIURL = "https://openrouter.ai/api/v1/chat/completions"

const (
	// maxAttempts bounds the cold-start retry loop; the attempt that would
	// exceed it is converted into a hard "model unavailable" failure.
	maxAttempts = 3

	// defaultWarmup is used when the backend reports a cold start without an
	// estimated warmup time.
	defaultWarmup = 5 * time.Second

	requestTemperature = 0.7
	requestMaxTokens   = 2048
)

// OpenRouterClient implements the Client interface against the OpenRouter
// chat completions API.
type OpenRouterClient struct {
	apiKey     string
	model      string
	referer    string
	appTitle   string
	baseURL    string
	httpClient *http.Client

	// wait is the delay between cold-start attempts; tests replace it to run
	// delay-free.
	wait func(ctx context.Context, d time.Duration) error
}

// OpenRouterConfig holds configuration for the OpenRouter client.
type OpenRouterConfig struct {
	APIKey   string
	Model    string // e.g., "qwen/qwen2.5-coder-32b-instruct"
	Referer  string // sent as HTTP-Referer, required by OpenRouter
	AppTitle string // sent as X-Title

	// BaseURL overrides the completions endpoint, mainly for tests.
	BaseURL string

	// HTTPClient overrides the default transport, e.g. for connection pooling.
	HTTPClient *http.Client
}

// NewOpenRouterClient creates a new OpenRouter client.
func NewOpenRouterClient(cfg OpenRouterConfig) *OpenRouterClient {
	model := cfg.Model
	if model == "" {
		model = "qwen/qwen2.5-coder-32b-instruct"
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openRouterAPIURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &OpenRouterClient{
		apiKey:     cfg.APIKey,
		model:      model,
		referer:    cfg.Referer,
		appTitle:   cfg.AppTitle,
		baseURL:    baseURL,
		httpClient: httpClient,
		wait:       waitContext,
	}
}

// chatRequest is an OpenRouter chat completion request.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is an OpenRouter chat completion response.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// coldStartResponse is the shape a warming-up backend answers with: a string
// error marker plus an optional warmup estimate in seconds. A regular error
// response carries an object under "error", so unmarshalling into the string
// field distinguishes the two.
type coldStartResponse struct {
	Error         string  `json:"error"`
	EstimatedTime float64 `json:"estimated_time"`
}

// errorResponse covers the vendor error shapes seen on hard failures.
type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
	Detail string `json:"detail"`
}

// attemptResult classifies one HTTP exchange. A nil-error result either
// carries the reply or flags a retryable cold start.
type attemptResult struct {
	reply     string
	coldStart bool
	warmup    time.Duration
}

// Complete sends the conversation history and classifies the outcome.
// Cold starts are waited out and retried up to maxAttempts; the loop then
// converts the outcome to a hard failure wrapping ErrModelUnavailable.
func (c *OpenRouterClient) Complete(ctx context.Context, history []Message) (string, error) {
	for attempt := 0; ; attempt++ {
		res, err := c.send(ctx, history)
		if err != nil {
			return "", err
		}
		if !res.coldStart {
			return res.reply, nil
		}
		if err := c.wait(ctx, res.warmup); err != nil {
			return "", err
		}
		if attempt+1 >= maxAttempts {
			return "", &BackendError{
				Status: http.StatusServiceUnavailable,
				Reason: fmt.Sprintf("model unavailable after %d warmup attempts", maxAttempts),
				err:    ErrModelUnavailable,
			}
		}
	}
}

// send performs a single chat completion request and classifies the result.
func (c *OpenRouterClient) send(ctx context.Context, history []Message) (attemptResult, error) {
	msgs := make([]chatMessage, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, chatMessage{Role: m.Role, Content: m.Content})
	}

	req := chatRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: requestTemperature,
		MaxTokens:   requestMaxTokens,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return attemptResult{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL, bytes.NewReader(body))
	if err != nil {
		return attemptResult{}, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.referer != "" {
		httpReq.Header.Set("HTTP-Referer", c.referer)
	}
	if c.appTitle != "" {
		httpReq.Header.Set("X-Title", c.appTitle)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return attemptResult{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return attemptResult{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusServiceUnavailable {
		var cold coldStartResponse
		if json.Unmarshal(respBody, &cold) == nil && cold.Error != "" {
			warmup := defaultWarmup
			if cold.EstimatedTime > 0 {
				warmup = time.Duration(cold.EstimatedTime * float64(time.Second))
			}
			return attemptResult{coldStart: true, warmup: warmup}, nil
		}
	}

	if resp.StatusCode != http.StatusOK {
		return attemptResult{}, &BackendError{
			Status: resp.StatusCode,
			Reason: reasonFromBody(respBody, resp.Status),
		}
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return attemptResult{}, &BackendError{Status: resp.StatusCode, Reason: "malformed response payload"}
	}
	if len(chatResp.Choices) == 0 {
		return attemptResult{}, &BackendError{Status: resp.StatusCode, Reason: "no choices in response"}
	}

	return attemptResult{reply: strings.TrimSpace(chatResp.Choices[0].Message.Content)}, nil
}

// reasonFromBody extracts a human-readable failure reason from the known
// vendor error shapes, falling back to the HTTP status line.
func reasonFromBody(body []byte, status string) string {
	var e errorResponse
	if json.Unmarshal(body, &e) == nil {
		if e.Error.Message != "" {
			return e.Error.Message
		}
		if e.Detail != "" {
			return e.Detail
		}
	}
	return status
}

func waitContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
