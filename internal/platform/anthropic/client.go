package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Crohnos/dnd-generator/internal/domain/generation"
	"github.com/Crohnos/dnd-generator/internal/generation/schema"
	"github.com/Crohnos/dnd-generator/internal/observability"
	"github.com/Crohnos/dnd-generator/internal/platform/httpx"
	"github.com/Crohnos/dnd-generator/internal/platform/logger"
	"github.com/Crohnos/dnd-generator/internal/platform/promptstyle"
)

const (
	DefaultBaseURL = "https://api.anthropic.com"
	DefaultModel   = "claude-sonnet-4-20250514"
	apiVersion     = "2023-06-01"
	messagesPath   = "/v1/messages"
)

// Request is one forced tool call.
type Request struct {
	System      string
	Prompt      string
	Tool        schema.Tool
	MaxTokens   int
	Temperature float64
}

// Client invokes the generative service. Failures are *generation.InterfaceError.
type Client interface {
	Invoke(ctx context.Context, req Request) (json.RawMessage, error)
}

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type client struct {
	log        *logger.Logger
	apiKey     string
	baseURL    string
	model      string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient requires an API key and a positive timeout. Calls are never retried.
func NewClient(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("missing ANTHROPIC_API_KEY")
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("generation timeout must be set")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	return &client{
		log:        log.With("service", "AnthropicClient"),
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
		timeout:    cfg.Timeout,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type toolChoice struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type messagesRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	System      string        `json:"system,omitempty"`
	Messages    []message     `json:"messages"`
	Tools       []schema.Tool `json:"tools"`
	ToolChoice  toolChoice    `json:"tool_choice"`
}

type contentBlock struct {
	Type  string          `json:"type"`
	Name  string          `json:"name,omitempty"`
	Text  string          `json:"text,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

type messagesResponse struct {
	ID         string         `json:"id"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Content    []contentBlock `json:"content"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type apiHTTPError struct {
	StatusCode int
	Body       string
}

func (e *apiHTTPError) Error() string {
	return fmt.Sprintf("anthropic http %d: %s", e.StatusCode, e.Body)
}

func (e *apiHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (c *client) Invoke(ctx context.Context, in Request) (json.RawMessage, error) {
	if strings.TrimSpace(in.Tool.Name) == "" {
		return nil, &generation.InterfaceError{Reason: generation.ReasonMalformedRequest, Message: "tool name is required"}
	}
	maxTokens := in.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	body := messagesRequest{
		Model:       c.model,
		MaxTokens:   maxTokens,
		Temperature: in.Temperature,
		System:      promptstyle.ApplySystem(in.System, "tool"),
		Messages:    []message{{Role: "user", Content: in.Prompt}},
		Tools:       []schema.Tool{in.Tool},
		ToolChoice:  toolChoice{Type: "tool", Name: in.Tool.Name},
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, raw, err := c.doOnce(ctx, body)
	metrics := observability.Current()
	if err != nil {
		metrics.ObserveLLMRequest(c.model, statusFromRespErr(resp, err), time.Since(start), 0, 0)
		ierr := classify(resp, err)
		c.log.Warn("Generative call failed",
			"tool", in.Tool.Name,
			"reason", string(ierr.Reason),
			"status", ierr.StatusCode,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, ierr
	}

	var out messagesResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		metrics.ObserveLLMRequest(c.model, "decode_error", time.Since(start), 0, 0)
		return nil, &generation.InterfaceError{
			Reason:     generation.ReasonNonConformingOutput,
			StatusCode: resp.StatusCode,
			Message:    "undecodable response body",
			Cause:      err,
		}
	}
	metrics.ObserveLLMRequest(c.model, strconv.Itoa(resp.StatusCode), time.Since(start), out.Usage.InputTokens, out.Usage.OutputTokens)
	c.log.Info("Generative call completed",
		"tool", in.Tool.Name,
		"stop_reason", out.StopReason,
		"input_tokens", out.Usage.InputTokens,
		"output_tokens", out.Usage.OutputTokens,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return extractToolInput(out, in.Tool.Name)
}

func (c *client) doOnce(ctx context.Context, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+messagesPath, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &apiHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

// extractToolInput returns the input of the forced tool_use block. A response
// cut off by max_tokens is rejected even when a block is present, because its
// input may be truncated.
func extractToolInput(out messagesResponse, toolName string) (json.RawMessage, error) {
	if out.StopReason == "max_tokens" {
		return nil, generation.NonConformingOutput("response stopped at max_tokens")
	}
	for _, block := range out.Content {
		if block.Type != "tool_use" {
			continue
		}
		if block.Name != "" && block.Name != toolName {
			continue
		}
		input := bytes.TrimSpace(block.Input)
		if len(input) == 0 || input[0] != '{' {
			return nil, generation.NonConformingOutput("tool_use input is not an object")
		}
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(input, &probe); err != nil {
			return nil, &generation.InterfaceError{
				Reason:  generation.ReasonNonConformingOutput,
				Message: "tool_use input is not an object",
				Cause:   err,
			}
		}
		return json.RawMessage(input), nil
	}
	return nil, generation.NonConformingOutput("no tool_use block for " + toolName)
}

func classify(resp *http.Response, err error) *generation.InterfaceError {
	var httpErr *apiHTTPError
	if errors.As(err, &httpErr) {
		ierr := &generation.InterfaceError{
			StatusCode: httpErr.StatusCode,
			Message:    apiErrorMessage(httpErr.Body),
			Cause:      err,
		}
		switch code := httpErr.StatusCode; {
		case code == http.StatusUnauthorized || code == http.StatusForbidden:
			ierr.Reason = generation.ReasonUnauthorized
		case code == http.StatusTooManyRequests:
			ierr.Reason = generation.ReasonRateLimited
			ierr.RetryAfter = httpx.RetryAfter(resp, time.Now())
		case code == http.StatusBadRequest || code == http.StatusNotFound ||
			code == http.StatusRequestEntityTooLarge || code == http.StatusUnprocessableEntity:
			ierr.Reason = generation.ReasonMalformedRequest
		case httpx.IsTransientHTTPStatus(code):
			ierr.Reason = generation.ReasonTransport
		default:
			ierr.Reason = generation.ReasonMalformedRequest
		}
		return ierr
	}
	return &generation.InterfaceError{Reason: generation.ReasonTransport, Cause: err}
}

// apiErrorMessage pulls error.message out of an API error body.
func apiErrorMessage(body string) string {
	var env struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(body), &env); err == nil && env.Error.Message != "" {
		return env.Error.Type + ": " + env.Error.Message
	}
	body = strings.TrimSpace(body)
	if len(body) > 200 {
		body = body[:200]
	}
	return body
}

func statusFromRespErr(resp *http.Response, err error) string {
	if resp != nil {
		return strconv.Itoa(resp.StatusCode)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "error"
}
