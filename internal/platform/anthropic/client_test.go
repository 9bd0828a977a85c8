package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Crohnos/dnd-generator/internal/domain/generation"
	"github.com/Crohnos/dnd-generator/internal/generation/schema"
	"github.com/Crohnos/dnd-generator/internal/platform/logger"
)

func testTool() schema.Tool {
	return schema.Tool{
		Name:        "generate_phase_1a_core_world",
		Description: "Core world",
		InputSchema: map[string]any{"type": "object"},
	}
}

func newTestClient(t *testing.T, url string, timeout time.Duration) Client {
	t.Helper()
	c, err := NewClient(logger.Nop(), Config{APIKey: "sk-test", BaseURL: url, Timeout: timeout})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestNewClientRequiresKeyAndTimeout(t *testing.T) {
	if _, err := NewClient(logger.Nop(), Config{Timeout: time.Second}); err == nil {
		t.Fatalf("expected error without api key")
	}
	if _, err := NewClient(logger.Nop(), Config{APIKey: "k"}); err == nil {
		t.Fatalf("expected error without timeout")
	}
}

func TestInvokeSendsForcedToolCall(t *testing.T) {
	var got messagesRequest
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		headers = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{
			"id":"msg_1","stop_reason":"tool_use",
			"content":[
				{"type":"text","text":"Here you go"},
				{"type":"tool_use","name":"generate_phase_1a_core_world","input":{"planes":[{"name":"Material"}]}}
			],
			"usage":{"input_tokens":12,"output_tokens":34}
		}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 2*time.Second)
	payload, err := c.Invoke(context.Background(), Request{
		System:      "You generate worlds.",
		Prompt:      "Build the core world.",
		Tool:        testTool(),
		MaxTokens:   8000,
		Temperature: 0.7,
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !strings.Contains(string(payload), `"Material"`) {
		t.Fatalf("unexpected payload %s", payload)
	}
	if headers.Get("x-api-key") != "sk-test" || headers.Get("anthropic-version") != apiVersion {
		t.Fatalf("missing auth headers: %v", headers)
	}
	if got.ToolChoice.Type != "tool" || got.ToolChoice.Name != "generate_phase_1a_core_world" {
		t.Fatalf("tool choice not forced: %+v", got.ToolChoice)
	}
	if len(got.Tools) != 1 || got.MaxTokens != 8000 || got.Model != DefaultModel {
		t.Fatalf("unexpected request: %+v", got)
	}
	if !strings.Contains(got.System, "You generate worlds.") || !strings.HasPrefix(got.System, "DND_GENERATOR_PROMPT_STYLE_V1") {
		t.Fatalf("system prompt not styled: %q", got.System)
	}
	if len(got.Messages) != 1 || got.Messages[0].Content != "Build the core world." {
		t.Fatalf("unexpected messages: %+v", got.Messages)
	}
}

func TestInvokeMapsHTTPStatuses(t *testing.T) {
	cases := []struct {
		status int
		want   generation.Reason
	}{
		{http.StatusUnauthorized, generation.ReasonUnauthorized},
		{http.StatusForbidden, generation.ReasonUnauthorized},
		{http.StatusTooManyRequests, generation.ReasonRateLimited},
		{http.StatusBadRequest, generation.ReasonMalformedRequest},
		{http.StatusNotFound, generation.ReasonMalformedRequest},
		{http.StatusRequestEntityTooLarge, generation.ReasonMalformedRequest},
		{http.StatusUnprocessableEntity, generation.ReasonMalformedRequest},
		{http.StatusInternalServerError, generation.ReasonTransport},
		{http.StatusBadGateway, generation.ReasonTransport},
		{529, generation.ReasonTransport},
	}
	for _, tc := range cases {
		calls := 0
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			if tc.status == http.StatusTooManyRequests {
				w.Header().Set("Retry-After", "17")
			}
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"some_error","message":"nope"}}`))
		}))
		c := newTestClient(t, srv.URL, 2*time.Second)
		_, err := c.Invoke(context.Background(), Request{Prompt: "p", Tool: testTool()})
		srv.Close()

		var ierr *generation.InterfaceError
		if !errors.As(err, &ierr) {
			t.Fatalf("status %d: expected InterfaceError, got %v", tc.status, err)
		}
		if ierr.Reason != tc.want {
			t.Fatalf("status %d: reason=%s want %s", tc.status, ierr.Reason, tc.want)
		}
		if ierr.StatusCode != tc.status {
			t.Fatalf("status %d: recorded status %d", tc.status, ierr.StatusCode)
		}
		if calls != 1 {
			t.Fatalf("status %d: expected exactly one call, got %d", tc.status, calls)
		}
		if tc.status == http.StatusTooManyRequests && ierr.RetryAfter != 17*time.Second {
			t.Fatalf("retry-after not carried: %v", ierr.RetryAfter)
		}
		if !strings.Contains(ierr.Error(), "some_error: nope") {
			t.Fatalf("status %d: message not extracted: %v", tc.status, ierr)
		}
	}
}

func TestInvokeNonConformingOutput(t *testing.T) {
	cases := map[string]string{
		"no tool block": `{"stop_reason":"end_turn","content":[{"type":"text","text":"sorry"}]}`,
		"array input":   `{"stop_reason":"tool_use","content":[{"type":"tool_use","name":"generate_phase_1a_core_world","input":[1,2]}]}`,
		"max tokens":    `{"stop_reason":"max_tokens","content":[{"type":"tool_use","name":"generate_phase_1a_core_world","input":{"planes":[]}}]}`,
		"other tool":    `{"stop_reason":"tool_use","content":[{"type":"tool_use","name":"something_else","input":{}}]}`,
		"garbage body":  `not json`,
	}
	for name, body := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
		c := newTestClient(t, srv.URL, 2*time.Second)
		_, err := c.Invoke(context.Background(), Request{Prompt: "p", Tool: testTool()})
		srv.Close()
		if got := generation.ReasonOf(err); got != generation.ReasonNonConformingOutput {
			t.Fatalf("%s: reason=%q err=%v", name, got, err)
		}
	}
}

func TestInvokeTimeoutIsTransport(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := newTestClient(t, srv.URL, 50*time.Millisecond)
	_, err := c.Invoke(context.Background(), Request{Prompt: "p", Tool: testTool()})
	if got := generation.ReasonOf(err); got != generation.ReasonTransport {
		t.Fatalf("reason=%q err=%v", got, err)
	}
}
