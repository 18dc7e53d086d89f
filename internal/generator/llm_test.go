package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func chatResponse(content string) map[string]interface{} {
	return map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": content}},
		},
	}
}

func TestChatSendsPromptsAndParameters(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer key")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(chatResponse("Feature: x"))
	}))
	defer srv.Close()

	client := &Client{BaseURL: srv.URL, APIKey: "sk-test", Model: "gpt-4o", MaxTokens: 2048, Temperature: 0.7, TopP: 0.9}
	out, err := client.Chat(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("Chat error: %v", err)
	}
	if out != "Feature: x" {
		t.Fatalf("unexpected content %q", out)
	}
	if got["top_p"] != 0.9 || got["max_tokens"] != float64(2048) {
		t.Fatalf("unexpected payload: %v", got)
	}
	msgs := got["messages"].([]interface{})
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
}

func TestChatRetriesOn5xx(t *testing.T) {
	var hit int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := atomic.AddInt32(&hit, 1)
		if count == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"boom"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(chatResponse("ok"))
	}))
	defer srv.Close()

	origSleep := sleepFn
	sleepFn = func(time.Duration) {}
	defer func() { sleepFn = origSleep }()

	client := &Client{BaseURL: srv.URL, Model: "gpt-4o", MaxRetries: 3}
	out, err := client.Chat(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("Chat error: %v", err)
	}
	if out != "ok" {
		t.Fatalf("expected 'ok', got %q", out)
	}
	if atomic.LoadInt32(&hit) != 2 {
		t.Fatalf("expected 2 requests, got %d", hit)
	}
}

func TestChatNoRetryByDefault(t *testing.T) {
	var hit int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hit, 1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached"}}`))
	}))
	defer srv.Close()

	client := &Client{BaseURL: srv.URL}
	_, err := client.Chat(context.Background(), "", "user")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 APIError, got %v", err)
	}
	if atomic.LoadInt32(&hit) != 1 {
		t.Fatalf("expected a single attempt, got %d", hit)
	}
	if ClassifyError(err) != ErrKindRateLimit {
		t.Fatalf("expected rate limit kind, got %s", ClassifyError(err))
	}
}

func TestCompleteReturnsText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["prompt"] != "sys\n\nuser" {
			t.Errorf("unexpected prompt %v", body["prompt"])
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]string{{"text": "Feature: local"}},
		})
	}))
	defer srv.Close()

	client := &Client{BaseURL: srv.URL, MaxTokens: 16}
	out, err := client.Complete(context.Background(), "sys\n\nuser")
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if out != "Feature: local" {
		t.Fatalf("unexpected text %q", out)
	}
}

func TestClassifyError(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorKind
	}{
		{&APIError{StatusCode: 401, Body: "bad"}, ErrKindAuth},
		{errors.New("Incorrect API key provided"), ErrKindAuth},
		{&APIError{StatusCode: 429, Body: "You exceeded your current quota"}, ErrKindQuota},
		{errors.New("too many requests"), ErrKindRateLimit},
		{&APIError{StatusCode: 404, Body: "The model `gpt-9` does not exist or was not found"}, ErrKindModelUnavailable},
		{fmt.Errorf("call: %w", context.DeadlineExceeded), ErrKindTimeout},
		{errors.New("connection reset"), ErrKindGeneric},
	}
	for _, tc := range cases {
		if got := ClassifyError(tc.err); got != tc.want {
			t.Fatalf("%v: got %s want %s", tc.err, got, tc.want)
		}
	}
}

func TestStripMarkdownCodeBlock(t *testing.T) {
	in := "```gherkin\nFeature: x\nScenario: y\n```"
	if got := stripMarkdownCodeBlock(in); got != "Feature: x\nScenario: y" {
		t.Fatalf("unexpected strip result %q", got)
	}
	if got := stripMarkdownCodeBlock("  Feature: x  "); got != "Feature: x" {
		t.Fatalf("unexpected plain result %q", got)
	}
}
