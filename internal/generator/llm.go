package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Client talks to an OpenAI-compatible server: chat completions for the
// hosted model and plain completions for a local llama.cpp-style server.
type Client struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	TopP        float64
	// MaxRetries bounds extra attempts on 429 and 5xx responses.
	MaxRetries int
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// APIError is a non-2xx answer from the model server.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("llm error status %d: %s", e.StatusCode, e.Body)
}

var sleepFn = time.Sleep

// Chat sends one system+user exchange and returns the assistant content.
func (c *Client) Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := make([]map[string]string, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, map[string]string{"role": "system", "content": systemPrompt})
	}
	messages = append(messages, map[string]string{"role": "user", "content": userPrompt})
	payload := c.basePayload()
	payload["messages"] = messages

	if c.Logger != nil {
		c.Logger.Debug("llm chat request", "model", c.Model, "system", systemPrompt, "user", userPrompt)
	}
	data, err := c.post(ctx, "/chat/completions", payload)
	if err != nil {
		return "", err
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", errors.New("llm response has no choices")
	}
	content := out.Choices[0].Message.Content
	if c.Logger != nil {
		c.Logger.Debug("llm chat response", "content", content)
	}
	return content, nil
}

// Complete sends a raw prompt to the completions endpoint.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	payload := c.basePayload()
	payload["prompt"] = prompt

	if c.Logger != nil {
		c.Logger.Debug("llm completion request", "model", c.Model, "prompt_chars", len(prompt))
	}
	data, err := c.post(ctx, "/completions", payload)
	if err != nil {
		return "", err
	}

	var out struct {
		Choices []struct {
			Text string `json:"text"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", errors.New("llm response has no choices")
	}
	return out.Choices[0].Text, nil
}

func (c *Client) basePayload() map[string]interface{} {
	payload := map[string]interface{}{
		"max_tokens":  c.MaxTokens,
		"temperature": c.Temperature,
	}
	if c.Model != "" {
		payload["model"] = c.Model
	}
	if c.TopP > 0 {
		payload["top_p"] = c.TopP
	}
	return payload
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	endpoint := strings.TrimRight(c.BaseURL, "/") + path
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.APIKey)
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			if attempt < c.MaxRetries && ctx.Err() == nil {
				sleepFn(backoff(attempt))
				continue
			}
			return nil, err
		}
		data, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = err
			if attempt < c.MaxRetries {
				sleepFn(backoff(attempt))
				continue
			}
			return nil, err
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
			if attempt < c.MaxRetries {
				wait := backoff(attempt)
				if resp.StatusCode == http.StatusTooManyRequests {
					if ra := strings.TrimSpace(resp.Header.Get("Retry-After")); ra != "" {
						if secs, err := strconv.Atoi(ra); err == nil {
							wait = time.Duration(secs) * time.Second
						}
					}
				}
				sleepFn(wait)
				continue
			}
			return nil, lastErr
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
		}
		return data, nil
	}
	if lastErr == nil {
		lastErr = errors.New("llm request failed")
	}
	return nil, lastErr
}

// ErrorKind buckets model failures for logging.
type ErrorKind string

const (
	ErrKindAuth             ErrorKind = "auth"
	ErrKindQuota            ErrorKind = "quota"
	ErrKindRateLimit        ErrorKind = "rate_limit"
	ErrKindModelUnavailable ErrorKind = "model_unavailable"
	ErrKindTimeout          ErrorKind = "timeout"
	ErrKindGeneric          ErrorKind = "generic"
)

// ClassifyError maps a model call failure onto an ErrorKind.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	status := 0
	if errors.As(err, &apiErr) {
		status = apiErr.StatusCode
	}
	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrKindTimeout
	case status == http.StatusUnauthorized || strings.Contains(msg, "api key") || strings.Contains(msg, "unauthorized"):
		return ErrKindAuth
	case strings.Contains(msg, "quota") || strings.Contains(msg, "billing") || strings.Contains(msg, "exceeded"):
		return ErrKindQuota
	case status == http.StatusTooManyRequests || strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests"):
		return ErrKindRateLimit
	case strings.Contains(msg, "model") && strings.Contains(msg, "not found"):
		return ErrKindModelUnavailable
	case strings.Contains(msg, "timeout"):
		return ErrKindTimeout
	}
	return ErrKindGeneric
}

func stripMarkdownCodeBlock(content string) string {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.Index(trimmed, "\n"); idx != -1 {
			trimmed = trimmed[idx+1:]
		}
		if end := strings.LastIndex(trimmed, "```"); end != -1 {
			trimmed = trimmed[:end]
		}
		return strings.TrimSpace(trimmed)
	}
	return trimmed
}

func backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return time.Second << attempt
}
