package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/insight/config"
)

// Client is the contract the pipeline has with the completion service.
// Complete returns the decoded JSON payload of the model's answer;
// CompleteText returns the raw text (used for final report formatting).
type Client interface {
	Complete(ctx context.Context, systemPrompt, userPayload string) (json.RawMessage, error)
	CompleteText(ctx context.Context, systemPrompt, userPayload string) (string, error)
	ModelInfo() string
}

// HTTPClient talks to an OpenAI-compatible chat completions endpoint.
// It is stateless and safe to share.
type HTTPClient struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	client      *http.Client
}

// New creates a completion client from configuration.
func New(cfg config.LLMConfig) *HTTPClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 90 * time.Second
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &HTTPClient{
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client:      &http.Client{Timeout: timeout},
	}
}

// WithModel returns a copy of the client pinned to a different model.
// Used for the report-formatting stage, which may route to a stronger model.
func (c *HTTPClient) WithModel(model string) *HTTPClient {
	if model == "" {
		return c
	}
	cp := *c
	cp.model = model
	return &cp
}

func (c *HTTPClient) ModelInfo() string { return c.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends a system+user prompt pair and decodes the answer's first
// JSON value. Answers wrapped in markdown fences or surrounded by prose are
// tolerated; anything that still fails to decode is a MalformedResponseError.
func (c *HTTPClient) Complete(ctx context.Context, systemPrompt, userPayload string) (json.RawMessage, error) {
	content, err := c.send(ctx, systemPrompt, userPayload)
	if err != nil {
		return nil, err
	}
	raw := ExtractJSON(content)
	if !json.Valid([]byte(raw)) {
		return nil, &MalformedResponseError{Raw: content, Err: errors.New("no valid JSON value in completion")}
	}
	return json.RawMessage(raw), nil
}

// CompleteText sends a system+user prompt pair and returns the answer verbatim.
func (c *HTTPClient) CompleteText(ctx context.Context, systemPrompt, userPayload string) (string, error) {
	return c.send(ctx, systemPrompt, userPayload)
}

func (c *HTTPClient) send(ctx context.Context, systemPrompt, userPayload string) (string, error) {
	messages := []chatMessage{}
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userPayload})

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &TransportError{Op: "do", Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", &RateLimitError{StatusCode: resp.StatusCode}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", &AuthError{StatusCode: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		return "", &TransportError{Op: "status", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &MalformedResponseError{Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(out.Choices) == 0 {
		return "", &MalformedResponseError{Err: errors.New("no choices in response")}
	}
	return out.Choices[0].Message.Content, nil
}

// Retryable reports whether an error is worth retrying: transport failures
// and rate limits are, malformed responses and auth failures are not.
func Retryable(err error) bool {
	var te *TransportError
	var rl *RateLimitError
	return errors.As(err, &te) || errors.As(err, &rl)
}

// ExtractJSON returns the first top-level JSON object or array embedded in s,
// stripping markdown fences first. If none is found, s is returned unchanged
// so the caller's decoder reports the failure.
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	start := -1
	depth := 0
	var opener, closer rune
	for i, ch := range s {
		if start == -1 {
			if ch == '{' {
				opener, closer = '{', '}'
			} else if ch == '[' {
				opener, closer = '[', ']'
			} else {
				continue
			}
			start = i
			depth = 1
			continue
		}
		switch ch {
		case opener:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return s
}
