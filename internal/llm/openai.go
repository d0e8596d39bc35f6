package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// DefaultBaseURL is the OpenAI-compatible endpoint used when no override
// is configured.
const DefaultBaseURL = "https://api.openai.com/v1"

// requestTimeout bounds the wait on one completion call. Timeouts surface
// as ordinary transport errors; retrying is the caller's decision.
const requestTimeout = 60 * time.Second

// HTTPCompleter talks to an OpenAI-compatible chat-completions endpoint.
type HTTPCompleter struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPCompleter builds a completer for the given endpoint. An empty
// baseURL falls back to DefaultBaseURL.
func NewHTTPCompleter(baseURL, apiKey string) *HTTPCompleter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &HTTPCompleter{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: requestTimeout},
	}
}

// wire types for the chat-completions payload
type chatChoice struct {
	Message Message `json:"message"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Usage   *TokenUsage  `json:"usage,omitempty"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete implements Completer.
func (c *HTTPCompleter) Complete(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("completion call: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read completion response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode completion response (status %d): %w", httpResp.StatusCode, err)
	}
	if httpResp.StatusCode != http.StatusOK {
		msg := string(raw)
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return nil, fmt.Errorf("completion call failed (status %d): %s", httpResp.StatusCode, snippet(msg))
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("completion response has no choices")
	}

	return &Response{
		Text:  parsed.Choices[0].Message.Content,
		Usage: parsed.Usage,
	}, nil
}
