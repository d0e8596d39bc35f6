package llm

import "context"

// Message is one entry in a chat-completion message list.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the minimal chat-completion shape the client depends on.
// Penalty knobs are pointers so zero values can be omitted on the wire.
type Request struct {
	Model            string    `json:"model"`
	Messages         []Message `json:"messages"`
	Temperature      float64   `json:"temperature"`
	PresencePenalty  *float64  `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64  `json:"frequency_penalty,omitempty"`
}

// TokenUsage carries provider-reported token counts for one call.
type TokenUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

// Response is the generated text plus optional usage counts.
type Response struct {
	Text  string
	Usage *TokenUsage
}

// Completer issues one chat-completion request. Implementations own
// transport details; the client only depends on this shape.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}
