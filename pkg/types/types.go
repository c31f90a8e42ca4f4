package types

import "errors"

// Validation errors
var (
	ErrEmptyScope   = errors.New("scope cannot be empty")
	ErrEmptyKeyword = errors.New("keyword cannot be empty")
	ErrEmptyContent = errors.New("content cannot be empty")
	ErrNegativeID   = errors.New("fragment id cannot be negative")
)

// Role identifies the author of a chat message sent to an LLM collaborator.
type Role string

// Message is a single chat message exchanged with an LLM collaborator.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// TokenUsage reports token consumption for a single LLM call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the result of an LLM chat completion.
type Response struct {
	Content      string      `json:"content"`
	FinishReason string      `json:"finish_reason,omitempty"`
	Model        string      `json:"model,omitempty"`
	TokensUsed   *TokenUsage `json:"tokens_used,omitempty"`
}
