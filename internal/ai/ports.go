package ai

import "context"

// ChatClient is the external language-model backend. It knows nothing about
// conversations, rules or delivery.
type ChatClient interface {
	Chat(ctx context.Context, messages []Message, opts Options) (*Response, error)
}

// Message is the provider-neutral dialogue format
type Message struct {
	Role    string `json:"role"` // "system" | "user" | "assistant"
	Content string `json:"content"`
}

type Options struct {
	Temperature float32
	MaxTokens   int
}

type Response struct {
	Content     string
	TotalTokens int
	Model       string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
