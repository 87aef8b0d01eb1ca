package llm

import "context"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one stored conversation turn. Images are never kept in history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Image is an inline attachment for the current turn.
type Image struct {
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// Prompt is the user turn being answered.
type Prompt struct {
	Text  string
	Image *Image
}

// Completion is the provider output. Text is empty when the provider refused
// or filtered the answer; FinishReason then says why.
type Completion struct {
	Text         string
	FinishReason string
}

// Client is a minimal LLM interface to allow pluggable providers.
type Client interface {
	Complete(ctx context.Context, history []Message, prompt Prompt) (Completion, error)
}
