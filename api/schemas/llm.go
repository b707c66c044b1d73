package schemas

import (
	"context"
	"time"
)

// Role identifies the author of a transcript entry.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// TranscriptEntry is one message in the agent's conversation history.
type TranscriptEntry struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// GenerationOptions tune a single model call.
type GenerationOptions struct {
	Temperature float32
	MaxTokens   int
	// ForceJSON asks the provider to constrain output to a JSON object
	// where the API supports it.
	ForceJSON bool
}

// GenerationRequest is one prompt window sent to the model: the pinned
// system entry followed by the trailing conversation entries.
type GenerationRequest struct {
	Messages []TranscriptEntry
	Options  GenerationOptions
}

// LLMClient abstracts a chat-completion provider. Implementations own
// transport-level retries; callers own semantic validation of the
// returned text.
type LLMClient interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	Name() string
}
