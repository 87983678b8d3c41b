package core

import (
	"time"

	"github.com/google/uuid"
)

// MessageRole is the conversational role of a message (user, assistant, system).
type MessageRole string

const (
	// MessageRoleUser marks user authored content.
	MessageRoleUser MessageRole = "user"
	// MessageRoleAssistant marks model authored content.
	MessageRoleAssistant MessageRole = "assistant"
	// MessageRoleSystem marks the leading system prompt.
	MessageRoleSystem MessageRole = "system"
)

// AgentMessage is one immutable entry of a per-agent conversation.
type AgentMessage struct {
	ID        string      `json:"id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	AgentRole AgentRole   `json:"agent_role"`
	Timestamp time.Time   `json:"timestamp"`
	// Degraded is set on assistant messages produced by a fallback path.
	Degraded bool `json:"degraded,omitempty"`
}

// NewMessage creates a message stamped with a fresh id and the given time.
func NewMessage(role MessageRole, agent AgentRole, content string, ts time.Time) AgentMessage {
	return AgentMessage{
		ID:        NewID(),
		Role:      role,
		Content:   content,
		AgentRole: agent,
		Timestamp: ts.UTC(),
	}
}

// NewID generates a new unique identifier for messages, decisions and
// conversations.
func NewID() string { return uuid.NewString() }
