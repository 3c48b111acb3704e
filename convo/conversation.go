// Package convo persists conversations and their messages. Scheduled runs
// write into ephemeral conversations that are deleted when the run ends;
// results are posted back to the durable origin conversation.
package convo

import "time"

// Conversation is one message thread.
type Conversation struct {
	ID    string
	Title string

	// Ephemeral marks throwaway sessions created for isolated scheduled
	// runs. They are deleted when the run finishes.
	Ephemeral bool

	// MessageCount and Preview are denormalized listing metadata,
	// maintained on every append.
	MessageCount int
	Preview      string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Role identifies a message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one entry in a conversation.
type Message struct {
	ID             string
	ConversationID string
	Role           Role
	Content        string
	CreatedAt      time.Time
}

// previewLength bounds the denormalized preview column.
const previewLength = 120

func previewOf(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLength {
		return content
	}
	return string(runes[:previewLength])
}
