package models

import "time"

// Session is a persisted conversation.
type Session struct {
	ID           string                 `json:"id" db:"id"`
	CreatedAt    time.Time              `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time              `json:"updatedAt" db:"updated_at"`
	Metadata     map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	MessageCount int                    `json:"messageCount" db:"message_count"`
}

// StoredMessage is one persisted history entry.
type StoredMessage struct {
	ID        int64                  `json:"id" db:"id"`
	SessionID string                 `json:"sessionId" db:"session_id"`
	Role      string                 `json:"role" db:"role"`
	Content   string                 `json:"content" db:"content"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time              `json:"createdAt" db:"created_at"`
}

// ToHistory converts stored messages into conversation history, oldest first.
func ToHistory(msgs []StoredMessage) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, Message{Role: m.Role, Content: m.Content})
	}
	return out
}
