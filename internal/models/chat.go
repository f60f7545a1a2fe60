package models

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const DefaultSessionTitle = "New conversation"

type ChatSession struct {
	ID        string    `json:"id" db:"session_id"`
	Title     string    `json:"title" db:"title"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

type ChatMessage struct {
	ID        string            `json:"id" db:"message_id"`
	SessionID string            `json:"-" db:"session_id"`
	Role      string            `json:"role" db:"role"`
	Content   string            `json:"content" db:"content"`
	Citations []DocumentSnippet `json:"citations" db:"citations"`
	Timestamp time.Time         `json:"timestamp" db:"created_at"`
}
