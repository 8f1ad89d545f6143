package models

// ChatMessage is one turn in an assistant conversation.
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Conversation is an assistant chat thread. Conversations participate in
// retrieval like any other workspace document but are owned by the
// per-session assistant state, not by entity storage.
type Conversation struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	UpdatedAt string        `json:"updatedAt,omitempty"`
	Messages  []ChatMessage `json:"messages"`
}
