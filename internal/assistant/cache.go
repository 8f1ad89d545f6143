package assistant

import (
	"sync"
	"time"

	"github.com/vheim/othala/internal/models"
)

// StateCache holds per-user conversation state for the lifetime of a
// session. It is created at session start and invalidated on sign-out;
// nothing in it is persisted.
type StateCache struct {
	mu     sync.Mutex
	states map[string]*userState
}

type userState struct {
	conversations map[string]*models.Conversation
	order         []string // conversation ids, oldest first
}

// NewStateCache creates an empty cache.
func NewStateCache() *StateCache {
	return &StateCache{states: make(map[string]*userState)}
}

// Conversation returns the conversation with the given id for a user,
// creating it when absent.
func (c *StateCache) Conversation(userID, conversationID, title string) models.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	conv := c.conversation(userID, conversationID, title)
	return cloneConversation(conv)
}

// Append records a message on a conversation and bumps its update time.
func (c *StateCache) Append(userID, conversationID, title string, msg models.ChatMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conv := c.conversation(userID, conversationID, title)
	conv.Messages = append(conv.Messages, msg)
	conv.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
}

// Conversations returns snapshots of every conversation a user holds, oldest
// first, for inclusion in the retrieval pool.
func (c *StateCache) Conversations(userID string) []models.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	state := c.states[userID]
	if state == nil {
		return nil
	}
	out := make([]models.Conversation, 0, len(state.order))
	for _, id := range state.order {
		out = append(out, cloneConversation(state.conversations[id]))
	}
	return out
}

// Invalidate drops all state for a user, e.g. on sign-out.
func (c *StateCache) Invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.states, userID)
}

func (c *StateCache) conversation(userID, conversationID, title string) *models.Conversation {
	state := c.states[userID]
	if state == nil {
		state = &userState{conversations: make(map[string]*models.Conversation)}
		c.states[userID] = state
	}
	conv := state.conversations[conversationID]
	if conv == nil {
		conv = &models.Conversation{ID: conversationID, Title: title}
		state.conversations[conversationID] = conv
		state.order = append(state.order, conversationID)
	}
	if title != "" {
		conv.Title = title
	}
	return conv
}

func cloneConversation(conv *models.Conversation) models.Conversation {
	out := *conv
	out.Messages = append([]models.ChatMessage{}, conv.Messages...)
	return out
}
