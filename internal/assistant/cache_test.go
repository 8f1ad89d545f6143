package assistant

import (
	"testing"

	"github.com/vheim/othala/internal/models"
)

func TestStateCache_AppendAndSnapshot(t *testing.T) {
	c := NewStateCache()

	c.Append("u1", "c1", "Planning", models.ChatMessage{Role: "user", Content: "hi"})
	c.Append("u1", "c1", "", models.ChatMessage{Role: "assistant", Content: "hello"})
	c.Append("u1", "c2", "Second", models.ChatMessage{Role: "user", Content: "more"})

	convs := c.Conversations("u1")
	if len(convs) != 2 {
		t.Fatalf("len(convs) = %d, want 2", len(convs))
	}
	if convs[0].ID != "c1" || convs[0].Title != "Planning" || len(convs[0].Messages) != 2 {
		t.Errorf("convs[0] = %+v", convs[0])
	}
	if convs[0].UpdatedAt == "" {
		t.Error("expected UpdatedAt stamped on append")
	}

	// Snapshots are copies: mutating one must not leak into the cache.
	convs[0].Messages[0].Content = "mutated"
	if c.Conversation("u1", "c1", "").Messages[0].Content != "hi" {
		t.Error("snapshot mutation leaked into cache")
	}
}

func TestStateCache_Invalidate(t *testing.T) {
	c := NewStateCache()
	c.Append("u1", "c1", "T", models.ChatMessage{Role: "user", Content: "hi"})
	c.Invalidate("u1")
	if convs := c.Conversations("u1"); len(convs) != 0 {
		t.Errorf("conversations after invalidate = %v", convs)
	}
}

func TestStateCache_UsersIsolated(t *testing.T) {
	c := NewStateCache()
	c.Append("u1", "c1", "T", models.ChatMessage{Role: "user", Content: "hi"})
	if convs := c.Conversations("u2"); len(convs) != 0 {
		t.Errorf("u2 sees u1 conversations: %v", convs)
	}
}
