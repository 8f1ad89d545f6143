package rag

import (
	"strings"
	"testing"

	"github.com/vheim/othala/internal/models"
)

func TestBuildAssistantRagDocuments(t *testing.T) {
	pool := Pool{
		Projects: []models.Entity{
			{"id": "p1", "name": "Atlas", "description": "Mapping initiative", "status": "active", "updatedAt": "2026-01-05T10:00:00Z"},
		},
		Tasks: []models.Entity{
			{"id": "t1", "title": "Draft spec", "status": "open", "dueDate": "2026-02-01"},
		},
		Notes: []models.Entity{
			{"id": "n1", "title": "Kickoff", "content": "<p>First <b>meeting</b> notes</p>"},
		},
		People: []models.Entity{
			{"id": "pe1", "name": "Dana", "role": "Engineer"},
		},
	}

	docs := BuildAssistantRagDocuments(pool)
	if len(docs) != 4 {
		t.Fatalf("len(docs) = %d, want 4", len(docs))
	}

	byID := make(map[string]Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}

	proj := byID["projects/p1"]
	if proj.SourceType != "Project" || proj.Title != "Atlas" {
		t.Errorf("project doc = %+v", proj)
	}
	if !strings.Contains(proj.Content, "Status: active") {
		t.Errorf("project content = %q", proj.Content)
	}
	if proj.UpdatedAt != "2026-01-05T10:00:00Z" {
		t.Errorf("project updatedAt = %q", proj.UpdatedAt)
	}

	note := byID["notes/n1"]
	if note.Content != "First meeting notes" {
		t.Errorf("note content = %q, want HTML stripped", note.Content)
	}

	task := byID["tasks/t1"]
	if !strings.Contains(task.Content, "Due: 2026-02-01") {
		t.Errorf("task content = %q", task.Content)
	}
}

func TestBuildAssistantRagDocuments_SkipsEmpty(t *testing.T) {
	pool := Pool{
		Notes: []models.Entity{
			{"id": "n1"},
			{"id": "n2", "title": "", "content": "<p></p>"},
		},
	}
	if docs := BuildAssistantRagDocuments(pool); len(docs) != 0 {
		t.Errorf("expected empty entities excluded, got %v", docs)
	}
}

func TestBuildAssistantRagDocuments_Conversations(t *testing.T) {
	pool := Pool{
		Conversations: []models.Conversation{
			{
				ID:    "c1",
				Title: "Planning chat",
				Messages: []models.ChatMessage{
					{Role: "user", Content: "What is due this week?"},
					{Role: "assistant", Content: "The roadmap draft."},
				},
			},
			{ID: "c2", Title: "Empty"},
		},
	}

	docs := BuildAssistantRagDocuments(pool)
	if len(docs) != 1 {
		t.Fatalf("len(docs) = %d, want 1 (messageless conversation skipped)", len(docs))
	}
	doc := docs[0]
	if doc.ID != "conversations/c1" || doc.SourceType != "Conversation" {
		t.Errorf("doc = %+v", doc)
	}
	if !strings.Contains(doc.Content, "User: What is due this week?") ||
		!strings.Contains(doc.Content, "Assistant: The roadmap draft.") {
		t.Errorf("content = %q", doc.Content)
	}
}
