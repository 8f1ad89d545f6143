package rag

import (
	"strings"

	"github.com/vheim/othala/internal/models"
)

// Pool holds snapshots of every searchable collection for one assistant turn.
type Pool struct {
	Projects      []models.Entity
	Tasks         []models.Entity
	Notes         []models.Entity
	Meetings      []models.Entity
	Companies     []models.Entity
	People        []models.Entity
	Conversations []models.Conversation
}

// maxDocContentChars caps per-document content so a single large note cannot
// consume the whole retrieval budget.
const maxDocContentChars = 1500

// FlattenEntity reduces one entity to a searchable title and content string
// according to its collection's fields. Both may be empty.
func FlattenEntity(collection string, e models.Entity) (title, content string) {
	switch collection {
	case models.CollectionProjects:
		title = e.String("name")
		content = joinParts([]string{
			e.String("description"),
			labeled("Status", e.String("status")),
		})
	case models.CollectionTasks:
		title = e.String("title")
		content = joinParts([]string{
			e.String("description"),
			labeled("Status", e.String("status")),
			labeled("Due", e.String("dueDate")),
		})
	case models.CollectionNotes:
		title = e.String("title")
		content = StripHTML(e.String("content"))
	case models.CollectionMeetings:
		title = e.String("title")
		content = joinParts([]string{
			labeled("Date", e.String("date")),
			e.String("agenda"),
			StripHTML(e.String("notes")),
			e.String("transcript"),
		})
	case models.CollectionCompanies:
		title = e.String("name")
		content = joinParts([]string{
			e.String("description"),
			labeled("Industry", e.String("industry")),
		})
	case models.CollectionPeople:
		title = e.String("name")
		content = joinParts([]string{
			labeled("Role", e.String("role")),
			labeled("Email", e.String("email")),
			e.String("notes"),
		})
	}
	return strings.TrimSpace(title), content
}

// BuildAssistantRagDocuments flattens the pool into searchable documents.
// Entities that end up with neither a title nor content are excluded.
func BuildAssistantRagDocuments(pool Pool) []Document {
	var out []Document

	add := func(collection string, entities []models.Entity) {
		for _, e := range entities {
			title, content := FlattenEntity(collection, e)
			if title == "" && content == "" {
				continue
			}
			out = append(out, Document{
				ID:         collection + "/" + e.ID(),
				SourceType: models.SourceTypes[collection],
				Title:      title,
				UpdatedAt:  e.String("updatedAt"),
				Content:    Truncate(content, maxDocContentChars),
			})
		}
	}

	add(models.CollectionProjects, pool.Projects)
	add(models.CollectionTasks, pool.Tasks)
	add(models.CollectionNotes, pool.Notes)
	add(models.CollectionMeetings, pool.Meetings)
	add(models.CollectionCompanies, pool.Companies)
	add(models.CollectionPeople, pool.People)

	for _, c := range pool.Conversations {
		title := strings.TrimSpace(c.Title)
		if title == "" {
			title = "Conversation"
		}
		var lines []string
		for _, m := range c.Messages {
			text := strings.TrimSpace(m.Content)
			if text == "" {
				continue
			}
			role := "User"
			if m.Role == "assistant" {
				role = "Assistant"
			}
			lines = append(lines, role+": "+text)
		}
		if len(lines) == 0 {
			continue
		}
		out = append(out, Document{
			ID:         "conversations/" + c.ID,
			SourceType: "Conversation",
			Title:      title,
			UpdatedAt:  c.UpdatedAt,
			Content:    Truncate(strings.Join(lines, "\n"), maxDocContentChars),
		})
	}

	return out
}

func labeled(label, value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	return label + ": " + value
}

func joinParts(parts []string) string {
	var kept []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}
