package api

import (
	"time"

	"github.com/vheim/othala/internal/index"
	"github.com/vheim/othala/internal/models"
)

// EntityResponse wraps one entity together with its document checksum, which
// doubles as the ETag for optimistic concurrency.
type EntityResponse struct {
	Entity   models.Entity `json:"entity" validate:"required"`
	Checksum string        `json:"checksum" example:"abc123..." validate:"required"`
}

// EntityListItem is a lightweight item in a list response.
type EntityListItem struct {
	Collection string    `json:"collection" example:"tasks" validate:"required"`
	ID         string    `json:"id" example:"4f2a9c01d3b7e815" validate:"required"`
	Title      string    `json:"title" example:"Ship the launch checklist"`
	Checksum   string    `json:"checksum" example:"abc123..." validate:"required"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// EntityListResponse wraps paginated entity listings.
type EntityListResponse struct {
	Entities []EntityListItem `json:"entities" validate:"required"`
	Total    int              `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// GraphResponse wraps the relation graph.
type GraphResponse struct {
	Nodes []index.GraphNode `json:"nodes" validate:"required"`
	Edges []index.Edge      `json:"edges" validate:"required"`
}

// ChatRequest is the request body for an assistant turn.
type ChatRequest struct {
	Message           string `json:"message" example:"What is blocking the launch?" validate:"required"`
	ConversationID    string `json:"conversationId" example:"c1"`
	ConversationTitle string `json:"conversationTitle" example:"Launch planning"`
	UserID            string `json:"userId" example:"local"`
}

func listItem(r index.EntityRow) EntityListItem {
	return EntityListItem{
		Collection: r.Collection,
		ID:         r.ID,
		Title:      r.Title,
		Checksum:   r.Checksum,
		UpdatedAt:  r.UpdatedAt,
	}
}
