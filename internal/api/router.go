package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vheim/othala/internal/workspace"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// assistant, if non-nil, mounts the chat endpoints.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *workspace.Service, authEnabled bool, token string, assistant *AssistantHandler, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Search and graph before the collection wildcard so they are not
	// swallowed by it.
	r.Get("/search", h.Search)
	r.Get("/graph", h.Graph)

	// Assistant.
	if assistant != nil {
		r.Post("/assistant/chat", assistant.Chat)
		r.Get("/assistant/conversations", assistant.Conversations)
	}

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	// Entity CRUD.
	r.Get("/{collection}", h.ListEntities)
	r.Post("/{collection}", h.CreateEntity)
	r.Get("/{collection}/{id}", h.GetEntity)
	r.Put("/{collection}/{id}", h.UpdateEntity)
	r.Delete("/{collection}/{id}", h.DeleteEntity)

	return r
}
