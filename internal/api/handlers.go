package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/vheim/othala/internal/apperr"
	"github.com/vheim/othala/internal/models"
	"github.com/vheim/othala/internal/workspace"
)

// Handler holds API route handlers.
type Handler struct {
	svc *workspace.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *workspace.Service) *Handler {
	return &Handler{svc: svc}
}

// entityRef extracts and validates the collection (and optionally id) route
// params. An unknown collection writes a 404 and returns ok=false.
func entityRef(w http.ResponseWriter, r *http.Request) (collection, id string, ok bool) {
	collection = chi.URLParam(r, "collection")
	if !models.ValidCollection(collection) {
		writeJSON(w, http.StatusNotFound, errorBody("unknown collection"))
		return "", "", false
	}
	return collection, chi.URLParam(r, "id"), true
}

// ListEntities handles GET /api/{collection}.
//
//	@Summary		List entities of one collection with pagination
//	@Tags			entities
//	@Produce		json
//	@Param			collection	path		string	true	"Collection name"
//	@Param			limit		query		int		false	"Page size"
//	@Param			offset		query		int		false	"Page offset"
//	@Success		200			{object}	EntityListResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/{collection} [get]
func (h *Handler) ListEntities(w http.ResponseWriter, r *http.Request) {
	collection, _, ok := entityRef(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	rows, total, err := h.svc.List(r.Context(), collection, limit, offset)
	if err != nil {
		slog.Error("list entities failed", slog.String("collection", collection), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	items := make([]EntityListItem, len(rows))
	for i, row := range rows {
		items[i] = listItem(row)
	}
	writeJSON(w, http.StatusOK, EntityListResponse{Entities: items, Total: total})
}

// GetEntity handles GET /api/{collection}/{id}.
//
//	@Summary		Get a single entity
//	@Tags			entities
//	@Produce		json
//	@Param			collection	path		string	true	"Collection name"
//	@Param			id			path		string	true	"Entity id"
//	@Success		200			{object}	EntityResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/{collection}/{id} [get]
func (h *Handler) GetEntity(w http.ResponseWriter, r *http.Request) {
	collection, id, ok := entityRef(w, r)
	if !ok {
		return
	}
	entity, cs, err := h.svc.Get(r.Context(), collection, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get entity failed", slog.String("entity", collection+"/"+id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	w.Header().Set("ETag", `"`+cs+`"`)
	writeJSON(w, http.StatusOK, EntityResponse{Entity: entity, Checksum: cs})
}

// CreateEntity handles POST /api/{collection}.
//
//	@Summary		Create a new entity
//	@Tags			entities
//	@Accept			json
//	@Produce		json
//	@Param			collection	path		string			true	"Collection name"
//	@Param			body		body		models.Entity	true	"Entity to create"
//	@Success		201			{object}	EntityResponse
//	@Failure		400			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/{collection} [post]
func (h *Handler) CreateEntity(w http.ResponseWriter, r *http.Request) {
	collection, _, ok := entityRef(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var entity models.Entity
	if err := json.NewDecoder(r.Body).Decode(&entity); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	created, cs, err := h.svc.Create(r.Context(), collection, entity)
	if err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			writeJSON(w, http.StatusConflict, errorBody("entity already exists"))
		} else {
			slog.Error("create entity failed", slog.String("collection", collection), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	w.Header().Set("ETag", `"`+cs+`"`)
	writeJSON(w, http.StatusCreated, EntityResponse{Entity: created, Checksum: cs})
}

// UpdateEntity handles PUT /api/{collection}/{id}.
//
//	@Summary		Update an entity with optimistic concurrency
//	@Tags			entities
//	@Accept			json
//	@Produce		json
//	@Param			collection	path		string			true	"Collection name"
//	@Param			id			path		string			true	"Entity id"
//	@Param			If-Match	header		string			false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body		models.Entity	true	"Updated entity"
//	@Success		200			{object}	EntityResponse
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/{collection}/{id} [put]
func (h *Handler) UpdateEntity(w http.ResponseWriter, r *http.Request) {
	collection, id, ok := entityRef(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var entity models.Entity
	if err := json.NewDecoder(r.Body).Decode(&entity); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	ifMatch := r.Header.Get("If-Match")
	// Strip surrounding quotes if present (standard ETag format).
	ifMatch = strings.Trim(ifMatch, `"`)

	updated, cs, err := h.svc.Update(r.Context(), collection, id, entity, ifMatch)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		case errors.Is(err, apperr.ErrConflict):
			writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
		default:
			slog.Error("update entity failed", slog.String("entity", collection+"/"+id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	w.Header().Set("ETag", `"`+cs+`"`)
	writeJSON(w, http.StatusOK, EntityResponse{Entity: updated, Checksum: cs})
}

// DeleteEntity handles DELETE /api/{collection}/{id}.
//
//	@Summary		Delete an entity and scrub references to it
//	@Tags			entities
//	@Param			collection	path	string	true	"Collection name"
//	@Param			id			path	string	true	"Entity id"
//	@Success		204			"Entity deleted"
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/{collection}/{id} [delete]
func (h *Handler) DeleteEntity(w http.ResponseWriter, r *http.Request) {
	collection, id, ok := entityRef(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), collection, id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		slog.Error("delete entity failed", slog.String("entity", collection+"/"+id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across entities
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
	})
}

// Graph handles GET /api/graph.
//
//	@Summary		Get the relation graph
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	GraphResponse
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	nodes, edges, err := h.svc.Graph(r.Context())
	if err != nil {
		slog.Error("graph failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"nodes": nodes,
		"edges": edges,
	})
}
