package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/vheim/othala/internal/assistant"
	"github.com/vheim/othala/internal/models"
	"github.com/vheim/othala/internal/rag"
	"github.com/vheim/othala/internal/workspace"
)

// defaultUserID is used when a chat request carries no user id. The server is
// single-tenant by default; multi-user callers pass their own ids.
const defaultUserID = "local"

// AssistantConfig carries the model call parameters shared by every turn.
type AssistantConfig struct {
	Provider     string
	Model        string
	SystemPrompt string
	AuthToken    string
}

// AssistantHandler streams assistant turns over SSE.
type AssistantHandler struct {
	svc   *workspace.Service
	cache *assistant.StateCache
	send  assistant.SendStreamFunc
	cfg   AssistantConfig
}

// NewAssistantHandler creates an AssistantHandler.
func NewAssistantHandler(svc *workspace.Service, cache *assistant.StateCache, send assistant.SendStreamFunc, cfg AssistantConfig) *AssistantHandler {
	return &AssistantHandler{svc: svc, cache: cache, send: send, cfg: cfg}
}

// Chat handles POST /api/assistant/chat. The response is an SSE stream:
// one "sources" event with the retrieved documents, incremental "thinking"
// and "reply" events carrying the full text so far, then a final "done"
// event with the citation-remapped reply, or an "error" event.
//
//	@Summary		Run one assistant turn with workspace retrieval
//	@Tags			assistant
//	@Accept			json
//	@Produce		text/event-stream
//	@Param			body	body	ChatRequest	true	"Chat turn"
//	@Success		200		"SSE stream"
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/assistant/chat [post]
func (h *AssistantHandler) Chat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("message is required"))
		return
	}
	if req.UserID == "" {
		req.UserID = defaultUserID
	}
	if req.ConversationID == "" {
		req.ConversationID = workspace.NewID()
	}
	if req.ConversationTitle == "" {
		req.ConversationTitle = rag.Truncate(req.Message, 60)
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorBody("streaming unsupported"))
		return
	}

	pool, err := h.svc.Pool(r.Context())
	if err != nil {
		slog.Error("assistant pool failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	pool.Conversations = h.cache.Conversations(req.UserID)

	history := h.cache.Conversation(req.UserID, req.ConversationID, req.ConversationTitle).Messages

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	params := assistant.StreamParams{
		Prompt:  req.Message,
		History: history,
		BaseRequest: assistant.Request{
			Provider:          h.cfg.Provider,
			Model:             h.cfg.Model,
			SystemPrompt:      h.cfg.SystemPrompt,
			AuthToken:         h.cfg.AuthToken,
			UserID:            req.UserID,
			ConversationID:    req.ConversationID,
			ConversationTitle: req.ConversationTitle,
		},
		Pool: rag.BuildAssistantRagDocuments(pool),
		Send: h.send,
		OnDocuments: func(docs []rag.Document) {
			sendEvent(w, flusher, "sources", map[string]any{"documents": docs})
		},
		OnThinking: func(thinking string) {
			sendEvent(w, flusher, "thinking", map[string]string{"text": thinking})
		},
		OnReply: func(reply string) {
			sendEvent(w, flusher, "reply", map[string]string{"text": reply})
		},
	}

	result, err := assistant.StreamAssistantReply(r.Context(), params)
	if err != nil {
		slog.Error("assistant turn failed",
			slog.String("conversation", req.ConversationID),
			slog.String("error", err.Error()))
		sendEvent(w, flusher, "error", map[string]string{"error": err.Error()})
		return
	}

	cited := assistant.ResolveCitedSources(result.FinalReply, result.RelevantDocuments)
	final := assistant.RemapCitationIndexes(result.FinalReply, cited)

	h.cache.Append(req.UserID, req.ConversationID, req.ConversationTitle,
		models.ChatMessage{Role: "user", Content: req.Message})
	h.cache.Append(req.UserID, req.ConversationID, req.ConversationTitle,
		models.ChatMessage{Role: "assistant", Content: final})

	sendEvent(w, flusher, "done", map[string]any{
		"conversationId": req.ConversationID,
		"reply":          final,
		"citations":      cited,
	})
}

// Conversations handles GET /api/assistant/conversations.
//
//	@Summary		List cached conversations for a user
//	@Tags			assistant
//	@Produce		json
//	@Param			userId	query		string	false	"User id"
//	@Success		200		{object}	map[string]any
//	@Security		BearerAuth
//	@Router			/assistant/conversations [get]
func (h *AssistantHandler) Conversations(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		userID = defaultUserID
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversations": h.cache.Conversations(userID),
	})
}

func sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, payload)
	flusher.Flush()
}
