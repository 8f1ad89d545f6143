package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/vheim/othala/internal/assistant"
	"github.com/vheim/othala/internal/index"
	"github.com/vheim/othala/internal/models"
	"github.com/vheim/othala/internal/storage"
	"github.com/vheim/othala/internal/workspace"
)

// testEnv sets up a temp workspace, SQLite DB, service, and router.
// An empty authToken runs the router in disabled-auth mode.
func testEnv(t *testing.T, authToken string) (*workspace.Service, http.Handler) {
	t.Helper()
	svc, router := testEnvWithSend(t, authToken, nil)
	return svc, router
}

func testEnvWithSend(t *testing.T, authToken string, send assistant.SendStreamFunc) (*workspace.Service, http.Handler) {
	t.Helper()

	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}

	dbFile, err := os.CreateTemp("", "othala-api-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	svc := workspace.NewService(store, db, logger)

	var ah *AssistantHandler
	if send != nil {
		ah = NewAssistantHandler(svc, assistant.NewStateCache(), send, AssistantConfig{
			Provider:     "ollama",
			Model:        "test-model",
			SystemPrompt: "You are a workspace assistant.",
		})
	}

	router := NewRouter(svc, authToken != "", authToken, ah, nil)
	return svc, router
}

func TestCreateAndGetEntity(t *testing.T) {
	_, router := testEnv(t, "")

	body, _ := json.Marshal(models.Entity{"id": "p1", "name": "Launch"})
	req := httptest.NewRequest(http.MethodPost, "/projects", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	if w.Header().Get("ETag") == "" {
		t.Error("expected ETag header on create")
	}

	req = httptest.NewRequest(http.MethodGet, "/projects/p1", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var resp EntityResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Entity.String("name") != "Launch" {
		t.Errorf("name = %q", resp.Entity.String("name"))
	}
	if resp.Checksum == "" {
		t.Error("expected checksum in response")
	}
}

func TestCreateEntity_GeneratesID(t *testing.T) {
	_, router := testEnv(t, "")

	body, _ := json.Marshal(models.Entity{"title": "Ship it"})
	req := httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d", w.Code)
	}
	var resp EntityResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Entity.ID() == "" {
		t.Error("expected generated id")
	}
}

func TestUnknownCollection(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/widgets", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for unknown collection", w.Code)
	}
}

func TestUpdateEntity_ChecksumConflict(t *testing.T) {
	_, router := testEnv(t, "")

	body, _ := json.Marshal(models.Entity{"id": "n1", "title": "Draft"})
	req := httptest.NewRequest(http.MethodPost, "/notes", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var created EntityResponse
	_ = json.Unmarshal(w.Body.Bytes(), &created)

	// Stale checksum conflicts.
	body, _ = json.Marshal(models.Entity{"title": "Stale"})
	req = httptest.NewRequest(http.MethodPut, "/notes/n1", bytes.NewReader(body))
	req.Header.Set("If-Match", `"bogus"`)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Fatalf("stale update status = %d, want 409", w.Code)
	}

	// Matching checksum succeeds.
	body, _ = json.Marshal(models.Entity{"title": "Fresh"})
	req = httptest.NewRequest(http.MethodPut, "/notes/n1", bytes.NewReader(body))
	req.Header.Set("If-Match", `"`+created.Checksum+`"`)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("fresh update status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestDeleteEntity(t *testing.T) {
	_, router := testEnv(t, "")

	body, _ := json.Marshal(models.Entity{"id": "t1", "title": "Ship"})
	req := httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	req = httptest.NewRequest(http.MethodDelete, "/tasks/t1", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/tasks/t1", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", w.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/tasks/t1", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("double delete status = %d, want 404", w.Code)
	}
}

func TestRelationMirroredThroughAPI(t *testing.T) {
	_, router := testEnv(t, "")

	body, _ := json.Marshal(models.Entity{"id": "p1", "name": "Launch"})
	req := httptest.NewRequest(http.MethodPost, "/projects", bytes.NewReader(body))
	router.ServeHTTP(httptest.NewRecorder(), req)

	body, _ = json.Marshal(models.Entity{"id": "t1", "title": "Ship", "projectIds": []string{"p1"}})
	req = httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewReader(body))
	router.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/projects/p1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var resp EntityResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if got := resp.Entity.StringList("taskIds"); len(got) != 1 || got[0] != "t1" {
		t.Errorf("project taskIds = %v, want [t1]", got)
	}
}

func TestListEntities(t *testing.T) {
	svc, router := testEnv(t, "")
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if _, _, err := svc.Create(ctx, models.CollectionNotes, models.Entity{"id": id, "title": "Note " + id}); err != nil {
			t.Fatal(err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/notes?limit=2", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var resp EntityListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 3 {
		t.Errorf("total = %d, want 3", resp.Total)
	}
	if len(resp.Entities) != 2 {
		t.Errorf("entities = %d, want 2", len(resp.Entities))
	}
}

func TestSearch(t *testing.T) {
	svc, router := testEnv(t, "")
	if _, _, err := svc.Create(context.Background(), models.CollectionNotes, models.Entity{
		"id": "n1", "title": "Roadmap", "content": "quarterly xylophone budget",
	}); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/search?q=xylophone", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d", w.Code)
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) != 1 || resp.Results[0].ID != "n1" {
		t.Errorf("results = %+v, want 1 hit for n1", resp.Results)
	}

	req = httptest.NewRequest(http.MethodGet, "/search", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing query status = %d, want 400", w.Code)
	}
}

func TestGraph(t *testing.T) {
	svc, router := testEnv(t, "")
	ctx := context.Background()
	if _, _, err := svc.Create(ctx, models.CollectionProjects, models.Entity{"id": "p1", "name": "Launch"}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.Create(ctx, models.CollectionTasks, models.Entity{"id": "t1", "title": "Ship", "projectIds": []string{"p1"}}); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/graph", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("graph status = %d", w.Code)
	}
	var resp GraphResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Nodes) != 2 {
		t.Errorf("nodes = %d, want 2", len(resp.Nodes))
	}
	if len(resp.Edges) == 0 {
		t.Error("expected at least one edge")
	}
}

func TestAuth(t *testing.T) {
	_, router := testEnv(t, "secret")

	req := httptest.NewRequest(http.MethodGet, "/graph", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/graph", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token status = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/graph", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("valid token status = %d, want 200", w.Code)
	}
}

func TestAssistantChat_Stream(t *testing.T) {
	send := func(_ context.Context, req assistant.Request, onChunk func(assistant.Chunk)) error {
		if len(req.Messages) == 0 || req.Messages[len(req.Messages)-1].Content != "What is the launch plan?" {
			return nil
		}
		onChunk(assistant.Chunk{Delta: "<think>Check the project notes.</think>"})
		onChunk(assistant.Chunk{Delta: "Ship in March [1]."})
		onChunk(assistant.Chunk{Done: true})
		return nil
	}
	svc, router := testEnvWithSend(t, "", send)
	if _, _, err := svc.Create(context.Background(), models.CollectionProjects, models.Entity{
		"id": "p1", "name": "Launch plan", "description": "Ship the launch in March",
	}); err != nil {
		t.Fatal(err)
	}

	body, _ := json.Marshal(ChatRequest{Message: "What is the launch plan?", ConversationID: "c1"})
	req := httptest.NewRequest(http.MethodPost, "/assistant/chat", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("chat status = %d, body = %s", w.Code, w.Body.String())
	}

	out := w.Body.String()
	for _, want := range []string{"event: sources", "event: thinking", "event: reply", "event: done"} {
		if !strings.Contains(out, want) {
			t.Errorf("stream missing %q in %q", want, out)
		}
	}
	if !strings.Contains(out, "Ship in March [1].") {
		t.Errorf("stream missing final reply: %q", out)
	}

	// The turn lands in the conversation cache.
	req = httptest.NewRequest(http.MethodGet, "/assistant/conversations", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var convs struct {
		Conversations []models.Conversation `json:"conversations"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &convs)
	if len(convs.Conversations) != 1 || len(convs.Conversations[0].Messages) != 2 {
		t.Errorf("conversations = %+v, want one conversation with two messages", convs.Conversations)
	}
}

func TestAssistantChat_TransportError(t *testing.T) {
	send := func(_ context.Context, _ assistant.Request, onChunk func(assistant.Chunk)) error {
		onChunk(assistant.Chunk{Err: "model unavailable"})
		return nil
	}
	_, router := testEnvWithSend(t, "", send)

	body, _ := json.Marshal(ChatRequest{Message: "hello"})
	req := httptest.NewRequest(http.MethodPost, "/assistant/chat", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if !strings.Contains(w.Body.String(), "event: error") {
		t.Errorf("expected error event, got %q", w.Body.String())
	}
}

func TestAssistantChat_MissingMessage(t *testing.T) {
	_, router := testEnvWithSend(t, "", func(_ context.Context, _ assistant.Request, _ func(assistant.Chunk)) error {
		return nil
	})

	req := httptest.NewRequest(http.MethodPost, "/assistant/chat", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
