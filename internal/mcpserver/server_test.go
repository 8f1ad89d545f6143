package mcpserver

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/vheim/othala/internal/assistant"
	"github.com/vheim/othala/internal/models"
	"github.com/vheim/othala/internal/testutil"
	"github.com/vheim/othala/internal/workspace"
)

func testServer(t *testing.T, ai AssistantOptions) (*Server, *workspace.Service) {
	t.Helper()
	svc := testutil.TestWorkspace(t)
	return New(svc, ai), svc
}

// callTool invokes a tool handler directly; mcp-go does not expose a direct
// "call tool" test helper.
func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_workspace":
		result, err = srv.searchWorkspace(ctx, req)
	case "read_entity":
		result, err = srv.readEntity(ctx, req)
	case "list_entities":
		result, err = srv.listEntities(ctx, req)
	case "create_entity":
		result, err = srv.createEntity(ctx, req)
	case "get_entity_contract":
		result, err = srv.getEntityContract(ctx, req)
	case "ask_assistant":
		result, err = srv.askAssistant(ctx, req)
	default:
		t.Fatalf("unknown tool %q", name)
	}
	if err != nil {
		t.Fatalf("tool %s returned error: %v", name, err)
	}
	return result
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	text, ok := mcp.AsTextContent(res.Content[0])
	if !ok {
		t.Fatalf("unexpected content type %T", res.Content[0])
	}
	return text.Text
}

func TestCreateAndReadEntity(t *testing.T) {
	srv, _ := testServer(t, AssistantOptions{})

	res := callTool(t, srv, "create_entity", map[string]interface{}{
		"collection": "projects",
		"entity":     `{"id":"p1","name":"Launch"}`,
	})
	if res.IsError {
		t.Fatalf("create failed: %s", resultText(t, res))
	}
	if got := resultText(t, res); !strings.Contains(got, "created: projects/p1") {
		t.Errorf("create result = %q", got)
	}

	res = callTool(t, srv, "read_entity", map[string]interface{}{
		"collection": "projects",
		"id":         "p1",
	})
	if res.IsError {
		t.Fatalf("read failed: %s", resultText(t, res))
	}
	if got := resultText(t, res); !strings.Contains(got, `"name": "Launch"`) {
		t.Errorf("read result = %q", got)
	}
}

func TestCreateEntity_MirrorsRelations(t *testing.T) {
	srv, svc := testServer(t, AssistantOptions{})

	callTool(t, srv, "create_entity", map[string]interface{}{
		"collection": "projects",
		"entity":     `{"id":"p1","name":"Launch"}`,
	})
	callTool(t, srv, "create_entity", map[string]interface{}{
		"collection": "tasks",
		"entity":     `{"id":"t1","title":"Ship","projectIds":["p1"]}`,
	})

	project, _, err := svc.Get(context.Background(), models.CollectionProjects, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if got := project.StringList("taskIds"); len(got) != 1 || got[0] != "t1" {
		t.Errorf("project taskIds = %v, want [t1]", got)
	}
}

func TestCreateEntity_InvalidJSON(t *testing.T) {
	srv, _ := testServer(t, AssistantOptions{})
	res := callTool(t, srv, "create_entity", map[string]interface{}{
		"collection": "notes",
		"entity":     "{not json",
	})
	if !res.IsError {
		t.Error("expected error result for invalid JSON")
	}
}

func TestReadEntity_NotFound(t *testing.T) {
	srv, _ := testServer(t, AssistantOptions{})
	res := callTool(t, srv, "read_entity", map[string]interface{}{
		"collection": "notes",
		"id":         "missing",
	})
	if !res.IsError {
		t.Error("expected error result for missing entity")
	}
}

func TestSearchWorkspace(t *testing.T) {
	srv, _ := testServer(t, AssistantOptions{})

	callTool(t, srv, "create_entity", map[string]interface{}{
		"collection": "notes",
		"entity":     `{"id":"n1","title":"Roadmap","content":"quarterly xylophone budget"}`,
	})

	res := callTool(t, srv, "search_workspace", map[string]interface{}{"query": "xylophone"})
	if res.IsError {
		t.Fatalf("search failed: %s", resultText(t, res))
	}
	if got := resultText(t, res); !strings.Contains(got, "n1") {
		t.Errorf("search result = %q, want hit for n1", got)
	}
}

func TestListEntities(t *testing.T) {
	srv, _ := testServer(t, AssistantOptions{})

	callTool(t, srv, "create_entity", map[string]interface{}{
		"collection": "people",
		"entity":     `{"id":"h1","name":"Dana"}`,
	})

	res := callTool(t, srv, "list_entities", map[string]interface{}{"collection": "people"})
	if got := resultText(t, res); !strings.Contains(got, "people/h1\tDana") {
		t.Errorf("list result = %q", got)
	}
}

func TestGetEntityContract(t *testing.T) {
	srv, _ := testServer(t, AssistantOptions{})
	res := callTool(t, srv, "get_entity_contract", nil)
	if got := resultText(t, res); !strings.Contains(got, "Entity Format Contract") {
		t.Errorf("contract result = %q", got)
	}
}

func TestAskAssistant(t *testing.T) {
	send := func(_ context.Context, _ assistant.Request, onChunk func(assistant.Chunk)) error {
		onChunk(assistant.Chunk{Delta: "The launch ships in March [1]."})
		onChunk(assistant.Chunk{Done: true})
		return nil
	}
	srv, _ := testServer(t, AssistantOptions{Provider: "ollama", Model: "test-model", Send: send})

	callTool(t, srv, "create_entity", map[string]interface{}{
		"collection": "projects",
		"entity":     `{"id":"p1","name":"Launch plan","description":"Ship the launch in March"}`,
	})

	res := callTool(t, srv, "ask_assistant", map[string]interface{}{"question": "When does the launch ship?"})
	if res.IsError {
		t.Fatalf("ask failed: %s", resultText(t, res))
	}
	got := resultText(t, res)
	if !strings.Contains(got, "ships in March [1]") {
		t.Errorf("reply = %q", got)
	}
	if !strings.Contains(got, "Sources:") || !strings.Contains(got, "projects/p1") {
		t.Errorf("reply missing sources block: %q", got)
	}
}
