// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Othala tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/vheim/othala/internal/assistant"
	"github.com/vheim/othala/internal/models"
	"github.com/vheim/othala/internal/rag"
	"github.com/vheim/othala/internal/workspace"
)

// AssistantOptions carries the model call parameters for the ask_assistant
// tool. A nil Send disables the tool.
type AssistantOptions struct {
	Provider     string
	Model        string
	SystemPrompt string
	Send         assistant.SendStreamFunc
}

// Server wraps the MCP server with Othala tools.
type Server struct {
	mcp *server.MCPServer
	svc *workspace.Service
	ai  AssistantOptions
}

// New creates a new MCP server with all Othala tools registered.
func New(svc *workspace.Service, ai AssistantOptions) *Server {
	s := &Server{svc: svc, ai: ai}

	s.mcp = server.NewMCPServer(
		"Othala",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_workspace",
		mcp.WithDescription("Full-text search across every entity collection (projects, tasks, notes, meetings, companies, people)."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchWorkspace)

	s.mcp.AddTool(mcp.NewTool("read_entity",
		mcp.WithDescription("Read one entity as JSON, including its relation fields."),
		mcp.WithString("collection", mcp.Required(), mcp.Description("Collection name (projects, tasks, notes, meetings, companies, people)")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Entity id")),
	), s.readEntity)

	s.mcp.AddTool(mcp.NewTool("list_entities",
		mcp.WithDescription("List entities of one collection, newest first."),
		mcp.WithString("collection", mcp.Required(), mcp.Description("Collection name")),
	), s.listEntities)

	s.mcp.AddTool(mcp.NewTool("create_entity",
		mcp.WithDescription("Create a new entity from a JSON document. The document MUST follow "+
			"the entity format contract; read it first via the get_entity_contract tool or the "+
			"othala://entity-format resource. Relation fields are mirrored onto the referenced entities."),
		mcp.WithString("collection", mcp.Required(), mcp.Description("Collection name")),
		mcp.WithString("entity", mcp.Required(), mcp.Description("Entity as a JSON object string")),
	), s.createEntity)

	s.mcp.AddTool(mcp.NewTool("get_entity_contract",
		mcp.WithDescription("Returns the canonical Othala entity format contract. "+
			"Call this before creating or updating entities to ensure correct structure."),
	), s.getEntityContract)

	if ai.Send != nil {
		s.mcp.AddTool(mcp.NewTool("ask_assistant",
			mcp.WithDescription("Ask the workspace assistant a question. The answer is grounded in "+
				"workspace content via retrieval and cites its sources."),
			mcp.WithString("question", mcp.Required(), mcp.Description("Question to answer")),
		), s.askAssistant)
	}

	// Resource: entity format contract.
	s.mcp.AddResource(
		mcp.NewResource("othala://entity-format", "Entity Format Contract",
			mcp.WithResourceDescription("Canonical JSON entity format that all entities must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readEntityFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchWorkspace(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readEntity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	collection, err := req.RequireString("collection")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entity, _, err := s.svc.Get(ctx, collection, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s/%s", collection, id)), nil
	}
	out, _ := json.MarshalIndent(entity, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listEntities(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	collection, err := req.RequireString("collection")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rows, _, err := s.svc.List(ctx, collection, 100, 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var lines []string
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("%s/%s\t%s", r.Collection, r.ID, r.Title))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) createEntity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	collection, err := req.RequireString("collection")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := req.RequireString("entity")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var entity models.Entity
	if err := json.Unmarshal([]byte(raw), &entity); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid entity JSON: %v", err)), nil
	}

	created, _, err := s.svc.Create(ctx, collection, entity)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s/%s", collection, created.ID())), nil
}

func (s *Server) askAssistant(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	pool, err := s.svc.Pool(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := assistant.StreamAssistantReply(ctx, assistant.StreamParams{
		Prompt: question,
		BaseRequest: assistant.Request{
			Provider:     s.ai.Provider,
			Model:        s.ai.Model,
			SystemPrompt: s.ai.SystemPrompt,
		},
		Pool: rag.BuildAssistantRagDocuments(pool),
		Send: s.ai.Send,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	cited := assistant.ResolveCitedSources(result.FinalReply, result.RelevantDocuments)
	reply := assistant.RemapCitationIndexes(result.FinalReply, cited)
	if len(cited) > 0 {
		var sources []string
		for _, c := range cited {
			sources = append(sources, fmt.Sprintf("[%d] %s (%s)", c.CitationIndex, c.Source.Title, c.Source.ID))
		}
		reply += "\n\nSources:\n" + strings.Join(sources, "\n")
	}
	return mcp.NewToolResultText(reply), nil
}

func (s *Server) getEntityContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(EntityFormatContract), nil
}

func (s *Server) readEntityFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "othala://entity-format",
			MIMEType: "text/markdown",
			Text:     EntityFormatContract,
		},
	}, nil
}
