package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/vheim/othala/internal/apperr"
	"github.com/vheim/othala/internal/models"
	"github.com/vheim/othala/internal/rag"
)

const (
	thinkOpenTag  = "<think>"
	thinkCloseTag = "</think>"

	// thinkingPlaceholder is shown while an open think tag has produced no
	// text yet.
	thinkingPlaceholder = "Thinking..."
)

// ragPromptSuffix is appended to the base system prompt whenever retrieval
// selected at least one document.
const ragPromptSuffix = "\n\n" +
	"Workspace context is provided below as a numbered list. Prefer it over " +
	"general knowledge when it is relevant to the question. When you use a " +
	"context entry, cite it inline with its bracketed number, e.g. [1] or [2]. " +
	"Only cite numbers that appear in the list.\n\nWorkspace context:\n"

// Request carries everything the streaming transport needs for one call.
type Request struct {
	Provider          string               `json:"provider"`
	Model             string               `json:"model,omitempty"`
	SystemPrompt      string               `json:"systemPrompt,omitempty"`
	AuthToken         string               `json:"authToken,omitempty"`
	UserID            string               `json:"userId"`
	ConversationID    string               `json:"conversationId"`
	ConversationTitle string               `json:"conversationTitle"`
	Messages          []models.ChatMessage `json:"messages"`
}

// Chunk is one push delivery from the streaming transport. Any of the fields
// may be set; Err aborts the turn.
type Chunk struct {
	Err   string
	Delta string
	Done  bool
}

// SendStreamFunc is the transport contract: onChunk is invoked zero or more
// times as data arrives, and the call returns once the underlying transport
// completes, whether or not a Done chunk was ever delivered.
type SendStreamFunc func(ctx context.Context, req Request, onChunk func(Chunk)) error

// StreamParams configures one assistant turn.
type StreamParams struct {
	Prompt      string
	History     []models.ChatMessage
	BaseRequest Request // provider/model/auth/conversation fields; messages are filled in
	Pool        []rag.Document
	Retrieval   rag.Options
	Send        SendStreamFunc

	// Callbacks are invoked synchronously as the stream progresses. They must
	// not block: chunk delivery is paused while they run.
	OnDocuments func([]rag.Document)
	OnThinking  func(string)
	OnReply     func(string)
}

// Result is the outcome of a completed assistant turn.
type Result struct {
	FinalReply        string
	RawStreamContent  string
	RelevantDocuments []rag.Document
}

// StreamAssistantReply runs one turn: retrieve context for the prompt, notify
// the documents callback, stream the model call, and split thinking from
// reply text incrementally. The whole accumulated buffer is re-parsed on
// every delta so the think/reply boundary stays correct even when the tags
// themselves arrive split across chunks.
func StreamAssistantReply(ctx context.Context, p StreamParams) (*Result, error) {
	docs := rag.RetrieveRelevantDocuments(p.Prompt, p.Pool, p.Retrieval)
	if p.OnDocuments != nil {
		p.OnDocuments(docs)
	}

	req := p.BaseRequest
	req.Messages = append(append([]models.ChatMessage{}, p.History...), models.ChatMessage{Role: "user", Content: p.Prompt})
	if len(docs) > 0 {
		req.SystemPrompt = p.BaseRequest.SystemPrompt + ragPromptSuffix + rag.BuildRagContextBlock(docs)
	}

	var (
		raw       strings.Builder
		doneSeen  bool
		streamErr error
	)

	onChunk := func(c Chunk) {
		if streamErr != nil {
			// Fatal chunk already seen; everything after it is dropped.
			return
		}
		if c.Err != "" {
			streamErr = fmt.Errorf("assistant stream transport: %s", c.Err)
			return
		}
		if c.Delta != "" {
			raw.WriteString(c.Delta)
			thinking, reply := splitThinkReply(raw.String())
			if p.OnThinking != nil {
				if thinking == "" && strings.Contains(raw.String(), thinkOpenTag) {
					thinking = thinkingPlaceholder
				}
				p.OnThinking(thinking)
			}
			if p.OnReply != nil {
				p.OnReply(reply)
			}
		}
		if c.Done {
			doneSeen = true
		}
	}

	if err := p.Send(ctx, req, onChunk); err != nil {
		return nil, err
	}
	if streamErr != nil {
		return nil, streamErr
	}

	content := raw.String()
	if !doneSeen && content == "" {
		return nil, apperr.ErrNoStreamedResponse
	}

	_, reply := splitThinkReply(content)
	final := reply
	if strings.TrimSpace(final) == "" {
		// A malformed or unterminated think tag must not swallow the answer.
		final = content
	}

	return &Result{
		FinalReply:        final,
		RawStreamContent:  content,
		RelevantDocuments: docs,
	}, nil
}

// splitThinkReply separates a <think>...</think> region from the reply text.
// No open tag: everything is reply. Open tag without close: everything after
// the tag is thinking and the reply is empty. Both tags: between them is
// thinking, after the close tag is reply.
func splitThinkReply(raw string) (thinking, reply string) {
	open := strings.Index(raw, thinkOpenTag)
	if open < 0 {
		return "", raw
	}
	rest := raw[open+len(thinkOpenTag):]
	end := strings.Index(rest, thinkCloseTag)
	if end < 0 {
		return strings.TrimSpace(rest), ""
	}
	return strings.TrimSpace(rest[:end]), strings.TrimSpace(rest[end+len(thinkCloseTag):])
}
