package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vheim/othala/internal/apperr"
	"github.com/vheim/othala/internal/rag"
)

func TestSplitThinkReply(t *testing.T) {
	cases := []struct {
		name     string
		raw      string
		thinking string
		reply    string
	}{
		{"both tags", "<think>step by step</think>Final answer", "step by step", "Final answer"},
		{"open only", "<think>partial", "partial", ""},
		{"no tags", "just a reply", "", "just a reply"},
		{"empty", "", "", ""},
		{"tag split never closed", "<think>", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			thinking, reply := splitThinkReply(tc.raw)
			if thinking != tc.thinking || reply != tc.reply {
				t.Errorf("splitThinkReply(%q) = (%q, %q), want (%q, %q)",
					tc.raw, thinking, reply, tc.thinking, tc.reply)
			}
		})
	}
}

// scriptedSend returns a transport that pushes the given chunks and then
// returns retErr.
func scriptedSend(chunks []Chunk, retErr error) SendStreamFunc {
	return func(_ context.Context, _ Request, onChunk func(Chunk)) error {
		for _, c := range chunks {
			onChunk(c)
		}
		return retErr
	}
}

func TestStreamAssistantReply_EndToEnd(t *testing.T) {
	pool := []rag.Document{
		{ID: "notes/n1", SourceType: "Note", Title: "Launch plan", Content: "the launch plan in detail"},
	}

	var thinkingCalls, replyCalls []string
	var sources []rag.Document

	res, err := StreamAssistantReply(context.Background(), StreamParams{
		Prompt: "launch plan",
		Pool:   pool,
		Send: scriptedSend([]Chunk{
			{Delta: "<think>Plan"},
			{Delta: "</think>"},
			{Delta: "Here is the answer."},
			{Done: true},
		}, nil),
		OnDocuments: func(d []rag.Document) { sources = d },
		OnThinking:  func(s string) { thinkingCalls = append(thinkingCalls, s) },
		OnReply:     func(s string) { replyCalls = append(replyCalls, s) },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sources) != 1 || sources[0].ID != "notes/n1" {
		t.Errorf("sources = %v", sources)
	}
	if res.FinalReply != "Here is the answer." {
		t.Errorf("FinalReply = %q", res.FinalReply)
	}
	if len(res.RelevantDocuments) != 1 {
		t.Errorf("RelevantDocuments = %v", res.RelevantDocuments)
	}
	if len(thinkingCalls) == 0 || thinkingCalls[0] != "Plan" {
		t.Errorf("thinking calls = %v", thinkingCalls)
	}
	if len(replyCalls) == 0 || replyCalls[len(replyCalls)-1] != "Here is the answer." {
		t.Errorf("reply calls = %v", replyCalls)
	}
}

func TestStreamAssistantReply_TagSplitAcrossChunks(t *testing.T) {
	var lastThinking, lastReply string
	res, err := StreamAssistantReply(context.Background(), StreamParams{
		Prompt: "anything relevant",
		Send: scriptedSend([]Chunk{
			{Delta: "<thi"},
			{Delta: "nk>reason"},
			{Delta: "ing</th"},
			{Delta: "ink>done"},
			{Done: true},
		}, nil),
		OnThinking: func(s string) { lastThinking = s },
		OnReply:    func(s string) { lastReply = s },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lastThinking != "reasoning" || lastReply != "done" {
		t.Errorf("last thinking/reply = %q / %q", lastThinking, lastReply)
	}
	if res.FinalReply != "done" {
		t.Errorf("FinalReply = %q", res.FinalReply)
	}
}

func TestStreamAssistantReply_ThinkingPlaceholder(t *testing.T) {
	var calls []string
	_, err := StreamAssistantReply(context.Background(), StreamParams{
		Prompt: "q",
		Send: scriptedSend([]Chunk{
			{Delta: "<think>"},
			{Done: true},
		}, nil),
		OnThinking: func(s string) { calls = append(calls, s) },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(calls) == 0 || calls[0] != "Thinking..." {
		t.Errorf("thinking calls = %v, want placeholder", calls)
	}
}

func TestStreamAssistantReply_ChunkError(t *testing.T) {
	var replyCalls int
	_, err := StreamAssistantReply(context.Background(), StreamParams{
		Prompt: "q",
		Send: scriptedSend([]Chunk{
			{Delta: "partial"},
			{Err: "model overloaded"},
			{Delta: "must be ignored"},
		}, nil),
		OnReply: func(string) { replyCalls++ },
	})
	if err == nil || !strings.Contains(err.Error(), "model overloaded") {
		t.Fatalf("err = %v, want transport error", err)
	}
	if replyCalls != 1 {
		t.Errorf("reply calls after error = %d, want 1", replyCalls)
	}
}

func TestStreamAssistantReply_EmptyStream(t *testing.T) {
	_, err := StreamAssistantReply(context.Background(), StreamParams{
		Prompt: "q",
		Send:   scriptedSend(nil, nil),
	})
	if !errors.Is(err, apperr.ErrNoStreamedResponse) {
		t.Fatalf("err = %v, want ErrNoStreamedResponse", err)
	}
}

func TestStreamAssistantReply_EmptyReplyWithDone(t *testing.T) {
	// done:true with no text is a valid empty reply, not a transport failure.
	res, err := StreamAssistantReply(context.Background(), StreamParams{
		Prompt: "q",
		Send:   scriptedSend([]Chunk{{Done: true}}, nil),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.FinalReply != "" {
		t.Errorf("FinalReply = %q, want empty", res.FinalReply)
	}
}

func TestStreamAssistantReply_UnterminatedThinkFallsBack(t *testing.T) {
	res, err := StreamAssistantReply(context.Background(), StreamParams{
		Prompt: "q",
		Send: scriptedSend([]Chunk{
			{Delta: "<think>never closed but this is all we got"},
			{Done: true},
		}, nil),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Parsing yields an empty reply; the raw buffer must not be swallowed.
	if res.FinalReply != res.RawStreamContent || res.FinalReply == "" {
		t.Errorf("FinalReply = %q, raw = %q", res.FinalReply, res.RawStreamContent)
	}
}

func TestStreamAssistantReply_PromptAugmentation(t *testing.T) {
	pool := []rag.Document{
		{ID: "notes/n1", SourceType: "Note", Title: "Launch plan", Content: "details"},
	}

	var seen Request
	send := func(_ context.Context, req Request, onChunk func(Chunk)) error {
		seen = req
		onChunk(Chunk{Delta: "ok", Done: true})
		return nil
	}

	_, err := StreamAssistantReply(context.Background(), StreamParams{
		Prompt:      "launch plan",
		BaseRequest: Request{SystemPrompt: "You are helpful."},
		Pool:        pool,
		Send:        send,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(seen.SystemPrompt, "You are helpful.") {
		t.Errorf("system prompt = %q, want base prompt preserved", seen.SystemPrompt)
	}
	if !strings.Contains(seen.SystemPrompt, "[1] Note: Launch plan") {
		t.Errorf("system prompt missing context block: %q", seen.SystemPrompt)
	}

	// No matching documents: base prompt is used unmodified.
	_, err = StreamAssistantReply(context.Background(), StreamParams{
		Prompt:      "zebra unicorns",
		BaseRequest: Request{SystemPrompt: "You are helpful."},
		Pool:        pool,
		Send:        send,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen.SystemPrompt != "You are helpful." {
		t.Errorf("system prompt = %q, want unmodified base prompt", seen.SystemPrompt)
	}
}
