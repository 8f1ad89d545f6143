package assistant

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/vheim/othala/internal/models"
)

// OllamaTransport implements the streaming transport contract against an
// Ollama-compatible /api/chat endpoint that responds with newline-delimited
// JSON chunks.
type OllamaTransport struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaTransport creates a transport. Empty arguments fall back to a
// local Ollama instance and a default model.
func NewOllamaTransport(baseURL, model string) *OllamaTransport {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.2"
	}
	return &OllamaTransport{
		baseURL: baseURL,
		model:   model,
		client: &http.Client{
			Timeout: 300 * time.Second, // long ceiling for slow generations
		},
	}
}

type ollamaChatRequest struct {
	Model    string               `json:"model"`
	Messages []models.ChatMessage `json:"messages"`
	Stream   bool                 `json:"stream"`
}

type ollamaChatChunk struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

// Send performs the streaming chat call, mapping each NDJSON line to a Chunk.
// Cancellation rides on ctx: aborting the request ends chunk delivery.
func (t *OllamaTransport) Send(ctx context.Context, req Request, onChunk func(Chunk)) error {
	model := req.Model
	if model == "" {
		model = t.model
	}

	messages := req.Messages
	if req.SystemPrompt != "" {
		messages = append([]models.ChatMessage{{Role: "system", Content: req.SystemPrompt}}, messages...)
	}

	body, err := json.Marshal(ollamaChatRequest{Model: model, Messages: messages, Stream: true})
	if err != nil {
		return fmt.Errorf("assistant: marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("assistant: build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.AuthToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.AuthToken)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("assistant: chat call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("assistant: chat endpoint returned status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var chunk ollamaChatChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			// Skip malformed lines rather than killing the stream.
			continue
		}
		onChunk(Chunk{Err: chunk.Error, Delta: chunk.Message.Content, Done: chunk.Done})
		if chunk.Done {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("assistant: read chat stream: %w", err)
	}
	return nil
}
