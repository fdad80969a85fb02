package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OllamaEmbedder implements Embedder against an Ollama-compatible
// /api/embed endpoint. Embedding and chat generation are configured
// independently (EmbeddingConfig vs LLMConfig) since operators often run a
// small local embedding model alongside a larger or cloud chat model.
type OllamaEmbedder struct {
	endpoint  string
	model     string
	dimension int
	client    *http.Client
}

// NewOllamaEmbedder creates an embedder against endpoint (e.g.
// "http://127.0.0.1:11434") using model (e.g. "nomic-embed-text", 768 dims).
func NewOllamaEmbedder(endpoint, model string, dimension int) *OllamaEmbedder {
	if dimension <= 0 {
		dimension = 768
	}
	return &OllamaEmbedder{
		endpoint:  endpoint,
		model:     model,
		dimension: dimension,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed generates a vector embedding for text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, fmt.Errorf("embed request failed: %s: %s", resp.Status, errBody)
	}

	var out ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(out.Embeddings) == 0 {
		return nil, fmt.Errorf("embed response contained no vectors")
	}
	return out.Embeddings[0], nil
}

// EmbedFast is Embed bounded to a short timeout so HOT-path callers can fall
// back to sparse-only search rather than stall a user-facing request.
func (e *OllamaEmbedder) EmbedFast(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return e.Embed(ctx, text)
}

// EmbedBatch embeds multiple texts. Ollama's /api/embed batches natively
// given a slice input, but we keep the public contract one call per text
// and issue them sequentially to bound worst-case memory.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		emb, err := e.Embed(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("embed batch item %d: %w", i, err)
		}
		out[i] = emb
	}
	return out, nil
}

// Dimension returns the embedding dimension.
func (e *OllamaEmbedder) Dimension() int { return e.dimension }

// ModelName returns the embedding model name.
func (e *OllamaEmbedder) ModelName() string { return e.model }
