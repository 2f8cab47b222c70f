// Package ml implements the vector-index and intent-classifier
// capabilities against real model backends: chromem-go over Ollama
// embeddings for similarity search, an OpenAI-compatible chat endpoint
// for intent classification, and a local ONNX model as an offline
// classifier alternative.
package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	chromem "github.com/philippgille/chromem-go"

	"github.com/bastionai/bastion/pkg/httputil"
)

// DefaultEmbedModel is the Ollama model used for pattern embeddings.
const DefaultEmbedModel = "nomic-embed-text"

// NewOllamaEmbeddingFunc returns an embedding function backed by the
// Ollama /api/embeddings endpoint.
func NewOllamaEmbeddingFunc(model, baseURL string) chromem.EmbeddingFunc {
	if model == "" {
		model = DefaultEmbedModel
	}
	client := httputil.Client(httputil.TierEmbed)

	return func(ctx context.Context, text string) ([]float32, error) {
		reqBody, err := json.Marshal(map[string]string{
			"model":  model,
			"prompt": text,
		})
		if err != nil {
			return nil, fmt.Errorf("marshal embedding request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/embeddings", bytes.NewReader(reqBody))
		if err != nil {
			return nil, fmt.Errorf("create embedding request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("embedding request: %w", err)
		}
		defer httputil.DrainAndClose(resp.Body)

		if resp.StatusCode != http.StatusOK {
			body, _ := httputil.ReadBody(resp.Body, 4096)
			return nil, fmt.Errorf("embedding backend status %d: %s", resp.StatusCode, body)
		}

		var result struct {
			Embedding []float32 `json:"embedding"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return nil, fmt.Errorf("decode embedding response: %w", err)
		}
		if len(result.Embedding) == 0 {
			return nil, fmt.Errorf("embedding backend returned empty vector")
		}
		return result.Embedding, nil
	}
}
