// Package embed turns product and query text into the dense and sparse
// vector representations used by the product index.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fincommerce/recommender/internal/pkg/errors"
	"github.com/fincommerce/recommender/internal/pkg/logger"
)

// Embedder generates dense embeddings from text.
type Embedder interface {
	// Embed generates embeddings for texts, preserving order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// HTTPConfig holds settings for the remote embedding service.
type HTTPConfig struct {
	// URL is the embedding service base URL.
	URL string

	// Model is the embedding model name.
	Model string

	// Dim is the expected embedding dimension.
	Dim int

	// BatchSize caps texts per request.
	BatchSize int

	// Timeout per request.
	Timeout time.Duration
}

// HTTPEmbedder calls a remote embedding service over HTTP.
type HTTPEmbedder struct {
	cfg    HTTPConfig
	client *http.Client
	log    *logger.Logger
}

// NewHTTPEmbedder creates an embedder against a remote service.
func NewHTTPEmbedder(cfg HTTPConfig, log *logger.Logger) *HTTPEmbedder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &HTTPEmbedder{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		log: log.WithComponent("embed"),
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed generates embeddings for texts, batching requests.
func (e *HTTPEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	all := make([][]float32, 0, len(texts))

	for i := 0; i < len(texts); i += e.cfg.BatchSize {
		end := i + e.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := e.embedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
	}

	return all, nil
}

func (e *HTTPEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{
		Model: e.cfg.Model,
		Input: texts,
	})
	if err != nil {
		return nil, errors.EmbedError("marshaling embed request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.URL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, errors.EmbedError("building embed request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, errors.EmbedError("calling embedding service", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, errors.EmbedError(
			fmt.Sprintf("embedding service returned %d: %s", resp.StatusCode, data), nil)
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.EmbedError("decoding embed response", err)
	}

	if len(parsed.Data) != len(texts) {
		return nil, errors.EmbedError(
			fmt.Sprintf("embedding count mismatch: sent %d texts, got %d embeddings", len(texts), len(parsed.Data)), nil)
	}

	out := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		if e.cfg.Dim > 0 && len(d.Embedding) != e.cfg.Dim {
			return nil, errors.EmbedError(
				fmt.Sprintf("unexpected embedding dimension %d, want %d", len(d.Embedding), e.cfg.Dim), nil)
		}
		out[i] = d.Embedding
	}

	return out, nil
}

var _ Embedder = (*HTTPEmbedder)(nil)
