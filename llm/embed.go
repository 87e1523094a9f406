package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"
)

// EmbedConfig configures the embedding gateway.
type EmbedConfig struct {
	BaseURL string
	// Model is the preferred embedding model; FallbackModel is used when
	// the preferred one is not installed on the server.
	Model         string
	FallbackModel string
	// Dim is the expected embedding dimension; mismatched responses are
	// rejected as malformed.
	Dim int
}

// Embedder produces unit-normalized dense vectors via /api/embeddings.
type Embedder struct {
	cfg    EmbedConfig
	client *http.Client

	mu    sync.Mutex
	model string
}

const (
	embedTimeout    = 60 * time.Second
	embedMaxRetries = 3
	embedBaseDelay  = 500 * time.Millisecond
)

// NewEmbedder creates an embedding gateway against the model server.
func NewEmbedder(cfg EmbedConfig) *Embedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	return &Embedder{cfg: cfg, client: &http.Client{}}
}

// Dim returns the configured embedding dimension.
func (e *Embedder) Dim() int { return e.cfg.Dim }

// resolveModel probes the server for the preferred model, falling back to
// the configured fallback. The choice is cached for the process lifetime.
func (e *Embedder) resolveModel(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model != "" {
		return e.model, nil
	}

	names, err := listTags(ctx, e.client, e.cfg.BaseURL)
	if err != nil {
		// Probe failure is not fatal: assume the preferred model and let
		// the embedding call surface the real error.
		slog.Warn("llm: embed model probe failed, assuming preferred", "error", err)
		e.model = e.cfg.Model
		return e.model, nil
	}

	for _, n := range names {
		if n == e.cfg.Model {
			e.model = n
			return n, nil
		}
	}
	if e.cfg.FallbackModel != "" {
		for _, n := range names {
			if n == e.cfg.FallbackModel {
				slog.Info("llm: embed model not installed, using fallback",
					"preferred", e.cfg.Model, "fallback", n)
				e.model = n
				return n, nil
			}
		}
	}
	e.model = e.cfg.Model
	return e.model, nil
}

// Embed returns the unit-normalized embedding for one text. Retries up to
// 3 times with exponential backoff on transient failures.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	model, err := e.resolveModel(ctx)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < embedMaxRetries; attempt++ {
		if attempt > 0 {
			delay := embedBaseDelay * time.Duration(1<<(attempt-1))
			slog.Warn("llm: retrying embedding", "attempt", attempt, "delay", delay, "error", lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		vec, err := e.embedOnce(ctx, model, text)
		if err == nil {
			return normalize(vec), nil
		}
		lastErr = err
		if !transient(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("embedding failed after %d attempts: %w", embedMaxRetries, lastErr)
}

// EmbedBatch embeds a slice of texts one request at a time, preserving
// order. A nil entry marks a text whose embedding failed.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var failed int
	for i, t := range texts {
		vec, err := e.Embed(ctx, t)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("llm: embedding text failed", "index", i, "error", err)
			failed++
			continue
		}
		out[i] = vec
	}
	if failed == len(texts) && len(texts) > 0 {
		return nil, fmt.Errorf("all %d texts failed embedding", len(texts))
	}
	return out, nil
}

func (e *Embedder) embedOnce(ctx context.Context, model, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, embedTimeout)
	defer cancel()

	body := struct {
		Model  string `json:"model"`
		Prompt string `json:"prompt"`
	}{Model: model, Prompt: text}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.cfg.BaseURL+"/api/embeddings", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, classifyTransportErr(ctx, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading embeddings: %v", ErrMalformed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Body: truncateBody(respBody)}
	}

	var er struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.Unmarshal(respBody, &er); err != nil {
		return nil, fmt.Errorf("%w: decoding embeddings: %v", ErrMalformed, err)
	}
	if len(er.Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", ErrMalformed)
	}
	if e.cfg.Dim > 0 && len(er.Embedding) != e.cfg.Dim {
		return nil, fmt.Errorf("%w: embedding dim %d, want %d",
			ErrMalformed, len(er.Embedding), e.cfg.Dim)
	}
	return er.Embedding, nil
}

// listTags is shared between gateway and embedder model discovery.
func listTags(ctx context.Context, client *http.Client, baseURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, classifyTransportErr(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading tags: %v", ErrMalformed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Body: truncateBody(body)}
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.Unmarshal(body, &tags); err != nil {
		return nil, fmt.Errorf("%w: decoding tags: %v", ErrMalformed, err)
	}
	names := make([]string, len(tags.Models))
	for i, m := range tags.Models {
		names[i] = m.Name
	}
	return names, nil
}

// normalize scales a vector to unit length so inner-product search is
// cosine similarity. Zero vectors are returned unchanged.
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := 1.0 / math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}
