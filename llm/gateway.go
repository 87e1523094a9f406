// Package llm is the client layer for the local model server. It speaks
// the Ollama native API: /api/tags for model discovery, /api/generate for
// one-shot completions, /api/chat as the generate fallback, and
// /api/embeddings for dense vectors.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

var (
	// ErrUnavailable is returned when the model server cannot be reached.
	ErrUnavailable = errors.New("llm: model server unavailable")

	// ErrTimeout is returned when a call exceeds its deadline.
	ErrTimeout = errors.New("llm: request deadline exceeded")

	// ErrMalformed is returned when the server response cannot be decoded.
	ErrMalformed = errors.New("llm: malformed response")

	// ErrNoModel is returned when model discovery finds nothing usable.
	ErrNoModel = errors.New("llm: no suitable model installed")
)

// StatusError reports a non-200 HTTP status from the model server.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm: server returned %d: %s", e.Code, e.Body)
}

// Config configures the model-server gateway.
type Config struct {
	BaseURL        string
	PreferredModel string
}

// CompleteRequest is a one-shot completion request.
type CompleteRequest struct {
	Prompt      string
	Temperature float64
	TopP        float64
	MaxTokens   int
	// Timeout bounds this single call. Zero means the gateway default.
	Timeout time.Duration
	// FreshContext forces the isolated-agent system message when the call
	// falls back to the chat endpoint. The chat endpoint carries
	// conversational priors that break extraction determinism without it.
	FreshContext bool
}

// Gateway is the one-shot completion client for the model server.
// The resolved model name is cached process-wide after first use.
type Gateway struct {
	cfg    Config
	client *http.Client

	mu    sync.Mutex
	model string
}

const defaultTimeout = 90 * time.Second

// freshAgentSystem is prepended when the chat endpoint stands in for
// generate, so the model treats every extraction as an isolated task.
const freshAgentSystem = "You are a fresh, isolated extraction agent. " +
	"You have no memory of any previous conversation or document. " +
	"Answer only from the text provided in this single message."

// NewGateway creates a gateway for the given model server.
func NewGateway(cfg Config) *Gateway {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Gateway{
		cfg: cfg,
		// No client-level timeout: each call carries its own deadline via
		// context so per-extractor budgets are never silently extended.
		client: &http.Client{},
	}
}

// ResolveModel returns the model to use for completions: the configured
// preferred model when installed, otherwise the first installed model
// whose name contains "llama3". The result is cached.
func (g *Gateway) ResolveModel(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.model != "" {
		return g.model, nil
	}

	names, err := listTags(ctx, g.client, g.cfg.BaseURL)
	if err != nil {
		return "", err
	}

	for _, n := range names {
		if n == g.cfg.PreferredModel {
			g.model = n
			return n, nil
		}
	}
	for _, n := range names {
		if strings.Contains(strings.ToLower(n), "llama3") {
			slog.Info("llm: preferred model not installed, using fallback",
				"preferred", g.cfg.PreferredModel, "fallback", n)
			g.model = n
			return n, nil
		}
	}
	return "", fmt.Errorf("%w: want %q or any llama3 variant, server has %v",
		ErrNoModel, g.cfg.PreferredModel, names)
}

// Complete runs a one-shot completion. It tries /api/generate first and
// falls back to /api/chat on 404 (older servers expose only chat). At most
// one retry on transient I/O; 4xx other than 404 is never retried.
func (g *Gateway) Complete(ctx context.Context, req CompleteRequest) (string, error) {
	model, err := g.ResolveModel(ctx)
	if err != nil {
		return "", err
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	text, err := g.generate(ctx, model, req)
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		slog.Debug("llm: generate endpoint missing, falling back to chat", "model", model)
		return g.chat(ctx, model, req)
	}
	if err != nil && transient(err) {
		slog.Warn("llm: transient failure, retrying once", "error", err)
		text, err = g.generate(ctx, model, req)
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return g.chat(ctx, model, req)
		}
	}
	return text, err
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

func (g *Gateway) generate(ctx context.Context, model string, req CompleteRequest) (string, error) {
	body := struct {
		Model   string          `json:"model"`
		Prompt  string          `json:"prompt"`
		Stream  bool            `json:"stream"`
		Options generateOptions `json:"options"`
	}{
		Model:  model,
		Prompt: req.Prompt,
		Options: generateOptions{
			Temperature: req.Temperature,
			TopP:        req.TopP,
			NumPredict:  req.MaxTokens,
		},
	}

	respBody, err := g.post(ctx, "/api/generate", body)
	if err != nil {
		return "", err
	}

	var resp struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("%w: decoding generate response: %v", ErrMalformed, err)
	}
	return resp.Response, nil
}

func (g *Gateway) chat(ctx context.Context, model string, req CompleteRequest) (string, error) {
	type message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	msgs := []message{}
	if req.FreshContext {
		msgs = append(msgs, message{Role: "system", Content: freshAgentSystem})
	}
	msgs = append(msgs, message{Role: "user", Content: req.Prompt})

	body := struct {
		Model    string          `json:"model"`
		Messages []message       `json:"messages"`
		Stream   bool            `json:"stream"`
		Options  generateOptions `json:"options"`
	}{
		Model:    model,
		Messages: msgs,
		Options: generateOptions{
			Temperature: req.Temperature,
			TopP:        req.TopP,
			NumPredict:  req.MaxTokens,
		},
	}

	respBody, err := g.post(ctx, "/api/chat", body)
	if err != nil {
		return "", err
	}

	var resp struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("%w: decoding chat response: %v", ErrMalformed, err)
	}
	return resp.Message.Content, nil
}

func (g *Gateway) post(ctx context.Context, path string, body interface{}) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", g.cfg.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, classifyTransportErr(ctx, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrMalformed, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Body: truncateBody(respBody)}
	}
	return respBody, nil
}

// classifyTransportErr maps transport failures to the typed error set.
func classifyTransportErr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// transient reports whether a call is worth retrying: connection-level
// failures, timeouts, and server-side 5xx/429. Client errors never retry.
func transient(err error) bool {
	if errors.Is(err, ErrUnavailable) || errors.Is(err, ErrTimeout) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	return false
}

func truncateBody(b []byte) string {
	const max = 512
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
