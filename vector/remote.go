package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Remote talks to a Pinecone-style vector store over HTTP: per-index
// routes with namespaced upsert, query and delete, authenticated by an
// API key header.
type Remote struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

const remoteTimeout = 60 * time.Second

// NewRemote creates a remote backend client.
func NewRemote(baseURL, apiKey string) *Remote {
	return &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: remoteTimeout},
	}
}

// upsertBatchSize bounds records per upsert request; the wire format
// carries full metadata per record and vendors cap request bodies.
const upsertBatchSize = 50

// Upsert writes the records in bounded batches.
func (r *Remote) Upsert(ctx context.Context, index, namespace string, records []Record) error {
	for start := 0; start < len(records); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(records) {
			end = len(records)
		}
		body := struct {
			Vectors   []Record `json:"vectors"`
			Namespace string   `json:"namespace"`
		}{Vectors: records[start:end], Namespace: namespace}

		if _, err := r.post(ctx, index, "/vectors/upsert", body); err != nil {
			return fmt.Errorf("upserting batch %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// Query runs a similarity search in one index and namespace.
func (r *Remote) Query(ctx context.Context, index, namespace string, vector []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		topK = 10
	}
	body := struct {
		Vector          []float32 `json:"vector"`
		TopK            int       `json:"topK"`
		Namespace       string    `json:"namespace"`
		IncludeMetadata bool      `json:"includeMetadata"`
	}{Vector: vector, TopK: topK, Namespace: namespace, IncludeMetadata: true}

	respBody, err := r.post(ctx, index, "/query", body)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Matches []Match `json:"matches"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decoding query response: %w", err)
	}
	return resp.Matches, nil
}

// DeleteResume removes all vectors of one resume via a metadata filter.
// When namespace is empty it is omitted from the request so the filter
// applies across every namespace of the index.
func (r *Remote) DeleteResume(ctx context.Context, index, namespace string, resumeID int64) error {
	body := struct {
		Filter    map[string]interface{} `json:"filter"`
		Namespace string                 `json:"namespace,omitempty"`
	}{
		Filter:    map[string]interface{}{"resume_id": resumeID},
		Namespace: namespace,
	}
	_, err := r.post(ctx, index, "/vectors/delete", body)
	return err
}

func (r *Remote) post(ctx context.Context, index, path string, body interface{}) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	url := r.baseURL + "/indexes/" + index + path
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vector store returned %d: %s", resp.StatusCode, truncate(respBody))
	}
	return respBody, nil
}

func truncate(b []byte) string {
	const max = 512
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
