package resumeflow

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds all configuration for the resumeflow engine.
type Config struct {
	// DBPath is the full path to the SQLite database file.
	// If empty, defaults to ~/.resumeflow/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path"`

	// DBName is the name for the database (used when DBPath is empty).
	DBName string `json:"db_name" yaml:"db_name"`

	// StorageDir controls where the database is created when DBPath is
	// not explicitly set. Options: "home" (default) uses ~/.resumeflow/,
	// "local" uses the current working directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// Model server (Ollama-compatible native API).
	ModelServerURL string `json:"model_server_url" yaml:"model_server_url"`

	// Chat models. PreferredModel is used when installed on the server;
	// otherwise the first installed model containing "llama3" is chosen.
	PreferredModel string `json:"preferred_model" yaml:"preferred_model"`

	// Embedding models.
	EmbedModel         string `json:"embed_model" yaml:"embed_model"`
	EmbedFallbackModel string `json:"embed_fallback_model" yaml:"embed_fallback_model"`
	EmbeddingDim       int    `json:"embedding_dim" yaml:"embedding_dim"`

	// Chunking for vector indexing (characters).
	ChunkSize    int `json:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap int `json:"chunk_overlap" yaml:"chunk_overlap"`

	// Embedding batch size during indexing.
	EmbedBatchSize int `json:"embed_batch_size" yaml:"embed_batch_size"`

	// Search defaults.
	SimilarityThreshold float64 `json:"similarity_threshold" yaml:"similarity_threshold"`
	TopK                int     `json:"top_k" yaml:"top_k"`

	// Vector backend: "local" (sqlite-vec) or "remote".
	VectorBackend string `json:"vector_backend" yaml:"vector_backend"`

	// Remote vector store credentials (used when VectorBackend = "remote").
	RemoteVectorURL string `json:"remote_vector_url" yaml:"remote_vector_url"`
	RemoteVectorKey string `json:"remote_vector_key" yaml:"remote_vector_key"`

	// Extractor fan-out bound. Keeps concurrent LLM calls per resume from
	// overwhelming the local model server.
	ExtractConcurrency int `json:"extract_concurrency" yaml:"extract_concurrency"`

	// Per-extractor timeouts.
	HeavyExtractTimeout time.Duration `json:"heavy_extract_timeout" yaml:"heavy_extract_timeout"` // domain, skills
	LightExtractTimeout time.Duration `json:"light_extract_timeout" yaml:"light_extract_timeout"` // name, location, etc.

	// ResumeDeadline bounds the whole pipeline for one resume. Fields
	// already persisted when it fires are kept.
	ResumeDeadline time.Duration `json:"resume_deadline" yaml:"resume_deadline"`

	// JobCacheSize bounds the LRU of job-description embeddings.
	JobCacheSize int `json:"job_cache_size" yaml:"job_cache_size"`
}

// DefaultConfig returns a Config with sensible defaults for local inference.
// Database is stored in ~/.resumeflow/resumeflow.db by default.
func DefaultConfig() Config {
	return Config{
		DBName:              "resumeflow",
		StorageDir:          "home",
		ModelServerURL:      "http://localhost:11434",
		PreferredModel:      "llama3.1:8b",
		EmbedModel:          "nomic-embed-text",
		EmbedFallbackModel:  "all-minilm",
		EmbeddingDim:        768,
		ChunkSize:           1000,
		ChunkOverlap:        200,
		EmbedBatchSize:      16,
		SimilarityThreshold: 0.5,
		TopK:                10,
		VectorBackend:       "local",
		ExtractConcurrency:  8,
		HeavyExtractTimeout: 120 * time.Second,
		LightExtractTimeout: 90 * time.Second,
		ResumeDeadline:      15 * time.Minute,
		JobCacheSize:        256,
	}
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "resumeflow"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db" // fallback to cwd
		}
		dir := filepath.Join(home, ".resumeflow")
		return filepath.Join(dir, name+".db")
	}
}
