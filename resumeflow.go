// Package resumeflow is the resume ingestion engine: parse an uploaded
// file to text, classify it, fan out the per-field LLM extractors, persist
// each field in its own transaction, and index the text into the vector
// store for candidate search.
package resumeflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/talentops/resumeflow/cache"
	"github.com/talentops/resumeflow/extract"
	"github.com/talentops/resumeflow/llm"
	"github.com/talentops/resumeflow/parser"
	"github.com/talentops/resumeflow/store"
	"github.com/talentops/resumeflow/vector"
)

// Resume row statuses written by the pipeline.
const (
	StatusOK                 = "ok"
	StatusPending            = "pending"
	StatusInsufficientText   = "failed:insufficient_text"
	StatusCollaboratorFailed = "failed:collaborator"
	StatusShutdown           = "failed:shutdown"
)

// minResumeText is the minimum extracted-text length (in runes) for the
// pipeline to run. Shorter documents are usually scans; they keep their
// row for a later OCR pass.
const minResumeText = 150

// indexTimeout bounds one background indexing task.
const indexTimeout = 5 * time.Minute

// Engine is the main entry point for the resume ingestion engine.
type Engine interface {
	// ProcessResume parses the file, runs the extraction pipeline, and
	// returns the stored row. The row is returned even when processing
	// failed partway; check Status.
	ProcessResume(ctx context.Context, filename string, data []byte, opts ...ProcessOption) (*store.Resume, error)

	// GetResume returns one stored resume row.
	GetResume(ctx context.Context, id int64) (*store.Resume, error)

	// Index drives the vector indexer across rows eligible for indexing.
	Index(ctx context.Context, limit int, ids []int64, force bool) (vector.BatchResult, error)

	// Reindex rebuilds vectors for already-indexed rows. Used after a
	// chunking or normalizer change.
	Reindex(ctx context.Context, limit int, ids []int64) (vector.BatchResult, error)

	// Search runs a candidate search against the vector store.
	Search(ctx context.Context, req vector.SearchRequest) ([]vector.SearchResult, error)

	// Health reports whether the mandatory fallback prompts are present.
	Health(ctx context.Context) (Health, error)

	// Store returns the underlying store for diagnostic access.
	Store() *store.Store

	// Close drains background indexing and shuts the engine down.
	Close() error
}

// Health reports engine readiness.
type Health struct {
	ITPromptOK    bool `json:"it_prompt_ok"`
	NonITPromptOK bool `json:"non_it_prompt_ok"`
}

// Modules selects which field extractors run for one resume. A nil set
// means everything.
type Modules map[string]bool

// moduleAliases maps the numeric selection form onto field names.
var moduleAliases = map[string]string{
	"1": "designation",
	"2": "name",
	"3": "email",
	"4": "mobile",
	"5": "experience",
	"6": "domain",
	"7": "education",
	"8": "skills",
}

var moduleNames = map[string]bool{
	"designation": true,
	"name":        true,
	"email":       true,
	"mobile":      true,
	"experience":  true,
	"domain":      true,
	"education":   true,
	"skills":      true,
}

// ParseModules parses an extract_modules request value: "all" (or empty)
// returns nil, otherwise a comma-separated selection of field names or
// their numeric aliases.
func ParseModules(s string) (Modules, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "all" {
		return nil, nil
	}
	m := make(Modules)
	for _, part := range strings.Split(s, ",") {
		name := strings.TrimSpace(part)
		if alias, ok := moduleAliases[name]; ok {
			name = alias
		}
		if !moduleNames[name] {
			return nil, fmt.Errorf("unknown extract module %q", part)
		}
		m[name] = true
	}
	return m, nil
}

// wants reports whether a module is selected. Modules outside the
// selectable set (job role, location) only run with the full pipeline.
func (m Modules) wants(name string) bool {
	if m == nil {
		return true
	}
	return m[name]
}

// ProcessOption configures one ProcessResume call.
type ProcessOption func(*processOptions)

type processOptions struct {
	modules       Modules
	candidateName string
	jobRole       string
	source        string
}

// WithModules restricts which extractors run.
func WithModules(m Modules) ProcessOption {
	return func(o *processOptions) { o.modules = m }
}

// WithCandidateName stores a caller-provided name instead of extracting it.
func WithCandidateName(name string) ProcessOption {
	return func(o *processOptions) { o.candidateName = name }
}

// WithJobRole stores a caller-provided target role instead of extracting it.
func WithJobRole(role string) ProcessOption {
	return func(o *processOptions) { o.jobRole = role }
}

// WithSource tags the upload source for logging.
func WithSource(source string) ProcessOption {
	return func(o *processOptions) { o.source = source }
}

// engine is the concrete implementation of Engine.
type engine struct {
	cfg       Config
	store     *store.Store
	gateway   *llm.Gateway
	embedder  *llm.Embedder
	extractor *extract.Extractor
	parsers   *parser.Registry
	backend   vector.Backend
	indexer   *vector.Indexer
	searcher  *vector.Searcher
	jobs      *cache.JobCache

	bgCtx    context.Context
	bgCancel context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a resumeflow engine with the given configuration.
func New(cfg Config) (Engine, error) {
	def := DefaultConfig()
	if cfg.ModelServerURL == "" {
		cfg.ModelServerURL = def.ModelServerURL
	}
	if cfg.PreferredModel == "" {
		cfg.PreferredModel = def.PreferredModel
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = def.EmbedModel
	}
	if cfg.EmbeddingDim <= 0 {
		cfg.EmbeddingDim = def.EmbeddingDim
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.ChunkOverlap <= 0 {
		cfg.ChunkOverlap = def.ChunkOverlap
	}
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = def.EmbedBatchSize
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = def.SimilarityThreshold
	}
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	if cfg.ExtractConcurrency <= 0 {
		cfg.ExtractConcurrency = def.ExtractConcurrency
	}
	if cfg.ResumeDeadline <= 0 {
		cfg.ResumeDeadline = def.ResumeDeadline
	}
	if cfg.JobCacheSize <= 0 {
		cfg.JobCacheSize = def.JobCacheSize
	}

	dbPath := cfg.resolveDBPath()
	st, err := store.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	gateway := llm.NewGateway(llm.Config{
		BaseURL:        cfg.ModelServerURL,
		PreferredModel: cfg.PreferredModel,
	})
	embedder := llm.NewEmbedder(llm.EmbedConfig{
		BaseURL:       cfg.ModelServerURL,
		Model:         cfg.EmbedModel,
		FallbackModel: cfg.EmbedFallbackModel,
		Dim:           cfg.EmbeddingDim,
	})
	extractor := extract.New(gateway, st, extract.Config{
		HeavyTimeout: cfg.HeavyExtractTimeout,
		LightTimeout: cfg.LightExtractTimeout,
	})

	var backend vector.Backend
	switch cfg.VectorBackend {
	case "", "local":
		vecPath := strings.TrimSuffix(dbPath, ".db") + "-vectors.db"
		backend, err = vector.NewLocal(vecPath, cfg.EmbeddingDim)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("opening local vector store: %w", err)
		}
	case "remote":
		if cfg.RemoteVectorURL == "" {
			st.Close()
			return nil, fmt.Errorf("%w: remote vector backend needs remote_vector_url", ErrInvalidConfig)
		}
		backend = vector.NewRemote(cfg.RemoteVectorURL, cfg.RemoteVectorKey)
	default:
		st.Close()
		return nil, fmt.Errorf("%w: unknown vector backend %q", ErrInvalidConfig, cfg.VectorBackend)
	}

	jobs, err := cache.New(cfg.JobCacheSize)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("creating job cache: %w", err)
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	return &engine{
		cfg:       cfg,
		store:     st,
		gateway:   gateway,
		embedder:  embedder,
		extractor: extractor,
		parsers:   parser.NewRegistry(),
		backend:   backend,
		indexer: vector.NewIndexer(st, embedder, backend, vector.IndexerConfig{
			ChunkSize:      cfg.ChunkSize,
			ChunkOverlap:   cfg.ChunkOverlap,
			EmbedBatchSize: cfg.EmbedBatchSize,
		}),
		searcher: vector.NewSearcher(embedder, backend, cfg.SimilarityThreshold, cfg.TopK),
		jobs:     jobs,
		bgCtx:    bgCtx,
		bgCancel: bgCancel,
	}, nil
}

// ProcessResume runs the full ingestion pipeline for one uploaded file.
//
// Order matters: the row is created first so every later failure leaves a
// traceable record; master-category runs sequentially because category,
// skills and index routing depend on it; the remaining extractors fan out
// in parallel and each writes its own column as it completes.
func (e *engine) ProcessResume(ctx context.Context, filename string, data []byte, opts ...ProcessOption) (*store.Resume, error) {
	options := &processOptions{}
	for _, o := range opts {
		o(options)
	}

	if strings.TrimSpace(filename) == "" {
		return nil, fmt.Errorf("%w: missing filename", ErrEmptyFile)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, filename)
	}

	text, err := e.parsers.Extract(ctx, filename, data)
	if err != nil && !errors.Is(err, parser.ErrEmptyDocument) {
		if errors.Is(err, parser.ErrUnsupportedFormat) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
		}
		return nil, fmt.Errorf("parsing %s: %w", filename, err)
	}

	id, err := e.store.CreateResume(ctx, filename)
	if err != nil {
		return nil, fmt.Errorf("creating resume row: %w", err)
	}
	log := slog.With("resume_id", id, "file", filename)
	if options.source != "" {
		log = log.With("source", options.source)
	}

	if utf8.RuneCountInString(text) < minResumeText {
		if text != "" {
			e.store.UpdateField(ctx, id, "resume_text", text)
		}
		e.store.SetStatus(ctx, id, StatusInsufficientText)
		log.Warn("pipeline: insufficient text extracted", "chars", len(text))
		r, gerr := e.store.GetResume(ctx, id)
		if gerr != nil {
			return nil, gerr
		}
		return r, fmt.Errorf("%w: %s", ErrInsufficientText, filename)
	}

	if err := e.store.UpdateField(ctx, id, "resume_text", text); err != nil {
		return nil, fmt.Errorf("storing resume text: %w", err)
	}

	// Caller-provided fields short-circuit their extractors.
	if options.candidateName != "" {
		e.store.UpdateField(ctx, id, "candidate_name", options.candidateName)
	}
	if options.jobRole != "" {
		e.store.UpdateField(ctx, id, "job_role", options.jobRole)
	}

	pctx, cancel := context.WithTimeout(ctx, e.cfg.ResumeDeadline)
	defer cancel()

	start := time.Now()
	log.Info("pipeline: extraction started", "chars", len(text))

	// Master-category is the routing decision everything downstream
	// depends on; it runs alone. A transport failure here is the one case
	// that fails the whole row.
	master, err := e.extractor.MasterCategory(pctx, text)
	if err != nil {
		log.Error("pipeline: master-category unavailable", "error", err)
		e.store.SetStatus(detached(ctx), id, StatusCollaboratorFailed)
		r, gerr := e.store.GetResume(detached(ctx), id)
		if gerr != nil {
			return nil, gerr
		}
		return r, fmt.Errorf("%w: master-category: %v", ErrModelUnavailable, err)
	}
	if err := e.store.UpdateField(pctx, id, "master_category", master); err != nil {
		log.Error("pipeline: storing master-category failed", "error", err)
	}

	var category string
	if cat, err := e.extractor.Category(pctx, text, master); err != nil {
		log.Warn("pipeline: category extraction failed", "error", err)
	} else if cat != "" {
		category = cat
		if err := e.store.UpdateField(pctx, id, "category", cat); err != nil {
			log.Error("pipeline: storing category failed", "error", err)
		}
	}

	// Parallel fan-out. Every task is failure-isolated: an error leaves
	// its column null and the pipeline completes with the rest.
	g := &errgroup.Group{}
	g.SetLimit(e.cfg.ExtractConcurrency)

	run := func(module, column string, fn func(context.Context) (string, error)) {
		if !options.modules.wants(module) {
			return
		}
		g.Go(func() error {
			val, err := fn(pctx)
			if err != nil {
				log.Warn("pipeline: extractor failed", "field", column, "error", err)
				return nil
			}
			if val == "" {
				return nil
			}
			if err := e.store.UpdateField(pctx, id, column, val); err != nil {
				log.Error("pipeline: storing field failed", "field", column, "error", err)
			}
			return nil
		})
	}

	if options.candidateName == "" {
		run("name", "candidate_name", func(c context.Context) (string, error) {
			return e.extractor.Name(c, text, filename)
		})
	}
	run("designation", "designation", func(c context.Context) (string, error) {
		return e.extractor.Designation(c, text)
	})
	if options.jobRole == "" {
		run("job_role", "job_role", func(c context.Context) (string, error) {
			return e.extractor.JobRole(c, text)
		})
	}
	run("experience", "experience", func(c context.Context) (string, error) {
		return e.extractor.Experience(c, text)
	})
	run("domain", "domain", func(c context.Context) (string, error) {
		return e.extractor.Domain(c, text)
	})
	run("education", "education", func(c context.Context) (string, error) {
		return e.extractor.Education(c, text)
	})
	run("location", "location", func(c context.Context) (string, error) {
		return e.extractor.Location(c, text)
	})
	run("skills", "skillset", func(c context.Context) (string, error) {
		return e.extractor.Skills(c, text, master, category)
	})
	run("email", "email", func(c context.Context) (string, error) {
		return extract.Email(text), nil
	})
	run("mobile", "mobile", func(c context.Context) (string, error) {
		return extract.Mobile(text), nil
	})

	g.Wait()

	status := StatusOK
	if ctx.Err() != nil {
		// The caller's context died, not the per-resume deadline: the
		// process is going down. Fields already written are kept.
		status = StatusShutdown
	}
	if err := e.store.SetStatus(detached(ctx), id, status); err != nil {
		log.Error("pipeline: storing final status failed", "error", err)
	}
	log.Info("pipeline: extraction complete",
		"status", status, "master_category", master, "category", category,
		"elapsed", time.Since(start).Round(time.Millisecond))

	if status == StatusOK {
		e.enqueueIndex(id)
	}

	return e.store.GetResume(detached(ctx), id)
}

// enqueueIndex schedules background vector indexing for one resume.
// Indexing is idempotent; a crash before it runs just leaves the row
// eligible for the next Index pass.
func (e *engine) enqueueIndex(id int64) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(e.bgCtx, indexTimeout)
		defer cancel()

		// Map form: background tasks never hold a struct reference
		// across the asynchronous boundary.
		m, err := e.store.GetResumeMap(ctx, id)
		if err != nil {
			slog.Error("index: loading resume failed", "resume_id", id, "error", err)
			return
		}
		n, err := e.indexer.IndexResume(ctx, store.ResumeFromMap(m), false)
		if err != nil {
			slog.Error("index: background indexing failed", "resume_id", id, "error", err)
			return
		}
		slog.Info("index: resume indexed", "resume_id", id, "vectors", n)
	}()
}

// GetResume returns one stored resume row.
func (e *engine) GetResume(ctx context.Context, id int64) (*store.Resume, error) {
	r, err := e.store.GetResume(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: id %d", ErrResumeNotFound, id)
	}
	return r, nil
}

// Index drives the vector indexer across eligible rows.
func (e *engine) Index(ctx context.Context, limit int, ids []int64, force bool) (vector.BatchResult, error) {
	return e.indexer.IndexPending(ctx, limit, ids, force)
}

// Reindex rebuilds vectors with force semantics: prior vector sets are
// deleted and replaced.
func (e *engine) Reindex(ctx context.Context, limit int, ids []int64) (vector.BatchResult, error) {
	return e.indexer.IndexPending(ctx, limit, ids, true)
}

// Search embeds the query (with an LRU over repeated job descriptions)
// and runs it against the vector store.
func (e *engine) Search(ctx context.Context, req vector.SearchRequest) ([]vector.SearchResult, error) {
	key := strings.TrimSpace(req.Query)
	if key == "" {
		return nil, fmt.Errorf("empty search query")
	}

	if entry, ok := e.jobs.Get(key); ok {
		return e.searcher.SearchVector(ctx, entry.Embedding, req)
	}

	vec, err := e.embedder.Embed(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	e.jobs.Store(key, cache.Entry{Embedding: vec})
	return e.searcher.SearchVector(ctx, vec, req)
}

// Health reports whether the mandatory fallback prompt rows exist.
func (e *engine) Health(ctx context.Context) (Health, error) {
	itOK, nonITOK, err := e.store.PromptHealth(ctx)
	if err != nil {
		return Health{}, err
	}
	return Health{ITPromptOK: itOK, NonITPromptOK: nonITOK}, nil
}

// Store returns the underlying store.
func (e *engine) Store() *store.Store {
	return e.store
}

// Close cancels background indexing, waits for in-flight tasks, and
// closes the store.
func (e *engine) Close() error {
	e.bgCancel()
	e.wg.Wait()
	var errs []error
	if c, ok := e.backend.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// detached strips cancellation from a context so final status writes
// land even when the request context is already dead.
func detached(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
