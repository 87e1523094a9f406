package vector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/talentops/resumeflow/chunker"
	"github.com/talentops/resumeflow/extract"
	"github.com/talentops/resumeflow/llm"
	"github.com/talentops/resumeflow/store"
)

// ErrNotIndexable is returned for resumes missing the text or the
// master-category needed to route them.
var ErrNotIndexable = errors.New("vector: resume missing text or master-category")

// metaTextCap bounds the resume_text metadata field. Vendors cap the
// whole metadata payload around 40 KB; 30 KB of text leaves room for the
// remaining fields.
const metaTextCap = 30 * 1024

// truncationMarker terminates a capped resume_text so consumers can tell
// a truncated text from a complete one.
const truncationMarker = "...[truncated]"

// IndexerConfig tunes chunking and embedding throughput.
type IndexerConfig struct {
	ChunkSize      int
	ChunkOverlap   int
	EmbedBatchSize int
}

// Indexer chunks, embeds and upserts resumes into a vector backend, and
// flips the indexed flag only after the full vector set is durable.
type Indexer struct {
	store    *store.Store
	embedder *llm.Embedder
	backend  Backend
	chunker  *chunker.Chunker
	batch    int
}

// NewIndexer wires an indexer.
func NewIndexer(st *store.Store, emb *llm.Embedder, backend Backend, cfg IndexerConfig) *Indexer {
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = 16
	}
	return &Indexer{
		store:    st,
		embedder: emb,
		backend:  backend,
		chunker:  chunker.New(chunker.Config{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap}),
		batch:    cfg.EmbedBatchSize,
	}
}

// IndexResume indexes one resume: chunk, embed in batches, upsert, then
// mark indexed. Returns the number of vectors written. With force set,
// the resume's prior vector set is deleted first so a chunking or
// normalization change cannot leave orphans behind.
func (ix *Indexer) IndexResume(ctx context.Context, r store.Resume, force bool) (int, error) {
	if r.ResumeText == "" || r.MasterCategory == "" {
		return 0, fmt.Errorf("%w: resume %d", ErrNotIndexable, r.ID)
	}

	index := IndexFor(r.MasterCategory)
	namespace := NamespaceFor(strings.ToLower(r.Category))

	chunks := ix.chunker.Chunk(r.ResumeText)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("%w: resume %d produced no chunks", ErrNotIndexable, r.ID)
	}

	if force {
		// Sweep both indexes across all namespaces: a reclassified row
		// would otherwise leave its prior set orphaned under the old
		// routing.
		for _, idx := range []string{IndexIT, IndexNonIT} {
			if err := ix.backend.DeleteResume(ctx, idx, "", r.ID); err != nil {
				return 0, fmt.Errorf("deleting prior vectors for resume %d: %w", r.ID, err)
			}
		}
	}

	base := buildMetadata(r)
	written := 0
	for start := 0; start < len(chunks); start += ix.batch {
		end := start + ix.batch
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		embeddings, err := ix.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return written, fmt.Errorf("embedding resume %d: %w", r.ID, err)
		}

		records := make([]Record, 0, len(batch))
		for i, c := range batch {
			if embeddings[i] == nil {
				// A missing chunk embedding would leave a hole in the
				// indexed text; the flag must stay down so the resume is
				// re-picked.
				return written, fmt.Errorf("embedding chunk %d of resume %d failed", c.Index, r.ID)
			}
			meta := make(map[string]interface{}, len(base)+2)
			for k, v := range base {
				meta[k] = v
			}
			meta["chunk_index"] = c.Index
			meta["text"] = c.Text

			records = append(records, Record{
				ID:       fmt.Sprintf("resume_%d_chunk_%d", r.ID, c.Index),
				Values:   embeddings[i],
				Metadata: meta,
			})
		}

		if err := ix.backend.Upsert(ctx, index, namespace, records); err != nil {
			return written, fmt.Errorf("upserting resume %d: %w", r.ID, err)
		}
		written += len(records)
	}

	if err := ix.store.SetIndexed(ctx, r.ID, 1); err != nil {
		return written, fmt.Errorf("marking resume %d indexed: %w", r.ID, err)
	}
	return written, nil
}

// BatchResult summarizes one indexing pass.
type BatchResult struct {
	Indexed int   `json:"indexed"`
	Vectors int   `json:"vectors"`
	Failed  int   `json:"failed"`
	IDs     []int64 `json:"resume_ids,omitempty"`
}

// IndexPending drives IndexResume across eligible rows. Per-resume
// failures are logged and counted; the pass continues.
func (ix *Indexer) IndexPending(ctx context.Context, limit int, ids []int64, force bool) (BatchResult, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := ix.store.ListForIndexing(ctx, limit, ids, force)
	if err != nil {
		return BatchResult{}, fmt.Errorf("listing resumes for indexing: %w", err)
	}

	var res BatchResult
	for _, r := range rows {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		n, err := ix.IndexResume(ctx, r, force)
		if err != nil {
			slog.Error("vector: indexing resume failed", "resume_id", r.ID, "error", err)
			res.Failed++
			continue
		}
		res.Indexed++
		res.Vectors += n
		res.IDs = append(res.IDs, r.ID)
	}
	return res, nil
}

// buildMetadata assembles the per-resume metadata shared by every chunk
// record: all row fields, numeric experience years for range filters,
// skills as a normalized array, and title fields lowercased so filters
// are case-insensitive.
func buildMetadata(r store.Resume) map[string]interface{} {
	return map[string]interface{}{
		"resume_id":        r.ID,
		"filename":         r.Filename,
		"master_category":  r.MasterCategory,
		"category":         strings.ToLower(r.Category),
		"candidate_name":   r.CandidateName,
		"designation":      strings.ToLower(r.Designation),
		"job_role":         strings.ToLower(r.JobRole),
		"experience":       r.Experience,
		"experience_years": extract.ParseYears(r.Experience),
		"domain":           r.Domain,
		"mobile":           r.Mobile,
		"email":            r.Email,
		"education":        r.Education,
		"location":         r.Location,
		"skills":           extract.SkillList(r.Skillset),
		"resume_text":      capText(r.ResumeText, metaTextCap),
	}
}

// capText truncates text to at most limit bytes, rune-safe, appending
// the truncation marker when anything was cut.
func capText(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := limit - len(truncationMarker)
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + truncationMarker
}
