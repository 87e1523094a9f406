package vector

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/talentops/resumeflow/llm"
	"github.com/talentops/resumeflow/skills"
	"github.com/talentops/resumeflow/store"
)

// SearchRequest is an ai-search query. MasterCategory narrows the search
// to one index; empty searches both. Category narrows the namespace;
// empty searches the "other" fallback namespace. MinExperienceYears and
// Skills filter on chunk metadata after the similarity search.
type SearchRequest struct {
	Query              string   `json:"query"`
	MasterCategory     string   `json:"master_category,omitempty"`
	Category           string   `json:"category,omitempty"`
	TopK               int      `json:"top_k,omitempty"`
	MinExperienceYears float64  `json:"min_experience_years,omitempty"`
	Skills             []string `json:"skills,omitempty"`
}

// SearchResult is one hit with its fit tier.
type SearchResult struct {
	ID       string                 `json:"id"`
	Score    float64                `json:"score"`
	FitTier  string                 `json:"fit_tier"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Searcher embeds a query and runs it against the vector backend.
type Searcher struct {
	embedder  *llm.Embedder
	backend   Backend
	threshold float64
	topK      int
}

// NewSearcher wires a searcher. threshold filters out weak matches;
// topK is the default result count.
func NewSearcher(emb *llm.Embedder, backend Backend, threshold float64, topK int) *Searcher {
	if topK <= 0 {
		topK = 10
	}
	return &Searcher{embedder: emb, backend: backend, threshold: threshold, topK: topK}
}

// Search embeds the query, fans out over the selected indexes, filters
// by the similarity threshold, and buckets each hit into a fit tier.
func (s *Searcher) Search(ctx context.Context, req SearchRequest) ([]SearchResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("empty search query")
	}
	vec, err := s.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return s.SearchVector(ctx, vec, req)
}

// SearchVector runs a search with an already-computed query embedding.
// Callers that cache job-description embeddings use this form.
func (s *Searcher) SearchVector(ctx context.Context, vec []float32, req SearchRequest) ([]SearchResult, error) {
	topK := req.TopK
	if topK <= 0 {
		topK = s.topK
	}

	indexes := []string{IndexIT, IndexNonIT}
	if m := normalizeMaster(req.MasterCategory); m != "" {
		indexes = []string{IndexFor(m)}
	}
	namespace := NamespaceFor(strings.ToLower(req.Category))

	var results []SearchResult
	for _, index := range indexes {
		matches, err := s.backend.Query(ctx, index, namespace, vec, topK)
		if err != nil {
			return nil, fmt.Errorf("querying %s: %w", index, err)
		}
		for _, m := range matches {
			if m.Score < s.threshold {
				continue
			}
			if !matchesFilters(m.Metadata, req) {
				continue
			}
			results = append(results, SearchResult{
				ID:       m.ID,
				Score:    m.Score,
				FitTier:  FitTier(m.Score),
				Metadata: m.Metadata,
			})
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// matchesFilters applies the metadata filters: minimum experience years
// and required skills (every requested skill must be present, normalized
// on both sides).
func matchesFilters(meta map[string]interface{}, req SearchRequest) bool {
	if req.MinExperienceYears > 0 {
		if metaFloat(meta["experience_years"]) < req.MinExperienceYears {
			return false
		}
	}
	if len(req.Skills) > 0 {
		have := make(map[string]bool)
		for _, s := range metaStrings(meta["skills"]) {
			have[skills.Normalize(s)] = true
		}
		for _, want := range req.Skills {
			if !have[skills.Normalize(want)] {
				return false
			}
		}
	}
	return true
}

// metaFloat reads a numeric metadata value regardless of whether it came
// straight from the indexer or through a JSON round-trip.
func metaFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

// metaStrings reads a string-array metadata value in either its native or
// JSON-decoded form.
func metaStrings(v interface{}) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// normalizeMaster maps loose master-category spellings onto the column
// values before index routing.
func normalizeMaster(s string) string {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", "_")) {
	case "IT":
		return store.MasterIT
	case "NON_IT", "NON-IT", "NONIT":
		return store.MasterNonIT
	}
	return ""
}
