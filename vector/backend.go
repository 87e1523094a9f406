// Package vector is the indexing side of the pipeline: it chunks resume
// text, embeds the chunks, and upserts the vectors into a backend routed
// by master-category (index) and category (namespace). Two backends
// exist: a remote vector store and a local sqlite-vec index that doubles
// as the disaster-recovery fallback.
package vector

import (
	"context"

	"github.com/talentops/resumeflow/store"
)

// Index names, one per master-category.
const (
	IndexIT    = "resumes-it"
	IndexNonIT = "resumes-non-it"
)

// Record is one vector with its metadata, as upserted into a backend.
type Record struct {
	ID       string                 `json:"id"`
	Values   []float32              `json:"values"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Match is one query hit.
type Match struct {
	ID       string                 `json:"id"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Backend is the vector-store surface the indexer needs. Implementations
// must make Upsert idempotent: writing the same record set twice leaves
// the index unchanged.
type Backend interface {
	Upsert(ctx context.Context, index, namespace string, records []Record) error
	Query(ctx context.Context, index, namespace string, vector []float32, topK int) ([]Match, error)
	// DeleteResume removes every vector belonging to one resume from the
	// given index and namespace; an empty namespace sweeps all namespaces
	// of the index. Used by force-reindex so stale chunks from a previous
	// pass never linger, even when the row's routing has since changed.
	DeleteResume(ctx context.Context, index, namespace string, resumeID int64) error
}

// IndexFor routes a master-category to its index name.
func IndexFor(masterCategory string) string {
	if masterCategory == store.MasterIT {
		return IndexIT
	}
	return IndexNonIT
}

// NamespaceFor routes a category to its namespace, falling back to
// "other" when the category is unset.
func NamespaceFor(category string) string {
	if category == "" {
		return store.FallbackCategory
	}
	return category
}

// Fit tier thresholds for search results.
const (
	perfectThreshold = 0.8
	goodThreshold    = 0.65
	partialThreshold = 0.5
)

// FitTier buckets a similarity score into a match label.
func FitTier(score float64) string {
	switch {
	case score >= perfectThreshold:
		return "Perfect Match"
	case score >= goodThreshold:
		return "Good Match"
	case score >= partialThreshold:
		return "Partial Match"
	default:
		return "Low Match"
	}
}
