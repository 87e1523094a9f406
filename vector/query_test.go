package vector

import (
	"context"
	"testing"

	"github.com/talentops/resumeflow/store"
)

func TestFitTier(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{0.95, "Perfect Match"},
		{0.8, "Perfect Match"},
		{0.79, "Good Match"},
		{0.65, "Good Match"},
		{0.6, "Partial Match"},
		{0.5, "Partial Match"},
		{0.49, "Low Match"},
		{0, "Low Match"},
	}
	for _, tt := range tests {
		if got := FitTier(tt.score); got != tt.want {
			t.Errorf("FitTier(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestIndexRouting(t *testing.T) {
	if IndexFor(store.MasterIT) != IndexIT {
		t.Error("IT routed wrong")
	}
	if IndexFor(store.MasterNonIT) != IndexNonIT {
		t.Error("NON_IT routed wrong")
	}
	if NamespaceFor("") != "other" {
		t.Error("empty category should fall back to the other namespace")
	}
	if NamespaceFor("data engineering") != "data engineering" {
		t.Error("category namespace passthrough broken")
	}
}

// queryBackend returns canned matches for Searcher tests.
type queryBackend struct {
	matches map[string][]Match // index -> matches
	queried []string
}

func (q *queryBackend) Upsert(ctx context.Context, index, namespace string, records []Record) error {
	return nil
}

func (q *queryBackend) Query(ctx context.Context, index, namespace string, vector []float32, topK int) ([]Match, error) {
	q.queried = append(q.queried, index)
	return q.matches[index], nil
}

func (q *queryBackend) DeleteResume(ctx context.Context, index, namespace string, resumeID int64) error {
	return nil
}

func TestSearchFiltersAndTiers(t *testing.T) {
	backend := &queryBackend{matches: map[string][]Match{
		IndexIT: {
			{ID: "resume_1_chunk_0", Score: 0.9},
			{ID: "resume_2_chunk_0", Score: 0.7},
			{ID: "resume_3_chunk_0", Score: 0.3}, // below threshold
		},
	}}
	s := NewSearcher(newTestEmbedder(t), backend, 0.5, 10)

	results, err := s.Search(context.Background(), SearchRequest{
		Query:          "golang backend developer",
		MasterCategory: "IT",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2 above threshold", len(results))
	}
	if results[0].Score < results[1].Score {
		t.Error("results not sorted by score")
	}
	if results[0].FitTier != "Perfect Match" || results[1].FitTier != "Good Match" {
		t.Errorf("tiers = %q, %q", results[0].FitTier, results[1].FitTier)
	}
	if len(backend.queried) != 1 || backend.queried[0] != IndexIT {
		t.Errorf("queried = %v, want only the IT index", backend.queried)
	}
}

func TestSearchBothIndexesByDefault(t *testing.T) {
	backend := &queryBackend{matches: map[string][]Match{}}
	s := NewSearcher(newTestEmbedder(t), backend, 0.5, 10)

	if _, err := s.Search(context.Background(), SearchRequest{Query: "nurse"}); err != nil {
		t.Fatal(err)
	}
	if len(backend.queried) != 2 {
		t.Errorf("queried = %v, want both indexes", backend.queried)
	}
}

func TestSearchMetadataFilters(t *testing.T) {
	backend := &queryBackend{matches: map[string][]Match{
		IndexIT: {
			{ID: "resume_1_chunk_0", Score: 0.9, Metadata: map[string]interface{}{
				"experience_years": 6.0,
				"skills":           []string{"python", "spark"},
			}},
			{ID: "resume_2_chunk_0", Score: 0.85, Metadata: map[string]interface{}{
				"experience_years": 2.0,
				"skills":           []string{"python"},
			}},
			// JSON-decoded shape from the remote backend.
			{ID: "resume_3_chunk_0", Score: 0.8, Metadata: map[string]interface{}{
				"experience_years": float64(8),
				"skills":           []interface{}{"Python", "Spark"},
			}},
		},
	}}
	s := NewSearcher(newTestEmbedder(t), backend, 0.5, 10)

	results, err := s.Search(context.Background(), SearchRequest{
		Query:              "data engineer",
		MasterCategory:     "IT",
		MinExperienceYears: 5,
		Skills:             []string{"Python", "Spark"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2 passing both filters", len(results))
	}
	for _, r := range results {
		if r.ID == "resume_2_chunk_0" {
			t.Error("junior resume should have been filtered out")
		}
	}
}

func TestMatchesFilters(t *testing.T) {
	tests := []struct {
		name string
		meta map[string]interface{}
		req  SearchRequest
		want bool
	}{
		{"no filters", nil, SearchRequest{}, true},
		{"years met", map[string]interface{}{"experience_years": 6.0}, SearchRequest{MinExperienceYears: 5}, true},
		{"years short", map[string]interface{}{"experience_years": 3.0}, SearchRequest{MinExperienceYears: 5}, false},
		{"years missing", map[string]interface{}{}, SearchRequest{MinExperienceYears: 1}, false},
		{"years as int", map[string]interface{}{"experience_years": 6}, SearchRequest{MinExperienceYears: 5}, true},
		{"skill present normalized", map[string]interface{}{"skills": []string{"golang"}}, SearchRequest{Skills: []string{"Go"}}, true},
		{"skill absent", map[string]interface{}{"skills": []string{"java"}}, SearchRequest{Skills: []string{"python"}}, false},
		{"skills missing", map[string]interface{}{}, SearchRequest{Skills: []string{"python"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchesFilters(tt.meta, tt.req); got != tt.want {
				t.Errorf("matchesFilters = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	s := NewSearcher(newTestEmbedder(t), &queryBackend{}, 0.5, 10)
	if _, err := s.Search(context.Background(), SearchRequest{Query: "  "}); err == nil {
		t.Error("expected error for empty query")
	}
}
