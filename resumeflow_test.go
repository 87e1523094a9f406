package resumeflow

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/talentops/resumeflow/store"
	"github.com/talentops/resumeflow/vector"
)

const testResumeText = `Arjun Mehta
Pune, Maharashtra
arjun.mehta@example.com
+91 98765 43210

Senior Data Engineer with 6 years of experience building batch and
streaming pipelines on cloud platforms for large retail clients.

Jan 2021 - Present
Senior Data Engineer at Acme Analytics Pvt Ltd
Designed Spark pipelines processing retail point of sale data, managed
Airflow deployments, and led a team of three engineers on the inventory
forecasting project for the client.

Jun 2017 - Dec 2020
Data Engineer at Initech Solutions
Built ETL jobs and reporting marts on PostgreSQL and AWS.

Education
B.E. Computer Science, University of Pune, 2017

Skills: Python, SQL, Spark, Airflow, AWS, PostgreSQL
`

// fakeModelServer answers every pipeline completion by sniffing the
// prompt, plus tags and embeddings. Returns the server URL and counters
// for generate and embedding calls.
func fakeModelServer(t *testing.T) (string, *int32, *int32) {
	t.Helper()
	var generates, embeds int32

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/tags", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"models": []map[string]string{
				{"name": "llama3.1:8b"},
				{"name": "nomic-embed-text"},
			},
		})
	})
	mux.HandleFunc("POST /api/embeddings", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&embeds, 1)
		vec := make([]float32, 16)
		vec[0] = 1
		json.NewEncoder(w).Encode(map[string]interface{}{"embedding": vec})
	})
	mux.HandleFunc("POST /api/generate", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&generates, 1)
		var req struct {
			Prompt string `json:"prompt"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		answer := `{"error": "unmatched prompt"}`
		switch {
		case strings.Contains(req.Prompt, `Classify this resume as "IT"`):
			answer = `{"master_category": "IT"}`
		case strings.Contains(req.Prompt, "specialization within IT"),
			strings.Contains(req.Prompt, "professional field"):
			answer = `{"category": "data engineering"}`
		case strings.Contains(req.Prompt, "full name"):
			answer = `{"name": "Arjun Mehta"}`
		case strings.Contains(req.Prompt, "CURRENT job title"):
			answer = `{"designation": "Senior Data Engineer"}`
		case strings.Contains(req.Prompt, "functional role"):
			answer = `{"job_role": "Data Engineer"}`
		case strings.Contains(req.Prompt, "total professional experience"):
			answer = `{"experience": "6 years"}`
		case strings.Contains(req.Prompt, "highest educational qualification"):
			answer = `{"education": "B.E. Computer Science"}`
		case strings.Contains(req.Prompt, "current city"):
			answer = `{"location": "Pune"}`
		case strings.Contains(req.Prompt, "industry domain"):
			answer = `{"domain": "Retail"}`
		case strings.Contains(req.Prompt, "skills from this"):
			answer = `{"skills": ["Python", "SQL", "Spark", "Airflow"]}`
		}
		json.NewEncoder(w).Encode(map[string]string{"response": answer})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv.URL, &generates, &embeds
}

func newTestEngine(t *testing.T, modelURL string) Engine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "resumeflow.db")
	cfg.ModelServerURL = modelURL
	cfg.EmbeddingDim = 16
	cfg.HeavyExtractTimeout = 10 * time.Second
	cfg.LightExtractTimeout = 10 * time.Second

	eng, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { eng.Close() })
	return eng
}

// waitIndexed polls until background indexing flips the flag.
func waitIndexed(t *testing.T, eng Engine, id int64) *store.Resume {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		r, err := eng.GetResume(context.Background(), id)
		if err != nil {
			t.Fatal(err)
		}
		if r.Indexed == 1 {
			return r
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("resume was never indexed in the background")
	return nil
}

func TestProcessResumeFullPipeline(t *testing.T) {
	url, _, _ := fakeModelServer(t)
	eng := newTestEngine(t, url)

	r, err := eng.ProcessResume(context.Background(), "arjun_mehta.txt", []byte(testResumeText))
	if err != nil {
		t.Fatalf("ProcessResume error: %v", err)
	}

	if r.Status != StatusOK {
		t.Fatalf("status = %q, want %q", r.Status, StatusOK)
	}
	if r.MasterCategory != store.MasterIT {
		t.Errorf("master_category = %q", r.MasterCategory)
	}
	if r.Category != "data engineering" {
		t.Errorf("category = %q", r.Category)
	}
	if r.CandidateName != "Arjun Mehta" {
		t.Errorf("candidate_name = %q", r.CandidateName)
	}
	if r.Designation != "Senior Data Engineer" {
		t.Errorf("designation = %q", r.Designation)
	}
	if r.Experience != "6 years" {
		t.Errorf("experience = %q", r.Experience)
	}
	if r.Email != "arjun.mehta@example.com" {
		t.Errorf("email = %q", r.Email)
	}
	if r.Mobile == "" {
		t.Error("mobile not extracted")
	}
	// Normalized, lowercased, comma-joined.
	if r.Skillset != "python, sql, spark, airflow" {
		t.Errorf("skillset = %q", r.Skillset)
	}

	indexed := waitIndexed(t, eng, r.ID)
	if indexed.Indexed != 1 {
		t.Error("indexed flag not set after background indexing")
	}
}

func TestProcessResumeInsufficientText(t *testing.T) {
	url, generates, _ := fakeModelServer(t)
	eng := newTestEngine(t, url)

	r, err := eng.ProcessResume(context.Background(), "scan.txt", []byte("Arjun Mehta, Engineer"))
	if !errors.Is(err, ErrInsufficientText) {
		t.Fatalf("err = %v, want ErrInsufficientText", err)
	}
	if r == nil || r.Status != StatusInsufficientText {
		t.Fatalf("row = %+v, want status %q", r, StatusInsufficientText)
	}
	if atomic.LoadInt32(generates) != 0 {
		t.Error("no LLM call should happen for insufficient text")
	}
}

func TestProcessResumeInputErrors(t *testing.T) {
	url, _, _ := fakeModelServer(t)
	eng := newTestEngine(t, url)
	ctx := context.Background()

	if _, err := eng.ProcessResume(ctx, "resume.txt", nil); !errors.Is(err, ErrEmptyFile) {
		t.Errorf("empty data err = %v", err)
	}
	if _, err := eng.ProcessResume(ctx, "", []byte("x")); !errors.Is(err, ErrEmptyFile) {
		t.Errorf("missing filename err = %v", err)
	}
	if _, err := eng.ProcessResume(ctx, "resume.doc", []byte(testResumeText)); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("legacy .doc err = %v", err)
	}

	// Input errors never create a row.
	var count int
	if err := eng.Store().DB().QueryRow("SELECT COUNT(*) FROM resumes").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("rows created = %d, want 0", count)
	}
}

func TestProcessResumeCollaboratorDown(t *testing.T) {
	// Nothing listens here; master-category cannot be obtained.
	eng := newTestEngine(t, "http://127.0.0.1:1")

	r, err := eng.ProcessResume(context.Background(), "arjun.txt", []byte(testResumeText))
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("err = %v, want ErrModelUnavailable", err)
	}
	if r == nil || r.Status != StatusCollaboratorFailed {
		t.Fatalf("row = %+v, want status %q", r, StatusCollaboratorFailed)
	}
	// The parsed text is kept for a later retry.
	if r.ResumeText == "" {
		t.Error("resume_text not persisted before the failure")
	}
}

func TestProcessResumeModuleSelection(t *testing.T) {
	url, _, _ := fakeModelServer(t)
	eng := newTestEngine(t, url)

	mods, err := ParseModules("3,4,experience")
	if err != nil {
		t.Fatal(err)
	}
	r, err := eng.ProcessResume(context.Background(), "arjun.txt", []byte(testResumeText),
		WithModules(mods), WithCandidateName("A. Mehta"), WithSource("portal"))
	if err != nil {
		t.Fatal(err)
	}

	// Classification always runs; it is a dependency, not a module.
	if r.MasterCategory != store.MasterIT {
		t.Errorf("master_category = %q", r.MasterCategory)
	}
	if r.Email == "" || r.Mobile == "" || r.Experience == "" {
		t.Errorf("selected modules missing: email=%q mobile=%q experience=%q",
			r.Email, r.Mobile, r.Experience)
	}
	if r.CandidateName != "A. Mehta" {
		t.Errorf("provided candidate_name overridden: %q", r.CandidateName)
	}
	// Unselected extractors leave their columns empty.
	if r.Designation != "" || r.Skillset != "" || r.Location != "" {
		t.Errorf("unselected modules ran: designation=%q skillset=%q location=%q",
			r.Designation, r.Skillset, r.Location)
	}
}

func TestParseModules(t *testing.T) {
	tests := []struct {
		in      string
		want    []string
		wantErr bool
	}{
		{"all", nil, false},
		{"", nil, false},
		{"ALL", nil, false},
		{"1,2,8", []string{"designation", "name", "skills"}, false},
		{"email, mobile", []string{"email", "mobile"}, false},
		{"skills,skills", []string{"skills"}, false},
		{"9", nil, true},
		{"designation,bogus", nil, true},
	}
	for _, tt := range tests {
		got, err := ParseModules(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseModules(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseModules(%q) error: %v", tt.in, err)
			continue
		}
		if tt.want == nil {
			if got != nil {
				t.Errorf("ParseModules(%q) = %v, want nil (all)", tt.in, got)
			}
			continue
		}
		if len(got) != len(tt.want) {
			t.Errorf("ParseModules(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for _, name := range tt.want {
			if !got[name] {
				t.Errorf("ParseModules(%q) missing %q", tt.in, name)
			}
		}
	}
}

func TestSearchUsesJobCache(t *testing.T) {
	url, _, embeds := fakeModelServer(t)
	eng := newTestEngine(t, url)
	ctx := context.Background()

	req := vector.SearchRequest{Query: "senior data engineer with spark"}
	if _, err := eng.Search(ctx, req); err != nil {
		t.Fatal(err)
	}
	first := atomic.LoadInt32(embeds)
	if first == 0 {
		t.Fatal("query was not embedded")
	}
	if _, err := eng.Search(ctx, req); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt32(embeds); got != first {
		t.Errorf("embed calls = %d after cached repeat, want %d", got, first)
	}
}

func TestHealth(t *testing.T) {
	url, _, _ := fakeModelServer(t)
	eng := newTestEngine(t, url)

	h, err := eng.Health(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !h.ITPromptOK || !h.NonITPromptOK {
		t.Errorf("health = %+v, want both fallback prompts present", h)
	}
}
