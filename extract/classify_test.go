package extract

import (
	"context"
	"testing"
	"time"

	"github.com/talentops/resumeflow/llm"
)

func TestMasterCategory(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{"it", `{"master_category": "IT"}`, "IT"},
		{"non it", `{"master_category": "non IT"}`, "NON_IT"},
		{"hyphenated", `{"master_category": "non-IT"}`, "NON_IT"},
		{"garbage defaults non-IT", `beats me`, "NON_IT"},
		{"empty defaults non-IT", `{"master_category": ""}`, "NON_IT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestExtractor(t, nil, func(string) string { return tt.response })
			got, err := e.MasterCategory(context.Background(), "resume text")
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("master = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMasterCategoryUnreachableServer(t *testing.T) {
	gw := llm.NewGateway(llm.Config{BaseURL: "http://127.0.0.1:1", PreferredModel: "llama3.1:8b"})
	e := New(gw, nil, Config{LightTimeout: 2 * time.Second})
	_, err := e.MasterCategory(context.Background(), "resume text")
	if err == nil {
		t.Error("expected a transport error from an unreachable server")
	}
}

func TestCategory(t *testing.T) {
	e, _ := newTestExtractor(t, nil, func(string) string {
		return `{"category": "Full Stack Development (Java)"}`
	})
	got, err := e.Category(context.Background(), "resume text", "IT")
	if err != nil {
		t.Fatal(err)
	}
	if got != "full stack development (java)" {
		t.Errorf("category = %q, want lowercased label", got)
	}
}

func TestCategoryOtherSentinel(t *testing.T) {
	e, _ := newTestExtractor(t, nil, func(string) string {
		return `{"category": "other"}`
	})
	got, err := e.Category(context.Background(), "resume text", "NON_IT")
	if err != nil {
		t.Fatal(err)
	}
	if got != "" {
		t.Errorf("category = %q, want empty for the lookup sentinel", got)
	}
}
