package store

import (
	"context"
	"testing"
)

func TestPromptMaster(t *testing.T) {
	if got := PromptMaster(MasterIT); got != "IT" {
		t.Errorf("PromptMaster(IT) = %q", got)
	}
	if got := PromptMaster(MasterNonIT); got != "non IT" {
		t.Errorf("PromptMaster(NON_IT) = %q", got)
	}
}

func TestLookupPromptExact(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	p, err := s.LookupPrompt(ctx, MasterIT, "data engineering")
	if err != nil {
		t.Fatal(err)
	}
	if p != seedPromptITDataEng {
		t.Errorf("expected the data engineering prompt, got %q", p)
	}
}

func TestLookupPromptFallback(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		master   string
		category string
		want     string
	}{
		{"unknown category falls to other", MasterIT, "quantum basket weaving", seedPromptITOther},
		{"empty category goes to other", MasterNonIT, "", seedPromptNonITOther},
		{"other is served directly", MasterIT, "other", seedPromptITOther},
		{"seeded non-IT category", MasterNonIT, "pharmaceuticals & clinical research", seedPromptNonITPharma},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := s.LookupPrompt(ctx, tt.master, tt.category)
			if err != nil {
				t.Fatal(err)
			}
			if p != tt.want {
				t.Errorf("LookupPrompt(%q, %q) returned wrong prompt", tt.master, tt.category)
			}
		})
	}
}

func TestLookupPromptMissing(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	// Remove the fallback row, then a lookup should come back empty
	// without erroring.
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM prompts WHERE master_category = 'IT'"); err != nil {
		t.Fatal(err)
	}
	p, err := s.LookupPrompt(ctx, MasterIT, "anything")
	if err != nil {
		t.Fatal(err)
	}
	if p != "" {
		t.Errorf("expected empty prompt after deletion, got %q", p)
	}
}

func TestPromptHealth(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	itOK, nonITOK, err := s.PromptHealth(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !itOK || !nonITOK {
		t.Fatalf("fresh store health = (%v, %v), want both true", itOK, nonITOK)
	}

	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM prompts WHERE master_category = 'non IT' AND category = 'other'"); err != nil {
		t.Fatal(err)
	}
	itOK, nonITOK, err = s.PromptHealth(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !itOK || nonITOK {
		t.Errorf("health after dropping non-IT fallback = (%v, %v), want (true, false)", itOK, nonITOK)
	}
}

func TestUpsertPrompt(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.UpsertPrompt(ctx, "IT", "devops", "first version"); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertPrompt(ctx, "IT", "devops", "second version"); err != nil {
		t.Fatal(err)
	}
	p, err := s.LookupPrompt(ctx, MasterIT, "devops")
	if err != nil {
		t.Fatal(err)
	}
	if p != "second version" {
		t.Errorf("prompt = %q, want the upserted second version", p)
	}
}
