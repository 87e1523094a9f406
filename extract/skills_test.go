package extract

import (
	"context"
	"errors"
	"testing"
)

func TestSkillsNullMasterShortCircuits(t *testing.T) {
	e, calls := newTestExtractor(t, &fakePrompts{}, func(prompt string) string {
		t.Fatal("model called despite missing master-category")
		return ""
	})

	_, err := e.Skills(context.Background(), "resume text", "", "")
	if !errors.Is(err, ErrNoMasterCategory) {
		t.Fatalf("err = %v, want ErrNoMasterCategory", err)
	}
	if *calls != 0 {
		t.Errorf("model server hit %d times, want 0", *calls)
	}
}

func TestSkillsCategoryFallback(t *testing.T) {
	// The specific category row is absent; the "other" row must serve.
	prompts := &fakePrompts{rows: map[[2]string]string{
		{"non IT", "other"}: "List the professional skills.\n",
	}}
	e, _ := newTestExtractor(t, prompts, func(prompt string) string {
		return `{"skills": ["Pharmacovigilance", "GxP", "Clinical Trials"]}`
	})

	got, err := e.Skills(context.Background(), "resume text", "NON_IT", "pharmaceuticals & clinical research")
	if err != nil {
		t.Fatalf("Skills error: %v", err)
	}
	if got != "pharmacovigilance, gxp, clinical trials" {
		t.Errorf("skillset = %q", got)
	}
}

func TestSkillsMissingPromptFails(t *testing.T) {
	e, _ := newTestExtractor(t, &fakePrompts{}, func(prompt string) string {
		return `{"skills": []}`
	})
	_, err := e.Skills(context.Background(), "resume text", "IT", "")
	if !errors.Is(err, ErrNoPrompt) {
		t.Errorf("err = %v, want ErrNoPrompt", err)
	}
}

func TestSkillsNormalizesAndDedupes(t *testing.T) {
	prompts := &fakePrompts{rows: map[[2]string]string{
		{"IT", "other"}: "List the technical skills.\n",
	}}
	e, _ := newTestExtractor(t, prompts, func(prompt string) string {
		return `{"skills": ["React.js", "ReactJS", "Golang", "K8s", "kubernetes", "SQL"]}`
	})

	got, err := e.Skills(context.Background(), "resume text", "IT", "")
	if err != nil {
		t.Fatal(err)
	}
	if got != "react, go, kubernetes, sql" {
		t.Errorf("skillset = %q, want normalized deduped list", got)
	}
}

func TestSkillsBareArrayAccepted(t *testing.T) {
	prompts := &fakePrompts{rows: map[[2]string]string{
		{"IT", "other"}: "List the technical skills.\n",
	}}
	e, _ := newTestExtractor(t, prompts, func(prompt string) string {
		return `["python", "django"]`
	})

	got, err := e.Skills(context.Background(), "resume text", "IT", "")
	if err != nil {
		t.Fatal(err)
	}
	if got != "python, django" {
		t.Errorf("skillset = %q", got)
	}
}

func TestSkillList(t *testing.T) {
	got := SkillList("python, django, postgresql")
	if len(got) != 3 || got[0] != "python" || got[2] != "postgresql" {
		t.Errorf("SkillList = %v", got)
	}
	if SkillList("") != nil {
		t.Error("SkillList(\"\") should be nil")
	}
	if SkillList(" , ") != nil {
		t.Errorf("SkillList of separators = %v, want nil", SkillList(" , "))
	}
}
