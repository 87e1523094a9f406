package store

import (
	"context"
	"database/sql"
	"errors"
)

// Prompt master-category string forms as stored in the prompt table.
// These differ from the resume column values; see PromptMaster.
const (
	PromptMasterIT    = "IT"
	PromptMasterNonIT = "non IT"

	// FallbackCategory is the sentinel category row used when no
	// category-specific prompt exists.
	FallbackCategory = "other"
)

// PromptMaster maps a resume master-category value to the string form
// used by the prompt table ("NON_IT" is stored as "non IT" there).
func PromptMaster(masterCategory string) string {
	if masterCategory == MasterNonIT {
		return PromptMasterNonIT
	}
	return masterCategory
}

// LookupPrompt returns the extraction prompt for (masterCategory,
// category) with at most two probes: the exact pair first, then the
// "other" fallback row. An empty category goes straight to the fallback.
// Returns "", nil when neither row exists.
func (s *Store) LookupPrompt(ctx context.Context, masterCategory, category string) (string, error) {
	master := PromptMaster(masterCategory)

	if category != "" && category != FallbackCategory {
		prompt, err := s.promptRow(ctx, master, category)
		if err != nil {
			return "", err
		}
		if prompt != "" {
			return prompt, nil
		}
	}
	return s.promptRow(ctx, master, FallbackCategory)
}

func (s *Store) promptRow(ctx context.Context, master, category string) (string, error) {
	var prompt string
	err := s.db.QueryRowContext(ctx,
		"SELECT prompt FROM prompts WHERE master_category = ? AND category = ?",
		master, category).Scan(&prompt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return prompt, nil
}

// PromptHealth reports whether the mandatory fallback rows exist for
// both master-categories. The pipeline degrades without them: skills
// extraction has no hard-coded prompt to fall back on.
func (s *Store) PromptHealth(ctx context.Context) (itOK, nonITOK bool, err error) {
	p, err := s.promptRow(ctx, PromptMasterIT, FallbackCategory)
	if err != nil {
		return false, false, err
	}
	itOK = p != ""

	p, err = s.promptRow(ctx, PromptMasterNonIT, FallbackCategory)
	if err != nil {
		return itOK, false, err
	}
	nonITOK = p != ""
	return itOK, nonITOK, nil
}

// UpsertPrompt inserts or replaces a prompt row.
func (s *Store) UpsertPrompt(ctx context.Context, master, category, prompt string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO prompts (master_category, category, prompt)
		VALUES (?, ?, ?)
		ON CONFLICT(master_category, category) DO UPDATE SET prompt = excluded.prompt
	`, master, category, prompt)
	return err
}

// seedPrompts installs the mandatory "other" fallback rows plus a few
// representative category prompts so a fresh database passes the health
// check. Existing rows are left untouched.
func (s *Store) seedPrompts(ctx context.Context) error {
	seeds := []struct {
		master, category, prompt string
	}{
		{PromptMasterIT, FallbackCategory, seedPromptITOther},
		{PromptMasterNonIT, FallbackCategory, seedPromptNonITOther},
		{PromptMasterIT, "full stack development (java)", seedPromptITFullStackJava},
		{PromptMasterIT, "data engineering", seedPromptITDataEng},
		{PromptMasterNonIT, "pharmaceuticals & clinical research", seedPromptNonITPharma},
	}
	for _, seed := range seeds {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO prompts (master_category, category, prompt)
			VALUES (?, ?, ?)
			ON CONFLICT(master_category, category) DO NOTHING
		`, seed.master, seed.category, seed.prompt)
		if err != nil {
			return err
		}
	}
	return nil
}

const seedPromptITOther = `Extract the technical skills from this IT resume.
Return ONLY a JSON object: {"skills": ["skill1", "skill2", ...]}.
Include programming languages, frameworks, databases, cloud platforms, and tools
the candidate has actually used. Do not invent skills that are not in the text.
Resume text:
`

const seedPromptNonITOther = `Extract the professional skills from this resume.
Return ONLY a JSON object: {"skills": ["skill1", "skill2", ...]}.
Include domain skills, certifications, tools, and competencies the candidate
has actually used. Do not include soft skills unless explicitly listed.
Do not invent skills that are not in the text.
Resume text:
`

const seedPromptITFullStackJava = `Extract the technical skills from this Java
full-stack resume. Return ONLY a JSON object: {"skills": [...]}.
Prioritize: Java version and frameworks (Spring, Hibernate), frontend stack,
databases, build tools, and cloud/deployment tooling actually used.
Resume text:
`

const seedPromptITDataEng = `Extract the technical skills from this data
engineering resume. Return ONLY a JSON object: {"skills": [...]}.
Prioritize: data platforms, pipelines and orchestration tools, warehouses,
streaming systems, and languages actually used.
Resume text:
`

const seedPromptNonITPharma = `Extract the professional skills from this
pharmaceutical / clinical research resume. Return ONLY a JSON object:
{"skills": [...]}. Prioritize: regulatory knowledge (GxP, FDA), trial phases,
lab techniques, pharmacovigilance tools, and documentation systems used.
Resume text:
`
