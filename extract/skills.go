package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/talentops/resumeflow/llm"
	"github.com/talentops/resumeflow/skills"
	"github.com/talentops/resumeflow/store"
)

// maxSkills caps the stored skill list.
const maxSkills = 100

// Skills extracts the skill list using a database-sourced prompt routed
// by (master-category, category). There is no hard-coded fallback prompt:
// a missing prompt row is a hard failure for this field.
//
// The stored value is the canonical comma-joined list; use SkillList to
// split it back for indexing.
func (e *Extractor) Skills(ctx context.Context, resumeText, masterCategory, category string) (string, error) {
	if masterCategory != store.MasterIT && masterCategory != store.MasterNonIT {
		return "", ErrNoMasterCategory
	}
	if e.prompts == nil {
		return "", ErrNoPrompt
	}

	prompt, err := e.prompts.LookupPrompt(ctx, masterCategory, category)
	if err != nil {
		return "", fmt.Errorf("looking up skills prompt: %w", err)
	}
	if prompt == "" {
		return "", fmt.Errorf("%w: master=%s category=%q", ErrNoPrompt, masterCategory, category)
	}

	raw, err := e.complete(ctx, prompt+head(resumeText, skillsSlice), e.heavy)
	if err != nil {
		return "", err
	}

	list := llm.CoerceStringList(raw, "skills")
	list = skills.NormalizeList(list)
	if len(list) > maxSkills {
		list = list[:maxSkills]
	}
	if len(list) == 0 {
		return "", nil
	}
	return strings.Join(list, ", "), nil
}

// SkillList splits a stored skillset column back into its array form.
func SkillList(skillset string) []string {
	if strings.TrimSpace(skillset) == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(skillset, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
