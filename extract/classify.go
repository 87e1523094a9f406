package extract

import (
	"context"
	"strings"

	"github.com/talentops/resumeflow/llm"
	"github.com/talentops/resumeflow/store"
)

const masterCategoryPrompt = `Classify this resume as "IT" or "non IT".
IT means the candidate's primary work is software, data, infrastructure,
or technology engineering. Everything else is non IT.
Return ONLY a JSON object: {"master_category": "IT"} or {"master_category": "non IT"}

Resume start:
`

const categoryPromptIT = `Name the candidate's specialization within IT as a short
category label, for example "full stack development (java)", "data engineering",
"devops", "qa automation", or "mobile development". Use lowercase.
Return ONLY a JSON object: {"category": "<label>"}

Resume start:
`

const categoryPromptNonIT = `Name the candidate's professional field as a short
category label, for example "pharmaceuticals & clinical research", "accounting",
"human resources", or "mechanical engineering". Use lowercase.
Return ONLY a JSON object: {"category": "<label>"}

Resume start:
`

// MasterCategory classifies the resume into IT or NON_IT. An ambiguous or
// malformed answer defaults to NON_IT; the downstream routing policy
// assumes that default. A transport error is returned so the caller can
// distinguish "cannot reach the model" from "classified".
func (e *Extractor) MasterCategory(ctx context.Context, resumeText string) (string, error) {
	raw, err := e.complete(ctx, masterCategoryPrompt+head(resumeText, masterSlice), e.light)
	if err != nil {
		return "", err
	}

	v, _ := llm.CoerceString(raw, "master_category")
	norm := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(v), "-", " "))
	switch norm {
	case "it":
		return store.MasterIT, nil
	default:
		return store.MasterNonIT, nil
	}
}

// Category produces the free-form specialization label. It is only used
// for prompt routing and as a vector-store namespace, so "" is fine.
func (e *Extractor) Category(ctx context.Context, resumeText, masterCategory string) (string, error) {
	prompt := categoryPromptNonIT
	if masterCategory == store.MasterIT {
		prompt = categoryPromptIT
	}

	raw, err := e.complete(ctx, prompt+head(resumeText, titleSlice), e.light)
	if err != nil {
		return "", err
	}

	v, ok := llm.CoerceString(raw, "category")
	if !ok {
		return "", nil
	}
	v = strings.ToLower(strings.TrimSpace(v))
	if v == store.FallbackCategory {
		// "other" is the lookup sentinel, not a real category.
		return "", nil
	}
	return v, nil
}
