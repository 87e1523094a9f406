// Package extract holds the per-field resume extractors. Each extractor
// takes the raw resume text, slices out the region the field actually
// lives in, runs one LLM completion, coerces the JSON answer, and applies
// field-specific deterministic rules. Extractors return "" for "no value";
// they never panic and only return errors the orchestrator can act on.
package extract

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/talentops/resumeflow/llm"
)

var (
	// ErrNoMasterCategory is returned by the skills extractor when the
	// master-category column is still null at extraction time.
	ErrNoMasterCategory = errors.New("extract: master-category missing, skills skipped")

	// ErrNoPrompt is returned when no skills prompt exists for the
	// category or its fallback. Skills extraction has no hard-coded
	// prompt to fall back on.
	ErrNoPrompt = errors.New("extract: no skills prompt available")
)

// Input slice limits. Header fields always appear near the top of the
// document; sending the full text only adds noise and latency.
const (
	headerSlice = 1500  // name, location, contact details
	masterSlice = 1000  // master-category classification
	titleSlice  = 3000  // designation, role, experience
	eduSlice    = 4000  // education
	skillsSlice = 10000 // skills
)

// PromptStore looks up a skills-extraction prompt by master-category and
// category, with the "other" fallback applied internally.
type PromptStore interface {
	LookupPrompt(ctx context.Context, masterCategory, category string) (string, error)
}

// Config bounds the per-extractor call budgets.
type Config struct {
	// HeavyTimeout bounds domain and skills calls.
	HeavyTimeout time.Duration
	// LightTimeout bounds everything else.
	LightTimeout time.Duration
}

// Extractor runs field extractions against a model server.
type Extractor struct {
	gw      *llm.Gateway
	prompts PromptStore
	heavy   time.Duration
	light   time.Duration
}

// New creates an extractor. prompts may be nil if skills extraction is
// never requested.
func New(gw *llm.Gateway, prompts PromptStore, cfg Config) *Extractor {
	if cfg.HeavyTimeout == 0 {
		cfg.HeavyTimeout = 120 * time.Second
	}
	if cfg.LightTimeout == 0 {
		cfg.LightTimeout = 90 * time.Second
	}
	return &Extractor{
		gw:      gw,
		prompts: prompts,
		heavy:   cfg.HeavyTimeout,
		light:   cfg.LightTimeout,
	}
}

// complete is the shared one-shot call: deterministic temperature, fresh
// context, per-field deadline.
func (e *Extractor) complete(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	return e.gw.Complete(ctx, llm.CompleteRequest{
		Prompt:       prompt,
		Temperature:  0,
		TopP:         0.9,
		MaxTokens:    1024,
		Timeout:      timeout,
		FreshContext: true,
	})
}

// head returns the first n bytes of s, cut back to a rune boundary.
func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
