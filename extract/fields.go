package extract

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/talentops/resumeflow/llm"
)

// The simple extractors: one prompt, one key, light validation. Selection
// rules live in the prompts; no normalization happens here.

const designationPrompt = `Extract the candidate's CURRENT job title from this resume.
Selection order: current title, then most recent title, then the headline title,
then the first title mentioned. Return exactly one title, verbatim from the text.
If no title appears, answer null.
Return ONLY a JSON object: {"designation": "<title or null>"}

Resume start:
`

const jobRolePrompt = `Extract the candidate's functional role from this resume,
for example "Backend Developer", "Data Analyst", or "Project Manager".
Selection order: current role, then most recent, then headline, then first mentioned.
Return exactly one role. If unclear, answer null.
Return ONLY a JSON object: {"job_role": "<role or null>"}

Resume start:
`

const experiencePrompt = `Extract the candidate's total professional experience from
this resume as stated, for example "5 years" or "3 years 6 months". Do not compute
it yourself; only report what the resume states. If not stated, answer null.
Return ONLY a JSON object: {"experience": "<duration or null>"}

Resume start:
`

const educationPrompt = `Extract the candidate's highest educational qualification
from this resume, for example "B.E. Computer Science" or "MBA Finance".
Return exactly one qualification. If none appears, answer null.
Return ONLY a JSON object: {"education": "<qualification or null>"}

Resume text:
`

const locationPrompt = `Extract the candidate's current city or location from this
resume header. Do not guess from employer addresses. If no location appears,
answer null.
Return ONLY a JSON object: {"location": "<location or null>"}

Resume header:
`

// Designation extracts the current job title, verbatim.
func (e *Extractor) Designation(ctx context.Context, resumeText string) (string, error) {
	return e.stringField(ctx, designationPrompt, resumeText, titleSlice, "designation")
}

// JobRole extracts the functional role. Stored independently from the
// designation even when both name the same title.
func (e *Extractor) JobRole(ctx context.Context, resumeText string) (string, error) {
	return e.stringField(ctx, jobRolePrompt, resumeText, titleSlice, "job_role")
}

// Experience extracts the stated total experience as free-form text.
func (e *Extractor) Experience(ctx context.Context, resumeText string) (string, error) {
	return e.stringField(ctx, experiencePrompt, resumeText, titleSlice, "experience")
}

// Education extracts the highest qualification.
func (e *Extractor) Education(ctx context.Context, resumeText string) (string, error) {
	return e.stringField(ctx, educationPrompt, resumeText, eduSlice, "education")
}

// Location extracts the candidate's city from the header slice.
func (e *Extractor) Location(ctx context.Context, resumeText string) (string, error) {
	return e.stringField(ctx, locationPrompt, resumeText, headerSlice, "location")
}

func (e *Extractor) stringField(ctx context.Context, prompt, text string, slice int, key string) (string, error) {
	raw, err := e.complete(ctx, prompt+head(text, slice), e.light)
	if err != nil {
		return "", err
	}
	v, ok := llm.CoerceString(raw, key)
	if !ok {
		return "", nil
	}
	v = strings.TrimSpace(v)
	if strings.EqualFold(v, "other") || len(v) > 200 {
		return "", nil
	}
	return v, nil
}

var (
	reYearsNum  = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*\+?\s*(?:years?|yrs?)`)
	reMonthsNum = regexp.MustCompile(`(\d+)\s*(?:months?|mos?)\b`)
)

// ParseYears turns a free-form experience string ("5 years 3 months",
// "7+ yrs") into a numeric year count for vector metadata filtering.
// Returns 0 when nothing parses.
func ParseYears(experience string) float64 {
	lower := strings.ToLower(experience)
	var years float64
	if m := reYearsNum.FindStringSubmatch(lower); m != nil {
		years, _ = strconv.ParseFloat(m[1], 64)
	}
	if m := reMonthsNum.FindStringSubmatch(lower); m != nil {
		months, _ := strconv.ParseFloat(m[1], 64)
		years += months / 12
	}
	// Round to one decimal so filter values stay stable.
	return float64(int(years*10+0.5)) / 10
}
