package extract

import (
	"context"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/talentops/resumeflow/llm"
)

const namePrompt = `Extract the candidate's full name from this resume header.
The name is usually the first prominent line. Do NOT guess or invent a name;
if no name is visible, answer null.
Return ONLY a JSON object: {"name": "<name or null>"}

Resume header:
`

var (
	reConsecDigits = regexp.MustCompile(`\d{2,}`)
	reForbiddenPun = regexp.MustCompile(`[@/:;#<>{}\[\]|\\~*=+]`)
	reAlpha        = regexp.MustCompile(`[a-zA-Z]`)
	reNameLine     = regexp.MustCompile(`^[A-Z][a-zA-Z.'\-]*(\s+[A-Z][a-zA-Z.'\-]*){1,3}$`)
)

// sectionHeaders are line openers that can never be a candidate name.
var sectionHeaders = []string{
	"resume", "curriculum", "objective", "summary", "profile", "contact",
	"address", "experience", "education", "skills", "projects", "career",
	"professional", "about",
}

// Name extracts the candidate name: LLM first with an anti-hallucination
// prompt, then a deterministic header scan, then the filename itself.
func (e *Extractor) Name(ctx context.Context, resumeText, filename string) (string, error) {
	slice := head(resumeText, headerSlice)

	raw, err := e.complete(ctx, namePrompt+slice, e.light)
	if err != nil {
		slog.Warn("extract: name completion failed, using header scan", "error", err)
	} else if v, ok := llm.CoerceString(raw, "name"); ok && validName(v) {
		return v, nil
	}

	if n := scanHeaderName(slice); n != "" {
		return n, nil
	}
	if n := nameFromFilename(filename); n != "" {
		return n, nil
	}
	return "", nil
}

// validName applies the structural checks: enough letters, bounded
// length, no digit runs, no punctuation a human name never carries.
func validName(s string) bool {
	if len(s) > 100 || len(reAlpha.FindAllString(s, -1)) < 2 {
		return false
	}
	if reConsecDigits.MatchString(s) || reForbiddenPun.MatchString(s) {
		return false
	}
	return true
}

// scanHeaderName looks for a capitalized word sequence at the top of the
// resume, skipping contact lines, dates, and section headers.
func scanHeaderName(slice string) string {
	lines := strings.Split(slice, "\n")
	if len(lines) > 15 {
		lines = lines[:15]
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || len(line) > 60 {
			continue
		}
		if isContactLine(line) {
			continue
		}
		if _, isDate := findDateSpan(line); isDate {
			continue
		}
		lower := strings.ToLower(line)
		if hasSectionHeader(lower) {
			continue
		}
		if reNameLine.MatchString(line) && validName(line) {
			return line
		}
	}
	return ""
}

func hasSectionHeader(lower string) bool {
	for _, h := range sectionHeaders {
		if strings.HasPrefix(lower, h) {
			return true
		}
	}
	return false
}

// nameFromFilename recovers a name from files like "jane_doe.pdf". Last
// resort; only accepted when the result still passes validName.
func nameFromFilename(filename string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	base = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(base)

	// Strip noise words recruiters append to filenames.
	var words []string
	for _, w := range strings.Fields(base) {
		lower := strings.ToLower(w)
		if lower == "resume" || lower == "cv" || lower == "final" || lower == "updated" {
			continue
		}
		if reConsecDigits.MatchString(w) {
			continue
		}
		words = append(words, strings.ToUpper(lower[:1])+lower[1:])
	}
	name := strings.Join(words, " ")
	if len(words) < 2 || !validName(name) {
		return ""
	}
	return name
}
