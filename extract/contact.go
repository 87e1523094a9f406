package extract

import (
	"regexp"
	"strings"
)

// Contact details come out deterministically: email and phone formats are
// regular enough that an LLM round-trip would only add failure modes.

var (
	reEmail = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	reURL   = regexp.MustCompile(`(?i)(?:https?://|www\.)\S+|\b(?:linkedin|github)\.com/\S+`)
	rePhone = regexp.MustCompile(`(?:\+\d{1,3}[\s\-.]?)?(?:\(\d{2,4}\)[\s\-.]?)?\d{3,5}(?:[\s\-.]\d{3,5}){1,3}|\b\d{10}\b`)
)

// Email returns the first email address in the text, lowercased, or "".
func Email(text string) string {
	m := reEmail.FindString(head(text, headerSlice))
	return strings.ToLower(m)
}

// Mobile returns the first plausible phone number near the top of the
// text, or "". Plausible means 10 to 13 digits; that filters out the year
// ranges and postal codes a naive phone regex loves to match.
func Mobile(text string) string {
	slice := head(text, headerSlice)
	for _, cand := range rePhone.FindAllString(slice, 10) {
		digits := countDigits(cand)
		if digits < 10 || digits > 13 {
			continue
		}
		// Year ranges like "2019 - 2023" have exactly 8 digits and never
		// reach here, but "2019 - 202345" style noise can. A date span in
		// the candidate disqualifies it.
		if _, isDate := findDateSpan(cand); isDate {
			continue
		}
		return strings.TrimSpace(cand)
	}
	return ""
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// isContactLine reports lines that carry contact or address data rather
// than role content. The role isolator skips these so a street number is
// never mistaken for a date.
func isContactLine(line string) bool {
	if reEmail.MatchString(line) || reURL.MatchString(line) {
		return true
	}
	if len(line) < 40 && rePhone.MatchString(line) {
		return true
	}
	if countDigits(line) > 0 && countDigits(line) == len(strings.Join(strings.Fields(line), "")) {
		// Numeric-only short line (pincode, phone fragment).
		return len(line) < 20
	}
	lower := strings.ToLower(line)
	for _, marker := range []string{"street", " road", " lane", "apartment", "apt ", "p.o. box", "pincode", "zip code"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
