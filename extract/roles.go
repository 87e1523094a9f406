package extract

import (
	"math"
	"regexp"
	"strings"
)

// Role isolation reduces a resume to its single most recent job span so
// the domain extractor is not biased by older positions. The algorithm is
// a line scan: a line carrying a date range opens a role, following lines
// accrete into its body until the next date line.

// roleBodyCap bounds the characters of role body sent downstream.
const roleBodyCap = 1800

// Role is one dated job span extracted from resume text.
type Role struct {
	DateText   string
	StartYear  int
	StartMonth int
	EndYear    int
	EndMonth   int
	IsCurrent  bool
	Body       string
}

// Score ranks roles by recency. A current role always wins; otherwise the
// end year decides with the month breaking ties, then the start year, and
// an undated role scores zero.
func (r Role) Score() float64 {
	if r.IsCurrent {
		return math.Inf(1)
	}
	if r.EndYear > 0 {
		return float64(r.EndYear*100 + r.EndMonth)
	}
	if r.StartYear > 0 {
		return float64(r.StartYear * 100)
	}
	return 0
}

// SplitRoles scans the text line by line and groups it into dated roles.
// Contact and address lines are skipped entirely. Text before the first
// date-bearing line belongs to no role.
func SplitRoles(text string) []Role {
	var roles []Role
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || isContactLine(line) {
			continue
		}
		if span, ok := findDateSpan(line); ok {
			roles = append(roles, Role{
				DateText:   span.text,
				StartYear:  span.startYear,
				StartMonth: span.startMonth,
				EndYear:    span.endYear,
				EndMonth:   span.endMonth,
				IsCurrent:  span.isCurrent,
				Body:       line + "\n",
			})
			continue
		}
		if len(roles) > 0 {
			cur := &roles[len(roles)-1]
			if len(cur.Body) < 2*roleBodyCap {
				cur.Body += line + "\n"
			}
		}
	}
	return roles
}

// LatestRole picks the highest-scoring role; ties go to first occurrence.
func LatestRole(roles []Role) (Role, int, bool) {
	if len(roles) == 0 {
		return Role{}, -1, false
	}
	best := 0
	for i := 1; i < len(roles); i++ {
		if roles[i].Score() > roles[best].Score() {
			best = i
		}
	}
	return roles[best], best, true
}

// IsolateLatestRole returns the validated body of the most recent role,
// capped for downstream prompts. ok=false tells the caller to fall back
// to the coarser experience-block extraction.
func IsolateLatestRole(text string) (string, bool) {
	roles := SplitRoles(text)
	role, idx, ok := LatestRole(roles)
	if !ok {
		return "", false
	}
	body := strings.TrimSpace(role.Body)
	if len(body) > roleBodyCap {
		body = head(body, roleBodyCap)
	}
	if !validIsolation(body, roles, idx) {
		return "", false
	}
	return body, true
}

var (
	reBusinessContext = regexp.MustCompile(`(?i)\b(developer|engineer|manager|analyst|` +
		`consultant|architect|lead|director|specialist|administrator|designer|officer|` +
		`executive|scientist|intern|accountant|nurse|technician)\b|\bat\s+[A-Z]`)
	reEmployerToken = regexp.MustCompile(`(?i)\b(inc|ltd|llc|llp|pvt|corp(oration)?|gmbh|` +
		`technologies|solutions|systems|services|consulting|labs|bank|hospital|university)\b`)
	reAcademicMarker = regexp.MustCompile(`(?i)\b(bachelor|master of|b\.?\s?tech|m\.?\s?tech|` +
		`b\.?\s?e\b|m\.?\s?sc|b\.?\s?sc|cgpa|gpa|coursework|semester)\b`)
	reSeparationWord = regexp.MustCompile(`(?i)\b(previous|prior)\b`)
)

// validIsolation applies the strict checks that must hold before a role
// body is trusted: sane length, business context present, not a pile of
// several merged positions, and the pick is actually the newest one.
func validIsolation(body string, roles []Role, picked int) bool {
	if len(body) < 30 || len(body) > 2*roleBodyCap {
		return false
	}
	if !reBusinessContext.MatchString(body) {
		return false
	}
	if reSeparationWord.MatchString(body) {
		return false
	}
	// Academic blocks sometimes carry dates that look like employment
	// spans. Two or more academic markers in a short body means the scan
	// landed on the education section.
	if distinctMatches(reAcademicMarker, body) >= 2 {
		return false
	}
	if distinctMatches(reYear, body) >= 5 {
		return false
	}
	if distinctMatches(reEmployerToken, body) >= 4 {
		return false
	}
	if len(roles) >= 2 {
		max := roles[picked].Score()
		for i, r := range roles {
			if i != picked && r.Score() > max {
				return false
			}
		}
	}
	return true
}

func distinctMatches(re *regexp.Regexp, s string) int {
	seen := map[string]bool{}
	for _, m := range re.FindAllString(strings.ToLower(s), -1) {
		seen[m] = true
	}
	return len(seen)
}

var reSectionHeader = regexp.MustCompile(`(?im)^\s*(?:work\s+|professional\s+|employment\s+)?` +
	`(experience|employment(\s+history)?|work\s+history|career\s+summary)\s*:?\s*$`)

var reNextSection = regexp.MustCompile(`(?im)^\s*(education|academic|skills?|technical\s+skills|` +
	`projects?|certifications?|achievements?|awards?|references?)\s*:?\s*$`)

// ExperienceBlock is the coarser fallback: the text from the experience
// section header to the next section header, capped at 3000 characters.
func ExperienceBlock(text string) (string, bool) {
	loc := reSectionHeader.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	block := text[loc[1]:]
	if next := reNextSection.FindStringIndex(block); next != nil {
		block = block[:next[0]]
	}
	block = strings.TrimSpace(block)
	if block == "" {
		return "", false
	}
	return head(block, 3000), true
}
