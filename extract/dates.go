package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// Date grammar for role isolation. The vocabulary is deliberately small:
// month names, years constrained to 1950-2039, a fixed separator set, and
// an enumerated list of "present"-equivalent tokens. Everything compiles
// once at init.

const (
	monthPat = `(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|` +
		`jul(?:y)?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)`
	yearPat = `(?:19[5-9][0-9]|20[0-3][0-9])`

	// A date point: "Mar 2021", "Mar. 2021", "03/2021", or bare "2021".
	pointPat = `(?:` + monthPat + `\.?,?\s*` + yearPat +
		`|(?:0?[1-9]|1[0-2])\s*/\s*` + yearPat +
		`|` + yearPat + `)`

	presentPat = `(?:present|current(?:ly)?(?:\s+working)?|now|today|ongoing|date|` +
		`till?\s*(?:date|now)|to\s*date|up\s*-?\s*to\s*date|until\s*(?:date|now)|` +
		`still\s*(?:working|employed))`

	sepPat = `\s*(?:-|–|—|to|till|until|through)\s*`
)

var (
	reDateRange = regexp.MustCompile(`(?i)(` + pointPat + `)` + sepPat +
		`(` + pointPat + `|` + presentPat + `)`)
	reMonth   = regexp.MustCompile(`(?i)` + monthPat)
	reYear    = regexp.MustCompile(yearPat)
	reNumMon  = regexp.MustCompile(`(0?[1-9]|1[0-2])\s*/`)
	rePresent = regexp.MustCompile(`(?i)^` + presentPat + `$`)
)

var monthIndex = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// dateSpan is one parsed date range from a resume line.
type dateSpan struct {
	text       string
	startYear  int
	startMonth int
	endYear    int
	endMonth   int
	isCurrent  bool
}

// findDateSpan reports the first date range on a line, if any. A line
// carrying one of these opens a new role during isolation.
func findDateSpan(line string) (dateSpan, bool) {
	m := reDateRange.FindStringSubmatch(line)
	if m == nil {
		return dateSpan{}, false
	}

	span := dateSpan{text: m[0]}
	span.startYear, span.startMonth = parsePoint(m[1])

	end := strings.TrimSpace(m[2])
	if rePresent.MatchString(end) {
		span.isCurrent = true
	} else {
		span.endYear, span.endMonth = parsePoint(end)
	}
	return span, true
}

// parsePoint extracts (year, month) from a single date point; month is 0
// when the point is a bare year.
func parsePoint(s string) (year, month int) {
	s = strings.ToLower(strings.TrimSpace(s))
	if m := reMonth.FindString(s); m != "" {
		month = monthIndex[m[:3]]
	} else if m := reNumMon.FindStringSubmatch(s); m != nil {
		month, _ = strconv.Atoi(m[1])
	}
	if y := reYear.FindString(s); y != "" {
		year, _ = strconv.Atoi(y)
	}
	return year, month
}
