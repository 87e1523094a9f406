// Package skills canonicalizes skill tokens so vector-store filters are
// stable across alias spellings ("React.JS", "reactjs" and "react" all
// filter as "react").
package skills

import "strings"

// aliases maps lowercase skill spellings to their canonical form. Frozen
// at startup; extend here and run a force-reindex to migrate stored rows.
var aliases = map[string]string{
	"react.js":      "react",
	"reactjs":       "react",
	"react js":      "react",
	"angular.js":    "angular",
	"angularjs":     "angular",
	"angular js":    "angular",
	"vue.js":        "vue",
	"vuejs":         "vue",
	"node.js":       "nodejs",
	"node js":       "nodejs",
	"node":          "nodejs",
	"express.js":    "express",
	"expressjs":     "express",
	"next.js":       "nextjs",
	"nuxt.js":       "nuxtjs",
	"golang":        "go",
	"go lang":       "go",
	"c sharp":       "c#",
	"csharp":        "c#",
	"dot net":       ".net",
	"dotnet":        ".net",
	".net core":     ".net",
	"asp.net":       "asp.net",
	"postgres":      "postgresql",
	"postgre sql":   "postgresql",
	"mssql":         "sql server",
	"ms sql":        "sql server",
	"ms sql server": "sql server",
	"mongo":         "mongodb",
	"mongo db":      "mongodb",
	"elastic":       "elasticsearch",
	"elastic search": "elasticsearch",
	"k8s":           "kubernetes",
	"kube":          "kubernetes",
	"amazon web services": "aws",
	"google cloud platform": "gcp",
	"google cloud":  "gcp",
	"ms azure":      "azure",
	"microsoft azure": "azure",
	"js":            "javascript",
	"java script":   "javascript",
	"ts":            "typescript",
	"type script":   "typescript",
	"py":            "python",
	"tensor flow":   "tensorflow",
	"scikit learn":  "scikit-learn",
	"sklearn":       "scikit-learn",
	"power bi":      "powerbi",
	"ms excel":      "excel",
	"microsoft excel": "excel",
	"ci cd":         "ci/cd",
	"cicd":          "ci/cd",
	"rest api":      "rest",
	"restful":       "rest",
	"restful api":   "rest",
	"html5":         "html",
	"css3":          "css",
}

// Normalize returns the canonical form of one skill token: lowercased,
// trimmed, and mapped through the alias table. Idempotent.
func Normalize(skill string) string {
	s := strings.ToLower(strings.TrimSpace(skill))
	s = strings.Trim(s, ",;")
	if canonical, ok := aliases[s]; ok {
		return canonical
	}
	return s
}

// NormalizeList normalizes each element and deduplicates preserving first
// occurrence. Empty results are dropped.
func NormalizeList(list []string) []string {
	seen := make(map[string]bool, len(list))
	out := make([]string, 0, len(list))
	for _, s := range list {
		n := Normalize(s)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
