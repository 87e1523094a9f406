package extract

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/talentops/resumeflow/llm"
)

// The domain extractor is a hybrid: one LLM call over the isolated latest
// role, validated against deterministic rules before acceptance, with a
// pure rule chain as the fallback. LLMs love to answer "AWS" for anyone
// who ever touched S3; the rules exist to stop that.

// Platform domains require an explicit platform-role title in the text.
// A platform named only as a skill never selects the platform domain.
var platformRoleRes = map[string]*regexp.Regexp{
	"AWS":          regexp.MustCompile(`(?i)\baws\s+(solutions?\s+)?(architect|engineer|developer|consultant|administrator|devops|specialist)`),
	"Azure":        regexp.MustCompile(`(?i)\bazure\s+(solutions?\s+)?(architect|engineer|developer|consultant|administrator|devops|specialist)`),
	"Google Cloud": regexp.MustCompile(`(?i)\b(gcp|google\s+cloud)\s+(architect|engineer|developer|consultant|administrator)`),
	"Salesforce":   regexp.MustCompile(`(?i)\bsalesforce\s+(developer|admin(istrator)?|consultant|architect|engineer)`),
	"SAP":          regexp.MustCompile(`(?i)\bsap\s+(consultant|developer|analyst|architect|administrator|abap|basis|fico|hana|mm|sd)\b`),
	"Oracle":       regexp.MustCompile(`(?i)\boracle\s+(dba|developer|consultant|architect|administrator|apps|ebs|fusion)\b`),
	"Microsoft":    regexp.MustCompile(`(?i)\b(dynamics\s*365|power\s+platform|sharepoint)\s+(developer|consultant|architect|administrator)`),
	"ServiceNow":   regexp.MustCompile(`(?i)\bservicenow\s+(developer|admin(istrator)?|consultant|architect)`),
	"Workday":      regexp.MustCompile(`(?i)\bworkday\s+(consultant|analyst|developer|administrator|architect|integration)`),
	"Adobe":        regexp.MustCompile(`(?i)\badobe\s+(aem\s+|experience\s+manager\s+|analytics\s+|campaign\s+)?(developer|consultant|architect)`),
}

// employerRule maps a known employer token to its business domain. The
// map trumps the LLM answer whenever the employer appears in the role
// body. Ordered so matching is deterministic.
type employerRule struct {
	token, domain string
}

var employerRules = []employerRule{
	{"bank of america", "Banking"},
	{"jpmorgan", "Banking"},
	{"jp morgan", "Banking"},
	{"wells fargo", "Banking"},
	{"goldman sachs", "Banking"},
	{"morgan stanley", "Banking"},
	{"citibank", "Banking"},
	{"citigroup", "Banking"},
	{"barclays", "Banking"},
	{"hsbc", "Banking"},
	{"standard chartered", "Banking"},
	{"american express", "Banking"},
	{"capital one", "Banking"},
	{"hdfc bank", "Banking"},
	{"icici bank", "Banking"},
	{"axis bank", "Banking"},
	{"state farm", "Insurance"},
	{"allstate", "Insurance"},
	{"geico", "Insurance"},
	{"progressive insurance", "Insurance"},
	{"unitedhealth", "Healthcare"},
	{"kaiser permanente", "Healthcare"},
	{"mayo clinic", "Healthcare"},
	{"cleveland clinic", "Healthcare"},
	{"cvs health", "Healthcare"},
	{"aetna", "Healthcare"},
	{"cigna", "Healthcare"},
	{"pfizer", "Pharmaceuticals"},
	{"novartis", "Pharmaceuticals"},
	{"astrazeneca", "Pharmaceuticals"},
	{"glaxosmithkline", "Pharmaceuticals"},
	{"johnson & johnson", "Pharmaceuticals"},
	{"walmart", "Retail"},
	{"target corporation", "Retail"},
	{"costco", "Retail"},
	{"kroger", "Retail"},
	{"home depot", "Retail"},
	{"best buy", "Retail"},
	{"flipkart", "Retail"},
	{"verizon", "Telecom"},
	{"at&t", "Telecom"},
	{"t-mobile", "Telecom"},
	{"vodafone", "Telecom"},
}

// Sector keyword guards: two or more hits force the sector regardless of
// what the model said.
var (
	healthcareKeywords = []string{"patient", "clinical", "hospital", "ehr", "emr",
		"hipaa", "medical records", "healthcare", "pharmacy", "diagnosis", "hl7", "icd-10"}
	bankingKeywords = []string{"banking", "loan", "mortgage", "credit card", "payments",
		"aml", "kyc", "fraud detection", "swift", "core banking", "treasury", "lending"}
	retailKeywords = []string{"retail", "e-commerce", "ecommerce", "point of sale",
		"pos systems", "inventory management", "merchandising", "omnichannel", "storefront", "cart"}
)

// domainKeywords holds the weighted vocabulary for one domain: high
// counts 10, medium 5, low 2.
type domainKeywords struct {
	high   []string
	medium []string
	low    []string
}

var domainScoring = map[string]domainKeywords{
	"Banking": {
		high:   []string{"core banking", "aml", "kyc", "mortgage underwriting"},
		medium: []string{"banking", "loan", "payments", "credit card", "treasury"},
		low:    []string{"finance", "transactions", "accounts"},
	},
	"Healthcare": {
		high:   []string{"hipaa", "ehr", "emr", "hl7"},
		medium: []string{"patient", "clinical", "hospital", "medical"},
		low:    []string{"health", "care", "pharmacy"},
	},
	"Pharmaceuticals": {
		high:   []string{"pharmacovigilance", "clinical trials", "gxp", "fda submission"},
		medium: []string{"pharmaceutical", "drug development", "regulatory affairs"},
		low:    []string{"pharma", "laboratory", "formulation"},
	},
	"Insurance": {
		high:   []string{"underwriting", "claims adjudication", "actuarial"},
		medium: []string{"insurance", "policyholder", "claims processing"},
		low:    []string{"policy", "premium", "claims"},
	},
	"Retail": {
		high:   []string{"omnichannel", "merchandising", "planogram"},
		medium: []string{"retail", "e-commerce", "point of sale", "inventory management"},
		low:    []string{"store", "sales", "inventory"},
	},
	"Telecom": {
		high:   []string{"5g core", "oss/bss", "network provisioning"},
		medium: []string{"telecom", "lte", "voip", "billing systems"},
		low:    []string{"network", "carrier", "wireless"},
	},
	"Manufacturing": {
		high:   []string{"shop floor", "mes integration", "lean manufacturing"},
		medium: []string{"manufacturing", "production line", "quality control", "six sigma"},
		low:    []string{"plant", "assembly", "fabrication"},
	},
	"Education": {
		high:   []string{"lms administration", "curriculum development"},
		medium: []string{"education", "e-learning", "teaching", "student information"},
		low:    []string{"school", "training", "courses"},
	},
	"Logistics": {
		high:   []string{"freight forwarding", "warehouse management system"},
		medium: []string{"logistics", "supply chain", "shipment", "fleet"},
		low:    []string{"warehouse", "delivery", "transport"},
	},
	"Information Technology": {
		high:   []string{"software development lifecycle", "managed it services"},
		medium: []string{"software development", "it consulting", "devops", "cloud migration"},
		low:    []string{"software", "application", "technology"},
	},
}

// domainPrecedence resolves ties: platform domains first (they only enter
// when their role regex fired), then business sectors, generic IT last.
var domainPrecedence = []string{
	"AWS", "Azure", "Google Cloud", "Salesforce", "SAP", "Oracle",
	"Microsoft", "ServiceNow", "Workday", "Adobe",
	"Banking", "Insurance", "Healthcare", "Pharmaceuticals", "Retail",
	"Telecom", "Manufacturing", "Education", "Logistics",
	"Information Technology",
}

const domainPromptHeader = `Identify the industry domain the candidate most recently worked in,
based ONLY on the role description below. Answer with the business sector of the
employer (e.g. "Banking", "Healthcare", "Retail"), not the candidate's technical
specialty. If the domain is genuinely unclear, answer null.
Return ONLY a JSON object: {"domain": "<domain or null>"}

Role description:
`

// Domain extracts the candidate's industry domain. Returns "" when no
// rule matches; null is the correct answer for ambiguous resumes.
func (e *Extractor) Domain(ctx context.Context, resumeText string) (string, error) {
	body, ok := IsolateLatestRole(resumeText)
	if !ok {
		if block, found := ExperienceBlock(resumeText); found {
			body = block
		} else {
			body = head(resumeText, 2000)
		}
	}
	if strings.TrimSpace(body) == "" {
		return "", nil
	}

	raw, err := e.complete(ctx, domainPromptHeader+body, e.heavy)
	var llmDomain string
	if err != nil {
		slog.Warn("extract: domain completion failed, using rules only", "error", err)
	} else if v, found := llm.CoerceString(raw, "domain"); found {
		llmDomain = canonicalDomain(v)
	}

	if llmDomain != "" && validateDomain(llmDomain, body) {
		return llmDomain, nil
	}
	return ruleDomain(body), nil
}

// canonicalDomain maps a free-form model answer onto the precedence list.
// Unrecognized answers pass through trimmed so validation still sees them.
func canonicalDomain(s string) string {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	for _, d := range domainPrecedence {
		if strings.ToLower(d) == lower {
			return d
		}
	}
	switch lower {
	case "it", "information technology (it)", "software", "tech":
		return "Information Technology"
	case "pharma", "pharmaceutical":
		return "Pharmaceuticals"
	case "gcp":
		return "Google Cloud"
	case "bank", "financial services", "banking & finance":
		return "Banking"
	}
	return s
}

// validateDomain checks the LLM's answer against the deterministic
// guards. A failed guard means the answer is rejected as hallucination
// and the rule chain decides instead.
func validateDomain(domain, body string) bool {
	lowerBody := strings.ToLower(body)

	// Platform answers need an explicit platform-role title.
	if re, isPlatform := platformRoleRes[domain]; isPlatform {
		return re.MatchString(body)
	}

	// A known employer in the body pins the domain.
	for _, rule := range employerRules {
		if strings.Contains(lowerBody, rule.token) {
			return domain == rule.domain
		}
	}

	// Two or more sector keywords pin the sector.
	if keywordHits(lowerBody, healthcareKeywords) >= 2 {
		return domain == "Healthcare"
	}
	if keywordHits(lowerBody, bankingKeywords) >= 2 {
		return domain == "Banking"
	}
	if keywordHits(lowerBody, retailKeywords) >= 2 {
		return domain == "Retail"
	}
	return true
}

// ruleDomain is the deterministic fallback chain: employer map, sector
// keyword guards, platform-role regexes, then the weighted scorer.
func ruleDomain(body string) string {
	lowerBody := strings.ToLower(body)

	for _, rule := range employerRules {
		if strings.Contains(lowerBody, rule.token) {
			return rule.domain
		}
	}
	if keywordHits(lowerBody, healthcareKeywords) >= 2 {
		return "Healthcare"
	}
	if keywordHits(lowerBody, bankingKeywords) >= 2 {
		return "Banking"
	}
	if keywordHits(lowerBody, retailKeywords) >= 2 {
		return "Retail"
	}
	for _, d := range domainPrecedence {
		if re, isPlatform := platformRoleRes[d]; isPlatform && re.MatchString(body) {
			return d
		}
	}
	return scoredDomain(lowerBody)
}

// scoredDomain runs the weighted keyword scorer over every domain and
// keeps the qualifiers: score >= 10 and at least one high hit or two
// medium hits. Multiple qualifiers resolve by precedence.
func scoredDomain(lowerBody string) string {
	qualified := map[string]bool{}
	for domain, kw := range domainScoring {
		high := keywordHits(lowerBody, kw.high)
		medium := keywordHits(lowerBody, kw.medium)
		low := keywordHits(lowerBody, kw.low)
		score := high*10 + medium*5 + low*2
		if score >= 10 && (high >= 1 || medium >= 2) {
			qualified[domain] = true
		}
	}
	for _, d := range domainPrecedence {
		if qualified[d] {
			return d
		}
	}
	return ""
}

// keywordHits counts how many distinct keywords from the list appear in
// the lowercased body.
func keywordHits(lowerBody string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(lowerBody, kw) {
			n++
		}
	}
	return n
}
