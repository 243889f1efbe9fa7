package news

import "strings"

// EconomicKeywords decide whether an article concerns the tracked domain.
// Matching is plain substring containment, so "jobs" also matches "jobsite".
var EconomicKeywords = []string{
	"gold",
	"federal reserve",
	"fed",
	"inflation",
	"cpi",
	"interest rate",
	"yield",
	"dollar",
	"dxy",
	"economy",
	"economic",
	"market",
	"trading",
	"unemployment",
	"jobs",
	"nfp",
	"gdp",
	"recession",
	"growth",
	"monetary policy",
	"fiscal",
	"treasury",
	"bond",
	"commodity",
}

// IsRelevant reports whether the title or description of c mentions any of
// EconomicKeywords.
func IsRelevant(c Candidate) bool {
	text := strings.ToLower(c.Title) + " " + strings.ToLower(c.Description)
	for _, k := range EconomicKeywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// FilterRelevant returns the relevant candidates in input order.
func FilterRelevant(candidates []Candidate) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if IsRelevant(c) {
			out = append(out, c)
		}
	}
	return out
}
