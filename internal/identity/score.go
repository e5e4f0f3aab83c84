package identity

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"github.com/sells-group/product-analyzer/internal/model"
)

// TrustedDomains are lookup sites whose pages earn a trust bonus.
var TrustedDomains = []string{
	"eandata.com",
	"barcodelookup.com",
	"upcitemdb.com",
	"openfoodfacts.org",
}

// regionTerms earn a bonus for codes with the 54 prefix (Belgium and
// Luxembourg).
var regionTerms = []string{"belgique", "belgium", "belgie", "luxembourg"}

// Score rates a candidate in [0, 1].
func Score(c model.IdentityCandidate, code string) float64 {
	var s float64
	if c.Name != "" {
		s += 0.2
	}
	if c.MatchedOnSource {
		s += 0.5
	}
	if isTrusted(c.SourceDomain) {
		s += 0.2
	}
	if c.Brand != "" {
		s += 0.1
	}
	if c.Category != "" {
		s += 0.1
	}
	if strings.HasPrefix(code, "54") && mentionsRegion(c) {
		s += 0.1
	}
	return min(math.Round(s*100)/100, 1.0)
}

func isTrusted(domain string) bool {
	domain = strings.ToLower(domain)
	for _, d := range TrustedDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}

func mentionsRegion(c model.IdentityCandidate) bool {
	text := strings.ToLower(c.Name + " " + c.Brand)
	for _, t := range regionTerms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

// Dedupe drops candidates whose (lower-cased name, domain) was already seen.
// The first occurrence wins.
func Dedupe(cands []model.IdentityCandidate) []model.IdentityCandidate {
	seen := make(map[string]struct{}, len(cands))
	out := make([]model.IdentityCandidate, 0, len(cands))
	for _, c := range cands {
		key := strings.ToLower(c.Name) + "\x00" + c.SourceDomain
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Rank scores candidates, keeps those at or above minScore, sorts them by
// score (stable, descending) and returns at most topN.
func Rank(cands []model.IdentityCandidate, code string, minScore float64, topN int) []model.IdentityCandidate {
	out := make([]model.IdentityCandidate, 0, len(cands))
	for _, c := range cands {
		c.Score = Score(c, code)
		if c.Score >= minScore {
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, func(a, b model.IdentityCandidate) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}
