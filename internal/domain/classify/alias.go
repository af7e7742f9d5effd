package classify

import (
	"sort"
	"strings"

	"github.com/cloudflare/ahocorasick"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/FACorreiaa/mailspend/internal/domain/ledger"
)

// Alias resolution confidence by match kind. Exact history hits are the
// strongest evidence; substring and fuzzy hits are progressively weaker.
const (
	exactMatchConfidence     = 0.95
	substringMatchConfidence = 0.85
)

// Alias maps a vendor spelling to its canonical name and the category
// the ledger history associates with it.
type Alias struct {
	Canonical string
	Category  string
	Count     int
}

// AliasTable resolves vendor name variations against ledger history.
// Lookup order: exact normalized match, Aho-Corasick substring match
// (one pass over the input regardless of table size), then fuzzy match
// for misspellings.
type AliasTable struct {
	matcher        *ahocorasick.Matcher
	patterns       []string
	byPattern      map[string]Alias
	categories     []string
	fuzzyThreshold int
}

// BuildAliasTable constructs the table from vendor history stats. When
// the same vendor maps to several categories, the most frequent wins.
func BuildAliasTable(stats []ledger.VendorStat, fuzzyThreshold int) *AliasTable {
	t := &AliasTable{
		byPattern:      make(map[string]Alias, len(stats)),
		fuzzyThreshold: fuzzyThreshold,
	}

	categoryCounts := make(map[string]int)
	for _, s := range stats {
		categoryCounts[s.Category] += s.Count

		pattern := strings.ToUpper(strings.TrimSpace(s.Vendor))
		if pattern == "" {
			continue
		}
		if existing, ok := t.byPattern[pattern]; ok && existing.Count >= s.Count {
			continue
		}
		t.byPattern[pattern] = Alias{
			Canonical: strings.TrimSpace(s.Vendor),
			Category:  s.Category,
			Count:     s.Count,
		}
	}

	t.patterns = make([]string, 0, len(t.byPattern))
	for pattern := range t.byPattern {
		t.patterns = append(t.patterns, pattern)
	}
	sort.Strings(t.patterns)

	if len(t.patterns) > 0 {
		bytePatterns := make([][]byte, len(t.patterns))
		for i, p := range t.patterns {
			bytePatterns[i] = []byte(p)
		}
		t.matcher = ahocorasick.NewMatcher(bytePatterns)
	}

	t.categories = make([]string, 0, len(categoryCounts))
	for c := range categoryCounts {
		t.categories = append(t.categories, c)
	}
	sort.Slice(t.categories, func(i, j int) bool {
		if categoryCounts[t.categories[i]] != categoryCounts[t.categories[j]] {
			return categoryCounts[t.categories[i]] > categoryCounts[t.categories[j]]
		}
		return t.categories[i] < t.categories[j]
	})

	return t
}

// Categories returns known categories ordered by transaction count.
func (t *AliasTable) Categories() []string {
	return t.categories
}

// Resolve maps a vendor spelling to its alias. The returned confidence
// reflects the match kind; ok is false when nothing in history comes
// close enough.
func (t *AliasTable) Resolve(vendor string) (Alias, float64, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(vendor))
	if normalized == "" || len(t.patterns) == 0 {
		return Alias{}, 0, false
	}

	if alias, ok := t.byPattern[normalized]; ok {
		return alias, exactMatchConfidence, true
	}

	if alias, ok := t.substringMatch(normalized); ok {
		return alias, substringMatchConfidence, true
	}

	if alias, score, ok := t.fuzzyMatch(normalized); ok {
		return alias, float64(score) / 100, true
	}

	return Alias{}, 0, false
}

// substringMatch finds known vendors embedded in the input, e.g. a raw
// processor string "POS ACME COFFEE LISBOA" around a known "ACME COFFEE".
// Ties go to the vendor seen most often.
func (t *AliasTable) substringMatch(normalized string) (Alias, bool) {
	hits := t.matcher.Match([]byte(normalized))
	if len(hits) == 0 {
		return Alias{}, false
	}

	var best Alias
	found := false
	for _, idx := range hits {
		if idx < 0 || idx >= len(t.patterns) {
			continue
		}
		alias := t.byPattern[t.patterns[idx]]
		if !found || alias.Count > best.Count {
			best = alias
			found = true
		}
	}
	return best, found
}

// fuzzyMatch catches misspellings ("ACME COFEE"). The score converts the
// edit distance into a 0-100 similarity and must clear the threshold.
func (t *AliasTable) fuzzyMatch(normalized string) (Alias, int, bool) {
	var best Alias
	bestScore := t.fuzzyThreshold - 1

	for _, pattern := range t.patterns {
		rank := fuzzy.RankMatchFold(normalized, pattern)
		if rank < 0 {
			rank = fuzzy.RankMatchFold(pattern, normalized)
		}
		if rank < 0 {
			continue
		}

		longest := len(pattern)
		if len(normalized) > longest {
			longest = len(normalized)
		}
		if longest == 0 {
			continue
		}
		score := 100 * (longest - rank) / longest
		if score > bestScore {
			bestScore = score
			best = t.byPattern[pattern]
		}
	}

	if bestScore < t.fuzzyThreshold {
		return Alias{}, 0, false
	}
	return best, bestScore, true
}
