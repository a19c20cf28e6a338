// Package dedup collapses paper records that describe the same work, first
// by canonical identifier and then by fuzzy title and author matching.
package dedup

import (
	"strings"
	"unicode"

	"github.com/helixir/research-survey-service/internal/domain"
)

const (
	// firstAuthorThreshold is the minimum name similarity for two first
	// authors to count as the same person during fuzzy matching.
	firstAuthorThreshold = 0.7

	// authorOverlapThreshold confirms a fuzzy match through full author
	// list overlap when the first-author comparison is inconclusive.
	authorOverlapThreshold = 0.5
)

// Stats reports how many records each deduplication stage removed.
type Stats struct {
	// IdentifierDups is the number of records dropped because another
	// record carried the same canonical ID.
	IdentifierDups int

	// FuzzyDups is the number of records dropped by title and author
	// matching across records with different canonical IDs.
	FuzzyDups int
}

// Deduplicate collapses records describing the same paper into one.
//
// Two stages run in order. First, records sharing a canonical ID are merged:
// the same DOI retrieved from two sources is trivially the same paper.
// Second, records that survived stage one are compared by normalized title
// and author identity, catching the same paper indexed under different
// identifier schemes (an arXiv preprint and its published DOI, for example).
//
// Whenever two records merge, the one populating more fields wins, so the
// surviving record is never poorer than either input. Input records are not
// mutated. The relative order of surviving records follows first appearance.
func Deduplicate(papers []*domain.Paper) ([]*domain.Paper, Stats) {
	var stats Stats
	if len(papers) == 0 {
		return nil, stats
	}

	// Stage one: exact canonical ID.
	byID := make(map[string]int, len(papers))
	unique := make([]*domain.Paper, 0, len(papers))
	for _, p := range papers {
		if p == nil || p.CanonicalID == "" {
			continue
		}
		idx, seen := byID[p.CanonicalID]
		if !seen {
			byID[p.CanonicalID] = len(unique)
			unique = append(unique, p)
			continue
		}
		stats.IdentifierDups++
		if p.Richness() > unique[idx].Richness() {
			unique[idx] = p
		}
	}

	// Stage two: fuzzy title plus author identity.
	byTitle := make(map[string]int, len(unique))
	result := make([]*domain.Paper, 0, len(unique))
	for _, p := range unique {
		key := normalizeTitle(p.Title)
		if key == "" {
			result = append(result, p)
			continue
		}

		idx, seen := byTitle[key]
		if seen && samePaper(result[idx], p) {
			stats.FuzzyDups++
			if p.Richness() > result[idx].Richness() {
				result[idx] = p
			}
			continue
		}
		if !seen {
			byTitle[key] = len(result)
		}
		result = append(result, p)
	}

	return result, stats
}

// samePaper decides whether two records with identical normalized titles
// describe the same paper. First authors are compared with fuzzy name
// matching; when that is inconclusive (shared surname, different or missing
// first names) the full author lists decide.
func samePaper(a, b *domain.Paper) bool {
	simA := NormalizeName(a.FirstAuthor())
	simB := NormalizeName(b.FirstAuthor())

	// A bare title match is not enough on its own, but two records that
	// both lack authors have nothing else to distinguish them.
	if simA == "" && simB == "" {
		return true
	}

	sim := compareNames(simA, simB)
	if sim >= firstAuthorThreshold {
		return true
	}
	if sim <= 0 {
		return false
	}

	return AuthorOverlap(a.Authors, b.Authors) >= authorOverlapThreshold
}

// normalizeTitle produces a comparison key for a paper title: lowercase,
// letters and digits only, single spaces.
func normalizeTitle(title string) string {
	title = strings.ToLower(strings.TrimSpace(title))
	if title == "" {
		return ""
	}

	var sb strings.Builder
	sb.Grow(len(title))
	prevSpace := false
	for _, r := range title {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-':
			if !prevSpace && sb.Len() > 0 {
				sb.WriteRune(' ')
				prevSpace = true
			}
		}
	}

	return strings.TrimRight(sb.String(), " ")
}
