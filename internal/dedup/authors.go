package dedup

import (
	"strings"
	"unicode"

	"github.com/helixir/research-survey-service/internal/domain"
)

// Similarity scores returned by compareNames. Two names with different
// surnames always score zero.
const (
	scoreExact        = 1.0
	scoreInitialAgree = 0.9
	scoreSurnameOnly  = 0.7
	scoreGivenDiffers = 0.3
)

// AuthorOverlap scores how much two author lists look like the same group
// of people, from 0 (disjoint or empty) to 1 (identical). Each author in
// the shorter list greedily claims the most similar unclaimed author in the
// longer one, and the summed pair scores are divided by the size of the
// union. The result does not depend on argument order.
func AuthorOverlap(a, b []domain.Author) float64 {
	small := normalizedNames(a)
	large := normalizedNames(b)
	if len(small) == 0 || len(large) == 0 {
		return 0
	}
	if len(small) > len(large) {
		small, large = large, small
	}

	claimed := make([]bool, len(large))
	matched := 0
	sum := 0.0
	for _, name := range small {
		best, bestAt := 0.0, -1
		for i, candidate := range large {
			if claimed[i] {
				continue
			}
			if s := compareNames(name, candidate); s > best {
				best, bestAt = s, i
			}
		}
		if bestAt >= 0 {
			claimed[bestAt] = true
			matched++
			sum += best
		}
	}

	union := len(small) + len(large) - matched
	if union == 0 {
		return 0
	}
	return sum / float64(union)
}

// NormalizeName produces a comparison key for an author name: lowercase,
// "Last, First" reordered to "First Last", letters and single spaces only.
// Punctuation inside a token is dropped without splitting it, so both
// "O'Brien" and "Mary-Jane" stay one token.
func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}

	if last, first, found := strings.Cut(name, ","); found {
		last = strings.TrimSpace(last)
		first = strings.TrimSpace(first)
		if first == "" {
			name = last
		} else {
			name = first + " " + last
		}
	}

	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r):
			return r
		case unicode.IsSpace(r):
			return ' '
		default:
			return -1
		}
	}, name)

	return strings.Join(strings.Fields(cleaned), " ")
}

// parsedName splits a normalized name into given-name tokens and a surname.
// The final token is taken as the surname, which holds for the "First Last"
// order NormalizeName guarantees.
type parsedName struct {
	given   []string
	surname string
}

func parseName(normalized string) parsedName {
	fields := strings.Fields(normalized)
	if len(fields) == 0 {
		return parsedName{}
	}
	return parsedName{given: fields[:len(fields)-1], surname: fields[len(fields)-1]}
}

// compareNames scores two normalized names. The surname acts as a gate:
// without a surname match the score is zero. Beyond that, the given names
// decide between a full match, an abbreviated-initial match, a
// surname-only match, and a likely different person.
func compareNames(a, b string) float64 {
	pa, pb := parseName(a), parseName(b)
	if pa.surname == "" || pa.surname != pb.surname {
		return 0
	}

	switch {
	case len(pa.given) == 0 || len(pb.given) == 0:
		return scoreSurnameOnly
	case strings.Join(pa.given, " ") == strings.Join(pb.given, " "):
		return scoreExact
	case initialsAgree(pa.given[0], pb.given[0]):
		return scoreInitialAgree
	default:
		return scoreGivenDiffers
	}
}

// initialsAgree reports whether one token is a single-letter initial of the
// other, as when "j smith" cites the same person as "jane smith".
func initialsAgree(a, b string) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	return len(a) == 1 && len(b) > 1 && a[0] == b[0]
}

func normalizedNames(authors []domain.Author) []string {
	names := make([]string, len(authors))
	for i, author := range authors {
		names[i] = NormalizeName(author.Name)
	}
	return names
}
