package dedup

import (
	"math"
	"testing"

	"github.com/helixir/research-survey-service/internal/domain"
)

func authorList(names ...string) []domain.Author {
	authors := make([]domain.Author, len(names))
	for i, name := range names {
		authors[i] = domain.Author{Name: name}
	}
	return authors
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNormalizeName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "John Smith", "john smith"},
		{"collapses whitespace", "  John   Smith  ", "john smith"},
		{"reorders last comma first", "SMITH, John", "john smith"},
		{"comma with empty given name", "Smith,", "smith"},
		{"drops apostrophe without splitting", "O'Brien", "obrien"},
		{"drops periods in initials", "J. K. Rowling", "j k rowling"},
		{"drops hyphen without splitting", "Mary-Jane Watson", "maryjane watson"},
		{"unicode letters survive", "José Martínez", "josé martínez"},
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
		{"already normalized", "john smith", "john smith"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := NormalizeName(tt.input); got != tt.want {
				t.Errorf("NormalizeName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCompareNames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "jane doe", "jane doe", scoreExact},
		{"initial against full given name", "j doe", "jane doe", scoreInitialAgree},
		{"full given name against initial", "jane doe", "j doe", scoreInitialAgree},
		{"surname only on one side", "doe", "jane doe", scoreSurnameOnly},
		{"surname only on both sides", "doe", "doe", scoreExact},
		{"shared surname different given names", "jane doe", "john doe", scoreGivenDiffers},
		{"different surnames", "jane doe", "jane smith", 0},
		{"initial with wrong letter", "k doe", "jane doe", scoreGivenDiffers},
		{"middle name mismatch scores low", "jane ann doe", "jane doe", scoreGivenDiffers},
		{"empty against name", "", "jane doe", 0},
		{"both empty", "", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := compareNames(tt.a, tt.b)
			if !almostEqual(got, tt.want) {
				t.Errorf("compareNames(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestAuthorOverlap(t *testing.T) {
	t.Parallel()

	t.Run("identical lists score one", func(t *testing.T) {
		t.Parallel()

		authors := authorList("Jane Doe", "John Smith")
		if got := AuthorOverlap(authors, authors); !almostEqual(got, 1.0) {
			t.Errorf("AuthorOverlap = %v, want 1.0", got)
		}
	})

	t.Run("order independent", func(t *testing.T) {
		t.Parallel()

		a := authorList("Jane Doe", "John Smith", "Ada Lovelace")
		b := authorList("John Smith", "Ada Lovelace", "Jane Doe")
		if got := AuthorOverlap(a, b); !almostEqual(got, 1.0) {
			t.Errorf("AuthorOverlap = %v, want 1.0", got)
		}
	})

	t.Run("symmetric", func(t *testing.T) {
		t.Parallel()

		a := authorList("Jane Doe", "John Smith")
		b := authorList("J. Doe", "Ada Lovelace")
		if x, y := AuthorOverlap(a, b), AuthorOverlap(b, a); !almostEqual(x, y) {
			t.Errorf("AuthorOverlap not symmetric: %v vs %v", x, y)
		}
	})

	t.Run("initials still match", func(t *testing.T) {
		t.Parallel()

		a := authorList("J. Doe", "J. Smith")
		b := authorList("Jane Doe", "John Smith")
		want := (scoreInitialAgree + scoreInitialAgree) / 2
		if got := AuthorOverlap(a, b); !almostEqual(got, want) {
			t.Errorf("AuthorOverlap = %v, want %v", got, want)
		}
	})

	t.Run("disjoint lists score zero", func(t *testing.T) {
		t.Parallel()

		a := authorList("Jane Doe")
		b := authorList("Ada Lovelace")
		if got := AuthorOverlap(a, b); got != 0 {
			t.Errorf("AuthorOverlap = %v, want 0", got)
		}
	})

	t.Run("partial overlap", func(t *testing.T) {
		t.Parallel()

		a := authorList("Jane Doe", "John Smith")
		b := authorList("Jane Doe", "Ada Lovelace")
		// One exact pair over a union of three.
		want := scoreExact / 3
		if got := AuthorOverlap(a, b); !almostEqual(got, want) {
			t.Errorf("AuthorOverlap = %v, want %v", got, want)
		}
	})

	t.Run("unequal lengths", func(t *testing.T) {
		t.Parallel()

		a := authorList("Jane Doe")
		b := authorList("Jane Doe", "John Smith", "Ada Lovelace")
		want := scoreExact / 3
		if got := AuthorOverlap(a, b); !almostEqual(got, want) {
			t.Errorf("AuthorOverlap = %v, want %v", got, want)
		}
	})

	t.Run("each author claimed once", func(t *testing.T) {
		t.Parallel()

		// Both abbreviated entries compete for the single full name; only
		// one may claim it.
		a := authorList("J. Doe", "J. Doe")
		b := authorList("Jane Doe")
		want := scoreInitialAgree / 2
		if got := AuthorOverlap(a, b); !almostEqual(got, want) {
			t.Errorf("AuthorOverlap = %v, want %v", got, want)
		}
	})

	t.Run("empty lists", func(t *testing.T) {
		t.Parallel()

		if got := AuthorOverlap(nil, authorList("Jane Doe")); got != 0 {
			t.Errorf("AuthorOverlap(nil, list) = %v, want 0", got)
		}
		if got := AuthorOverlap(nil, nil); got != 0 {
			t.Errorf("AuthorOverlap(nil, nil) = %v, want 0", got)
		}
	})
}
