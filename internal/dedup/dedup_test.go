package dedup

import (
	"testing"
	"time"

	"github.com/helixir/research-survey-service/internal/domain"
)

func testPaper(id, title string, authors ...string) *domain.Paper {
	p := &domain.Paper{
		CanonicalID: id,
		Title:       title,
	}
	for _, name := range authors {
		p.Authors = append(p.Authors, domain.Author{Name: name})
	}
	return p
}

func TestDeduplicate_Identifier(t *testing.T) {
	t.Parallel()

	t.Run("merges same canonical id keeping richer record", func(t *testing.T) {
		t.Parallel()

		sparse := testPaper("doi:10.1/x", "A Study", "Jane Doe")
		rich := testPaper("doi:10.1/x", "A Study", "Jane Doe")
		rich.Abstract = "An abstract."
		rich.PDFURL = "https://example.com/x.pdf"

		result, stats := Deduplicate([]*domain.Paper{sparse, rich})

		if len(result) != 1 {
			t.Fatalf("got %d papers, want 1", len(result))
		}
		if result[0].Abstract == "" {
			t.Error("richer record should have survived")
		}
		if stats.IdentifierDups != 1 {
			t.Errorf("IdentifierDups = %d, want 1", stats.IdentifierDups)
		}
	})

	t.Run("distinct ids and titles pass through", func(t *testing.T) {
		t.Parallel()

		result, stats := Deduplicate([]*domain.Paper{
			testPaper("doi:10.1/a", "First Paper", "Jane Doe"),
			testPaper("doi:10.1/b", "Second Paper", "John Smith"),
		})

		if len(result) != 2 {
			t.Fatalf("got %d papers, want 2", len(result))
		}
		if stats.IdentifierDups != 0 || stats.FuzzyDups != 0 {
			t.Errorf("stats = %+v, want zero", stats)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()

		result, _ := Deduplicate(nil)
		if len(result) != 0 {
			t.Errorf("got %d papers, want 0", len(result))
		}
	})
}

func TestDeduplicate_Fuzzy(t *testing.T) {
	t.Parallel()

	t.Run("same title and first author with different ids", func(t *testing.T) {
		t.Parallel()

		preprint := testPaper("arxiv:2301.00001", "Deep Learning for Protein Folding", "Jane Doe", "John Smith")
		published := testPaper("doi:10.1038/p1", "Deep Learning for Protein Folding", "Jane Doe", "John Smith")
		published.Abstract = "The published abstract."
		published.CitationCount = 12

		result, stats := Deduplicate([]*domain.Paper{preprint, published})

		if len(result) != 1 {
			t.Fatalf("got %d papers, want 1", len(result))
		}
		if result[0].CanonicalID != "doi:10.1038/p1" {
			t.Errorf("survivor = %s, want the richer published record", result[0].CanonicalID)
		}
		if stats.FuzzyDups != 1 {
			t.Errorf("FuzzyDups = %d, want 1", stats.FuzzyDups)
		}
	})

	t.Run("title match with abbreviated first author", func(t *testing.T) {
		t.Parallel()

		a := testPaper("arxiv:2301.00002", "Graph Neural Networks: A Survey", "J. Doe")
		b := testPaper("s2:abc", "Graph Neural Networks - A Survey", "Jane Doe")

		result, _ := Deduplicate([]*domain.Paper{a, b})

		if len(result) != 1 {
			t.Fatalf("got %d papers, want 1", len(result))
		}
	})

	t.Run("same title different authors stay separate", func(t *testing.T) {
		t.Parallel()

		a := testPaper("doi:10.1/a", "Introduction", "Jane Doe")
		b := testPaper("doi:10.1/b", "Introduction", "Alice Johnson")

		result, stats := Deduplicate([]*domain.Paper{a, b})

		if len(result) != 2 {
			t.Fatalf("got %d papers, want 2", len(result))
		}
		if stats.FuzzyDups != 0 {
			t.Errorf("FuzzyDups = %d, want 0", stats.FuzzyDups)
		}
	})

	t.Run("shared surname resolved by author list overlap", func(t *testing.T) {
		t.Parallel()

		// First authors share only a surname; the near-identical author
		// lists confirm the match.
		a := testPaper("arxiv:2301.00003", "Quantum Advantage Revisited", "Wei Chen", "Jane Doe", "John Smith")
		b := testPaper("doi:10.1/q", "Quantum Advantage Revisited", "Wen Chen", "Jane Doe", "John Smith")

		result, _ := Deduplicate([]*domain.Paper{a, b})

		if len(result) != 1 {
			t.Fatalf("got %d papers, want 1", len(result))
		}
	})

	t.Run("preserves first appearance order", func(t *testing.T) {
		t.Parallel()

		papers := []*domain.Paper{
			testPaper("doi:10.1/c", "Gamma", "A One"),
			testPaper("doi:10.1/a", "Alpha", "B Two"),
			testPaper("doi:10.1/b", "Beta", "C Three"),
		}

		result, _ := Deduplicate(papers)

		want := []string{"doi:10.1/c", "doi:10.1/a", "doi:10.1/b"}
		for i, id := range want {
			if result[i].CanonicalID != id {
				t.Errorf("result[%d] = %s, want %s", i, result[i].CanonicalID, id)
			}
		}
	})
}

func TestDeduplicate_BothStages(t *testing.T) {
	t.Parallel()

	date := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)

	// Eight raw records collapsing to six unique papers: one exact
	// identifier duplicate and one preprint/published pair.
	raw := []*domain.Paper{
		testPaper("doi:10.1/a", "Paper A", "Jane Doe"),
		testPaper("doi:10.1/b", "Paper B", "John Smith"),
		testPaper("doi:10.1/a", "Paper A", "Jane Doe"), // exact dup of first
		testPaper("arxiv:2301.1", "Paper C", "Alice Johnson"),
		testPaper("doi:10.1/c", "Paper C", "A. Johnson"), // fuzzy dup of previous
		testPaper("doi:10.1/d", "Paper D", "Bob Brown"),
		testPaper("openalex:W1", "Paper E", "Carol White"),
		testPaper("s2:xyz", "Paper F", "Dan Black"),
	}
	raw[5].PublicationDate = &date

	result, stats := Deduplicate(raw)

	if len(result) != 6 {
		t.Fatalf("got %d papers, want 6", len(result))
	}
	if stats.IdentifierDups != 1 {
		t.Errorf("IdentifierDups = %d, want 1", stats.IdentifierDups)
	}
	if stats.FuzzyDups != 1 {
		t.Errorf("FuzzyDups = %d, want 1", stats.FuzzyDups)
	}
}

func TestNormalizeTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{"Deep Learning", "deep learning"},
		{"  Deep   Learning  ", "deep learning"},
		{"Graph Neural Networks: A Survey", "graph neural networks a survey"},
		{"Self-Supervised Learning", "self supervised learning"},
		{"", ""},
		{"???", ""},
	}

	for _, tt := range tests {
		if got := normalizeTitle(tt.input); got != tt.expected {
			t.Errorf("normalizeTitle(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
