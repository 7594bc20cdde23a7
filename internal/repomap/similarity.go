package repomap

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/mvp-joe/repo-map/internal/indexer/extraction"
)

// Minimum doc summary lengths before docs are compared at all. Short docs
// ("Returns the id.") look alike without meaning anything.
const (
	minClassDocLen    = 30
	minFunctionDocLen = 20
)

// Thresholds are the ratios at or above which two symbols are reported.
type Thresholds struct {
	Name float64
	Doc  float64
}

// DefaultThresholds match the configuration defaults.
var DefaultThresholds = Thresholds{Name: 0.75, Doc: 0.65}

// Pair is two symbols in different files that look like duplicates.
type Pair struct {
	A, B    extraction.Symbol
	Reasons []string
}

// Reason joins the reasons for display.
func (p Pair) Reason() string {
	return strings.Join(p.Reasons, ", ")
}

// Similarity is the matching-blocks ratio of two strings, ignoring case and
// underscores, in [0, 1].
func Similarity(a, b string) float64 {
	return difflib.NewMatcher(chars(normalize(a)), chars(normalize(b))).Ratio()
}

func normalize(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), "_", "")
}

func chars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// FindSimilarClasses compares every pair of classes in different files.
// Test classes are skipped.
func FindSimilarClasses(symbols []extraction.Symbol, th Thresholds) []Pair {
	classes := filter(symbols, func(s extraction.Symbol) bool {
		return s.Kind == extraction.KindClass && !strings.HasPrefix(s.Name, "Test")
	})
	return findSimilar(classes, th, minClassDocLen)
}

// FindSimilarFunctions compares every pair of top-level functions in
// different files. Private and test functions are skipped.
func FindSimilarFunctions(symbols []extraction.Symbol, th Thresholds) []Pair {
	functions := filter(symbols, func(s extraction.Symbol) bool {
		return s.Kind == extraction.KindFunction &&
			!strings.HasPrefix(s.Name, "_") &&
			!strings.HasPrefix(s.Name, "test_")
	})
	return findSimilar(functions, th, minFunctionDocLen)
}

func findSimilar(candidates []extraction.Symbol, th Thresholds, minDocLen int) []Pair {
	var pairs []Pair
	for i := range candidates {
		for j := i + 1; j < len(candidates); j++ {
			a, b := candidates[i], candidates[j]
			if a.FilePath == b.FilePath {
				continue
			}

			var reasons []string
			if ratio := Similarity(a.Name, b.Name); ratio >= th.Name {
				reasons = append(reasons, fmt.Sprintf("similar names (%.0f%%)", ratio*100))
			}
			if len(a.DocSummary) >= minDocLen && len(b.DocSummary) >= minDocLen {
				if ratio := Similarity(a.DocSummary, b.DocSummary); ratio >= th.Doc {
					reasons = append(reasons, fmt.Sprintf("similar docstrings (%.0f%%)", ratio*100))
				}
			}

			if len(reasons) > 0 {
				pairs = append(pairs, Pair{A: a, B: b, Reasons: reasons})
			}
		}
	}
	return pairs
}

func filter(symbols []extraction.Symbol, keep func(extraction.Symbol) bool) []extraction.Symbol {
	var out []extraction.Symbol
	for _, s := range symbols {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}
