package repomap

import (
	"strings"

	"github.com/mvp-joe/repo-map/internal/indexer/extraction"
)

// KindCoverage counts documented symbols of one kind.
type KindCoverage struct {
	Total        int
	Documented   int
	Undocumented []extraction.Symbol
}

// Percent returns the documented share in [0, 100].
func (k KindCoverage) Percent() float64 {
	if k.Total == 0 {
		return 0
	}
	return float64(k.Documented) / float64(k.Total) * 100
}

// Coverage is documentation coverage per kind. Private functions and
// methods (leading underscore) are not counted.
type Coverage struct {
	Classes   KindCoverage
	Functions KindCoverage
	Methods   KindCoverage
}

// AnalyzeCoverage computes documentation coverage over symbols.
func AnalyzeCoverage(symbols []extraction.Symbol) Coverage {
	var c Coverage
	for _, s := range symbols {
		var k *KindCoverage
		switch s.Kind {
		case extraction.KindClass:
			k = &c.Classes
		case extraction.KindFunction:
			k = &c.Functions
		case extraction.KindMethod:
			k = &c.Methods
		default:
			continue
		}
		if s.Kind != extraction.KindClass && strings.HasPrefix(s.Name, "_") {
			continue
		}

		k.Total++
		if s.DocSummary != "" {
			k.Documented++
		} else {
			k.Undocumented = append(k.Undocumented, s)
		}
	}
	return c
}
