// Package repomap renders repo-map.md: a per-file symbol outline plus
// documentation coverage and likely duplicate classes and functions.
package repomap

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/mvp-joe/repo-map/internal/fsutil"
	"github.com/mvp-joe/repo-map/internal/indexer/extraction"
)

// undocumentedListLimit caps each "undocumented" list.
const undocumentedListLimit = 10

// Options controls rendering.
type Options struct {
	Root       string
	Thresholds Thresholds
}

// Report is the analysis rendered into the map.
type Report struct {
	Symbols          []extraction.Symbol
	Coverage         Coverage
	SimilarClasses   []Pair
	SimilarFunctions []Pair
	Clusters         [][]extraction.Symbol
}

// Analyze runs every analysis over symbols.
func Analyze(symbols []extraction.Symbol, th Thresholds) *Report {
	classes := FindSimilarClasses(symbols, th)
	functions := FindSimilarFunctions(symbols, th)

	var clusters [][]extraction.Symbol
	for _, c := range Clusters(append(append([]Pair{}, classes...), functions...)) {
		if len(c) > 2 {
			clusters = append(clusters, c)
		}
	}

	return &Report{
		Symbols:          symbols,
		Coverage:         AnalyzeCoverage(symbols),
		SimilarClasses:   classes,
		SimilarFunctions: functions,
		Clusters:         clusters,
	}
}

// WriteFile analyzes symbols and writes the map to path atomically.
func WriteFile(path string, symbols []extraction.Symbol, opts Options) (*Report, error) {
	report := Analyze(symbols, opts.Thresholds)

	var buf bytes.Buffer
	if err := Render(&buf, report, opts); err != nil {
		return nil, err
	}
	if err := fsutil.WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write repo map: %w", err)
	}
	return report, nil
}

// Render writes the markdown map for report.
func Render(w io.Writer, report *Report, opts Options) error {
	var b strings.Builder

	b.WriteString("# Repository Map\n\n")
	if opts.Root != "" {
		fmt.Fprintf(&b, "Generated from: %s\n", opts.Root)
	}
	fmt.Fprintf(&b, "Total symbols: %d\n\n", len(report.Symbols))

	writeCoverage(&b, report.Coverage)
	writePairs(&b, "Potentially Similar Classes", "These classes may have overlapping responsibilities:", report.SimilarClasses)
	writePairs(&b, "Potentially Similar Functions", "These functions may be duplicates:", report.SimilarFunctions)
	writeClusters(&b, report.Clusters)
	writeUndocumented(&b, report.Coverage)
	writeStructure(&b, report.Symbols)

	_, err := io.WriteString(w, b.String())
	return err
}

func writeCoverage(b *strings.Builder, c Coverage) {
	b.WriteString("## Documentation Coverage\n\n")
	kinds := []struct {
		label string
		cov   KindCoverage
	}{
		{"Classes", c.Classes},
		{"Functions", c.Functions},
		{"Methods", c.Methods},
	}
	for _, k := range kinds {
		if k.cov.Total == 0 {
			continue
		}
		fmt.Fprintf(b, "- **%s**: %d/%d (%.0f%% documented)\n", k.label, k.cov.Documented, k.cov.Total, k.cov.Percent())
	}
	b.WriteString("\n")
}

func writePairs(b *strings.Builder, title, intro string, pairs []Pair) {
	if len(pairs) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n%s\n\n", title, intro)
	for _, p := range pairs {
		fmt.Fprintf(b, "- **%s** (%s)\n", p.A.Name, p.A.Location())
		fmt.Fprintf(b, "  ↔ **%s** (%s)\n", p.B.Name, p.B.Location())
		fmt.Fprintf(b, "  Reason: %s\n", p.Reason())
		if p.A.DocSummary != "" {
			fmt.Fprintf(b, "  Doc 1: %s\n", p.A.DocSummary)
		}
		if p.B.DocSummary != "" {
			fmt.Fprintf(b, "  Doc 2: %s\n", p.B.DocSummary)
		}
		b.WriteString("\n")
	}
}

func writeClusters(b *strings.Builder, clusters [][]extraction.Symbol) {
	if len(clusters) == 0 {
		return
	}
	b.WriteString("## Similarity Clusters\n\n")
	for i, c := range clusters {
		names := make([]string, len(c))
		for j, s := range c {
			names[j] = fmt.Sprintf("%s (%s)", s.Name, s.Location())
		}
		fmt.Fprintf(b, "%d. %s\n", i+1, strings.Join(names, ", "))
	}
	b.WriteString("\n")
}

func writeUndocumented(b *strings.Builder, c Coverage) {
	if len(c.Classes.Undocumented) == 0 && len(c.Functions.Undocumented) == 0 {
		return
	}
	b.WriteString("## Documentation Opportunities\n\n")
	writeUndocumentedList(b, "Undocumented classes", c.Classes.Undocumented)
	writeUndocumentedList(b, "Undocumented functions", c.Functions.Undocumented)
}

func writeUndocumentedList(b *strings.Builder, title string, symbols []extraction.Symbol) {
	if len(symbols) == 0 {
		return
	}
	fmt.Fprintf(b, "**%s:**\n", title)
	for i, s := range symbols {
		if i == undocumentedListLimit {
			fmt.Fprintf(b, "- ... and %d more\n", len(symbols)-undocumentedListLimit)
			break
		}
		fmt.Fprintf(b, "- %s (%s)\n", s.Name, s.Location())
	}
	b.WriteString("\n")
}

func writeStructure(b *strings.Builder, symbols []extraction.Symbol) {
	b.WriteString("## Code Structure\n\n")

	byFile := make(map[string][]extraction.Symbol)
	for _, s := range symbols {
		byFile[s.FilePath] = append(byFile[s.FilePath], s)
	}
	files := make([]string, 0, len(byFile))
	for f := range byFile {
		files = append(files, f)
	}
	sort.Strings(files)

	for _, file := range files {
		fileSymbols := byFile[file]
		sort.SliceStable(fileSymbols, func(i, j int) bool { return fileSymbols[i].Line < fileSymbols[j].Line })

		fmt.Fprintf(b, "### %s\n\n", file)
		for _, cls := range fileSymbols {
			if cls.Kind != extraction.KindClass {
				continue
			}
			fmt.Fprintf(b, "**%s**%s\n", displaySignature(cls), missingDoc(cls))
			if cls.DocSummary != "" {
				fmt.Fprintf(b, "  %s\n", cls.DocSummary)
			}
			for _, m := range fileSymbols {
				if m.Kind != extraction.KindMethod || m.Parent != cls.Name || strings.HasPrefix(m.Name, "_") {
					continue
				}
				fmt.Fprintf(b, "  - %s%s\n", displaySignature(m), missingDoc(m))
				if m.DocSummary != "" {
					fmt.Fprintf(b, "      %s\n", m.DocSummary)
				}
			}
			b.WriteString("\n")
		}
		for _, fn := range fileSymbols {
			if fn.Kind != extraction.KindFunction || strings.HasPrefix(fn.Name, "_") {
				continue
			}
			fmt.Fprintf(b, "**%s**%s\n", displaySignature(fn), missingDoc(fn))
			if fn.DocSummary != "" {
				fmt.Fprintf(b, "  %s\n", fn.DocSummary)
			}
			b.WriteString("\n")
		}
	}
}

func displaySignature(s extraction.Symbol) string {
	if s.Signature != "" {
		return s.Signature
	}
	if s.Kind == extraction.KindClass {
		return "class " + s.Name
	}
	return s.Name
}

func missingDoc(s extraction.Symbol) string {
	if s.DocSummary == "" {
		return " (undocumented)"
	}
	return ""
}
