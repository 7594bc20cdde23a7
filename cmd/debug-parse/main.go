package main

import (
	"fmt"
	"log"
	"os"

	"github.com/mvp-joe/repo-map/internal/indexer/parsers"
)

// Prints what the parser front-end extracts from each file given on the
// command line, without touching any index state.
func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: debug-parse <file>...")
	}

	registry := parsers.NewRegistry()
	for _, path := range os.Args[1:] {
		source, err := os.ReadFile(path)
		if err != nil {
			log.Fatal(err)
		}

		result := registry.Parse(path, source)
		fmt.Printf("=== %s ===\n", path)
		if !result.OK() {
			fmt.Printf("Skipped: %s\n\n", result.Skipped)
			continue
		}

		fmt.Printf("Count: %d\n", len(result.Symbols))
		for _, s := range result.Symbols {
			fmt.Printf("  %-8s %s (line %d-%d) - %s\n", s.Kind, s.FullName(), s.Line, s.EndLine, s.Signature)
			if s.DocSummary != "" {
				fmt.Printf("           %s\n", s.DocSummary)
			}
		}
		fmt.Println()
	}
}
