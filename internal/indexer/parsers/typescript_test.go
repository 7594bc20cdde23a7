package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/repo-map/internal/indexer/extraction"
)

// Test Plan for typeScriptParser:
// - Exported classes pick up the comment above the export statement
// - Class methods are methods with the class as parent
// - Function declarations and arrow-function constants are functions
// - Interfaces are classes
// - JavaScript goes through the same front-end

const tsSource = `// Greets people.
export class Greeter {
  greet(name: string): string {
    return name;
  }
}

export function add(a: number, b: number): number {
  return a + b;
}

const double = (x: number) => x * 2;

interface Options {
  verbose: boolean;
}
`

func TestTypeScriptParser_Structure(t *testing.T) {
	t.Parallel()

	result := NewTypeScriptParser().Parse("src/greeter.ts", []byte(tsSource))
	require.True(t, result.OK(), result.Skipped)

	assert.Equal(t, []string{"Greeter", "greet", "add", "double", "Options"}, symbolNames(result.Symbols))

	greeter := findSymbol(t, result.Symbols, "Greeter")
	assert.Equal(t, extraction.KindClass, greeter.Kind)
	assert.Equal(t, 2, greeter.Line)
	assert.Equal(t, "Greets people.", greeter.DocSummary)

	greet := findSymbol(t, result.Symbols, "greet")
	assert.Equal(t, extraction.KindMethod, greet.Kind)
	assert.Equal(t, "Greeter", greet.Parent)
	assert.Equal(t, "greet(name: string): string", greet.Signature)

	add := findSymbol(t, result.Symbols, "add")
	assert.Equal(t, extraction.KindFunction, add.Kind)
	assert.Equal(t, "add(a: number, b: number): number", add.Signature)

	double := findSymbol(t, result.Symbols, "double")
	assert.Equal(t, extraction.KindFunction, double.Kind)
	assert.Equal(t, 12, double.Line)

	assert.Equal(t, extraction.KindClass, findSymbol(t, result.Symbols, "Options").Kind)
}

func TestJavaScriptParser_Language(t *testing.T) {
	t.Parallel()

	result := NewJavaScriptParser().Parse("app.js", []byte("function main() {}\n"))
	require.Len(t, result.Symbols, 1)
	assert.Equal(t, "javascript", result.Symbols[0].Language)
	assert.Equal(t, "main()", result.Symbols[0].Signature)
}
