package parsers

import "strings"

const maxDocSummary = 100

// summarizeDoc reduces a raw comment block or docstring to its first
// meaningful line, with comment markers removed and long lines truncated.
func summarizeDoc(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		line = stripCommentMarkers(line)
		if line == "" || strings.HasPrefix(line, "@") {
			continue
		}
		if len(line) > maxDocSummary {
			return line[:maxDocSummary-3] + "..."
		}
		return line
	}
	return ""
}

var commentPrefixes = []string{"///", "//!", "//", "/**", "/*!", "/*", "*", "#"}

func stripCommentMarkers(line string) string {
	line = strings.TrimSpace(line)
	line = strings.TrimSuffix(line, "*/")
	for _, prefix := range commentPrefixes {
		if strings.HasPrefix(line, prefix) {
			line = strings.TrimPrefix(line, prefix)
			break
		}
	}
	line = strings.TrimSpace(line)
	if strings.Trim(line, "*/-=#") == "" {
		return ""
	}
	return line
}

// unquoteDocstring strips string prefixes and quotes from a Python string
// literal.
func unquoteDocstring(lit string) string {
	lit = strings.TrimLeft(lit, "rRuUbBfF")
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(lit, q) && strings.HasSuffix(lit, q) && len(lit) >= 2*len(q) {
			return lit[len(q) : len(lit)-len(q)]
		}
	}
	return lit
}
