// Package papyrus extracts declaration signatures from Papyrus source text.
// It is a tolerant, line-oriented recognizer for the declarative subset of the
// language (script headers, functions, events, properties), not a grammar
// parser: statement bodies are never interpreted, and malformed declarations
// are dropped rather than rejected.
package papyrus

import "strings"

const (
	blockCommentOpen  = ";/"
	blockCommentClose = "/;"
)

// Preprocess reduces raw source text to the clean line stream the declaration
// patterns run against: block comments (;/ ... /;) and line comments (;...)
// are removed, blank lines are dropped, and backslash-continued lines are
// joined into single logical lines. Clean text is a fixed point, so
// preprocessing twice returns the same string.
func Preprocess(raw string) string {
	return joinContinuations(stripComments(raw))
}

// stripComments runs a one-flag block comment state machine and truncates line
// comments. Any line carrying a block marker is swallowed whole, so text
// sharing a line with ;/ or /; is lost. Nested block comments are not handled.
func stripComments(raw string) []string {
	var lines []string
	inBlock := false

	for _, line := range strings.Split(raw, "\n") {
		if strings.Contains(line, blockCommentOpen) {
			inBlock = true
		}
		if strings.Contains(line, blockCommentClose) {
			inBlock = false
			continue
		}
		if inBlock {
			continue
		}

		if i := strings.IndexByte(line, ';'); i >= 0 {
			line = line[:i]
		}
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}

	return lines
}

// joinContinuations folds every line ending in a backslash into the line that
// follows it, one space between segments. A joined line that comes out blank
// is not emitted, which keeps Preprocess idempotent.
func joinContinuations(lines []string) string {
	var out []string
	var pending []string

	flush := func() {
		joined := strings.Join(pending, " ")
		if strings.TrimSpace(joined) != "" {
			out = append(out, joined)
		}
		pending = pending[:0]
	}

	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		if strings.HasSuffix(trimmed, "\\") {
			pending = append(pending, strings.TrimRight(strings.TrimSuffix(trimmed, "\\"), " \t"))
			continue
		}
		pending = append(pending, line)
		flush()
	}
	if len(pending) > 0 {
		flush()
	}

	return strings.Join(out, "\n")
}
