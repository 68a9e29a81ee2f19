// Package converter handles the conversion of QuantumultX rewrite scripts to Loon and Surge formats.
package converter

import "strings"

// dialectLabels are the section labels that introduce an embedded block.
var dialectLabels = []string{"loon", "surge", "quantumultx", "quantumult x", "qx"}

// LocateBlock finds a hand-authored block for the named dialect. A block
// starts after a line holding only the dialect name (optionally behind a
// comment marker or in brackets) and ends at a double blank line, the next
// dialect label, the end of a block comment, or the end of text. The block
// is returned trimmed but otherwise unchanged.
func LocateBlock(raw, dialect string) (string, bool) {
	target := strings.ToLower(strings.TrimSpace(dialect))
	lines := strings.Split(raw, "\n")

	for i := 0; i < len(lines); i++ {
		label, ok := labelOf(lines[i])
		if !ok || label != target {
			continue
		}
		end := blockEnd(lines, i+1)
		body := strings.TrimSpace(strings.Join(lines[i+1:end], "\n"))
		if body != "" {
			return body, true
		}
		i = end - 1
	}
	return "", false
}

// blockEnd returns the index of the first line that is not part of the
// block starting at start.
func blockEnd(lines []string, start int) int {
	for j := start; j < len(lines); j++ {
		trimmed := strings.TrimSpace(lines[j])
		if _, ok := labelOf(lines[j]); ok {
			return j
		}
		if strings.HasPrefix(trimmed, "*/") {
			return j
		}
		if trimmed == "" && j+1 < len(lines) && strings.TrimSpace(lines[j+1]) == "" {
			return j
		}
	}
	return len(lines)
}

// labelOf reports whether line is a bare dialect label.
func labelOf(line string) (string, bool) {
	s := strings.TrimSpace(line)
	s = strings.TrimLeft(s, "/#*; \t")
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	s = strings.ToLower(s)
	for _, label := range dialectLabels {
		if s == label {
			return label, true
		}
	}
	return "", false
}
