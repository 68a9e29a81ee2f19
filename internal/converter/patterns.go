// Package converter handles the conversion of QuantumultX rewrite scripts to Loon and Surge formats.
package converter

import (
	"regexp"
	"strings"
)

// patternScans run in this order over the whole text. Each yields the URL
// pattern in the first non-empty capture group.
var patternScans = []*regexp.Regexp{
	// Surge: pattern=<p>,
	regexp.MustCompile(`\bpattern=([^,\s]+)`),
	// Loon: http-response <p> script-path=...
	regexp.MustCompile(`\bhttp-response[ \t]+(\S+)`),
	// QuantumultX: <p> url script-... <path>, or a bare url <p>
	regexp.MustCompile(`(\S+)[ \t]+url[ \t]+script-|\burl[ \t]+(\S+)`),
}

// quantumultXActions are tokens that follow "url" in QuantumultX rules and
// are never patterns themselves.
var quantumultXActions = map[string]bool{
	"reject":        true,
	"reject-200":    true,
	"reject-img":    true,
	"reject-dict":   true,
	"reject-array":  true,
	"302":           true,
	"307":           true,
	"echo-response": true,
}

// MinePatterns collects URL patterns from all three syntaxes, deduplicated
// by exact text in first-seen order.
func MinePatterns(raw string) []string {
	var patterns []string
	seen := make(map[string]bool)
	for _, re := range patternScans {
		for _, m := range re.FindAllStringSubmatch(raw, -1) {
			p := normalizePattern(firstGroup(m))
			if p == "" || seen[p] {
				continue
			}
			seen[p] = true
			patterns = append(patterns, p)
		}
	}
	return patterns
}

func firstGroup(m []string) string {
	for _, g := range m[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}

func normalizePattern(p string) string {
	p = cleanValue(p)
	if quantumultXActions[p] || !looksLikePattern(p) {
		return ""
	}
	// A slash-delimited pattern loses its closing delimiter.
	if len(p) > 1 && strings.HasPrefix(p, "/") && strings.HasSuffix(p, "/") {
		p = p[:len(p)-1]
	}
	return p
}

// looksLikePattern accepts anchored, slash-delimited or URL-shaped tokens.
// Words and operators that follow "url" or "http-response" in script code
// do not qualify.
func looksLikePattern(p string) bool {
	switch {
	case strings.HasPrefix(p, "^"), strings.HasPrefix(p, "/"), strings.HasPrefix(p, "http"):
		return true
	case strings.Contains(p, "://"), strings.Contains(p, `\.`):
		return true
	}
	return false
}
