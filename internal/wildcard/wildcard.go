// Package wildcard derives MITM hostname wildcards from rewrite URL patterns.
package wildcard

import (
	"regexp/syntax"
	"strings"
)

// FromPattern converts a regex URL pattern to a wildcard string.
// Returns "" when the pattern does not parse.
func FromPattern(pattern string) string {
	pattern = strings.TrimPrefix(pattern, "/")
	pattern = strings.TrimSuffix(pattern, "/")

	re, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return ""
	}
	return convertNode(re)
}

// Host returns the hostname wildcard a URL pattern matches, e.g.
// "interface*.music.163.com" for ^https?:\/\/interface\d?\.music\.163\.com\/.
func Host(pattern string) (string, bool) {
	w := FromPattern(pattern)
	_, rest, ok := strings.Cut(w, "://")
	if !ok {
		return "", false
	}
	if i := strings.IndexAny(rest, "/:"); i >= 0 {
		rest = rest[:i]
	}
	host := strings.ToLower(collapseStars(rest))
	if !strings.Contains(host, ".") || strings.Trim(host, "*?.") == "" {
		return "", false
	}
	return host, true
}

// Hosts returns the distinct host wildcards of patterns in first-seen order.
func Hosts(patterns []string) []string {
	seen := make(map[string]bool)
	var hosts []string
	for _, p := range patterns {
		host, ok := Host(p)
		if !ok || seen[host] {
			continue
		}
		seen[host] = true
		hosts = append(hosts, host)
	}
	return hosts
}

// collapseStars folds runs of wildcards into a single "*".
func collapseStars(s string) string {
	var b strings.Builder
	prevStar := false
	for _, r := range s {
		if r == '*' {
			if !prevStar {
				b.WriteRune(r)
			}
			prevStar = true
			continue
		}
		prevStar = false
		b.WriteRune(r)
	}
	return b.String()
}

// convertNode recursively converts a regex AST node to a wildcard pattern
func convertNode(re *syntax.Regexp) string {
	switch re.Op {
	case syntax.OpNoMatch, syntax.OpEmptyMatch:
		return ""
	case syntax.OpLiteral:
		return string(re.Rune)
	case syntax.OpCharClass, syntax.OpAnyCharNotNL, syntax.OpAnyChar:
		return "?"
	case syntax.OpBeginLine, syntax.OpEndLine, syntax.OpBeginText, syntax.OpEndText:
		return ""
	case syntax.OpWordBoundary, syntax.OpNoWordBoundary:
		return ""
	case syntax.OpCapture, syntax.OpConcat:
		var result strings.Builder
		for _, sub := range re.Sub {
			result.WriteString(convertNode(sub))
		}
		return result.String()
	case syntax.OpStar, syntax.OpPlus, syntax.OpQuest, syntax.OpRepeat:
		return "*"
	case syntax.OpAlternate:
		return "*"
	default:
		return "?"
	}
}
