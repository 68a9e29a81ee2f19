// Package converter handles the conversion of QuantumultX rewrite scripts to Loon and Surge formats.
package converter

import (
	"regexp"
	"strings"
)

// probe resolves a single field from raw source text.
type probe struct {
	name   string
	source Source
	re     *regexp.Regexp
}

func newProbe(name string, source Source, pattern string) probe {
	return probe{name: name, source: source, re: regexp.MustCompile(pattern)}
}

// match returns the trimmed first capture group of the first match.
func (p probe) match(raw string) (string, bool) {
	m := p.re.FindStringSubmatch(raw)
	if len(m) < 2 {
		return "", false
	}
	value := cleanValue(m[1])
	if value == "" {
		return "", false
	}
	return value, true
}

// quoted matches a JS string literal in any of the three quote styles.
const quoted = "[\"'`]([^\"'`\\n]+)[\"'`]"

// Probe lists are ordered by precedence: declared constants, then
// dialect-native metadata headers.
var (
	appNameProbes = []probe{
		newProbe("const", SourceConstant, `\b(?:const|let|var)\s+(?:appName|APP_NAME|scriptName|SCRIPT_NAME)\s*=\s*`+quoted),
		newProbe("env", SourceConstant, `\bnew\s+Env\(\s*`+quoted),
		newProbe("banner", SourceHeader, `[📜*]\s*✨\s*([^✨\n]+?)\s*✨`),
		newProbe("#!name", SourceHeader, `(?m)#!name\s*=\s*(.+)$`),
		newProbe("@name", SourceHeader, `(?m)@name[ \t]+(.+)$`),
	}

	authorProbes = []probe{
		newProbe("const", SourceConstant, `\b(?:const|let|var)\s+(?:author|AUTHOR)\s*=\s*`+quoted),
		newProbe("#!author", SourceHeader, `(?m)#!author\s*=\s*(.+)$`),
		newProbe("@author", SourceHeader, `(?m)@author[ \t]+(.+)$`),
	}

	descriptionProbes = []probe{
		newProbe("const", SourceConstant, `\b(?:const|let|var)\s+(?:desc|description|DESCRIPTION)\s*=\s*`+quoted),
		newProbe("#!desc", SourceHeader, `(?m)#!desc\s*=\s*(.+)$`),
		newProbe("@desc", SourceHeader, `(?m)@desc(?:ription)?[ \t]+(.+)$`),
	}

	scriptPathProbes = []probe{
		newProbe("const", SourceConstant, `\b(?:const|let|var)\s+(?:scriptPath|SCRIPT_PATH|scriptUrl|SCRIPT_URL)\s*=\s*`+quoted),
		newProbe("quantumultx", SourceHeader, `\bscript-(?:(?:response|request)-(?:body|header)|echo-response|analyze-echo-response)[ \t]+(\S+)`),
		newProbe("script-path", SourceHeader, `\bscript-path\s*=\s*([^,\s]+)`),
	}

	hostnameLine = regexp.MustCompile(`(?m)^([^\n]*?)\bhostname[ \t]*=[ \t]*([^\n]*)`)
)

// firstMatch tries probes in order and returns the first value found.
func firstMatch(probes []probe, raw string) (string, Source, bool) {
	for _, p := range probes {
		if value, ok := p.match(raw); ok {
			return value, p.source, true
		}
	}
	return "", SourceDefault, false
}

// Extract builds the metadata for one source file. It never fails: every
// field falls back to a default when no probe matches.
func (c *Converter) Extract(baseName, raw string) Metadata {
	m := Metadata{
		BaseName:   baseName,
		AppName:    baseName,
		NameSource: SourceDefault,
		Author:     c.opts.DefaultAuthor,
		Category:   c.category(raw),
		Patterns:   MinePatterns(raw),
		Hostnames:  ExtractHostnames(raw),
	}

	if name, source, ok := firstMatch(appNameProbes, raw); ok {
		if name = c.cleanAppName(name); name != "" {
			m.AppName = name
			m.NameSource = source
		}
	}
	if author, _, ok := firstMatch(authorProbes, raw); ok {
		m.Author = author
	}
	if path, _, ok := firstMatch(scriptPathProbes, raw); ok {
		m.ScriptPath = path
	}
	if desc, _, ok := firstMatch(descriptionProbes, raw); ok {
		m.Description = desc
	} else {
		m.Description = strings.ReplaceAll(c.opts.DescriptionTemplate, "{name}", m.AppName)
	}
	m.IconURL = c.iconURL(m.AppName)

	return m
}

// ExtractHostnames collects the MITM hostnames from every hostname line,
// normalized and deduplicated in first-seen order.
func ExtractHostnames(raw string) []string {
	var hosts []string
	seen := make(map[string]bool)
	for _, m := range hostnameLine.FindAllStringSubmatch(raw, -1) {
		if assignedInCode(m[1]) {
			continue
		}
		line := m[2]
		if i := strings.Index(line, "*/"); i >= 0 {
			line = line[:i]
		}
		if strings.HasSuffix(strings.TrimSpace(line), ";") {
			continue
		}
		for _, host := range strings.Split(line, ",") {
			host = normalizeHostname(host)
			if host == "" || seen[host] {
				continue
			}
			seen[host] = true
			hosts = append(hosts, host)
		}
	}
	return hosts
}

// assignedInCode reports whether the text before "hostname" on its line
// makes it a script variable or property rather than a MITM directive.
func assignedInCode(prefix string) bool {
	if strings.HasSuffix(prefix, ".") || strings.HasSuffix(prefix, "$") {
		return true
	}
	fields := strings.Fields(prefix)
	if len(fields) == 0 {
		return false
	}
	switch fields[len(fields)-1] {
	case "const", "let", "var":
		return true
	}
	return false
}

var hostMarkers = strings.NewReplacer(AppendMarker, "", "%INSERT%", "")

func normalizeHostname(host string) string {
	host = cleanValue(hostMarkers.Replace(host))
	if !isHostPattern(host) {
		return ""
	}
	return host
}

// isHostPattern rejects values that are clearly code rather than a host or wildcard.
func isHostPattern(host string) bool {
	if host == "" {
		return false
	}
	for _, r := range host {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.' || r == '-' || r == '*' || r == '?' || r == ':' || r == '_':
		case r > 0x7f:
		default:
			return false
		}
	}
	return true
}

// decorativeGlyphs are removed from app names.
var decorativeGlyphs = strings.NewReplacer(
	"✨", "", "📜", "", "🔥", "", "⭐", "", "🌟", "",
	"💎", "", "🎉", "", "✅", "", "🎯", "", "⚡", "",
	"\uFE0F", "",
)

func (c *Converter) cleanAppName(name string) string {
	name = strings.TrimSpace(name)
	for _, label := range c.labels() {
		name = strings.TrimSpace(strings.TrimSuffix(name, label))
	}
	return strings.TrimSpace(decorativeGlyphs.Replace(name))
}

// category picks the label of the first keyword found anywhere in raw.
// Table order decides when several keywords are present.
func (c *Converter) category(raw string) string {
	lower := strings.ToLower(raw)
	for _, cat := range c.opts.Categories {
		if cat.Keyword == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(cat.Keyword)) {
			return cat.Label
		}
	}
	return c.opts.DefaultCategory
}

func (c *Converter) labels() []string {
	labels := make([]string, 0, len(c.opts.Categories)+1)
	labels = append(labels, c.opts.DefaultCategory)
	for _, cat := range c.opts.Categories {
		labels = append(labels, cat.Label)
	}
	return labels
}

func (c *Converter) iconURL(appName string) string {
	file := strings.ToLower(strings.Join(strings.Fields(appName), ""))
	return c.opts.IconBaseURL + file + ".png"
}

// cleanValue trims whitespace, quotes and trailing separators from a captured value.
func cleanValue(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, ",;")
	s = strings.Trim(s, "\"'`")
	return strings.TrimSpace(s)
}
