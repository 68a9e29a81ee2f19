// Package converter handles the conversion of QuantumultX rewrite scripts to Loon and Surge formats.
package converter

import (
	"fmt"
	"strings"
)

// AppendMarker tells Surge to merge hostnames into the existing MITM list
// instead of replacing it.
const AppendMarker = "%APPEND%"

const scriptTimeout = 60

// Dialect describes how one target format encodes the shared metadata.
type Dialect struct {
	Name         string
	Extension    string
	CategoryKey  string
	RequiresBody string
	MergeHosts   bool

	scriptName func(m Metadata) string
	scriptLine func(d *Dialect, name, pattern, scriptPath string) string
}

var (
	// Loon renders .plugin files.
	Loon = &Dialect{
		Name:         "Loon",
		Extension:    ".plugin",
		CategoryKey:  "tag",
		RequiresBody: "true",
		scriptName: func(m Metadata) string {
			return strings.ToLower(m.AppName)
		},
		scriptLine: func(d *Dialect, name, pattern, scriptPath string) string {
			return fmt.Sprintf("http-response %s script-path=%s, requires-body=%s, timeout=%d, tag=%s",
				pattern, scriptPath, d.RequiresBody, scriptTimeout, name)
		},
	}

	// Surge renders .sgmodule files.
	Surge = &Dialect{
		Name:         "Surge",
		Extension:    ".sgmodule",
		CategoryKey:  "category",
		RequiresBody: "1",
		MergeHosts:   true,
		scriptName: func(m Metadata) string {
			return m.AppName
		},
		scriptLine: func(d *Dialect, name, pattern, scriptPath string) string {
			return fmt.Sprintf("%s = type=http-response, pattern=%s, script-path=%s, requires-body=%s, max-size=-1, timeout=%d",
				name, pattern, scriptPath, d.RequiresBody, scriptTimeout)
		},
	}
)

// Dialects returns the target dialects in output order.
func Dialects() []*Dialect {
	return []*Dialect{Loon, Surge}
}

// DialectByName looks a dialect up case-insensitively.
func DialectByName(name string) (*Dialect, bool) {
	for _, d := range Dialects() {
		if strings.EqualFold(d.Name, name) {
			return d, true
		}
	}
	return nil, false
}

// RenderLoon renders metadata as a Loon plugin.
func RenderLoon(m Metadata) string {
	return Render(Loon, m)
}

// RenderSurge renders metadata as a Surge module.
func RenderSurge(m Metadata) string {
	return Render(Surge, m)
}

// Render renders metadata in the given dialect. Sections without content
// are omitted.
func Render(d *Dialect, m Metadata) string {
	sections := []string{renderHeader(d, m)}
	if m.HasScript() {
		sections = append(sections, renderScript(d, m))
	}
	if m.HasMITM() {
		sections = append(sections, renderMITM(d, m))
	}
	return strings.Join(sections, "\n\n") + "\n"
}

func renderHeader(d *Dialect, m Metadata) string {
	lines := []string{
		"#!name = " + strings.TrimSpace(m.AppName+" "+m.Category),
		"#!desc = " + m.Description,
		"#!author = " + m.Author,
		"#!" + d.CategoryKey + " = " + m.Category,
		"#!icon = " + m.IconURL,
	}
	return strings.Join(lines, "\n")
}

func renderScript(d *Dialect, m Metadata) string {
	var b strings.Builder
	b.WriteString("[Script]")
	base := d.scriptName(m)
	for i, pattern := range m.Patterns {
		name := base
		if i > 0 {
			name = fmt.Sprintf("%s_%d", base, i+1)
		}
		b.WriteString("\n")
		b.WriteString(d.scriptLine(d, name, pattern, m.ScriptPath))
	}
	return b.String()
}

func renderMITM(d *Dialect, m Metadata) string {
	hosts := strings.Join(m.Hostnames, ", ")
	if d.MergeHosts {
		hosts = AppendMarker + " " + hosts
	}
	return "[MITM]\nhostname = " + hosts
}
