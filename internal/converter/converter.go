// Package converter handles the conversion of QuantumultX rewrite scripts to Loon and Surge formats.
package converter

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Category maps a keyword found in the source text to a display label.
type Category struct {
	Keyword string
	Label   string
}

// Options controls the defaults used while extracting metadata.
type Options struct {
	IconBaseURL         string
	DefaultAuthor       string
	DefaultCategory     string
	DescriptionTemplate string
	Categories          []Category
	// KeyByBaseName names outputs after the source file even when an app
	// name was found.
	KeyByBaseName bool
}

// DefaultOptions returns the stock extraction defaults.
func DefaultOptions() Options {
	return Options{
		IconBaseURL:         "https://raw.githubusercontent.com/Mikephie/icons/main/icon/",
		DefaultAuthor:       "🅜ⓘ🅚ⓔ🅟ⓗ🅘ⓔ",
		DefaultCategory:     "🔐APP",
		DescriptionTemplate: "{name} 脚本模块",
		Categories: []Category{
			{Keyword: "签到", Label: "✅签到"},
			{Keyword: "广告", Label: "🚫广告"},
			{Keyword: "工具", Label: "🛠️工具"},
		},
	}
}

// Converter handles script conversion
type Converter struct {
	opts Options
}

// NewConverter creates a new Converter
func NewConverter(opts Options) *Converter {
	return &Converter{opts: opts}
}

// Convert extracts metadata from raw and chooses an artifact per dialect:
// a verbatim block when the source carries one, a rendering otherwise.
func (c *Converter) Convert(baseName, raw string) (*Result, error) {
	if baseName == "" {
		return nil, fmt.Errorf("%w: empty file name", ErrUnreadableInput)
	}
	if !utf8.ValidString(raw) {
		return nil, fmt.Errorf("%w: %s is not valid UTF-8", ErrUnreadableInput, baseName)
	}
	raw = strings.TrimPrefix(raw, "\uFEFF")
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: %s is empty", ErrNoContent, baseName)
	}

	meta := c.Extract(baseName, raw)
	result := &Result{Metadata: meta}
	verbatim := 0
	for _, d := range Dialects() {
		if block, ok := LocateBlock(raw, d.Name); ok {
			result.Artifacts = append(result.Artifacts, Verbatim(d, block))
			verbatim++
			continue
		}
		result.Artifacts = append(result.Artifacts, Generated(d, meta))
	}

	if verbatim == 0 && !meta.hasContent() {
		return nil, fmt.Errorf("%w: no pattern, hostname or script path in %s", ErrNoContent, baseName)
	}
	return result, nil
}

// OutputKey returns the file name (without extension) for the artifacts of m.
func (c *Converter) OutputKey(m Metadata) string {
	if c.opts.KeyByBaseName || m.NameSource == SourceDefault {
		return m.BaseName
	}
	if key := sanitizeFileName(m.AppName); key != "" {
		return key
	}
	return m.BaseName
}

func sanitizeFileName(name string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			return '-'
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, name)
	return strings.Trim(strings.TrimSpace(mapped), ".")
}
