// Package converter handles the conversion of QuantumultX rewrite scripts to Loon and Surge formats.
package converter

import "errors"

var (
	// ErrUnreadableInput is returned when the source text cannot be decoded.
	ErrUnreadableInput = errors.New("unreadable input")
	// ErrNoContent is returned when nothing usable could be extracted from the source text.
	ErrNoContent = errors.New("no extractable content")
)

// Source records which kind of probe resolved a field.
type Source int

const (
	SourceDefault Source = iota
	SourceConstant
	SourceHeader
)

func (s Source) String() string {
	switch s {
	case SourceConstant:
		return "constant"
	case SourceHeader:
		return "header"
	default:
		return "default"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Metadata is the dialect-independent description of a rewrite script.
// It is built once per source file and not modified afterwards.
type Metadata struct {
	BaseName    string   `json:"base_name"`
	AppName     string   `json:"app_name"`
	NameSource  Source   `json:"name_source"`
	Author      string   `json:"author"`
	Description string   `json:"description"`
	ScriptPath  string   `json:"script_path"`
	Patterns    []string `json:"patterns"`
	Hostnames   []string `json:"hostnames"`
	Category    string   `json:"category"`
	IconURL     string   `json:"icon_url"`
}

// HasScript reports whether a [Script] section can be rendered.
func (m Metadata) HasScript() bool {
	return len(m.Patterns) > 0 && m.ScriptPath != ""
}

// HasMITM reports whether a [MITM] section can be rendered.
func (m Metadata) HasMITM() bool {
	return len(m.Hostnames) > 0
}

func (m Metadata) hasContent() bool {
	return len(m.Patterns) > 0 || len(m.Hostnames) > 0 || m.ScriptPath != ""
}

// ArtifactKind distinguishes a pass-through block from a rendered one.
type ArtifactKind int

const (
	ArtifactGenerated ArtifactKind = iota
	ArtifactVerbatim
)

func (k ArtifactKind) String() string {
	if k == ArtifactVerbatim {
		return "verbatim"
	}
	return "generated"
}

// Artifact is the output chosen for one dialect: either a verbatim block
// lifted from the source or a rendering of the metadata.
type Artifact struct {
	Dialect  *Dialect
	Kind     ArtifactKind
	text     string
	metadata Metadata
}

// Verbatim returns an artifact that passes text through unchanged.
func Verbatim(d *Dialect, text string) Artifact {
	return Artifact{Dialect: d, Kind: ArtifactVerbatim, text: text}
}

// Generated returns an artifact rendered from m.
func Generated(d *Dialect, m Metadata) Artifact {
	return Artifact{Dialect: d, Kind: ArtifactGenerated, metadata: m}
}

// Content returns the artifact text.
func (a Artifact) Content() string {
	if a.Kind == ArtifactVerbatim {
		return a.text
	}
	return Render(a.Dialect, a.metadata)
}

// Result is the outcome of converting one source file.
type Result struct {
	Metadata  Metadata
	Artifacts []Artifact
}

// Artifact returns the artifact for the given dialect.
func (r *Result) Artifact(d *Dialect) (Artifact, bool) {
	for _, a := range r.Artifacts {
		if a.Dialect == d {
			return a, true
		}
	}
	return Artifact{}, false
}
