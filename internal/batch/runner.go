// Package batch runs the conversion over a set of source files and
// reports whether any published artifact changed.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xxxbrian/qx-converter/internal/converter"
	"github.com/xxxbrian/qx-converter/internal/wildcard"
)

// ErrDuplicateOutput is returned for a file whose output names were all
// claimed by earlier files in the same run.
var ErrDuplicateOutput = errors.New("duplicate output name")

// Saver persists one artifact and reports whether it changed.
type Saver interface {
	Save(path, content string) (bool, error)
}

// Options configures a Runner.
type Options struct {
	Converter *converter.Converter
	Saver     Saver
	// OutputDirs maps a dialect name to its output directory. Dialects
	// without an entry are not written.
	OutputDirs map[string]string
	Logger     *slog.Logger
}

// Runner converts files one at a time.
type Runner struct {
	conv    *converter.Converter
	saver   Saver
	outDirs map[string]string
	log     *slog.Logger
}

// NewRunner creates a new Runner
func NewRunner(opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{
		conv:    opts.Converter,
		saver:   opts.Saver,
		outDirs: opts.OutputDirs,
		log:     logger,
	}
}

// FileResult is the outcome for one source file.
type FileResult struct {
	Path    string
	Key     string
	Changed bool
	// Verbatim lists the dialects whose artifact was passed through from the source.
	Verbatim []string
	// Written lists the artifact paths that changed.
	Written []string
	// SuggestedHosts holds MITM hostnames derived from the patterns when
	// the source declares none.
	SuggestedHosts []string
	// Renamed is set when the preferred output key was already claimed by
	// an earlier file in the run and the base name was used instead.
	Renamed bool
	Err     error
}

// Summary aggregates a run.
type Summary struct {
	Processed  int
	Changed    int
	Failed     int
	Verbatim   int
	AnyChanged bool
	Files      []FileResult
}

func (s *Summary) add(r FileResult) {
	s.Files = append(s.Files, r)
	// A failed write after an earlier successful one still changed the disk.
	s.AnyChanged = s.AnyChanged || r.Changed
	if r.Changed {
		s.Changed++
	}
	if r.Err != nil {
		s.Failed++
		return
	}
	s.Processed++
	s.Verbatim += len(r.Verbatim)
}

// Run converts files sequentially. Per-file failures are logged and
// skipped; the returned error is only set when ctx is cancelled.
func (r *Runner) Run(ctx context.Context, files []string) (Summary, error) {
	var sum Summary
	// claimed maps a lower-cased output key to the file that took it.
	claimed := make(map[string]string)
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		res := r.processFile(path, claimed)
		sum.add(res)

		if res.Err != nil {
			r.log.Warn("skipping file", "file", filepath.Base(path), "err", res.Err)
			continue
		}
		if res.Renamed {
			r.log.Warn("output name already used, falling back to file name", "file", filepath.Base(path), "key", res.Key)
		}
		if len(res.SuggestedHosts) > 0 {
			r.log.Warn("no MITM hostnames declared", "file", filepath.Base(path), "suggested", res.SuggestedHosts)
		}
		if res.Changed {
			r.log.Info("updated", "file", filepath.Base(path), "key", res.Key, "outputs", res.Written)
		} else {
			r.log.Debug("unchanged", "file", filepath.Base(path), "key", res.Key)
		}
	}
	return sum, nil
}

func (r *Runner) processFile(path string, claimed map[string]string) FileResult {
	fr := FileResult{Path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		fr.Err = fmt.Errorf("%w: %w", converter.ErrUnreadableInput, err)
		return fr
	}

	res, err := r.conv.Convert(BaseName(path), string(data))
	if err != nil {
		fr.Err = err
		return fr
	}
	key, renamed, err := claimKey(claimed, path, r.conv.OutputKey(res.Metadata), res.Metadata.BaseName)
	if err != nil {
		fr.Err = err
		return fr
	}
	fr.Key, fr.Renamed = key, renamed
	if m := res.Metadata; m.HasScript() && !m.HasMITM() {
		fr.SuggestedHosts = wildcard.Hosts(m.Patterns)
	}

	for _, a := range res.Artifacts {
		dir, ok := r.outDirs[a.Dialect.Name]
		if !ok {
			continue
		}
		if a.Kind == converter.ArtifactVerbatim {
			fr.Verbatim = append(fr.Verbatim, a.Dialect.Name)
		}

		out := filepath.Join(dir, fr.Key+a.Dialect.Extension)
		changed, err := r.saver.Save(out, a.Content())
		if err != nil {
			fr.Err = err
			return fr
		}
		if changed {
			fr.Changed = true
			fr.Written = append(fr.Written, out)
		}
	}
	return fr
}

// claimKey reserves an output key for path. When preferred is taken by an
// earlier file the base name is tried; when both are taken the file fails.
func claimKey(claimed map[string]string, path, preferred, baseName string) (string, bool, error) {
	for i, key := range []string{preferred, baseName} {
		fold := strings.ToLower(key)
		if owner, ok := claimed[fold]; ok && owner != path {
			continue
		}
		claimed[fold] = path
		return key, i > 0, nil
	}
	return "", false, fmt.Errorf("%w: %s (also produced by %s)", ErrDuplicateOutput, preferred, filepath.Base(claimed[strings.ToLower(baseName)]))
}
