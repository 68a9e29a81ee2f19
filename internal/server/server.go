// Package server provides the HTTP preview server and routing.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xxxbrian/qx-converter/internal/cache"
	"github.com/xxxbrian/qx-converter/internal/converter"
	"github.com/xxxbrian/qx-converter/internal/fetcher"
	"github.com/xxxbrian/qx-converter/internal/wildcard"
)

const maxUploadBytes = 1 << 20

// Server represents the HTTP server
type Server struct {
	conv        *converter.Converter
	fetcher     *fetcher.Fetcher
	resultCache *cache.ResultCache
	log         *slog.Logger
}

// NewServer creates a new Server
func NewServer(conv *converter.Converter, f *fetcher.Fetcher, rc *cache.ResultCache, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		conv:        conv,
		fetcher:     f,
		resultCache: rc,
		log:         logger,
	}
}

// SetupRoutes configures the HTTP routes
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/convert/", s.handleConvert)
	mux.HandleFunc("/loon", s.handleLoon)
	mux.HandleFunc("/loon/", s.handleLoon)
	mux.HandleFunc("/surge", s.handleSurge)
	mux.HandleFunc("/surge/", s.handleSurge)
	mux.HandleFunc("/metadata", s.handleMetadata)
}

// handleRoot lists the available routes
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, `qx-converter

POST /convert/{loon|surge}?name=<base>   convert the request body
GET  /loon?url=<script url>              convert a remote script to a Loon plugin
GET  /surge?url=<script url>             convert a remote script to a Surge module
GET  /metadata?url=<script url>          show the extracted metadata
`)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":         "ok",
		"cached_results": s.resultCache.Len(),
	})
}

// handleConvert handles POST /convert/:dialect with the script as body
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/convert/"), "/")
	dialect, ok := converter.DialectByName(name)
	if !ok {
		http.Error(w, fmt.Sprintf("Unknown dialect %q", name), http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to read body: %v", err), http.StatusRequestEntityTooLarge)
		return
	}

	baseName := strings.TrimSpace(r.URL.Query().Get("name"))
	if baseName == "" {
		baseName = "script"
	}

	res, err := s.conv.Convert(baseName, string(body))
	if err != nil {
		writeConvertError(w, err)
		return
	}
	artifact, _ := res.Artifact(dialect)
	s.writeArtifact(w, s.conv.OutputKey(res.Metadata), artifact.Dialect, artifact.Kind, artifact.Content())
}

// handleLoon handles /loon?url= requests
func (s *Server) handleLoon(w http.ResponseWriter, r *http.Request) {
	s.handleRemote(w, r, converter.Loon)
}

// handleSurge handles /surge?url= requests
func (s *Server) handleSurge(w http.ResponseWriter, r *http.Request) {
	s.handleRemote(w, r, converter.Surge)
}

func (s *Server) handleRemote(w http.ResponseWriter, r *http.Request, dialect *converter.Dialect) {
	scriptURL := strings.TrimSpace(r.URL.Query().Get("url"))
	if err := fetcher.ValidateURL(scriptURL); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctx := r.Context()

	cacheKey := dialect.Name + ":" + scriptURL
	if etag, err := s.fetcher.GetETag(ctx, scriptURL); err == nil && etag != "" {
		if entry, ok := s.resultCache.Get(cacheKey, etag); ok {
			s.log.Debug("cache hit", "key", cacheKey, "etag", truncateETag(etag))
			s.writeArtifact(w, entry.Name, dialect, converter.ArtifactGenerated, entry.Body)
			return
		}
	}

	s.log.Debug("cache miss, converting", "key", cacheKey)

	res, doc, err := s.convertRemote(ctx, scriptURL)
	if err != nil {
		writeConvertError(w, err)
		return
	}
	artifact, _ := res.Artifact(dialect)
	key := s.conv.OutputKey(res.Metadata)
	content := artifact.Content()
	// Only generated artifacts are cached.
	if doc.ETag != "" && artifact.Kind == converter.ArtifactGenerated {
		s.resultCache.Set(cacheKey, cache.Entry{Name: key, Body: content, ETag: doc.ETag})
	}
	s.writeArtifact(w, key, dialect, artifact.Kind, content)
}

// handleMetadata returns the extracted metadata of a remote script as JSON
func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	scriptURL := strings.TrimSpace(r.URL.Query().Get("url"))
	if err := fetcher.ValidateURL(scriptURL); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, _, err := s.convertRemote(r.Context(), scriptURL)
	if err != nil {
		writeConvertError(w, err)
		return
	}

	kinds := make(map[string]string, len(res.Artifacts))
	for _, a := range res.Artifacts {
		kinds[a.Dialect.Name] = a.Kind.String()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		converter.Metadata
		OutputKey      string            `json:"output_key"`
		Artifacts      map[string]string `json:"artifacts"`
		SuggestedHosts []string          `json:"suggested_hostnames"`
	}{res.Metadata, s.conv.OutputKey(res.Metadata), kinds, wildcard.Hosts(res.Metadata.Patterns)})
}

type upstreamError struct{ err error }

func (e upstreamError) Error() string { return e.err.Error() }
func (e upstreamError) Unwrap() error { return e.err }

func (s *Server) convertRemote(ctx context.Context, scriptURL string) (*converter.Result, *fetcher.Document, error) {
	doc, err := s.fetcher.Fetch(ctx, scriptURL)
	if err != nil {
		return nil, nil, upstreamError{fmt.Errorf("failed to fetch upstream: %w", err)}
	}
	baseName := fetcher.BaseName(scriptURL)
	if baseName == "" {
		baseName = "script"
	}
	res, err := s.conv.Convert(baseName, doc.Body)
	if err != nil {
		return nil, nil, err
	}
	return res, doc, nil
}

func writeConvertError(w http.ResponseWriter, err error) {
	var upstream upstreamError
	switch {
	case errors.As(err, &upstream):
		http.Error(w, err.Error(), http.StatusBadGateway)
	case errors.Is(err, converter.ErrUnreadableInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, converter.ErrNoContent):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) writeArtifact(w http.ResponseWriter, key string, dialect *converter.Dialect, kind converter.ArtifactKind, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", key+dialect.Extension))
	w.Header().Set("X-Artifact-Source", kind.String())
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = w.Write([]byte(body))
}

// RequestIDHeader carries the per-request ID set by LoggingMiddleware.
const RequestIDHeader = "X-Request-ID"

// LoggingMiddleware logs all HTTP requests
func LoggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
		logger.Info("request", "id", id, "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// truncateETag truncates ETag for logging
func truncateETag(etag string) string {
	if len(etag) > 8 {
		return etag[:8]
	}
	return etag
}
