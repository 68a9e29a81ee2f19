package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxbrian/qx-converter/internal/cache"
	"github.com/xxxbrian/qx-converter/internal/converter"
	"github.com/xxxbrian/qx-converter/internal/fetcher"
)

const script = `/*
📜 ✨ 网易云音乐 ✨
[rewrite_local]
^https?:\/\/interface\.music\.163\.com\/eapi\/vip url script-response-body https://s/wyy.js
[mitm]
hostname = interface.music.163.com
*/
`

func newTestServer(t *testing.T) (*Server, *http.ServeMux) {
	t.Helper()
	s := NewServer(
		converter.NewConverter(converter.DefaultOptions()),
		fetcher.NewFetcher().WithMaxElapsed(time.Second),
		cache.NewResultCache(16, time.Hour),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return s, mux
}

// upstream serves script with a fixed ETag and counts GET requests.
func upstream(t *testing.T, body string, gets *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"rev1"`)
		if r.Method == http.MethodGet {
			gets.Add(1)
			_, _ = w.Write([]byte(body))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestConvertEndpoint(t *testing.T) {
	_, mux := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/convert/surge?name=wyy", strings.NewReader(script))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "generated", rec.Header().Get("X-Artifact-Source"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `网易云音乐.sgmodule`)
	assert.Contains(t, rec.Body.String(), "#!name = 网易云音乐 🔐APP")
	assert.Contains(t, rec.Body.String(), "hostname = %APPEND% interface.music.163.com")
}

func TestConvertEndpoint_Errors(t *testing.T) {
	_, mux := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"wrong method", http.MethodGet, "/convert/loon", "", http.StatusMethodNotAllowed},
		{"unknown dialect", http.MethodPost, "/convert/clash", script, http.StatusNotFound},
		{"no content", http.MethodPost, "/convert/loon", "nothing here", http.StatusUnprocessableEntity},
		{"bad encoding", http.MethodPost, "/convert/loon", "\xff\xfe", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestRemoteEndpoint_CachesByETag(t *testing.T) {
	s, mux := newTestServer(t)
	var gets atomic.Int32
	up := upstream(t, script, &gets)

	for range 2 {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/loon?url="+up.URL+"/qx/wyy.js", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "tag=网易云音乐")
		assert.Contains(t, rec.Header().Get("Content-Disposition"), `网易云音乐.plugin`)
	}
	assert.Equal(t, int32(1), gets.Load())
	assert.Equal(t, 1, s.resultCache.Len())
}

func TestRemoteEndpoint_BadURL(t *testing.T) {
	_, mux := newTestServer(t)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/surge?url=ftp://x/a.js", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemoteEndpoint_UpstreamMissing(t *testing.T) {
	_, mux := newTestServer(t)
	up := httptest.NewServer(http.NotFoundHandler())
	defer up.Close()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/surge?url="+up.URL+"/a.js", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestMetadataEndpoint(t *testing.T) {
	_, mux := newTestServer(t)
	var gets atomic.Int32
	up := upstream(t, script, &gets)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metadata?url="+up.URL+"/wyy.js", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		AppName    string            `json:"app_name"`
		NameSource string            `json:"name_source"`
		Hostnames  []string          `json:"hostnames"`
		OutputKey  string            `json:"output_key"`
		Artifacts  map[string]string `json:"artifacts"`
		Suggested  []string          `json:"suggested_hostnames"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "网易云音乐", got.AppName)
	assert.Equal(t, "header", got.NameSource)
	assert.Equal(t, []string{"interface.music.163.com"}, got.Hostnames)
	assert.Equal(t, "网易云音乐", got.OutputKey)
	assert.Equal(t, map[string]string{"Loon": "generated", "Surge": "generated"}, got.Artifacts)
	assert.Equal(t, []string{"interface.music.163.com"}, got.Suggested)
}

func TestHealthAndRoot(t *testing.T) {
	_, mux := newTestServer(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLoggingMiddleware_RequestID(t *testing.T) {
	h := LoggingMiddleware(slog.New(slog.NewTextHandler(io.Discard, nil)), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "given")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "given", rec.Header().Get(RequestIDHeader))
}

func TestTruncateETag(t *testing.T) {
	assert.Equal(t, "abcdefgh", truncateETag("abcdefghijk"))
	assert.Equal(t, "abc", truncateETag("abc"))
}
