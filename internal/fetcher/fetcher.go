// Package fetcher downloads remote QuantumultX scripts for conversion.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	userAgent    = "qx-converter/1.0"
	maxBodyBytes = 4 << 20
)

// ErrTooLarge is returned for scripts larger than the download limit.
var ErrTooLarge = errors.New("script too large")

// Document is a fetched script.
type Document struct {
	URL  string
	Body string
	ETag string
}

// Fetcher handles script downloads
type Fetcher struct {
	client     *http.Client
	maxElapsed time.Duration
}

// NewFetcher creates a new Fetcher
func NewFetcher() *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxElapsed: 20 * time.Second,
	}
}

// WithClient replaces the HTTP client.
func (f *Fetcher) WithClient(client *http.Client) *Fetcher {
	f.client = client
	return f
}

// WithMaxElapsed bounds the total retry time.
func (f *Fetcher) WithMaxElapsed(d time.Duration) *Fetcher {
	f.maxElapsed = d
	return f
}

func (f *Fetcher) newBackoff(ctx context.Context) backoff.BackOff {
	// BackOff implementations are stateful; always return a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = f.maxElapsed
	return backoff.WithContext(bo, ctx)
}

// ValidateURL accepts only absolute http and https URLs.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid url %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid url %q: missing host", raw)
	}
	return nil
}

// GetETag fetches the ETag without downloading the body.
func (f *Fetcher) GetETag(ctx context.Context, rawURL string) (string, error) {
	if err := ValidateURL(rawURL); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HEAD request failed: %s", resp.Status)
	}
	return cleanETag(resp.Header.Get("ETag")), nil
}

// Fetch downloads the script at rawURL. Network errors and 5xx/429
// responses are retried with exponential backoff; other statuses fail
// immediately.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Document, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}

	var doc *Document
	err := backoff.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := f.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("download failed: %s", resp.Status)
		default:
			return backoff.Permanent(fmt.Errorf("download failed: %s", resp.Status))
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		if len(body) > maxBodyBytes {
			return backoff.Permanent(fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxBodyBytes))
		}
		doc = &Document{
			URL:  rawURL,
			Body: string(body),
			ETag: cleanETag(resp.Header.Get("ETag")),
		}
		return nil
	}, f.newBackoff(ctx))
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// BaseName derives a file base name from the last path segment of rawURL.
func BaseName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	name := u.Path
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	return name
}

// cleanETag removes quotes and the W/ prefix.
func cleanETag(etag string) string {
	etag = strings.ReplaceAll(etag, "\"", "")
	return strings.TrimPrefix(etag, "W/")
}
