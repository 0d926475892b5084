// Package fetcher retrieves icon candidate payloads over HTTP.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// IconConfig controls candidate fetch behavior.
type IconConfig struct {
	UserAgent    string
	IdleTimeout  time.Duration
	MaxRedirects int
}

// Icon fetches candidate URLs with an explicit, bounded redirect loop.
// Automatic client-side redirect handling is disabled so that each hop's
// Location header goes through the same resolution rules the HTML discovery
// heuristic uses, and so the hop count stays capped.
type Icon struct {
	cfg    IconConfig
	client *http.Client
}

// NewIcon builds an Icon fetcher.
func NewIcon(cfg IconConfig) *Icon {
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 10 * time.Second
	}
	if cfg.MaxRedirects == 0 {
		cfg.MaxRedirects = 5
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.IdleTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   cfg.IdleTimeout,
		ResponseHeaderTimeout: cfg.IdleTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
	return &Icon{
		cfg: cfg,
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Fetch issues a GET for target. A 2xx response returns the full body; a 3xx
// response re-issues against the Location header until the hop cap; any other
// status returns a nil payload with a nil error. Transport failures return an
// error, which callers absorb as "no payload" for that one candidate.
func (f *Icon) Fetch(ctx context.Context, target string) ([]byte, error) {
	current := target
	for hop := 0; hop <= f.cfg.MaxRedirects; hop++ {
		payload, next, err := f.fetchOnce(ctx, current)
		if err != nil {
			return nil, err
		}
		if next == "" {
			return payload, nil
		}
		current = next
	}
	// Redirect cap exceeded; the candidate yields nothing.
	return nil, nil
}

func (f *Icon) fetchOnce(ctx context.Context, target string) (payload []byte, next string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", target, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close body: %w", closeErr)
		}
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, "", fmt.Errorf("read body: %w", readErr)
		}
		return body, "", nil
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		loc := resp.Header.Get("Location")
		if loc == "" {
			return nil, "", nil
		}
		return nil, resolveLocation(loc, target), nil
	default:
		return nil, "", nil
	}
}

// resolveLocation applies the same resolution rules as candidate discovery:
// protocol-relative gets the current scheme, root-relative gets the current
// origin, anything else passes through as-is.
func resolveLocation(loc, base string) string {
	switch {
	case strings.HasPrefix(loc, "//"):
		if u, err := url.Parse(base); err == nil && u.Scheme != "" {
			return u.Scheme + ":" + loc
		}
		return "http:" + loc
	case strings.HasPrefix(loc, "/"):
		if u, err := url.Parse(base); err == nil && u.Scheme != "" && u.Host != "" {
			return u.Scheme + "://" + u.Host + loc
		}
		return loc
	default:
		return loc
	}
}
