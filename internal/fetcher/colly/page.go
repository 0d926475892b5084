// Package collyfetcher implements the HTML root fetch using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/favicond/favicond/internal/favicon"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Page implements favicon.PageFetcher using the Colly collector. Redirects
// are followed by the underlying transport; the caller sees the final body.
type Page struct {
	cfg           Config
	baseCollector *colly.Collector
}

// NewPage builds a Page fetcher.
func NewPage(cfg Config) *Page {
	c := colly.NewCollector(colly.Async(false))
	// Favicons are fetched on behalf of a browser user; robots.txt does not
	// apply to them any more than it does to a browser tab.
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport())

	return &Page{
		cfg:           cfg,
		baseCollector: c,
	}
}

// FetchPage executes a single HTML GET and returns the final body.
func (p *Page) FetchPage(ctx context.Context, url string) (favicon.FetchResponse, error) {
	var (
		result   favicon.FetchResponse
		fetchErr error
	)
	start := time.Now()

	collector := p.baseCollector.Clone()
	collector.IgnoreRobotsTxt = true
	if p.cfg.UserAgent != "" {
		collector.UserAgent = p.cfg.UserAgent
	}
	timeout := p.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)

	collector.OnResponse(func(r *colly.Response) {
		result = favicon.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return favicon.FetchResponse{}, fmt.Errorf("page fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return favicon.FetchResponse{}, fmt.Errorf("page visit failed: %w", err)
		}
		if fetchErr != nil {
			return favicon.FetchResponse{}, fmt.Errorf("page response failed: %w", fetchErr)
		}
		return result, nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
