package collyfetcher_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	collyfetcher "github.com/favicond/favicond/internal/fetcher/colly"
)

func TestFetchPageOK(t *testing.T) {
	t.Parallel()

	const body = `<html><head><link rel="icon" href="/i.png"></head></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	p := collyfetcher.NewPage(collyfetcher.Config{UserAgent: "favicond-test", Timeout: 2 * time.Second})
	resp, err := p.FetchPage(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, body, string(resp.Body))
}

func TestFetchPageFollowsRedirects(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/landing", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/landing", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>landed</html>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := collyfetcher.NewPage(collyfetcher.Config{Timeout: 2 * time.Second})
	resp, err := p.FetchPage(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(resp.Body), "landed")
}

func TestFetchPageServerDown(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	p := collyfetcher.NewPage(collyfetcher.Config{Timeout: time.Second})
	_, err := p.FetchPage(context.Background(), srv.URL)
	assert.Error(t, err)
}
