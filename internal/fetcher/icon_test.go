package fetcher_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/favicond/favicond/internal/fetcher"
)

func newIcon(maxRedirects int) *fetcher.Icon {
	return fetcher.NewIcon(fetcher.IconConfig{
		UserAgent:    "favicond-test",
		IdleTimeout:  2 * time.Second,
		MaxRedirects: maxRedirects,
	})
}

func TestIconFetchOK(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("icon-bytes"))
	}))
	defer srv.Close()

	payload, err := newIcon(5).Fetch(context.Background(), srv.URL+"/favicon.ico")
	require.NoError(t, err)
	assert.Equal(t, []byte("icon-bytes"), payload)
}

func TestIconFetchBadStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	payload, err := newIcon(5).Fetch(context.Background(), srv.URL+"/favicon.ico")
	require.NoError(t, err)
	assert.Nil(t, payload)
}

func TestIconFetchFollowsRedirects(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, _ *http.Request) {
		// Root-relative Location exercises the origin-prefix resolution rule.
		w.Header().Set("Location", "/hop")
		w.WriteHeader(http.StatusMovedPermanently)
	})
	mux.HandleFunc("/hop", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("after-redirect"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	payload, err := newIcon(5).Fetch(context.Background(), srv.URL+"/start")
	require.NoError(t, err)
	assert.Equal(t, []byte("after-redirect"), payload)
}

func TestIconFetchRedirectCap(t *testing.T) {
	t.Parallel()

	hops := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		hops++
		w.Header().Set("Location", fmt.Sprintf("/loop-%d", hops))
		w.WriteHeader(http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	payload, err := newIcon(3).Fetch(context.Background(), srv.URL+"/loop-0")
	require.NoError(t, err)
	assert.Nil(t, payload)
	// hop 0 plus MaxRedirects re-issues, then the loop gives up.
	assert.Equal(t, 4, hops)
}

func TestIconFetchRedirectWithoutLocation(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusFound)
	}))
	defer srv.Close()

	payload, err := newIcon(5).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Nil(t, payload)
}

func TestIconFetchTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	_, err := newIcon(5).Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestIconFetchCanceledContext(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newIcon(5).Fetch(ctx, srv.URL)
	assert.Error(t, err)
}
