package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/favicond/favicond/internal/api"
	"github.com/favicond/favicond/internal/favicon"
)

type stubProvider struct {
	mu      sync.Mutex
	targets []string
	sizes   []int
	result  favicon.Result
}

func (p *stubProvider) Get(_ context.Context, hostOrURL string, size int) (favicon.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.targets = append(p.targets, hostOrURL)
	p.sizes = append(p.sizes, size)
	return p.result, nil
}

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.targets)
}

func serve(t *testing.T, s *api.Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	s := api.NewServer(&stubProvider{}, api.Config{}, nil)
	assert.Equal(t, http.StatusOK, serve(t, s, "/healthz").Code)
	assert.Equal(t, http.StatusOK, serve(t, s, "/readyz").Code)

	rec := serve(t, s, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIconServesFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "icon-16.png")
	require.NoError(t, os.WriteFile(path, []byte("png-bytes"), 0o600))

	provider := &stubProvider{result: favicon.Result{Path: path, ContentType: "image/png"}}
	s := api.NewServer(provider, api.Config{DefaultSize: 16}, nil)

	rec := serve(t, s, "/example.com?size=32")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png-bytes", rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	require.Equal(t, 1, provider.callCount())
	assert.Equal(t, "example.com", provider.targets[0])
	assert.Equal(t, 32, provider.sizes[0])
}

func TestIconDefaultSize(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{}
	s := api.NewServer(provider, api.Config{DefaultSize: 24}, nil)

	rec := serve(t, s, "/example.com")
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, provider.callCount())
	assert.Equal(t, 24, provider.sizes[0])
}

func TestIconBadSizeFallsBackToDefault(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{}
	s := api.NewServer(provider, api.Config{DefaultSize: 16}, nil)

	serve(t, s, "/example.com?size=banana")
	serve(t, s, "/example.com?size=-4")
	require.Equal(t, 2, provider.callCount())
	assert.Equal(t, []int{16, 16}, provider.sizes)
}

func TestIconEmptyResult(t *testing.T) {
	t.Parallel()

	s := api.NewServer(&stubProvider{}, api.Config{}, nil)
	rec := serve(t, s, "/unresolvable.example")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestSelfIconBypassesPipeline(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{}
	s := api.NewServer(provider, api.Config{}, nil)

	rec := serve(t, s, "/favicon.ico")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, 0, provider.callCount(), "self icon must not invoke the pipeline")
}

func TestSelfIconServesDefaultImage(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "default.png")
	require.NoError(t, os.WriteFile(path, []byte("default-bytes"), 0o600))

	s := api.NewServer(&stubProvider{}, api.Config{DefaultImage: path}, nil)
	rec := serve(t, s, "/favicon.ico")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "default-bytes", rec.Body.String())
}

func TestIconWithURLishPath(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{}
	s := api.NewServer(provider, api.Config{DefaultSize: 16}, nil)

	serve(t, s, "/https://example.com")
	require.Equal(t, 1, provider.callCount())
	assert.Equal(t, "https://example.com", provider.targets[0])
}
