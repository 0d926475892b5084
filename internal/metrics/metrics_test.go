package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeHost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "BareHost", in: "Example.COM", want: "example.com"},
		{name: "FullURL", in: "https://Example.com/path", want: "example.com"},
		{name: "Invalid", in: "://", want: "unknown"},
		{name: "Empty", in: "", want: "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeHost(tt.in))
		})
	}
}

func TestObserveDoesNotPanicWithoutInit(t *testing.T) {
	// Observation helpers initialize lazily; calling them first must be safe.
	assert.NotPanics(t, func() {
		ObserveResolution("example.com", "hit")
		ObserveCacheLookup("miss")
		ObserveCandidateFetch("payload")
		ObserveConversion("ok")
		ObserveHTTPRequest("GET", 200, 10*time.Millisecond)
	})
}

func TestHandlerServesMetrics(t *testing.T) {
	Init()
	ObserveCacheLookup("hit")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "favicond_cache_lookups_total")
}
