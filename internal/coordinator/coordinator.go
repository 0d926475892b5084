// Package coordinator races candidate icon locations against a dynamically
// growing expectation count and collects the unique payloads.
package coordinator

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/favicond/favicond/internal/favicon"
	"github.com/favicond/favicond/internal/metrics"
)

// Coordinator orchestrates one cold resolution per Resolve call.
type Coordinator struct {
	icons  favicon.IconFetcher
	pages  favicon.PageFetcher
	hasher favicon.Hasher
	logger *zap.Logger
}

// New constructs a Coordinator.
func New(icons favicon.IconFetcher, pages favicon.PageFetcher, hasher favicon.Hasher, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		icons:  icons,
		pages:  pages,
		hasher: hasher,
		logger: logger,
	}
}

// Resolution is the outcome of a completed (or canceled) resolution job.
type Resolution struct {
	// Payloads holds the unique fetched candidates in arrival order.
	Payloads []favicon.Candidate
	// Expected and Arrived report the final join-barrier counters.
	Expected int
	Arrived  int
}

// job is the per-request join state. All fields are guarded by mu; the
// completion predicate (arrived >= expected && htmlResolved) is re-checked
// after every mutation of either operand, because arrival order between the
// static candidates and the HTML-derived ones is unconstrained.
type job struct {
	mu           sync.Mutex
	expected     int
	arrived      int
	htmlResolved bool
	seen         map[string]struct{}
	payloads     []favicon.Candidate
	completed    bool
	done         chan struct{}
}

func newJob(expected int) *job {
	return &job{
		expected: expected,
		seen:     make(map[string]struct{}),
		done:     make(chan struct{}),
	}
}

// grow raises the expectation count. It must be called before the
// corresponding fetch is dispatched so the job cannot complete while that
// fetch is outstanding.
func (j *job) grow(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.expected += n
}

func (j *job) markHTMLResolved() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.htmlResolved = true
	j.completeLocked()
}

// arrive records one candidate completion, deduplicating the payload by
// content digest, and re-evaluates the completion predicate.
func (j *job) arrive(cand favicon.Candidate, digest func([]byte) string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.arrived++
	if len(cand.Payload) > 0 {
		key := digest(cand.Payload)
		if _, dup := j.seen[key]; !dup {
			j.seen[key] = struct{}{}
			j.payloads = append(j.payloads, cand)
		}
	}
	j.completeLocked()
}

func (j *job) completeLocked() {
	if j.completed || !j.htmlResolved || j.arrived < j.expected {
		return
	}
	j.completed = true
	close(j.done)
}

func (j *job) snapshot() Resolution {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Resolution{
		Payloads: append([]favicon.Candidate(nil), j.payloads...),
		Expected: j.expected,
		Arrived:  j.arrived,
	}
}

// Resolve fetches the three well-known root candidates and, concurrently,
// the host's HTML; candidates discovered in the HTML grow the expectation
// count before their fetches dispatch. It returns once every expected fetch
// has reported back and the HTML branch has resolved, or once ctx ends.
func (c *Coordinator) Resolve(ctx context.Context, rootURL, protocol string) Resolution {
	static := favicon.WellKnownCandidates(rootURL)
	j := newJob(len(static))

	for _, cand := range static {
		go c.fetchCandidate(ctx, j, cand)
	}
	go c.resolveHTML(ctx, j, rootURL, protocol)

	select {
	case <-j.done:
	case <-ctx.Done():
		c.logger.Warn("resolution canceled", zap.String("root_url", rootURL), zap.Error(ctx.Err()))
	}
	return j.snapshot()
}

func (c *Coordinator) resolveHTML(ctx context.Context, j *job, rootURL, protocol string) {
	resp, err := c.pages.FetchPage(ctx, rootURL)
	if err != nil {
		c.logger.Debug("html fetch failed", zap.String("root_url", rootURL), zap.Error(err))
		j.markHTMLResolved()
		return
	}

	discovered := favicon.ResolveCandidates(resp.Body, rootURL, protocol)
	c.logger.Debug("html candidates discovered",
		zap.String("root_url", rootURL),
		zap.Int("count", len(discovered)),
	)
	for _, cand := range discovered {
		// Growth strictly precedes dispatch; see job.grow.
		j.grow(1)
		go c.fetchCandidate(ctx, j, cand)
	}
	j.markHTMLResolved()
}

func (c *Coordinator) fetchCandidate(ctx context.Context, j *job, cand favicon.Candidate) {
	payload, err := c.icons.Fetch(ctx, cand.URL)
	switch {
	case err != nil:
		c.logger.Debug("candidate fetch failed", zap.String("url", cand.URL), zap.Error(err))
		metrics.ObserveCandidateFetch("error")
	case len(payload) == 0:
		metrics.ObserveCandidateFetch("empty")
	default:
		metrics.ObserveCandidateFetch("payload")
	}
	cand.Payload = payload
	j.arrive(cand, c.hasher.Digest)
}
