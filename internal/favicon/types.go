package favicon

import "time"

// Candidate is a URL believed to reference a favicon image, plus optional
// metadata. Payload is attached once the candidate has been fetched and is
// never mutated afterwards.
type Candidate struct {
	URL             string
	BackgroundColor string
	Payload         []byte
}

// CachedIcon points at a width-tagged file inside a host's cache directory.
type CachedIcon struct {
	Width int
	Path  string
}

// Result is what the service hands back to the HTTP shell.
type Result struct {
	Path        string
	ContentType string
}

// FetchResponse carries the outcome of a single page fetch.
type FetchResponse struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}
