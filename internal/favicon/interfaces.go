package favicon

import (
	"context"
	"time"
)

// IconFetcher retrieves a single icon candidate. A nil payload with a nil
// error means the candidate yielded nothing (bad status, redirect cap
// exceeded); transport failures surface as errors and callers treat them
// as "no payload" without failing the job.
type IconFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// PageFetcher retrieves a host's HTML root, following redirects.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) (FetchResponse, error)
}

// ConvertRequest describes one conversion of a raw payload into width-tagged
// files under OutputDir. OutputTemplate contains a %d width placeholder.
type ConvertRequest struct {
	InputPath       string
	OutputDir       string
	OutputTemplate  string
	BackgroundColor string
}

// Converter invokes the external image conversion tool. The core observes
// only success or failure per invocation, never the produced file list.
type Converter interface {
	Convert(ctx context.Context, req ConvertRequest) error
}

// Hasher computes digests for payload deduplication and scratch file naming.
type Hasher interface {
	Digest(data []byte) string
}

// Clock returns the current time (useful for testing TTL behavior).
type Clock interface {
	Now() time.Time
}
