package crawler

import (
	"context"
	"time"
)

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// BlobStore reads and writes whole objects. Writes replace the object atomically.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
	GetObject(ctx context.Context, path string) ([]byte, error)
}

// Pauser sleeps between attempts. Tests swap in a recorder.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration)
}

// Pacer enforces a minimum interval between requests to the same host.
type Pacer interface {
	Wait(ctx context.Context, url string) error
}

// Hasher computes digests for change detection.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// PlaceSearcher finds places matching a free-text query. Zero candidates is a
// normal outcome. Quota and credential failures surface as ErrQuotaExhausted
// and ErrCredentialRejected.
type PlaceSearcher interface {
	FindPlace(ctx context.Context, query string) ([]PlaceCandidate, error)
}
