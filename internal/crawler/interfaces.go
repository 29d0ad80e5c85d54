package crawler

import (
	"context"
	"io"
	"time"
)

// Pusher accepts new tasks into the frontier.
type Pusher interface {
	Push(task Task) error
}

// Popper hands out the next pending task, if any, without blocking.
type Popper interface {
	Pop() (Task, bool)
}

// Validator answers robots-exclusion questions for a URL.
type Validator interface {
	IsAllowed(ctx context.Context, urlType URLType, rawURL string) bool
}

// Executor runs an admitted task to completion.
type Executor interface {
	Execute(ctx context.Context, task Task) error
}

// Fetcher fetches a URL and returns the body plus extracted metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (Page, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes result events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes content digests.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces execution IDs.
type IDGenerator interface {
	NewID() (string, error)
}
