package evidence

import (
	"context"
	"io"
	"time"
)

// Table is the evidence table as the client sees it.
type Table interface {
	ListByUser(ctx context.Context, userID string) ([]Evidence, error)
	Insert(ctx context.Context, rec NewRecord) error
	Delete(ctx context.Context, id string) error
}

// Repository is the full table contract used by the functions, which own
// analysis persistence.
type Repository interface {
	Table
	Get(ctx context.Context, id string) (*Evidence, error)
	ListByIDs(ctx context.Context, ids []string) ([]Evidence, error)
	SaveAnalysis(ctx context.Context, id string, a Analysis) error
}

// FileStore is the evidence bucket.
type FileStore interface {
	Upload(ctx context.Context, path string, body io.Reader, size int64, contentType string) error
	Remove(ctx context.Context, paths ...string) error
}

// ObjectReader opens stored objects for reading.
type ObjectReader interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// ArtifactStore keeps generated artifacts and hands out download URLs.
type ArtifactStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	URL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// FunctionInvoker calls a named remote function with a JSON body and decodes
// the JSON response into out.
type FunctionInvoker interface {
	Invoke(ctx context.Context, name string, body any, out any) error
}
