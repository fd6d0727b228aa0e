package interfaces

import (
	"context"
	"time"
)

// ObjectInfo describes a single object returned by a prefix listing.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
}

// ObjectStore is the blob-storage capability consumed by the catalog and
// package subsystems. Implementations are expected to be strongly consistent
// for single-key operations; listings may be eventually consistent.
type ObjectStore interface {
	// Get retrieves the full contents of an object
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores an object with the given content type and user metadata
	Put(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) error

	// Delete removes an object
	Delete(ctx context.Context, key string) error

	// List enumerates objects under a prefix, up to maxKeys (0 = no limit)
	List(ctx context.Context, prefix string, maxKeys int) ([]ObjectInfo, error)

	// Exists reports whether an object is present
	Exists(ctx context.Context, key string) (bool, error)

	// PublicURL returns the externally reachable URL for a key
	PublicURL(key string) string

	// Bucket returns the name of the backing bucket
	Bucket() string
}
