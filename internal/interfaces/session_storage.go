package interfaces

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ternarybob/tailor/internal/models"
)

// SessionStorage defines persistence for session records. Implementations
// must enforce the per-property size ceiling on Put (offloading oversized
// properties to blob storage) and expand offload pointers on Get.
type SessionStorage interface {
	// Get retrieves a session by ID with all offloaded properties expanded.
	// Returns models.ErrSessionNotFound if absent.
	Get(ctx context.Context, sessionID string) (*models.SessionRecord, error)

	// Put persists a session record. The write fails with
	// models.ErrVersionConflict when the stored version no longer matches
	// record.Version; on success the stored version is record.Version+1.
	Put(ctx context.Context, record *models.SessionRecord) error

	// RawGet retrieves the record exactly as stored, offload pointers
	// included. Diagnostic use only.
	RawGet(ctx context.Context, sessionID string) (*models.SessionRecord, error)

	// Delete removes a session and its offloaded blobs
	Delete(ctx context.Context, sessionID string) error

	// ListExpired returns the IDs of sessions whose ExpiresAt is before now
	ListExpired(ctx context.Context, now time.Time) ([]string, error)

	// Search returns session IDs whose stored JSON contains the query text.
	// Intended for operator tooling, not hot paths.
	Search(ctx context.Context, query string, limit int) ([]string, error)
}

// BlobStorage stores artifacts that do not fit in session properties:
// offloaded metadata, generated PDFs, photos.
type BlobStorage interface {
	// Put stores data under key, returning the sha256 of the content
	Put(ctx context.Context, key string, data []byte) (string, error)

	// Get retrieves a blob. Returns models.ErrBlobNotFound if absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes a blob; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every blob whose key starts with prefix and
	// returns the number removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)

	// Close releases the underlying store
	Close() error
}

// PropertyCodec is implemented by the session service so the storage layer
// can ask it to shrink a metadata property that is still oversized after
// offload. Returns the shrunk value or false when nothing more can go.
type PropertyCodec interface {
	Shrink(property string, value json.RawMessage) (json.RawMessage, bool)
}
