package crawler

import (
	"context"
	"io"
	"time"

	"github.com/JakeFAU/apartment-crawler/internal/origin"
)

// Fetcher retrieves the body of a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// RawSink persists raw listing markup as it is downloaded.
type RawSink interface {
	InsertRaw(ctx context.Context, record RawRecord) (int64, error)
}

// RawSource reads back persisted raw records for the extraction pass.
type RawSource interface {
	ListRaw(ctx context.Context, query RawQuery) ([]RawRecord, error)
}

// DetailStore persists extracted records.
type DetailStore interface {
	DeleteDetails(ctx context.Context) error
	InsertDetails(ctx context.Context, record ExtractedRecord) error
	ListDetails(ctx context.Context) ([]ExtractedRecord, error)
}

// AddressStore persists geocoded addresses.
type AddressStore interface {
	InsertAddress(ctx context.Context, address Address) error
}

// Store is the full persistence surface used by the CLI stages.
type Store interface {
	RawSink
	RawSource
	DetailStore
	AddressStore
	EnsureSchema(ctx context.Context) error
	RecordRun(ctx context.Context, run Run) error
	ListRuns(ctx context.Context) ([]Run, error)
	ListOrigins(ctx context.Context) ([]origin.Origin, error)
	ListApartments(ctx context.Context) ([]Apartment, error)
	Close()
}

// BlobStore writes artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Hasher produces a hex digest of published content.
type Hasher interface {
	Hash(data []byte) (string, error)
}
