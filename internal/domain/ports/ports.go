package ports

import (
	"context"
	"time"

	"github.com/kpeis695/ithaca-weather-dashboard/internal/domain/entities"
)

// Fetcher retrieves and normalizes one location's current conditions.
type Fetcher interface {
	Fetch(ctx context.Context, loc entities.Location) (*entities.Reading, error)
	HealthCheck(ctx context.Context) error
}

// Store is the durable, idempotent reading store. Persist is atomic per
// batch; the (location_id, observed_at) uniqueness constraint lives in the
// storage layer, not in application logic.
type Store interface {
	Persist(ctx context.Context, readings []entities.Reading) (entities.PersistResult, error)
	QueryRange(ctx context.Context, locationID string, from, to time.Time) ([]entities.Reading, error)
	LatestReading(ctx context.Context, locationID string) (*entities.Reading, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

// Cache is a best-effort latest-reading cache in front of the store.
type Cache interface {
	SetLatest(ctx context.Context, reading entities.Reading) error
	GetLatest(ctx context.Context, locationID string) (*entities.Reading, error)
	Close() error
}

// Publisher emits persisted readings for downstream analytics consumers.
type Publisher interface {
	PublishBatch(ctx context.Context, cycleID string, readings []entities.Reading) error
	HealthCheck(ctx context.Context) error
	Close() error
}

// Archiver mirrors verbatim provider payloads to object storage for
// forward-compatible reprocessing.
type Archiver interface {
	Archive(ctx context.Context, reading entities.Reading) error
}
