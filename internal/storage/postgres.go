package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kpeis695/ithaca-weather-dashboard/internal/domain/entities"
	"github.com/kpeis695/ithaca-weather-dashboard/internal/domain/ports"
	"github.com/kpeis695/ithaca-weather-dashboard/internal/logger"
)

// The UNIQUE constraint on (location_id, observed_at) is the single source
// of truth for idempotency: concurrent or restarted ingestion processes
// cannot duplicate history regardless of application-level checks.
const readingsSchema = `
	CREATE TABLE IF NOT EXISTS readings (
		location_id           TEXT NOT NULL,
		observed_at           TIMESTAMPTZ NOT NULL,
		fetched_at            TIMESTAMPTZ NOT NULL,
		temperature           DOUBLE PRECISION NOT NULL,
		feels_like            DOUBLE PRECISION NOT NULL,
		humidity              INTEGER NOT NULL,
		pressure              DOUBLE PRECISION NOT NULL,
		visibility            DOUBLE PRECISION NOT NULL,
		wind_speed            DOUBLE PRECISION NOT NULL,
		wind_direction        INTEGER NOT NULL,
		cloud_coverage        INTEGER NOT NULL,
		condition_code        INTEGER NOT NULL,
		condition_main        TEXT NOT NULL DEFAULT '',
		condition_description TEXT NOT NULL DEFAULT '',
		sunrise               TIMESTAMPTZ,
		sunset                TIMESTAMPTZ,
		raw_payload           BYTEA,
		PRIMARY KEY (location_id, observed_at)
	)
`

const readingColumns = `
	location_id, observed_at, fetched_at, temperature, feels_like,
	humidity, pressure, visibility, wind_speed, wind_direction,
	cloud_coverage, condition_code, condition_main, condition_description,
	sunrise, sunset, raw_payload
`

// PostgresStore is the durable reading store backed by pgx.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger logger.Logger
}

func NewPostgresStore(ctx context.Context, databaseURL string, log logger.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping failed: %w", err)
	}

	if _, err := pool.Exec(ctx, readingsSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	store := &PostgresStore{
		pool:   pool,
		logger: log.WithField("component", "postgres_store"),
	}

	store.logger.Info("Postgres reading store initialized")
	return store, nil
}

// Persist inserts the batch inside one transaction. A key that is already
// present is skipped via ON CONFLICT DO NOTHING and counted, not errored.
// Either every non-duplicate reading commits or none do.
func (s *PostgresStore) Persist(ctx context.Context, readings []entities.Reading) (entities.PersistResult, error) {
	var result entities.PersistResult
	if len(readings) == 0 {
		return result, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return result, entities.NewFetchError(entities.ClassStorageFailure,
			fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO readings (` + readingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (location_id, observed_at) DO NOTHING
	`

	for _, r := range readings {
		tag, err := tx.Exec(ctx, query,
			r.LocationID,
			r.ObservedAt,
			r.FetchedAt,
			r.Temperature,
			r.FeelsLike,
			r.Humidity,
			r.Pressure,
			r.Visibility,
			r.WindSpeed,
			r.WindDirection,
			r.CloudCoverage,
			r.ConditionCode,
			r.ConditionMain,
			r.ConditionDescription,
			nullableTime(r.Sunrise),
			nullableTime(r.Sunset),
			r.RawPayload,
		)
		if err != nil {
			return entities.PersistResult{}, entities.NewFetchError(entities.ClassStorageFailure,
				fmt.Errorf("failed to insert reading %s: %w", r.Key(), err))
		}

		if tag.RowsAffected() == 0 {
			result.SkippedDuplicate++
		} else {
			result.Inserted++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return entities.PersistResult{}, entities.NewFetchError(entities.ClassStorageFailure,
			fmt.Errorf("failed to commit batch: %w", err))
	}

	s.logger.Debugf("Persisted batch: %d inserted, %d duplicates skipped",
		result.Inserted, result.SkippedDuplicate)
	return result, nil
}

func (s *PostgresStore) QueryRange(ctx context.Context, locationID string, from, to time.Time) ([]entities.Reading, error) {
	query := `
		SELECT ` + readingColumns + `
		FROM readings
		WHERE location_id = $1 AND observed_at >= $2 AND observed_at <= $3
		ORDER BY observed_at ASC
	`

	rows, err := s.pool.Query(ctx, query, locationID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var results []entities.Reading
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		results = append(results, reading)
	}

	return results, rows.Err()
}

func (s *PostgresStore) LatestReading(ctx context.Context, locationID string) (*entities.Reading, error) {
	query := `
		SELECT ` + readingColumns + `
		FROM readings
		WHERE location_id = $1
		ORDER BY observed_at DESC
		LIMIT 1
	`

	rows, err := s.pool.Query(ctx, query, locationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest reading: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("failed to query latest reading: %w", err)
		}
		return nil, nil
	}

	reading, err := scanReading(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan latest reading: %w", err)
	}
	return &reading, nil
}

func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanReading(rows pgx.Rows) (entities.Reading, error) {
	var r entities.Reading
	var sunrise, sunset *time.Time

	err := rows.Scan(
		&r.LocationID,
		&r.ObservedAt,
		&r.FetchedAt,
		&r.Temperature,
		&r.FeelsLike,
		&r.Humidity,
		&r.Pressure,
		&r.Visibility,
		&r.WindSpeed,
		&r.WindDirection,
		&r.CloudCoverage,
		&r.ConditionCode,
		&r.ConditionMain,
		&r.ConditionDescription,
		&sunrise,
		&sunset,
		&r.RawPayload,
	)
	if err != nil {
		return entities.Reading{}, err
	}

	if sunrise != nil {
		r.Sunrise = *sunrise
	}
	if sunset != nil {
		r.Sunset = *sunset
	}
	return r, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

var _ ports.Store = (*PostgresStore)(nil)
