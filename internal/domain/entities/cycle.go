package entities

import "time"

// LocationFailure records one location's terminal failure within a cycle.
type LocationFailure struct {
	Location Location
	Class    ErrorClass
	Err      error
}

// CycleResult aggregates the per-location outcomes of one poll cycle.
// Deferred locations were skipped because the remaining quota budget could
// not cover them; they are not failures.
type CycleResult struct {
	CycleID   string
	StartedAt time.Time
	Succeeded []Reading
	Failed    []LocationFailure
	Deferred  []Location
	Persist   PersistResult
}

// PersistResult reports the outcome of one batch insert.
type PersistResult struct {
	Inserted         int
	SkippedDuplicate int
}
