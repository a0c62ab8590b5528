package orchestrator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kpeis695/ithaca-weather-dashboard/internal/domain/entities"
	"github.com/kpeis695/ithaca-weather-dashboard/internal/domain/ports"
	"github.com/kpeis695/ithaca-weather-dashboard/internal/logger"
	"github.com/kpeis695/ithaca-weather-dashboard/internal/quota"
	"github.com/kpeis695/ithaca-weather-dashboard/internal/retry"
)

// Orchestrator fans one poll cycle out across the configured locations,
// isolates per-location failures, and persists each cycle's successes as a
// single batch.
type Orchestrator struct {
	fetcher   ports.Fetcher
	executor  *retry.Executor
	store     ports.Store
	quota     *quota.State
	locations []entities.Location

	// optional collaborators, all best-effort
	cache     ports.Cache
	publisher ports.Publisher
	archiver  ports.Archiver

	mu          sync.Mutex
	lastSuccess map[string]time.Time

	// shutdownGrace bounds the I/O that must survive a cancelled cycle
	// context: the in-flight fetch attempt and the final batch persist.
	shutdownGrace time.Duration

	logger logger.Logger
	now    func() time.Time
}

func NewOrchestrator(
	fetcher ports.Fetcher,
	executor *retry.Executor,
	store ports.Store,
	q *quota.State,
	locations []entities.Location,
	log logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		fetcher:       fetcher,
		executor:      executor,
		store:         store,
		quota:         q,
		locations:     locations,
		lastSuccess:   make(map[string]time.Time),
		shutdownGrace: 15 * time.Second,
		logger:        log.WithField("component", "orchestrator"),
		now:           time.Now,
	}
}

func (o *Orchestrator) WithShutdownGrace(grace time.Duration) *Orchestrator {
	if grace > 0 {
		o.shutdownGrace = grace
	}
	return o
}

func (o *Orchestrator) WithCache(cache ports.Cache) *Orchestrator {
	o.cache = cache
	return o
}

func (o *Orchestrator) WithPublisher(publisher ports.Publisher) *Orchestrator {
	o.publisher = publisher
	return o
}

func (o *Orchestrator) WithArchiver(archiver ports.Archiver) *Orchestrator {
	o.archiver = archiver
	return o
}

// SeedLastSuccess primes the staleness ranking from the store so that a
// restarted process keeps prioritizing correctly.
func (o *Orchestrator) SeedLastSuccess(ctx context.Context) error {
	for _, loc := range o.locations {
		latest, err := o.store.LatestReading(ctx, loc.ID)
		if err != nil {
			return err
		}
		if latest != nil {
			o.markSuccess(loc.ID, latest.FetchedAt)
		}
	}
	return nil
}

// RunCycle executes one full poll cycle. The returned error is non-nil only
// for a cycle-level storage failure; per-location failures are reported in
// the CycleResult.
func (o *Orchestrator) RunCycle(ctx context.Context) (entities.CycleResult, error) {
	result := entities.CycleResult{
		CycleID:   uuid.NewString(),
		StartedAt: o.now().UTC(),
	}
	cycleLog := o.logger.WithField("cycle_id", result.CycleID)

	run, deferred := o.planCycle()
	result.Deferred = deferred
	for _, loc := range deferred {
		cycleLog.Warnf("Deferring location %s: quota budget cannot cover all locations this cycle", loc.ID)
	}

	type outcome struct {
		loc     entities.Location
		reading *entities.Reading
		err     error
	}

	outcomes := make(chan outcome, len(run))
	var wg sync.WaitGroup
	for _, loc := range run {
		wg.Add(1)
		go func(loc entities.Location) {
			defer wg.Done()
			// ctx cancellation stops further attempts, but the attempt
			// already on the wire runs to completion on its own deadline.
			reading, err := o.executor.Execute(ctx, func(context.Context) (*entities.Reading, error) {
				attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.shutdownGrace)
				defer cancel()
				return o.fetcher.Fetch(attemptCtx, loc)
			})
			outcomes <- outcome{loc: loc, reading: reading, err: err}
		}(loc)
	}
	wg.Wait()
	close(outcomes)

	for out := range outcomes {
		if out.err != nil {
			class := entities.ClassOf(out.err)
			cycleLog.Warnf("Location %s failed (%s): %v", out.loc.ID, class, out.err)
			result.Failed = append(result.Failed, entities.LocationFailure{
				Location: out.loc,
				Class:    class,
				Err:      out.err,
			})
			continue
		}
		result.Succeeded = append(result.Succeeded, *out.reading)
		o.markSuccess(out.loc.ID, o.now().UTC())
	}

	// Completed readings are persisted even when the cycle context was
	// cancelled by a shutdown; only the grace timeout bounds the write.
	persistCtx, cancelPersist := context.WithTimeout(context.WithoutCancel(ctx), o.shutdownGrace)
	defer cancelPersist()

	persisted, err := o.store.Persist(persistCtx, result.Succeeded)
	if err != nil {
		// The batch is not re-driven here: the next scheduled cycle
		// proceeds normally and the store's uniqueness constraint keeps
		// any partial state safe.
		cycleLog.Errorf("Batch persistence failed: %v", err)
		return result, err
	}
	result.Persist = persisted

	o.afterPersist(persistCtx, cycleLog, result)

	cycleLog.Infof("Cycle completed: %d succeeded, %d failed, %d deferred, %d inserted, %d duplicates",
		len(result.Succeeded), len(result.Failed), len(result.Deferred),
		persisted.Inserted, persisted.SkippedDuplicate)
	return result, nil
}

// planCycle splits the location set into locations to fetch now and
// locations deferred to the next cycle. When the remaining quota cannot
// cover everything, the least-recently successful locations go first;
// never-fetched locations are the stalest of all.
func (o *Orchestrator) planCycle() (run, deferred []entities.Location) {
	remaining := o.quota.Remaining()
	if remaining >= len(o.locations) {
		return o.locations, nil
	}
	if remaining <= 0 {
		return nil, o.locations
	}

	o.mu.Lock()
	ranked := make([]entities.Location, len(o.locations))
	copy(ranked, o.locations)
	sort.SliceStable(ranked, func(i, j int) bool {
		return o.lastSuccess[ranked[i].ID].Before(o.lastSuccess[ranked[j].ID])
	})
	o.mu.Unlock()

	return ranked[:remaining], ranked[remaining:]
}

// afterPersist fans the committed batch out to the optional collaborators.
// None of them may fail the cycle.
func (o *Orchestrator) afterPersist(ctx context.Context, cycleLog logger.Logger, result entities.CycleResult) {
	if len(result.Succeeded) == 0 {
		return
	}

	if o.cache != nil {
		for _, reading := range result.Succeeded {
			if err := o.cache.SetLatest(ctx, reading); err != nil {
				cycleLog.Warnf("Failed to cache latest reading for %s: %v", reading.LocationID, err)
			}
		}
	}

	if o.publisher != nil {
		if err := o.publisher.PublishBatch(ctx, result.CycleID, result.Succeeded); err != nil {
			cycleLog.Warnf("Failed to publish reading batch: %v", err)
		}
	}

	if o.archiver != nil {
		for _, reading := range result.Succeeded {
			if err := o.archiver.Archive(ctx, reading); err != nil {
				cycleLog.Warnf("Failed to archive raw payload for %s: %v", reading.LocationID, err)
			}
		}
	}
}

func (o *Orchestrator) markSuccess(locationID string, at time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastSuccess[locationID] = at
}
