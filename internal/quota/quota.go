package quota

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kpeis695/ithaca-weather-dashboard/internal/domain/entities"
)

// State tracks the remaining provider call budget for the current daily
// window plus a per-minute limiter. It is shared by every concurrent fetch
// task, so all access is synchronized. Window rollover is a pure function of
// the injected clock.
type State struct {
	mu          sync.Mutex
	dailyLimit  int
	used        int
	windowStart time.Time
	perMinute   *rate.Limiter
	now         func() time.Time
}

// Option configures a State.
type Option func(*State)

// WithClock injects a time source, used by tests to drive window rollover.
func WithClock(now func() time.Time) Option {
	return func(s *State) { s.now = now }
}

// New creates a quota state with a daily call budget and a per-minute rate
// limit. A perMinuteLimit of 0 disables the per-minute limiter.
func New(dailyLimit, perMinuteLimit int, opts ...Option) *State {
	s := &State{
		dailyLimit: dailyLimit,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if perMinuteLimit > 0 {
		s.perMinute = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinuteLimit)), perMinuteLimit)
	}
	s.windowStart = dayStart(s.now())
	return s
}

// Reservation is one granted call. Refund returns it in full when the
// attempt never reached the network (open circuit breaker).
type Reservation struct {
	state     *State
	perMinute *rate.Reservation
	once      sync.Once
}

// Refund returns both the daily unit and the per-minute token. Safe to call
// more than once; only the first call has effect.
func (r *Reservation) Refund() {
	if r == nil {
		return
	}
	r.once.Do(func() {
		s := r.state
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.used > 0 {
			s.used--
		}
		if r.perMinute != nil {
			r.perMinute.CancelAt(s.now())
		}
	})
}

// Reserve charges one call against the budget. It fails with a
// quota_exceeded error when the daily window or the per-minute limit would
// be exceeded, in which case nothing is charged.
func (s *State) Reserve() (*Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.rollover(now)

	if s.used >= s.dailyLimit {
		return nil, entities.NewFetchError(entities.ClassQuotaExceeded, errors.New("daily call budget exhausted"))
	}

	var rsv *rate.Reservation
	if s.perMinute != nil {
		rsv = s.perMinute.ReserveN(now, 1)
		if !rsv.OK() || rsv.DelayFrom(now) > 0 {
			rsv.CancelAt(now)
			return nil, entities.NewFetchError(entities.ClassQuotaExceeded, errors.New("per-minute call budget exhausted"))
		}
	}

	s.used++
	return &Reservation{state: s, perMinute: rsv}, nil
}

// Remaining reports the calls left in the current daily window.
func (s *State) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rollover(s.now())
	return s.dailyLimit - s.used
}

// rollover resets the counter when the daily window has moved on.
// Caller holds the lock.
func (s *State) rollover(now time.Time) {
	if start := dayStart(now); start.After(s.windowStart) {
		s.windowStart = start
		s.used = 0
	}
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
