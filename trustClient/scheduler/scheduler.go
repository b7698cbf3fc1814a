package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/pushchain/validator-trust/trustClient/constant"
	trusterrors "github.com/pushchain/validator-trust/trustClient/errors"
	"github.com/pushchain/validator-trust/trustClient/sources"
	"github.com/pushchain/validator-trust/trustClient/validators"
)

type Config struct {
	// RefreshInterval is how long a successfully fetched list stays fresh.
	RefreshInterval time.Duration
	// WakeInterval is the recurring idle-scan wake-up.
	WakeInterval time.Duration
	// FetchTimeout bounds a single fetch. Zero disables it.
	FetchTimeout time.Duration
	// StopTimeout is how long Stop waits for an in-flight fetch.
	StopTimeout time.Duration
	Backoff     BackoffConfig
	Clock       Clock
}

func (c Config) withDefaults() Config {
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = constant.DefaultRefreshInterval
	}
	if c.WakeInterval <= 0 {
		c.WakeInterval = constant.DefaultWakeInterval
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = constant.DefaultStopTimeout
	}
	if c.FetchTimeout < 0 {
		c.FetchTimeout = 0
	}
	if c.Clock == nil {
		c.Clock = systemClock{}
	}
	return c
}

type entry struct {
	src      sources.Source
	schedule *Schedule
	engine   *validators.Engine
}

// Scheduler refreshes registered sources from a single worker goroutine.
//
// Registration and other control calls are queued and executed by the worker
// in order. A queued call interrupts an idle scan between two fetches, never
// during one.
type Scheduler struct {
	cfg     Config
	backoff *backoffPolicy
	logger  zerolog.Logger

	// call queue
	queueMu sync.Mutex
	calls   []func()
	queued  map[string]int
	wakeCh  chan struct{}
	pending atomic.Int64

	// owned by the worker goroutine
	entries []*entry
	index   map[string]*entry

	listeners []Listener
	observers []Observer

	known     atomic.Pointer[validators.Set]
	schedules atomic.Pointer[[]Schedule]

	mu       sync.Mutex
	running  bool
	started  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	cancelFn context.CancelFunc
}

func New(cfg Config, logger zerolog.Logger) *Scheduler {
	cfg = cfg.withDefaults()
	s := &Scheduler{
		cfg:     cfg,
		backoff: newBackoffPolicy(cfg.Backoff, cfg.RefreshInterval),
		logger:  logger.With().Str("component", "scheduler").Logger(),
		queued:  make(map[string]int),
		wakeCh:  make(chan struct{}, 1),
		index:   make(map[string]*entry),
	}
	empty := make(validators.Set, 0)
	s.known.Store(&empty)
	noSchedules := make([]Schedule, 0)
	s.schedules.Store(&noSchedules)
	return s
}

// AddListener subscribes l to fetch deltas. Must be called before Start.
func (s *Scheduler) AddListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// AddObserver subscribes o to fetch attempts. Must be called before Start.
func (s *Scheduler) AddObserver(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Start launches the worker and returns immediately. Calls queued before Start
// run first. A Scheduler cannot be restarted after Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	if s.started {
		return errors.New("scheduler: already stopped")
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	s.cancelFn = cancel
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.running = true
	s.started = true

	go s.run(fetchCtx)

	s.logger.Info().
		Dur("refresh_interval", s.cfg.RefreshInterval).
		Dur("wake_interval", s.cfg.WakeInterval).
		Dur("fetch_timeout", s.cfg.FetchTimeout).
		Bool("retry_backoff", s.backoff != nil).
		Msg("scheduler started")
	return nil
}

// Stop cancels any in-flight fetch and waits up to StopTimeout for the worker
// to exit. Safe to call multiple times.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.cancelFn()
	s.running = false
	doneCh := s.doneCh
	s.mu.Unlock()

	select {
	case <-doneCh:
		s.logger.Info().Msg("scheduler stopped")
	case <-time.After(s.cfg.StopTimeout):
		s.logger.Error().
			Dur("stop_timeout", s.cfg.StopTimeout).
			Msg("source fetch did not return after cancellation; abandoning worker")
	}
}

// RegisterSource queues src for registration. It never blocks and may be called
// from any goroutine, including from inside a Source's Fetch. Registering a
// source whose UniqueID is already known is a no-op.
func (s *Scheduler) RegisterSource(src sources.Source) {
	id := src.UniqueID()
	s.queueMu.Lock()
	s.queued[id]++
	s.queueMu.Unlock()

	s.enqueue(func() {
		s.addSource(src)
		s.settle(id)
	})
}

// settle drops one queued registration of uniqueID once it has been applied.
func (s *Scheduler) settle(uniqueID string) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	switch n := s.queued[uniqueID]; {
	case n > 1:
		s.queued[uniqueID] = n - 1
	case n == 1:
		delete(s.queued, uniqueID)
	}
}

// UnregisterSource queues removal of a source. Its validators leave the known
// set and listeners receive the corresponding delta.
func (s *Scheduler) UnregisterSource(uniqueID string) {
	s.queueMu.Lock()
	delete(s.queued, uniqueID)
	s.queueMu.Unlock()

	s.enqueue(func() { s.removeSource(uniqueID) })
}

// Has reports whether uniqueID is registered or has a registration queued
// that no later UnregisterSource cancels.
func (s *Scheduler) Has(uniqueID string) bool {
	s.queueMu.Lock()
	queued := s.queued[uniqueID] > 0
	s.queueMu.Unlock()
	if queued {
		return true
	}
	_, ok := s.Schedule(uniqueID)
	return ok
}

// ForceRefresh makes a source due immediately. An empty id refreshes all.
func (s *Scheduler) ForceRefresh(uniqueID string) {
	s.enqueue(func() {
		now := s.cfg.Clock.Now()
		for _, e := range s.entries {
			if uniqueID == "" || e.schedule.SourceID == uniqueID {
				e.schedule.NextFetch = now
			}
		}
		s.publishSchedules()
	})
}

// Known returns the union of the validators reported by every registered
// source. The result must not be modified.
func (s *Scheduler) Known() validators.Set {
	return *s.known.Load()
}

// Schedules returns a copy of every source's schedule in registration order.
func (s *Scheduler) Schedules() []Schedule {
	cur := *s.schedules.Load()
	out := make([]Schedule, len(cur))
	copy(out, cur)
	return out
}

// Schedule returns the schedule of one source.
func (s *Scheduler) Schedule(uniqueID string) (Schedule, bool) {
	for _, sch := range *s.schedules.Load() {
		if sch.SourceID == uniqueID {
			return sch, true
		}
	}
	return Schedule{}, false
}

func (s *Scheduler) enqueue(fn func()) {
	s.queueMu.Lock()
	s.calls = append(s.calls, fn)
	s.pending.Add(1)
	s.queueMu.Unlock()

	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

// drainCalls runs queued calls until the queue is empty.
func (s *Scheduler) drainCalls() {
	for {
		s.queueMu.Lock()
		calls := s.calls
		s.calls = nil
		s.queueMu.Unlock()

		if len(calls) == 0 {
			return
		}
		for _, fn := range calls {
			fn()
			s.pending.Add(-1)
		}
	}
}

func (s *Scheduler) stopping() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

func (s *Scheduler) interrupted() bool {
	return s.pending.Load() > 0 || s.stopping()
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.WakeInterval)
	defer ticker.Stop()

	for {
		s.drainCalls()
		if s.stopping() || ctx.Err() != nil {
			return
		}

		s.scan(ctx)
		if s.stopping() || ctx.Err() != nil {
			return
		}
		if s.pending.Load() > 0 {
			continue
		}

		var timer *time.Timer
		var timerC <-chan time.Time
		if wait, ok := s.nextWait(); ok {
			timer = time.NewTimer(wait)
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
		case <-s.stopCh:
		case <-ticker.C:
		case <-s.wakeCh:
		case <-timerC:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

// nextWait returns the time until the earliest NextFetch in the future.
// Sources already due are left to the next wake or queued call.
func (s *Scheduler) nextWait() (time.Duration, bool) {
	now := s.cfg.Clock.Now()
	var earliest time.Time
	for _, e := range s.entries {
		next := e.schedule.NextFetch
		if !next.After(now) {
			continue
		}
		if earliest.IsZero() || next.Before(earliest) {
			earliest = next
		}
	}
	if earliest.IsZero() {
		return 0, false
	}
	return earliest.Sub(now), true
}

// scan fetches every due source in registration order, stopping early when a
// call is queued or Stop is requested.
func (s *Scheduler) scan(ctx context.Context) {
	start := time.Now()
	fetched := 0
	for _, e := range s.entries {
		if !e.schedule.Eligible(s.cfg.Clock.Now()) {
			continue
		}
		s.fetch(ctx, e)
		fetched++

		if s.interrupted() {
			s.logger.Debug().Int("fetched", fetched).Msg("scan interrupted")
			break
		}
	}
	if fetched > 0 {
		s.logger.Debug().
			Int("fetched", fetched).
			Int("known", len(s.Known())).
			Dur("took", time.Since(start)).
			Msg("scan complete")
	}
}

func (s *Scheduler) fetch(parent context.Context, e *entry) {
	ctx := parent
	if s.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, s.cfg.FetchTimeout)
		defer cancel()
	}

	started := s.cfg.Clock.Now()
	res, err := e.src.Fetch(ctx)
	now := s.cfg.Clock.Now()

	attempt := Attempt{
		SourceID: e.schedule.SourceID,
		Name:     e.schedule.Name,
		Started:  started,
		Duration: now.Sub(started),
	}

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !trusterrors.IsSourceError(err, trusterrors.ErrCodeTimeout) {
			err = trusterrors.NewTimeoutError(e.schedule.Name, "fetch timed out", err)
		}
		e.schedule.recordFailure(now, err, s.backoff.delay(e.schedule.ConsecutiveFailures+1))
		attempt.Err = err

		log, msg := s.logger.Warn(), "validator list fetch failed"
		switch {
		case trusterrors.IsCancelled(err):
			log, msg = s.logger.Info(), "validator list fetch cancelled"
		case trusterrors.GetSeverity(err) == trusterrors.SeverityCritical,
			trusterrors.GetSeverity(err) == trusterrors.SeverityHigh:
			log = s.logger.Error()
		case trusterrors.GetSeverity(err) == trusterrors.SeverityInfo:
			log = s.logger.Info()
		}
		log.Err(err).
			Str("source", e.schedule.Name).
			Str("code", string(trusterrors.Code(err))).
			Int("consecutive_failures", e.schedule.ConsecutiveFailures).
			Time("next_fetch", e.schedule.NextFetch).
			Msg(msg)
		s.publishSchedules()
	} else {
		if res == nil {
			res = &sources.Result{}
		}
		delta := e.engine.Merge(res.List)
		e.schedule.recordSuccess(now, res, s.cfg.RefreshInterval)
		attempt.Count = len(res.List)
		attempt.Delta = &delta

		s.publishSchedules()
		known, knownDelta := s.publishKnown()
		s.logger.Info().
			Str("source", e.schedule.Name).
			Int("count", attempt.Count).
			Int("added", len(delta.Added)).
			Int("removed", len(delta.Removed)).
			Int("unchanged", len(delta.Unchanged)).
			Int("known", len(known)).
			Int("known_added", len(knownDelta.Added)).
			Int("known_removed", len(knownDelta.Removed)).
			Str("message", res.Message).
			Time("next_fetch", e.schedule.NextFetch).
			Msg("validator list fetched")

		s.notify(FetchDelta{
			SourceID:   e.schedule.SourceID,
			SourceName: e.schedule.Name,
			Delta:      knownDelta,
			Source:     delta,
			Known:      known,
		})
	}

	attempt.Schedule = *e.schedule
	for _, o := range s.observers {
		o.OnFetchAttempt(attempt)
	}
}

func (s *Scheduler) addSource(src sources.Source) {
	id := src.UniqueID()
	if _, ok := s.index[id]; ok {
		s.logger.Debug().Str("source", src.Name()).Msg("source already registered")
		return
	}

	e := &entry{
		src:      src,
		schedule: newSchedule(src, s.cfg.Clock.Now()),
		engine:   validators.NewEngine(),
	}
	s.entries = append(s.entries, e)
	s.index[id] = e
	s.publishSchedules()

	s.logger.Info().Str("source", src.Name()).Str("source_id", id).Msg("source registered")
}

func (s *Scheduler) removeSource(uniqueID string) {
	e, ok := s.index[uniqueID]
	if !ok {
		s.logger.Debug().Str("source_id", uniqueID).Msg("unregister of unknown source")
		return
	}

	delete(s.index, uniqueID)
	for i, cur := range s.entries {
		if cur == e {
			s.entries = append(s.entries[:i:i], s.entries[i+1:]...)
			break
		}
	}

	if c, ok := e.src.(interface{ Close() }); ok {
		c.Close()
	}

	s.publishSchedules()
	delta := e.engine.Merge(nil)
	known, knownDelta := s.publishKnown()

	s.logger.Info().
		Str("source", e.schedule.Name).
		Int("removed", len(delta.Removed)).
		Int("known_removed", len(knownDelta.Removed)).
		Msg("source unregistered")

	if delta.Changed() {
		s.notify(FetchDelta{
			SourceID:   uniqueID,
			SourceName: e.schedule.Name,
			Delta:      knownDelta,
			Source:     delta,
			Known:      known,
		})
	}
}

// publishKnown recomputes the union of every source's set and returns it with
// its difference from the previously published union.
func (s *Scheduler) publishKnown() (validators.Set, validators.Delta) {
	sets := make([]validators.Set, len(s.entries))
	for i, e := range s.entries {
		sets[i] = e.engine.Known()
	}
	known := validators.Union(sets...)
	delta := validators.Diff(s.Known(), known)
	s.known.Store(&known)
	return known, delta
}

func (s *Scheduler) publishSchedules() {
	out := make([]Schedule, len(s.entries))
	for i, e := range s.entries {
		out[i] = *e.schedule
	}
	s.schedules.Store(&out)
}

func (s *Scheduler) notify(d FetchDelta) {
	for _, l := range s.listeners {
		l.OnFetchDelta(d)
	}
}
