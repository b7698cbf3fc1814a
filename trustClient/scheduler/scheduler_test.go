package scheduler

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	trusterrors "github.com/pushchain/validator-trust/trustClient/errors"
	"github.com/pushchain/validator-trust/trustClient/sources"
)

func newTestScheduler(t *testing.T, clock Clock) *Scheduler {
	return New(Config{Clock: clock}, zerolog.New(zerolog.NewTestWriter(t)))
}

type deltaRecorder struct {
	mu     sync.Mutex
	deltas []FetchDelta
	ch     chan FetchDelta
}

func newDeltaRecorder() *deltaRecorder {
	return &deltaRecorder{ch: make(chan FetchDelta, 16)}
}

func (r *deltaRecorder) OnFetchDelta(d FetchDelta) {
	r.mu.Lock()
	r.deltas = append(r.deltas, d)
	r.mu.Unlock()
	r.ch <- d
}

func (r *deltaRecorder) next(t *testing.T) FetchDelta {
	t.Helper()
	select {
	case d := <-r.ch:
		return d
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for fetch delta")
		return FetchDelta{}
	}
}

func TestFailureBookkeeping(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock)

	src := newTestSource("a")
	src.setErr(trusterrors.NewNetworkError("a", "unreachable", nil))
	s.addSource(src)
	registered := clock.Now()

	var attempts []Attempt
	s.AddObserver(ObserverFunc(func(a Attempt) { attempts = append(attempts, a) }))

	for i := 0; i < 3; i++ {
		clock.Advance(time.Minute)
		s.scan(context.Background())
	}

	sch, ok := s.Schedule("a")
	require.True(t, ok)
	assert.Equal(t, StatusFailed, sch.Status)
	assert.Equal(t, 3, sch.ConsecutiveFailures)
	assert.Equal(t, registered, sch.NextFetch)
	assert.Contains(t, sch.LastError, "unreachable")
	assert.Equal(t, int32(3), src.calls.Load())

	require.Len(t, attempts, 3)
	assert.Nil(t, attempts[2].Delta)
	assert.Equal(t, trusterrors.ErrCodeNetwork, trusterrors.Code(attempts[2].Err))
	assert.Equal(t, 3, attempts[2].Schedule.ConsecutiveFailures)
	assert.Empty(t, s.Known())
}

func TestFailureKeepsLastKnownGood(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock)

	src := newTestSource("a", 'A', 'B')
	s.addSource(src)
	s.scan(context.Background())
	assert.Equal(t, "AB", keysOf(s.Known()))

	src.setErr(errors.New("boom"))
	clock.Advance(25 * time.Hour)
	s.scan(context.Background())

	sch, _ := s.Schedule("a")
	assert.Equal(t, StatusFailed, sch.Status)
	assert.Equal(t, "AB", keysOf(s.Known()))

	src.setErr(nil)
	s.scan(context.Background())
	sch, _ = s.Schedule("a")
	assert.Equal(t, StatusFetched, sch.Status)
	assert.Equal(t, 0, sch.ConsecutiveFailures)
}

func TestSchedulingEligibility(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock)

	src := newTestSource("a", 'A')
	s.addSource(src)

	s.scan(context.Background())
	assert.Equal(t, int32(1), src.calls.Load())

	sch, _ := s.Schedule("a")
	assert.Equal(t, clock.Now().Add(24*time.Hour), sch.NextFetch)

	clock.Advance(time.Hour)
	s.scan(context.Background())
	assert.Equal(t, int32(1), src.calls.Load(), "fresh source must not be refetched")

	clock.Advance(23 * time.Hour)
	s.scan(context.Background())
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestEmptySuccessIsNotFailure(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock)

	src := newTestSource("a")
	s.addSource(src)
	s.scan(context.Background())

	sch, _ := s.Schedule("a")
	assert.Equal(t, StatusFetched, sch.Status)
	assert.Equal(t, 0, sch.LastCount)
}

func TestNilResultTreatedAsEmpty(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock)

	src := newTestSource("a", 'A')
	s.addSource(src)
	s.scan(context.Background())

	src.mu.Lock()
	src.nilResult = true
	src.mu.Unlock()
	clock.Advance(24 * time.Hour)
	s.scan(context.Background())
	assert.Empty(t, s.Known())
}

func TestExpirationShortensRefresh(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock)

	src := newTestSource("a")
	src.result = &sources.Result{Expiration: clock.Now().Add(90 * time.Minute)}
	s.addSource(src)
	s.scan(context.Background())

	sch, _ := s.Schedule("a")
	assert.Equal(t, clock.Now().Add(90*time.Minute), sch.NextFetch)

	wait, ok := s.nextWait()
	require.True(t, ok)
	assert.Equal(t, 90*time.Minute, wait)
}

func TestRetryBackoff(t *testing.T) {
	clock := newFakeClock()
	s := New(Config{
		Clock:   clock,
		Backoff: BackoffConfig{Enabled: true, Initial: time.Minute, Max: time.Hour},
	}, zerolog.Nop())

	src := newTestSource("a")
	src.setErr(errors.New("boom"))
	s.addSource(src)

	s.scan(context.Background())
	sch, _ := s.Schedule("a")
	assert.Equal(t, clock.Now().Add(time.Minute), sch.NextFetch)

	s.scan(context.Background())
	assert.Equal(t, int32(1), src.calls.Load(), "backoff must delay the retry")

	clock.Advance(time.Minute)
	s.scan(context.Background())
	sch, _ = s.Schedule("a")
	assert.Equal(t, 2, sch.ConsecutiveFailures)
	assert.Equal(t, clock.Now().Add(2*time.Minute), sch.NextFetch)
}

func TestFailingSourceDoesNotBlockOthers(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock)

	bad := newTestSource("bad")
	bad.setErr(errors.New("boom"))
	good := newTestSource("good", 'G')
	s.addSource(bad)
	s.addSource(good)

	s.scan(context.Background())
	assert.Equal(t, "G", keysOf(s.Known()))

	schedules := s.Schedules()
	require.Len(t, schedules, 2)
	assert.Equal(t, "bad", schedules[0].SourceID)
	assert.Equal(t, StatusFailed, schedules[0].Status)
	assert.Equal(t, StatusFetched, schedules[1].Status)
}

func TestScanInterruptedByQueuedCall(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock)

	a := newTestSource("a", 'A')
	b := newTestSource("b", 'B')
	a.hook = func(context.Context) error {
		s.UnregisterSource("b")
		return nil
	}
	s.addSource(a)
	s.addSource(b)

	s.scan(context.Background())
	assert.Equal(t, int32(1), a.calls.Load())
	assert.Equal(t, int32(0), b.calls.Load(), "scan must stop after the interrupted fetch")

	s.drainCalls()
	require.Len(t, s.Schedules(), 1)
	assert.Equal(t, "a", s.Schedules()[0].SourceID)
	assert.Equal(t, int64(0), s.pending.Load())
}

func TestInterruptedScanResumesWithRemainingSources(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock)

	a := newTestSource("a", 'A')
	b := newTestSource("b", 'B')
	c := newTestSource("c", 'C')
	a.hook = func(context.Context) error {
		s.ForceRefresh("c")
		return nil
	}
	s.addSource(a)
	s.addSource(b)
	s.addSource(c)

	s.scan(context.Background())
	assert.Equal(t, int32(1), a.calls.Load())
	assert.Equal(t, int32(0), b.calls.Load())
	assert.Equal(t, int32(0), c.calls.Load())

	s.drainCalls()
	s.scan(context.Background())
	assert.Equal(t, int32(1), a.calls.Load(), "a is not due again")
	assert.Equal(t, int32(1), b.calls.Load())
	assert.Equal(t, int32(1), c.calls.Load())
	assert.Equal(t, "ABC", keysOf(s.Known()))
}

func TestHasSeesQueuedRegistrations(t *testing.T) {
	s := newTestScheduler(t, newFakeClock())

	s.RegisterSource(newTestSource("a", 'A'))
	_, published := s.Schedule("a")
	assert.False(t, published)
	assert.True(t, s.Has("a"))
	assert.False(t, s.Has("b"))

	s.UnregisterSource("a")
	assert.False(t, s.Has("a"))

	s.RegisterSource(newTestSource("b", 'B'))
	s.drainCalls()
	_, published = s.Schedule("b")
	assert.True(t, published)
	assert.True(t, s.Has("b"))
	assert.False(t, s.Has("a"))
}

// requireConsistent checks that d describes the change that produced d.Known.
func requireConsistent(t *testing.T, d FetchDelta) {
	t.Helper()
	for _, r := range d.Removed {
		require.False(t, d.Known.Contains(r.PublicKey), "removed %s is still known", r.PublicKey)
	}
	for _, r := range append(d.Added.Clone(), d.Unchanged...) {
		require.True(t, d.Known.Contains(r.PublicKey), "%s missing from known", r.PublicKey)
	}
	require.Equal(t, len(d.Known), len(d.Added)+len(d.Unchanged))
}

func TestSourcesAreIndependent(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock)
	rec := newDeltaRecorder()
	s.AddListener(rec)

	a := newTestSource("a", 'A', 'B')
	b := newTestSource("b", 'B', 'C')
	s.addSource(a)
	s.addSource(b)
	s.scan(context.Background())

	first := rec.next(t)
	requireConsistent(t, first)
	assert.Equal(t, "a", first.SourceID)
	assert.Equal(t, "AB", keysOf(first.Added))
	assert.Equal(t, "AB", keysOf(first.Source.Added))
	assert.Equal(t, "AB", keysOf(first.Known))

	// B was already known through a.
	second := rec.next(t)
	requireConsistent(t, second)
	assert.Equal(t, "b", second.SourceID)
	assert.Equal(t, "C", keysOf(second.Added))
	assert.Equal(t, "B", keysOf(second.Unchanged))
	assert.Equal(t, "BC", keysOf(second.Source.Added))
	assert.Equal(t, "ABC", keysOf(second.Known))

	// b dropping B must not remove a's B.
	b.setKeys('C')
	clock.Advance(24 * time.Hour)
	s.ForceRefresh("b")
	s.drainCalls()
	s.scan(context.Background())
	requireConsistent(t, rec.next(t))
	third := rec.next(t)
	requireConsistent(t, third)
	assert.Empty(t, third.Removed)
	assert.Empty(t, third.Added)
	assert.Equal(t, "ABC", keysOf(third.Unchanged))
	assert.Equal(t, "B", keysOf(third.Source.Removed))
	assert.Equal(t, "ABC", keysOf(s.Known()))

	s.removeSource("a")
	removed := rec.next(t)
	requireConsistent(t, removed)
	assert.Equal(t, "a", removed.SourceID)
	assert.Equal(t, "AB", keysOf(removed.Removed))
	assert.Equal(t, "AB", keysOf(removed.Source.Removed))
	assert.Equal(t, "C", keysOf(s.Known()))
}

func TestRemovingSharedKeySourceKeepsKey(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock)
	rec := newDeltaRecorder()
	s.AddListener(rec)

	s.addSource(newTestSource("a", 'A', 'B'))
	s.addSource(newTestSource("b", 'B', 'C'))
	s.scan(context.Background())
	rec.next(t)
	rec.next(t)

	s.removeSource("b")
	d := rec.next(t)
	requireConsistent(t, d)
	assert.Equal(t, "C", keysOf(d.Removed))
	assert.Equal(t, "AB", keysOf(d.Unchanged))
	assert.Equal(t, "BC", keysOf(d.Source.Removed))
}

func TestDuplicateRegistrationIgnored(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock)

	s.addSource(newTestSource("a"))
	s.addSource(newTestSource("a"))
	assert.Len(t, s.Schedules(), 1)

	s.removeSource("missing")
	assert.Len(t, s.Schedules(), 1)
}

func TestNextWaitIgnoresDueSources(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock)

	_, ok := s.nextWait()
	assert.False(t, ok)

	failing := newTestSource("a")
	failing.setErr(errors.New("boom"))
	s.addSource(failing)
	s.scan(context.Background())

	_, ok = s.nextWait()
	assert.False(t, ok, "a failed source waits for the next wake")

	s.addSource(newTestSource("b"))
	s.scan(context.Background())
	wait, ok := s.nextWait()
	require.True(t, ok)
	assert.Equal(t, 24*time.Hour, wait)
}

func TestFetchTimeout(t *testing.T) {
	s := New(Config{FetchTimeout: 20 * time.Millisecond}, zerolog.New(zerolog.NewTestWriter(t)))

	src := newTestSource("slow")
	src.hook = func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	s.addSource(src)

	var got Attempt
	s.AddObserver(ObserverFunc(func(a Attempt) { got = a }))
	s.scan(context.Background())

	assert.Equal(t, trusterrors.ErrCodeTimeout, trusterrors.Code(got.Err))
	assert.False(t, trusterrors.IsCancelled(got.Err))
	assert.Equal(t, 1, got.Schedule.ConsecutiveFailures)
}

func TestSchedulerEndToEnd(t *testing.T) {
	s := New(Config{WakeInterval: time.Hour}, zerolog.New(zerolog.NewTestWriter(t)))
	rec := newDeltaRecorder()
	s.AddListener(rec)

	src := newTestSource("list", 'A', 'B', 'C')
	s.RegisterSource(src)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	first := rec.next(t)
	assert.Equal(t, "ABC", keysOf(first.Added))
	assert.Empty(t, first.Removed)
	assert.Empty(t, first.Unchanged)

	src.setKeys('B', 'C', 'D')
	s.ForceRefresh("list")

	second := rec.next(t)
	assert.Equal(t, "D", keysOf(second.Added))
	assert.Equal(t, "A", keysOf(second.Removed))
	assert.Equal(t, "BC", keysOf(second.Unchanged))
	assert.Equal(t, "BCD", keysOf(s.Known()))
}

func TestRegisterFromInsideFetch(t *testing.T) {
	s := New(Config{}, zerolog.New(zerolog.NewTestWriter(t)))
	rec := newDeltaRecorder()
	s.AddListener(rec)

	late := newTestSource("late", 'L')
	var once sync.Once
	first := newTestSource("first", 'F')
	first.hook = func(context.Context) error {
		once.Do(func() { s.RegisterSource(late) })
		return nil
	}

	s.RegisterSource(first)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	rec.next(t)
	d := rec.next(t)
	assert.Equal(t, "late", d.SourceID)
	assert.Equal(t, "FL", keysOf(s.Known()))
}

func TestStopCancelsInFlightFetch(t *testing.T) {
	var logs bytes.Buffer
	s := New(Config{}, zerolog.New(&logs))

	started := make(chan struct{})
	src := newTestSource("slow")
	src.hook = func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return trusterrors.NewCancelledError("slow", ctx.Err())
	}

	attempts := make(chan Attempt, 1)
	s.AddObserver(ObserverFunc(func(a Attempt) { attempts <- a }))
	s.RegisterSource(src)
	require.NoError(t, s.Start(context.Background()))

	<-started
	s.Stop()

	select {
	case a := <-attempts:
		assert.True(t, trusterrors.IsCancelled(a.Err))
		assert.Equal(t, StatusFailed, a.Schedule.Status)
	default:
		t.Fatal("observer was not told about the cancelled fetch")
	}

	var logged bool
	for _, line := range strings.Split(logs.String(), "\n") {
		if strings.Contains(line, "validator list fetch cancelled") {
			logged = true
			assert.Contains(t, line, `"level":"info"`)
		}
		assert.NotContains(t, line, "validator list fetch failed")
	}
	assert.True(t, logged, "cancelled fetch was not logged")

	// Stop is idempotent and the scheduler cannot be restarted.
	s.Stop()
	assert.Error(t, s.Start(context.Background()))
}

func TestStopTimeout(t *testing.T) {
	// The worker outlives the test, so it must not log through t.
	s := New(Config{StopTimeout: 50 * time.Millisecond}, zerolog.Nop())

	started := make(chan struct{})
	release := make(chan struct{})
	src := newTestSource("stuck")
	src.hook = func(context.Context) error {
		close(started)
		<-release
		return nil
	}
	s.RegisterSource(src)
	require.NoError(t, s.Start(context.Background()))
	<-started

	begin := time.Now()
	s.Stop()
	elapsed := time.Since(begin)
	close(release)

	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)
}
