package scheduler

import (
	"time"

	"github.com/pushchain/validator-trust/trustClient/validators"
)

// FetchDelta is published after every successful fetch, and when a source is
// unregistered.
type FetchDelta struct {
	SourceID   string
	SourceName string
	// Delta is the change of the node-wide known set, diffed from the Known
	// published before this fetch.
	validators.Delta
	// Source is the change of this source's own list.
	Source validators.Delta
	Known  validators.Set
}

// Listener receives deltas in order on the worker goroutine. Implementations
// must not block.
type Listener interface {
	OnFetchDelta(FetchDelta)
}

type ListenerFunc func(FetchDelta)

func (f ListenerFunc) OnFetchDelta(d FetchDelta) { f(d) }

// Attempt describes one finished fetch, successful or not.
type Attempt struct {
	SourceID string
	Name     string
	Started  time.Time
	Duration time.Duration
	Count    int
	Err      error
	// Delta is nil when the fetch failed.
	Delta    *validators.Delta
	Schedule Schedule
}

// Observer receives every fetch attempt on the worker goroutine.
type Observer interface {
	OnFetchAttempt(Attempt)
}

type ObserverFunc func(Attempt)

func (f ObserverFunc) OnFetchAttempt(a Attempt) { f(a) }

// Clock abstracts time for the scheduler.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
