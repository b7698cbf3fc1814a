package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pushchain/validator-trust/trustClient/sources"
	"github.com/pushchain/validator-trust/trustClient/validators"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testSource struct {
	id    string
	calls atomic.Int32

	mu     sync.Mutex
	list   []validators.Record
	err    error
	result *sources.Result
	hook   func(ctx context.Context) error

	// nilResult makes Fetch succeed with a nil Result.
	nilResult bool
}

func newTestSource(id string, keys ...byte) *testSource {
	s := &testSource{id: id}
	s.setKeys(keys...)
	return s
}

func (s *testSource) setKeys(keys ...byte) {
	list := make([]validators.Record, len(keys))
	for i, k := range keys {
		list[i] = validators.Record{PublicKey: validators.PublicKey{k}, Label: string(k)}
	}
	s.mu.Lock()
	s.list = list
	s.mu.Unlock()
}

func (s *testSource) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *testSource) Fetch(ctx context.Context) (*sources.Result, error) {
	s.calls.Add(1)

	s.mu.Lock()
	hook := s.hook
	s.mu.Unlock()
	if hook != nil {
		if err := hook(ctx); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if s.nilResult {
		return nil, nil
	}
	if s.result != nil {
		return s.result, nil
	}
	return &sources.Result{List: append([]validators.Record(nil), s.list...)}, nil
}

func (s *testSource) Name() string        { return "test " + s.id }
func (s *testSource) UniqueID() string    { return s.id }
func (s *testSource) CreateParam() string { return "test:" + s.id }

func keysOf(set validators.Set) string {
	out := make([]byte, 0, len(set))
	for _, r := range set {
		out = append(out, r.PublicKey[0])
	}
	return string(out)
}
