package validators

import (
	"fmt"
	"sync/atomic"
)

// Engine holds a known set and reconciles new snapshots against it.
//
// Merge must only be called from a single goroutine. Known may be called from
// anywhere and returns the set published by the last Merge.
type Engine struct {
	known atomic.Pointer[Set]
}

func NewEngine() *Engine {
	e := &Engine{}
	empty := make(Set, 0)
	e.known.Store(&empty)
	return e
}

// Known returns the current known set. The result must not be modified.
func (e *Engine) Known() Set {
	return *e.known.Load()
}

// Merge replaces the known set with records and reports the difference.
// The input slice is not modified.
func (e *Engine) Merge(records []Record) Delta {
	next := Normalize(records)
	d := Diff(e.Known(), next)
	e.known.Store(&next)
	return d
}

// Reset drops the known set without producing a delta.
func (e *Engine) Reset() {
	empty := make(Set, 0)
	e.known.Store(&empty)
}

func verify(prior, next Set, d Delta) error {
	if !next.sorted() {
		return fmt.Errorf("new known set is not strictly ordered")
	}
	if len(d.Added)+len(d.Unchanged) != len(next) {
		return fmt.Errorf("added %d + unchanged %d != new %d", len(d.Added), len(d.Unchanged), len(next))
	}
	if len(d.Removed)+len(d.Unchanged) != len(prior) {
		return fmt.Errorf("removed %d + unchanged %d != prior %d", len(d.Removed), len(d.Unchanged), len(prior))
	}
	// Added and Removed are both sorted, so a shared key is found in one pass.
	i, j := 0, 0
	for i < len(d.Added) && j < len(d.Removed) {
		switch c := d.Added[i].PublicKey.Compare(d.Removed[j].PublicKey); {
		case c < 0:
			i++
		case c > 0:
			j++
		default:
			return fmt.Errorf("key %s both added and removed", d.Added[i].PublicKey)
		}
	}
	return nil
}
