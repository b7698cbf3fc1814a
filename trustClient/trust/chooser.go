package trust

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/pushchain/validator-trust/trustClient/scheduler"
	"github.com/pushchain/validator-trust/trustClient/validators"
)

// ChosenSet is the output of a Filter run.
type ChosenSet struct {
	Validators validators.Set `json:"validators"`

	// Sufficient is false when fewer than Required validators were chosen.
	Sufficient bool      `json:"sufficient"`
	Required   int       `json:"required"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Listener interface {
	OnChosen(ChosenSet)
}

type ListenerFunc func(ChosenSet)

func (f ListenerFunc) OnChosen(c ChosenSet) { f(c) }

// Chooser reruns the filter whenever the known set changes and publishes the
// resulting ChosenSet. It is a scheduler.Listener and runs on the scheduler's
// worker goroutine.
type Chooser struct {
	filter   Filter
	required int
	logger   zerolog.Logger
	now      func() time.Time

	mu        sync.Mutex
	listeners []Listener

	chosen atomic.Pointer[ChosenSet]
}

var _ scheduler.Listener = (*Chooser)(nil)

func NewChooser(filter Filter, minChosen int, logger zerolog.Logger) *Chooser {
	if filter == nil {
		filter = KnownFilter{}
	}
	if minChosen < 0 {
		minChosen = 0
	}
	c := &Chooser{
		filter:   filter,
		required: minChosen,
		logger:   logger.With().Str("component", "trust_chooser").Logger(),
		now:      time.Now,
	}
	c.chosen.Store(&ChosenSet{
		Validators: make(validators.Set, 0),
		Sufficient: minChosen == 0,
		Required:   minChosen,
	})
	return c
}

func (c *Chooser) AddListener(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Chosen returns the latest ChosenSet. The result must not be modified.
func (c *Chooser) Chosen() ChosenSet {
	return *c.chosen.Load()
}

func (c *Chooser) OnFetchDelta(d scheduler.FetchDelta) {
	prev := c.Chosen()
	if !d.Changed() && !prev.UpdatedAt.IsZero() && !relabeled(prev.Validators, d.Unchanged) {
		return
	}
	c.Update(d.Known)
}

// relabeled reports whether a record in unchanged is chosen under a
// different label.
func relabeled(chosen, unchanged validators.Set) bool {
	for _, r := range unchanged {
		if prev, ok := chosen.Find(r.PublicKey); ok && prev.Label != r.Label {
			return true
		}
	}
	return false
}

// Update runs the filter over known and notifies listeners when the chosen
// records or their sufficiency changed.
func (c *Chooser) Update(known validators.Set) ChosenSet {
	prev := c.Chosen()
	chosen := validators.Normalize(c.filter.Choose(known))
	next := ChosenSet{
		Validators: chosen,
		Sufficient: len(chosen) >= c.required,
		Required:   c.required,
		UpdatedAt:  c.now(),
	}
	c.chosen.Store(&next)

	if !next.Sufficient {
		c.logger.Warn().
			Int("chosen", len(chosen)).
			Int("required", c.required).
			Msg("not enough trusted validators")
	}

	if sameRecords(prev.Validators, chosen) && prev.Sufficient == next.Sufficient && !prev.UpdatedAt.IsZero() {
		return next
	}

	c.logger.Info().
		Int("known", len(known)).
		Int("chosen", len(chosen)).
		Bool("sufficient", next.Sufficient).
		Msg("trusted validator set updated")

	c.mu.Lock()
	listeners := append([]Listener(nil), c.listeners...)
	c.mu.Unlock()
	for _, l := range listeners {
		l.OnChosen(next)
	}
	return next
}

func sameRecords(a, b validators.Set) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].PublicKey.Equal(b[i].PublicKey) || a[i].Label != b[i].Label {
			return false
		}
	}
	return true
}
