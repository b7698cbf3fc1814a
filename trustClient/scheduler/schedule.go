package scheduler

import (
	"fmt"
	"time"

	"github.com/pushchain/validator-trust/trustClient/sources"
)

// Status is the fetch state of a registered source.
type Status int

const (
	StatusNeverFetched Status = iota
	StatusFetched
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusNeverFetched:
		return "never_fetched"
	case StatusFetched:
		return "fetched"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "never_fetched":
		*s = StatusNeverFetched
	case "fetched":
		*s = StatusFetched
	case "failed":
		*s = StatusFailed
	default:
		return fmt.Errorf("unknown source status %q", text)
	}
	return nil
}

// Schedule tracks when a source is due and how its recent fetches went.
// Only the worker goroutine mutates a Schedule; readers get copies.
type Schedule struct {
	SourceID            string    `json:"source_id"`
	Name                string    `json:"name"`
	CreateParam         string    `json:"create_param"`
	Status              Status    `json:"status"`
	NextFetch           time.Time `json:"next_fetch"`
	ConsecutiveFailures int       `json:"consecutive_failures"`

	LastAttempt time.Time `json:"last_attempt,omitempty"`
	LastSuccess time.Time `json:"last_success,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	LastMessage string    `json:"last_message,omitempty"`
	LastCount   int       `json:"last_count"`
}

func newSchedule(src sources.Source, now time.Time) *Schedule {
	return &Schedule{
		SourceID:    src.UniqueID(),
		Name:        src.Name(),
		CreateParam: src.CreateParam(),
		Status:      StatusNeverFetched,
		NextFetch:   now,
	}
}

// Eligible reports whether the source is due at now.
func (s *Schedule) Eligible(now time.Time) bool {
	return !now.Before(s.NextFetch)
}

// recordSuccess marks the list fresh for refresh, or until the result
// expires if that comes first.
func (s *Schedule) recordSuccess(now time.Time, res *sources.Result, refresh time.Duration) {
	s.Status = StatusFetched
	s.ConsecutiveFailures = 0
	s.LastAttempt = now
	s.LastSuccess = now
	s.LastError = ""
	s.LastMessage = res.Message
	s.LastCount = len(res.List)

	next := now.Add(refresh)
	if exp := res.Expiration; !exp.IsZero() && exp.After(now) && exp.Before(next) {
		next = exp
	}
	s.NextFetch = next
}

// recordFailure leaves NextFetch untouched unless retryAfter is positive.
func (s *Schedule) recordFailure(now time.Time, err error, retryAfter time.Duration) {
	s.Status = StatusFailed
	s.ConsecutiveFailures++
	s.LastAttempt = now
	s.LastError = err.Error()
	if retryAfter > 0 {
		s.NextFetch = now.Add(retryAfter)
	}
}
