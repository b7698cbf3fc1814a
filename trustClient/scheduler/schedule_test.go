package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pushchain/validator-trust/trustClient/sources"
	"github.com/pushchain/validator-trust/trustClient/validators"
)

func TestNewScheduleIsDueImmediately(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sch := newSchedule(newTestSource("a"), now)

	assert.Equal(t, StatusNeverFetched, sch.Status)
	assert.Equal(t, "a", sch.SourceID)
	assert.Equal(t, "test:a", sch.CreateParam)
	assert.True(t, sch.Eligible(now))
	assert.False(t, sch.Eligible(now.Add(-time.Second)))
}

func TestRecordSuccess(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	refresh := 24 * time.Hour

	tests := []struct {
		name       string
		expiration time.Time
		wantNext   time.Time
	}{
		{name: "no expiration", wantNext: now.Add(refresh)},
		{name: "expires before refresh", expiration: now.Add(2 * time.Hour), wantNext: now.Add(2 * time.Hour)},
		{name: "expires after refresh", expiration: now.Add(48 * time.Hour), wantNext: now.Add(refresh)},
		{name: "already expired", expiration: now.Add(-time.Hour), wantNext: now.Add(refresh)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sch := newSchedule(newTestSource("a"), now)
			sch.ConsecutiveFailures = 2
			sch.LastError = "boom"

			res := &sources.Result{
				List:       []validators.Record{{PublicKey: validators.PublicKey{1}}},
				Message:    "note",
				Expiration: tt.expiration,
			}
			sch.recordSuccess(now, res, refresh)

			assert.Equal(t, StatusFetched, sch.Status)
			assert.Equal(t, 0, sch.ConsecutiveFailures)
			assert.Equal(t, tt.wantNext, sch.NextFetch)
			assert.Equal(t, "note", sch.LastMessage)
			assert.Equal(t, 1, sch.LastCount)
			assert.Empty(t, sch.LastError)
			assert.Equal(t, now, sch.LastSuccess)
		})
	}
}

func TestRecordFailure(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sch := newSchedule(newTestSource("a"), now)

	sch.recordFailure(now.Add(time.Minute), errors.New("boom"), 0)
	assert.Equal(t, StatusFailed, sch.Status)
	assert.Equal(t, 1, sch.ConsecutiveFailures)
	assert.Equal(t, now, sch.NextFetch)
	assert.Equal(t, "boom", sch.LastError)

	sch.recordFailure(now.Add(2*time.Minute), errors.New("boom"), 5*time.Minute)
	assert.Equal(t, 2, sch.ConsecutiveFailures)
	assert.Equal(t, now.Add(7*time.Minute), sch.NextFetch)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "never_fetched", StatusNeverFetched.String())
	assert.Equal(t, "fetched", StatusFetched.String())
	assert.Equal(t, "failed", StatusFailed.String())
	assert.Equal(t, "status(9)", Status(9).String())

	text, err := StatusFailed.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "failed", string(text))

	var st Status
	assert.NoError(t, st.UnmarshalText([]byte("fetched")))
	assert.Equal(t, StatusFetched, st)
	assert.Error(t, st.UnmarshalText([]byte("bogus")))
}

func TestBackoffPolicy(t *testing.T) {
	assert.Nil(t, newBackoffPolicy(BackoffConfig{}, time.Hour))

	var disabled *backoffPolicy
	assert.Equal(t, time.Duration(0), disabled.delay(3))

	p := newBackoffPolicy(BackoffConfig{Enabled: true, Initial: time.Minute, Max: 10 * time.Minute}, time.Hour)
	assert.Equal(t, time.Duration(0), p.delay(0))
	assert.Equal(t, time.Minute, p.delay(1))
	assert.Equal(t, 2*time.Minute, p.delay(2))
	assert.Equal(t, 4*time.Minute, p.delay(3))
	assert.Equal(t, 8*time.Minute, p.delay(4))
	assert.Equal(t, 10*time.Minute, p.delay(5))
	assert.Equal(t, 10*time.Minute, p.delay(50))

	capped := newBackoffPolicy(BackoffConfig{Enabled: true, Initial: time.Minute, Max: 48 * time.Hour}, 30*time.Minute)
	assert.Equal(t, 30*time.Minute, capped.delay(20))
}
