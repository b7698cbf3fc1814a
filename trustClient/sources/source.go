package sources

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"github.com/pushchain/validator-trust/trustClient/constant"
	"github.com/pushchain/validator-trust/trustClient/validators"
)

// Source produces the complete current validator list from one origin.
//
// Fetch blocks until the list is available or ctx is done. A cancelled ctx must
// yield a cancellation error, never a partial list. A nil error means the list
// in Result is complete, even when it is empty.
type Source interface {
	Fetch(ctx context.Context) (*Result, error)
	// Name is a human readable description used in logs.
	Name() string
	// UniqueID is stable for a given CreateParam.
	UniqueID() string
	// CreateParam reconstructs the source through New.
	CreateParam() string
}

// Result is the outcome of a successful fetch.
type Result struct {
	List []validators.Record
	// Message is a free-form note from the source, logged by the scheduler.
	Message string
	// Expiration, when set, is the time after which the list should be refetched.
	Expiration time.Time
}

// Options carries the collaborators shared by all source variants.
type Options struct {
	Logger     zerolog.Logger
	HTTPClient *http.Client
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
	// ExpectedResults is a capacity hint for decoded lists.
	ExpectedResults int
}

// DefaultOptions returns options with the package defaults applied.
func DefaultOptions() Options {
	return Options{
		Logger:          zerolog.Nop(),
		MaxRetries:      constant.DefaultHTTPSourceRetries,
		RetryDelay:      time.Second,
		Timeout:         constant.DefaultHTTPSourceTimeout,
		ExpectedResults: constant.DefaultExpectedResults,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxRetries <= 0 {
		o.MaxRetries = d.MaxRetries
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = d.RetryDelay
	}
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	if o.ExpectedResults <= 0 {
		o.ExpectedResults = d.ExpectedResults
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: o.Timeout}
	}
	return o
}

// UniqueIDFor derives the stable identifier of a create param.
func UniqueIDFor(param string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(param))
}
