package api

import (
	"time"

	"github.com/pushchain/validator-trust/trustClient/scheduler"
	"github.com/pushchain/validator-trust/trustClient/store"
	"github.com/pushchain/validator-trust/trustClient/trust"
	"github.com/pushchain/validator-trust/trustClient/validators"
)

// TrustClientInterface defines the methods needed by the API server
type TrustClientInterface interface {
	KnownValidators() validators.Set
	ChosenValidators() trust.ChosenSet
	Schedules() []scheduler.Schedule
	LastFetched() time.Time

	// AddSource validates param and queues the source for registration.
	AddSource(param string) (string, error)
	RemoveSource(uniqueID string) (bool, error)
	RefreshSource(uniqueID string) bool
	RecentAttempts(uniqueID string, limit int) ([]store.FetchAttempt, error)
}
