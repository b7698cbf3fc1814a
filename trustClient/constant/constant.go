package constant

import "time"

const (
	// DefaultNodeHome is the home directory used when none is configured.
	DefaultNodeHome = ".ptrust"

	// ConfigSubdir and ConfigFileName locate the daemon config under the node home.
	ConfigSubdir   = "config"
	ConfigFileName = "ptrust_config.json"

	// DataSubdir holds the SQLite database.
	DataSubdir     = "data"
	DatabaseFile   = "trust.db"
	EnvPrefix      = "PTRUST"
	DefaultAPIPort = 8080
)

const (
	// DefaultRefreshInterval is how long a successful fetch stays fresh.
	DefaultRefreshInterval = 24 * time.Hour

	// DefaultWakeInterval re-triggers an idle scan even when nothing was queued.
	DefaultWakeInterval = time.Hour

	// DefaultStopTimeout bounds how long Stop waits for an in-flight fetch.
	DefaultStopTimeout = 5 * time.Second

	// DefaultExpectedResults sizes the per-fetch buffers. Performance only.
	DefaultExpectedResults = 1000

	// DefaultBackoffInitial and DefaultBackoffMax apply only when retry backoff is enabled.
	DefaultBackoffInitial = time.Minute
	DefaultBackoffMax     = DefaultRefreshInterval

	// DefaultHTTPSourceTimeout bounds a single HTTP request issued by a URL source.
	DefaultHTTPSourceTimeout = 30 * time.Second
	DefaultHTTPSourceRetries = 3

	// DefaultAttemptRetention is how long fetch history is kept in the database.
	DefaultAttemptRetention = 7 * 24 * time.Hour
	DefaultCleanupInterval  = time.Hour
)
