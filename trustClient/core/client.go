package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pushchain/validator-trust/trustClient/api"
	"github.com/pushchain/validator-trust/trustClient/config"
	"github.com/pushchain/validator-trust/trustClient/db"
	"github.com/pushchain/validator-trust/trustClient/errors"
	"github.com/pushchain/validator-trust/trustClient/metrics"
	"github.com/pushchain/validator-trust/trustClient/scheduler"
	"github.com/pushchain/validator-trust/trustClient/sources"
	"github.com/pushchain/validator-trust/trustClient/store"
	"github.com/pushchain/validator-trust/trustClient/trust"
	"github.com/pushchain/validator-trust/trustClient/validators"
)

const shutdownTimeout = 5 * time.Second

// TrustClient wires the scheduler, trust chooser, persistence, metrics and
// query server of the daemon together.
type TrustClient struct {
	ctx context.Context
	cfg *config.Config
	log zerolog.Logger

	db          *db.DB
	registry    *prometheus.Registry
	metrics     *metrics.TrustMetrics
	scheduler   *scheduler.Scheduler
	chooser     *trust.Chooser
	cleaner     *db.AttemptCleaner
	queryServer *api.Server
	sourceOpts  sources.Options
}

var _ api.TrustClientInterface = (*TrustClient)(nil)

func NewTrustClient(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*TrustClient, error) {
	if cfg == nil {
		return nil, errors.NewConfigError("core", "config is nil")
	}

	tc := &TrustClient{
		ctx:      ctx,
		cfg:      cfg,
		log:      log.With().Str("component", "trust_client").Logger(),
		registry: prometheus.NewRegistry(),
		sourceOpts: sources.Options{
			Logger:          log,
			MaxRetries:      cfg.HTTPSource.MaxRetries,
			Timeout:         cfg.HTTPSource.Timeout(),
			ExpectedResults: cfg.ExpectedResults,
		},
	}

	if cfg.Database.Enabled {
		dir, file := cfg.DatabasePath()
		database, err := db.OpenFileDB(dir, file, true)
		if err != nil {
			return nil, errors.NewDatabaseError("failed to open database", err)
		}
		tc.db = database
		tc.cleaner = db.NewAttemptCleaner(database, cfg.Database.CleanupInterval(), cfg.Database.AttemptRetention(), log)
	}

	tc.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	tc.metrics = metrics.NewTrustMetrics(tc.registry)

	tc.scheduler = scheduler.New(scheduler.Config{
		RefreshInterval: cfg.RefreshInterval(),
		WakeInterval:    cfg.WakeInterval(),
		FetchTimeout:    cfg.FetchTimeout(),
		StopTimeout:     cfg.StopTimeout(),
		Backoff: scheduler.BackoffConfig{
			Enabled: cfg.RetryBackoff.Enabled,
			Initial: cfg.RetryBackoff.Initial(),
			Max:     cfg.RetryBackoff.Max(),
		},
	}, log)

	tc.chooser = trust.NewChooser(trust.KnownFilter{}, cfg.MinChosenValidators, log)
	tc.chooser.AddListener(tc.metrics)

	tc.scheduler.AddListener(tc.chooser)
	tc.scheduler.AddListener(tc.metrics)
	tc.scheduler.AddObserver(tc.metrics)
	if tc.db != nil {
		tc.scheduler.AddObserver(db.NewAttemptRecorder(tc.db, log))
	}

	tc.queryServer = api.NewServer(tc, tc.registry, log, cfg.QueryServerPort)
	return tc, nil
}

// Start registers the configured and persisted sources, runs every component
// until ctx is done or one of them fails, then shuts everything down.
func (tc *TrustClient) Start() error {
	tc.log.Info().Msg("🚀 Starting trust client...")

	if err := tc.loadSources(); err != nil {
		tc.closeDB()
		return err
	}

	g, gctx := errgroup.WithContext(tc.ctx)

	g.Go(func() error {
		if err := tc.scheduler.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		tc.scheduler.Stop()
		return nil
	})

	g.Go(func() error {
		if err := tc.queryServer.Start(); err != nil {
			return errors.NewConfigError("query_server", err.Error())
		}
		<-gctx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return tc.queryServer.Stop(ctx)
	})

	if tc.cleaner != nil {
		g.Go(func() error {
			if err := tc.cleaner.Start(gctx); err != nil {
				return err
			}
			<-gctx.Done()
			tc.cleaner.Stop()
			return nil
		})
	}

	tc.log.Info().
		Int("sources", len(tc.cfg.Sources)).
		Int("query_server_port", tc.cfg.QueryServerPort).
		Msg("✅ Initialization complete. Entering main loop...")

	err := g.Wait()

	tc.log.Info().Msg("🛑 Shutting down trust client...")
	tc.closeDB()
	return err
}

func (tc *TrustClient) closeDB() {
	if tc.db == nil {
		return
	}
	if err := tc.db.Close(); err != nil {
		tc.log.Error().Err(err).Msg("failed to close database")
	}
}

// loadSources registers the sources named in config, then the ones added at
// runtime and persisted in the database. Invalid config entries are fatal;
// invalid persisted entries are skipped.
func (tc *TrustClient) loadSources() error {
	seen := make(map[string]struct{})

	configured := make([]sources.Source, 0, len(tc.cfg.Sources))
	invalid := errors.NewErrorGroup()
	for _, param := range tc.cfg.Sources {
		src, err := sources.New(param, tc.sourceOpts)
		if err != nil {
			invalid.Add(errors.Wrapf(err, "invalid source %q", param))
			continue
		}
		configured = append(configured, src)
	}
	if invalid.HasErrors() {
		return errors.NewConfigError("sources", invalid.Error())
	}

	for _, src := range configured {
		if _, dup := seen[src.UniqueID()]; dup {
			continue
		}
		seen[src.UniqueID()] = struct{}{}
		tc.scheduler.RegisterSource(src)
	}

	if tc.db == nil {
		return nil
	}

	persisted, err := tc.db.ListSources()
	if err != nil {
		return errors.NewDatabaseError("failed to load persisted sources", err)
	}
	for _, row := range persisted {
		src, err := sources.New(row.CreateParam, tc.sourceOpts)
		if err != nil {
			tc.log.Warn().Err(err).Str("source_id", row.UniqueID).Msg("skipping persisted source")
			continue
		}
		if _, dup := seen[src.UniqueID()]; dup {
			continue
		}
		seen[src.UniqueID()] = struct{}{}
		tc.scheduler.RegisterSource(src)
	}

	tc.log.Info().Int("count", len(seen)).Msg("sources loaded")
	return nil
}

func (tc *TrustClient) KnownValidators() validators.Set {
	return tc.scheduler.Known()
}

func (tc *TrustClient) ChosenValidators() trust.ChosenSet {
	return tc.chooser.Chosen()
}

func (tc *TrustClient) Schedules() []scheduler.Schedule {
	return tc.scheduler.Schedules()
}

// LastFetched returns the most recent successful fetch of any source.
func (tc *TrustClient) LastFetched() time.Time {
	var last time.Time
	for _, s := range tc.scheduler.Schedules() {
		if s.LastSuccess.After(last) {
			last = s.LastSuccess
		}
	}
	return last
}

// AddSource builds the source described by param, persists it and queues its
// registration. It returns the source's UniqueID.
func (tc *TrustClient) AddSource(param string) (string, error) {
	src, err := sources.New(param, tc.sourceOpts)
	if err != nil {
		return "", err
	}

	if tc.db != nil {
		if err := tc.db.SaveSource(src.UniqueID(), src.Name(), src.CreateParam()); err != nil {
			return "", errors.NewDatabaseError("failed to persist source", err)
		}
	}

	tc.scheduler.RegisterSource(src)
	tc.log.Info().Str("source", src.Name()).Str("source_id", src.UniqueID()).Msg("source added")
	return src.UniqueID(), nil
}

// RemoveSource unregisters a source and forgets it. A source listed in the
// config file comes back on the next restart.
func (tc *TrustClient) RemoveSource(uniqueID string) (bool, error) {
	found := tc.scheduler.Has(uniqueID)

	if tc.db != nil {
		existed, err := tc.db.DeleteSource(uniqueID)
		if err != nil {
			return false, errors.NewDatabaseError("failed to delete source", err)
		}
		found = found || existed
	}
	if !found {
		return false, nil
	}

	tc.scheduler.UnregisterSource(uniqueID)
	tc.metrics.ForgetSource(uniqueID)
	tc.log.Info().Str("source_id", uniqueID).Msg("source removed")
	return true, nil
}

// RefreshSource makes a registered source due immediately.
func (tc *TrustClient) RefreshSource(uniqueID string) bool {
	if _, ok := tc.scheduler.Schedule(uniqueID); !ok {
		return false
	}
	tc.scheduler.ForceRefresh(uniqueID)
	return true
}

func (tc *TrustClient) RecentAttempts(uniqueID string, limit int) ([]store.FetchAttempt, error) {
	if tc.db == nil {
		return []store.FetchAttempt{}, nil
	}
	return tc.db.RecentAttempts(uniqueID, limit)
}
