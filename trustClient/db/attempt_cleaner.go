package db

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// AttemptCleaner periodically prunes fetch history older than the retention period.
type AttemptCleaner struct {
	db              *DB
	cleanupInterval time.Duration
	retentionPeriod time.Duration
	logger          zerolog.Logger
	now             func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewAttemptCleaner(db *DB, cleanupInterval, retentionPeriod time.Duration, logger zerolog.Logger) *AttemptCleaner {
	return &AttemptCleaner{
		db:              db,
		cleanupInterval: cleanupInterval,
		retentionPeriod: retentionPeriod,
		logger:          logger.With().Str("component", "attempt_cleaner").Logger(),
		now:             time.Now,
		stopCh:          make(chan struct{}),
	}
}

// Start performs an initial cleanup and then prunes on every interval.
func (c *AttemptCleaner) Start(ctx context.Context) error {
	c.logger.Info().
		Dur("cleanup_interval", c.cleanupInterval).
		Dur("retention_period", c.retentionPeriod).
		Msg("starting attempt cleaner")

	if _, err := c.performCleanup(); err != nil {
		// Don't fail startup on cleanup error, just log it
		c.logger.Error().Err(err).Msg("failed to perform initial cleanup")
	}

	ticker := time.NewTicker(c.cleanupInterval)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				c.logger.Info().Msg("context cancelled, stopping attempt cleaner")
				return
			case <-c.stopCh:
				c.logger.Info().Msg("stop signal received, stopping attempt cleaner")
				return
			case <-ticker.C:
				if _, err := c.performCleanup(); err != nil {
					c.logger.Error().Err(err).Msg("failed to perform scheduled cleanup")
				}
			}
		}
	}()

	return nil
}

// Stop gracefully stops the cleaner. Safe to call multiple times.
func (c *AttemptCleaner) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

func (c *AttemptCleaner) performCleanup() (int64, error) {
	start := c.now()
	deleted, err := c.db.DeleteAttemptsBefore(start.Add(-c.retentionPeriod))
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		c.logger.Info().
			Int64("deleted_count", deleted).
			Dur("duration", time.Since(start)).
			Msg("pruned fetch history")
	}
	return deleted, nil
}
