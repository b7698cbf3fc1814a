package db

import (
	"time"

	"github.com/pkg/errors"

	"github.com/pushchain/validator-trust/trustClient/store"
)

// RecordAttempt stores one fetch attempt.
func (d *DB) RecordAttempt(a *store.FetchAttempt) error {
	return errors.Wrap(d.client.Create(a).Error, "failed to record fetch attempt")
}

// RecentAttempts returns up to limit attempts of a source, newest first.
func (d *DB) RecentAttempts(sourceID string, limit int) ([]store.FetchAttempt, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []store.FetchAttempt
	err := d.client.
		Where("source_id = ?", sourceID).
		Order("started_at desc, id desc").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query attempts of %s", sourceID)
	}
	return out, nil
}

// DeleteAttemptsBefore removes attempts started before cutoff and returns how
// many rows were deleted.
func (d *DB) DeleteAttemptsBefore(cutoff time.Time) (int64, error) {
	res := d.client.Unscoped().Where("started_at < ?", cutoff).Delete(&store.FetchAttempt{})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "failed to delete old fetch attempts")
	}
	return res.RowsAffected, nil
}
