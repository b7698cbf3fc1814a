package db

import (
	"github.com/pkg/errors"
	"gorm.io/gorm/clause"

	"github.com/pushchain/validator-trust/trustClient/store"
)

// SaveSource inserts or updates the source with the given unique id.
func (d *DB) SaveSource(uniqueID, name, createParam string) error {
	cfg := store.SourceConfig{UniqueID: uniqueID, Name: name, CreateParam: createParam}
	err := d.client.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "unique_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "create_param", "updated_at"}),
	}).Create(&cfg).Error
	return errors.Wrapf(err, "failed to save source %s", uniqueID)
}

// ListSources returns registered sources in registration order.
func (d *DB) ListSources() ([]store.SourceConfig, error) {
	var out []store.SourceConfig
	if err := d.client.Order("id asc").Find(&out).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list sources")
	}
	return out, nil
}

// DeleteSource removes a source and its fetch history. It reports whether the
// source existed.
func (d *DB) DeleteSource(uniqueID string) (bool, error) {
	res := d.client.Unscoped().Where("unique_id = ?", uniqueID).Delete(&store.SourceConfig{})
	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "failed to delete source %s", uniqueID)
	}
	if err := d.client.Unscoped().Where("source_id = ?", uniqueID).Delete(&store.FetchAttempt{}).Error; err != nil {
		return false, errors.Wrapf(err, "failed to delete fetch history of %s", uniqueID)
	}
	return res.RowsAffected > 0, nil
}
