// Package store contains GORM-backed SQLite models used by the trust daemon.
//
// Database Structure (database file: trust.db):
//
//	data/
//	└── trust.db
//	    ├── source_configs
//	    └── fetch_attempts
//
// The validator list itself is never stored; it is rebuilt from the sources
// after a restart.
package store

import (
	"time"

	"gorm.io/gorm"
)

// SourceConfig is a registered source, kept so registrations survive restarts.
type SourceConfig struct {
	gorm.Model
	UniqueID    string `gorm:"uniqueIndex;not null"` // Source UniqueID
	Name        string // Human readable name at registration time
	CreateParam string `gorm:"type:text;not null"` // Param that rebuilds the source
}

// FetchAttempt is one fetch of a source, successful or not.
type FetchAttempt struct {
	gorm.Model
	SourceID   string    `gorm:"index;not null"` // Source UniqueID
	StartedAt  time.Time `gorm:"index"`
	DurationMs int64
	Status     string `gorm:"index"` // "success" or the failure code, e.g. "NETWORK"
	Count      int    // Validators returned on success
	Added      int
	Removed    int
	Failures   int    // Consecutive failures after this attempt
	ErrorMsg   string `gorm:"type:text"`
}

const AttemptStatusSuccess = "success"
