package models

import (
	"time"

	"github.com/google/uuid"
)

// Run states as persisted and reported.
const (
	RunStateIdle        = "idle"
	RunStateGating      = "gating"
	RunStateDryRunning  = "dry_running"
	RunStateNothingToDo = "nothing_to_do"
	RunStateImporting   = "importing"
	RunStateDone        = "done"
	RunStateErrored     = "errored"
	RunStateSkipped     = "skipped"
)

// RunRecord is the history row written after every non-skipped run.
type RunRecord struct {
	ID                uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Trigger           string    `gorm:"type:varchar(32);not null" json:"trigger"`
	State             string    `gorm:"type:varchar(32);not null;index" json:"state"`
	Forced            bool      `gorm:"not null;default:false" json:"forced"`
	SeedVersion       int       `gorm:"not null" json:"seed_version"`
	ChecksumNamespace string    `gorm:"type:varchar(128)" json:"checksum_namespace"`
	Upserted          int       `gorm:"not null;default:0" json:"upserted"`
	Deleted           int       `gorm:"not null;default:0" json:"deleted"`
	// Report and Outcome stored as JSON strings
	ReportJSON  string    `gorm:"type:jsonb" json:"-"`
	OutcomeJSON string    `gorm:"type:jsonb" json:"-"`
	Error       string    `gorm:"type:text" json:"error,omitempty"`
	StartedAt   time.Time `gorm:"not null" json:"started_at"`
	DurationMs  int64     `gorm:"not null" json:"duration_ms"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`

	Report  *DryRunReport  `gorm:"-" json:"report,omitempty"`
	Outcome *ImportOutcome `gorm:"-" json:"outcome,omitempty"`
}

func (RunRecord) TableName() string { return "seed_runs" }

// Marker state as exposed to operators.
type MarkerState struct {
	Enabled             bool `json:"enabled"`
	Overwrite           bool `json:"overwrite"`
	DidSeed             bool `json:"did_seed"`
	DidRunOnce          bool `json:"did_run_once"`
	SeedVersion         int  `json:"seed_version"`
	RequiredSeedVersion int  `json:"required_seed_version"`
}
