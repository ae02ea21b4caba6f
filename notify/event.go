package notify

import (
	"time"

	"github.com/yashrajoria/catalog-seeder/models"
)

// EventRunFinished is published after every non-skipped seed run.
const EventRunFinished = "seed.run.finished"

// RunEvent is the message body published for a finished run.
type RunEvent struct {
	Event       string    `json:"event"`
	RunID       string    `json:"run_id"`
	Trigger     string    `json:"trigger"`
	State       string    `json:"state"`
	Forced      bool      `json:"forced"`
	SeedVersion int       `json:"seed_version"`
	Upserted    int       `json:"upserted"`
	Deleted     int       `json:"deleted"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	DurationMs  int64     `json:"duration_ms"`
}

func NewRunEvent(rec *models.RunRecord) RunEvent {
	return RunEvent{
		Event:       EventRunFinished,
		RunID:       rec.ID.String(),
		Trigger:     rec.Trigger,
		State:       rec.State,
		Forced:      rec.Forced,
		SeedVersion: rec.SeedVersion,
		Upserted:    rec.Upserted,
		Deleted:     rec.Deleted,
		Error:       rec.Error,
		StartedAt:   rec.StartedAt,
		DurationMs:  rec.DurationMs,
	}
}
