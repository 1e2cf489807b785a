package app

import (
	"time"

	"github.com/google/uuid"

	"genstudio/internal/studio"
)

// Operation status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Operation tracks one CLI command run. Its ID tags every log line of the
// run and the closing summary records status and duration.
type Operation struct {
	ID         string
	Name       string
	Parameters string
	Status     string
	StartedAt  time.Time
	FinishedAt time.Time
}

// NewOperation starts an operation named after the CLI command.
func NewOperation(name string, clock studio.Clock) *Operation {
	now := clock.Now().UTC()
	return &Operation{
		ID:        now.Format("20060102T150405Z") + "-" + uuid.NewString()[:8],
		Name:      name,
		Status:    StatusSuccess,
		StartedAt: now,
	}
}

// Fail marks the operation as failed.
func (op *Operation) Fail() {
	op.Status = StatusError
}

// Finish records the end time. Later calls are no-ops.
func (op *Operation) Finish(clock studio.Clock) {
	if op.Finished() {
		return
	}
	op.FinishedAt = clock.Now().UTC()
}

// Finished returns true once Finish has been called.
func (op *Operation) Finished() bool {
	return !op.FinishedAt.IsZero()
}

// Duration is the time between start and finish, or zero while running.
func (op *Operation) Duration() time.Duration {
	if !op.Finished() {
		return 0
	}
	return op.FinishedAt.Sub(op.StartedAt)
}
