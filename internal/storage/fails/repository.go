package fails

import (
	"context"
	"time"

	"github.com/google/uuid"

	"opdsgrab/internal/types"
)

type Record struct {
	Id        uint64       `json:"id"`
	RunId     uuid.UUID    `json:"run_id"`
	StartTime *time.Time   `json:"start_time"`
	Target    types.Target `json:"target"`
	Error     string       `json:"error"`
}

type Repository interface {
	Save(ctx context.Context, runId uuid.UUID, startTime *time.Time, target types.Target, err error) error

	// GetFails lists failures recorded by crawls started not after notAfter, newest first.
	// Zero runId means any run.
	GetFails(ctx context.Context, runId uuid.UUID, notAfter *time.Time, limit uint) ([]*Record, error)
	DeleteById(ctx context.Context, id uint64) error
}
