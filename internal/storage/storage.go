// Package storage defines the persistence contract for forecast runs.
package storage

import (
	"context"
	"errors"

	"github.com/chrissnell/pvforecast/internal/pipeline"
)

// ErrNoRuns is returned by LatestRun when nothing has been stored yet.
var ErrNoRuns = errors.New("no forecast runs stored")

// Store persists completed pipeline runs.
type Store interface {
	// SaveRun stores a run and all of its result rows atomically.
	SaveRun(ctx context.Context, run *pipeline.Run) error

	// LatestRun returns the most recently created run, or ErrNoRuns.
	LatestRun(ctx context.Context) (*pipeline.Run, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}
