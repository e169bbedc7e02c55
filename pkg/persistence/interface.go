package persistence

import (
	"context"
	"errors"

	"github.com/osvaldoandrade/nftminter/pkg/domain"
)

var (
	// ErrNotFound is returned when a run id is unknown or has been evicted
	ErrNotFound = errors.New("not found")
)

// PluginPersistence is implemented by every run-tracking backend.
type PluginPersistence interface {
	RunStorage() RunStorage

	Health(ctx context.Context) error

	Close() error
}

// RunStorage tracks pipeline runs for status queries while the process is alive.
type RunStorage interface {
	// Save stores a snapshot of the run, replacing any earlier snapshot with the same RunID.
	Save(ctx context.Context, run domain.PipelineResult) error

	Get(ctx context.Context, runID string) (*domain.PipelineResult, error)

	// CountByState counts tracked runs per state.
	CountByState(ctx context.Context) (map[domain.PipelineState]int, error)
}
