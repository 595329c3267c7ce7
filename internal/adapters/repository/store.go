// Package repository persists compression results.
package repository

import (
	"context"

	"github.com/okian/stcurve/internal/domain/model"
)

// Result is the stored record type.
type Result = model.Result

// Store provides read/write access to compression results keyed by
// trajectory id.
type Store interface {
	// Save inserts or replaces the result for r.TrajectoryID.
	Save(ctx context.Context, r Result) error

	// Get returns the result for a trajectory.
	// Returns ErrNotFound if the trajectory is unknown.
	Get(ctx context.Context, trajectoryID string) (Result, error)

	// List returns up to limit results, most recently completed first.
	// Returns ErrInvalidLimit when limit < 1.
	List(ctx context.Context, limit int) ([]Result, error)

	// Delete removes a result. Returns ErrNotFound if the trajectory is unknown.
	Delete(ctx context.Context, trajectoryID string) error

	// Count returns the number of stored results.
	Count(ctx context.Context) int

	// Close releases backend resources.
	Close() error
}
