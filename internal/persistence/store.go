package persistence

import (
	"context"
	"errors"
	"time"

	"papertrade/internal/account"
)

// ErrNoSnapshot signals a cold start: no saved state exists in the backend.
var ErrNoSnapshot = errors.New("no snapshot available")

// StateStore persists and restores portfolio snapshots.
//
// Save may throttle: unforced writes inside the store's minimum interval are
// silently skipped. Forced writes always land.
type StateStore interface {
	Save(ctx context.Context, snap *account.Snapshot, now time.Time, force bool) error
	Load(ctx context.Context) (*account.Snapshot, error)
	Close() error
}
