package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"papertrade/internal/account"
)

// DualStore fans out saves to a primary (fast, possibly ephemeral) and a
// secondary (durable) backend. Loads prefer whichever backend holds the
// freshest snapshot; a backend that fails to load is skipped, not fatal.
type DualStore struct {
	primary   StateStore
	secondary StateStore
	log       zerolog.Logger
}

func NewDualStore(primary, secondary StateStore, log zerolog.Logger) *DualStore {
	return &DualStore{primary: primary, secondary: secondary, log: log}
}

// Save writes to both backends. A primary failure is logged and tolerated as
// long as the durable secondary succeeds.
func (s *DualStore) Save(ctx context.Context, snap *account.Snapshot, now time.Time, force bool) error {
	if err := s.primary.Save(ctx, snap, now, force); err != nil {
		s.log.Warn().Err(err).Msg("primary snapshot save failed")
	}
	return s.secondary.Save(ctx, snap, now, force)
}

// Load returns the freshest snapshot across both backends, or ErrNoSnapshot
// when neither holds one.
func (s *DualStore) Load(ctx context.Context) (*account.Snapshot, error) {
	var best *account.Snapshot
	for _, store := range []StateStore{s.primary, s.secondary} {
		snap, err := store.Load(ctx)
		if err != nil {
			if !errors.Is(err, ErrNoSnapshot) {
				s.log.Warn().Err(err).Msg("snapshot load failed, trying next backend")
			}
			continue
		}
		if best == nil || snap.CreatedAt.After(best.CreatedAt) {
			best = snap
		}
	}
	if best == nil {
		return nil, ErrNoSnapshot
	}
	return best, nil
}

func (s *DualStore) Close() error {
	perr := s.primary.Close()
	serr := s.secondary.Close()
	if perr != nil {
		return perr
	}
	return serr
}
