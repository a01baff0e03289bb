package store

import (
	"context"
	"time"

	"github.com/pkzinx/dlux-booking/internal/domain"
)

// SweepInterval is how often each running view purges expired entries on
// its own; every read path sweeps as well, so a view left open past an
// appointment's end self-corrects within a minute.
const SweepInterval = time.Minute

// ReservationRepository is the persistence substrate behind the user's
// reservation cache. Writes are commutative: upsert keyed by the
// confirmed remote id and idempotent removal keep concurrent views safe
// without a transaction.
type ReservationRepository interface {
	// Upsert inserts the reservation, replacing any existing entry that
	// carries the same non-empty RemoteID. Unconfirmed reservations are
	// appended under a fresh local key.
	Upsert(ctx context.Context, r domain.Reservation) (domain.Reservation, error)

	// Remove deletes every entry with the given remote id. Removing an
	// absent id is a no-op.
	Remove(ctx context.Context, remoteID string) error

	// ListActive returns the entries ending after now, ordered by start
	// time ascending.
	ListActive(ctx context.Context, now time.Time) ([]domain.Reservation, error)

	// SweepExpired permanently deletes every entry ending at or before
	// now and reports how many were removed.
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}
