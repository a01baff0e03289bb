package reservations

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pkzinx/dlux-booking/internal/domain"
	"github.com/pkzinx/dlux-booking/internal/notify"
	"github.com/pkzinx/dlux-booking/internal/store"
)

// Publisher is the cross-view change channel. Nil disables propagation;
// the cache then works view-locally.
type Publisher interface {
	Publish(ctx context.Context, ev notify.Event) error
	Subscribe(ctx context.Context, origin string, fn func(notify.Event)) func()
}

// Store is the user's reservation cache: persisted, TTL-swept, and kept
// in sync across concurrently open views. It is an optimization over the
// panel's records, so every storage failure is logged and swallowed
// rather than propagated.
type Store struct {
	repo   store.ReservationRepository
	pub    Publisher
	origin string
	log    *slog.Logger
	now    func() time.Time
}

func NewStore(repo store.ReservationRepository, pub Publisher, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		repo:   repo,
		pub:    pub,
		origin: uuid.NewString(),
		log:    log.With(slog.String("component", "reservations")),
		now:    time.Now,
	}
}

// Add upserts the reservation and notifies other views. The input is
// returned unchanged when the write fails.
func (s *Store) Add(ctx context.Context, r domain.Reservation) domain.Reservation {
	saved, err := s.repo.Upsert(ctx, r)
	if err != nil {
		s.log.Warn("reservation cache write failed", slog.String("id", r.RemoteID), slog.Any("err", err))
		return r
	}
	s.broadcast(ctx)
	return saved
}

// Remove deletes every entry with the given remote id. Removing an
// already-absent id converges to the same state without error.
func (s *Store) Remove(ctx context.Context, remoteID string) {
	if err := s.repo.Remove(ctx, remoteID); err != nil {
		s.log.Warn("reservation cache delete failed", slog.String("id", remoteID), slog.Any("err", err))
		return
	}
	s.broadcast(ctx)
}

// ListActive sweeps expired entries, then returns the remaining ones
// ordered by start time.
func (s *Store) ListActive(ctx context.Context) []domain.Reservation {
	now := s.now()
	if _, err := s.repo.SweepExpired(ctx, now); err != nil {
		s.log.Warn("reservation sweep failed", slog.Any("err", err))
	}
	rows, err := s.repo.ListActive(ctx, now)
	if err != nil {
		s.log.Warn("reservation cache read failed", slog.Any("err", err))
		return nil
	}
	return rows
}

// Subscribe registers for change notifications originating from other
// views. The callback receives the full current active set. The returned
// function releases the subscription.
func (s *Store) Subscribe(ctx context.Context, fn func([]domain.Reservation)) func() {
	if s.pub == nil {
		return func() {}
	}
	return s.pub.Subscribe(ctx, s.origin, func(ev notify.Event) {
		fn(ev.Reservations)
	})
}

// Run sweeps expired entries once per SweepInterval until ctx is
// cancelled, so a view left open across an appointment's end time
// self-corrects without user action.
func (s *Store) Run(ctx context.Context) {
	ticker := time.NewTicker(store.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.repo.SweepExpired(ctx, s.now())
			if err != nil {
				s.log.Warn("reservation sweep failed", slog.Any("err", err))
				continue
			}
			if n > 0 {
				s.log.Info("expired reservations swept", slog.Int64("count", n))
				s.broadcast(ctx)
			}
		}
	}
}

func (s *Store) broadcast(ctx context.Context) {
	if s.pub == nil {
		return
	}
	rows, err := s.repo.ListActive(ctx, s.now())
	if err != nil {
		s.log.Warn("reservation cache read failed", slog.Any("err", err))
		return
	}
	if err := s.pub.Publish(ctx, notify.Event{Origin: s.origin, Reservations: rows}); err != nil {
		s.log.Warn("reservation change broadcast failed", slog.Any("err", err))
	}
}
