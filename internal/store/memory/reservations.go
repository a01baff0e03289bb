package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pkzinx/dlux-booking/internal/domain"
)

// ReservationRepo keeps the reservation cache in process memory. It is
// the fallback substrate when no database is configured: the cache then
// neither survives restarts nor reaches other views.
type ReservationRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]domain.Reservation
}

func NewReservationRepo() *ReservationRepo {
	return &ReservationRepo{rows: make(map[uuid.UUID]domain.Reservation)}
}

func (r *ReservationRepo) Upsert(ctx context.Context, res domain.Reservation) (domain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if res.RemoteID != "" {
		for key, existing := range r.rows {
			if existing.RemoteID == res.RemoteID {
				res.Key = key
				res.Version = existing.Version + 1
				res.CreatedAt = existing.CreatedAt
				r.rows[key] = res
				return res, nil
			}
		}
	}

	if res.Key == uuid.Nil {
		key, err := uuid.NewV7()
		if err != nil {
			return domain.Reservation{}, err
		}
		res.Key = key
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}
	if res.Version == 0 {
		res.Version = 1
	}
	r.rows[res.Key] = res
	return res, nil
}

func (r *ReservationRepo) Remove(ctx context.Context, remoteID string) error {
	if remoteID == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, existing := range r.rows {
		if existing.RemoteID == remoteID {
			delete(r.rows, key)
		}
	}
	return nil
}

func (r *ReservationRepo) ListActive(ctx context.Context, now time.Time) ([]domain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Reservation, 0, len(r.rows))
	for _, res := range r.rows {
		if res.Active(now) {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

func (r *ReservationRepo) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for key, res := range r.rows {
		if !res.Active(now) {
			delete(r.rows, key)
			n++
		}
	}
	return n, nil
}
