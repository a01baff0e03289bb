package postgres

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/pkzinx/dlux-booking/internal/domain"
)

type ReservationRepo struct {
	db *bun.DB
}

func NewReservationRepo(db *bun.DB) *ReservationRepo {
	return &ReservationRepo{db: db}
}

func (r *ReservationRepo) Upsert(ctx context.Context, res domain.Reservation) (domain.Reservation, error) {
	m := res

	if m.RemoteID == "" {
		// No panel id yet: append under a fresh local key.
		if _, err := r.db.NewInsert().Model(&m).Exec(ctx); err != nil {
			return domain.Reservation{}, err
		}
		return m, nil
	}

	_, err := r.db.NewInsert().
		Model(&m).
		On("CONFLICT (remote_id) WHERE remote_id <> '' DO UPDATE").
		Set("service_title = EXCLUDED.service_title").
		Set("barber_name = EXCLUDED.barber_name").
		Set("client_name = EXCLUDED.client_name").
		Set("start_time = EXCLUDED.start_time").
		Set("end_time = EXCLUDED.end_time").
		Set("version = r.version + 1").
		Exec(ctx)
	if err != nil {
		return domain.Reservation{}, err
	}
	return m, nil
}

func (r *ReservationRepo) Remove(ctx context.Context, remoteID string) error {
	if remoteID == "" {
		return nil
	}
	_, err := r.db.NewDelete().
		Model((*domain.Reservation)(nil)).
		Where("remote_id = ?", remoteID).
		Exec(ctx)
	return err
}

func (r *ReservationRepo) ListActive(ctx context.Context, now time.Time) ([]domain.Reservation, error) {
	var rows []domain.Reservation
	err := r.db.NewSelect().
		Model(&rows).
		Where("end_time > ?", now).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ReservationRepo) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*domain.Reservation)(nil)).
		Where("end_time <= ?", now).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
