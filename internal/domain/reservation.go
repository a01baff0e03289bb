package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Reservation is one entry of the user's own booking cache. Key is the
// local identity and is always present; RemoteID stays empty until the
// panel confirms the booking and is unique once set.
type Reservation struct {
	bun.BaseModel `bun:"table:reservations,alias:r" json:"-"`

	Key          uuid.UUID `bun:"key,pk,type:uuid" json:"key"`
	RemoteID     string    `bun:"remote_id" json:"id,omitempty"`
	ServiceTitle string    `bun:"service_title,notnull" json:"serviceTitle"`
	BarberName   string    `bun:"barber_name,notnull" json:"barberName"`
	ClientName   string    `bun:"client_name" json:"clientName,omitempty"`
	StartTime    time.Time `bun:"start_time,notnull" json:"startDatetime"`
	EndTime      time.Time `bun:"end_time,notnull" json:"endDatetime"`
	Version      int64     `bun:"version,notnull" json:"version"`
	CreatedAt    time.Time `bun:"created_at,notnull" json:"createdAt"`
}

func (r *Reservation) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.InsertQuery:
		if r.Key == uuid.Nil {
			key, err := uuid.NewV7()
			if err != nil {
				return err
			}
			r.Key = key
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = time.Now().UTC()
		}
		if r.Version == 0 {
			r.Version = 1
		}
	}
	return nil
}

// Confirmed reports whether the panel has assigned this reservation an id.
func (r Reservation) Confirmed() bool {
	return r.RemoteID != ""
}

// Active reports whether the reservation has not yet ended.
func (r Reservation) Active(now time.Time) bool {
	return r.EndTime.After(now)
}
