package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/pkzinx/dlux-booking/internal/domain"
)

// Channel carrying reservation cache changes between views.
const channelReservations = "dlux:reservations:changed"

// Event broadcasts the full current active set rather than a diff, so a
// subscriber converges even after missed notifications. Origin names the
// view that performed the write; subscribers drop their own events.
type Event struct {
	Origin       string               `json:"origin"`
	Reservations []domain.Reservation `json:"reservations"`
}

type Broadcaster struct {
	rdb *redis.Client
	log *slog.Logger
}

func NewBroadcaster(rdb *redis.Client, log *slog.Logger) *Broadcaster {
	if log == nil {
		log = slog.Default()
	}
	return &Broadcaster{
		rdb: rdb,
		log: log.With(slog.String("component", "notify")),
	}
}

func (b *Broadcaster) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, channelReservations, payload).Err()
}

// Subscribe delivers events published by views other than origin until
// the returned stop function is called or ctx is cancelled.
func (b *Broadcaster) Subscribe(ctx context.Context, origin string, fn func(Event)) func() {
	sub := b.rdb.Subscribe(ctx, channelReservations)

	go func() {
		for msg := range sub.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.log.Warn("dropping malformed reservation event", slog.Any("err", err))
				continue
			}
			if ev.Origin == origin {
				continue
			}
			fn(ev)
		}
	}()

	return func() {
		_ = sub.Close()
	}
}
