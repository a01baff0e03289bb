package availability

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/pkzinx/dlux-booking/internal/domain"
)

// ErrSuperseded marks a query whose result was discarded because a newer
// query was issued before it finished. It is not a failure and must not
// reach the user.
var ErrSuperseded = errors.New("availability: query superseded")

// DefaultCoalesceWindow is how long a query waits before going out, so
// that rapid successive changes (switching services flips the duration
// several times in a burst) collapse into one request for the final query.
const DefaultCoalesceWindow = 50 * time.Millisecond

// Oracle is the authoritative free-slot source, normally the panel.
type Oracle interface {
	AvailableSlots(ctx context.Context, q domain.SlotQuery) ([]domain.TimeOfDay, error)
}

// Coordinator keeps the visible slot set consistent with the latest
// query only. Every new query bumps the sequence number and cancels the
// in-flight request; a response is applied only while its sequence
// number is still the newest issued, so responses arriving out of order
// can never clobber a newer result.
type Coordinator struct {
	oracle   Oracle
	log      *slog.Logger
	coalesce time.Duration
	now      func() time.Time

	mu       sync.Mutex
	seq      uint64
	cancel   context.CancelFunc
	loading  bool
	slots    []domain.TimeOfDay
	selected domain.TimeOfDay
	hasSel   bool
}

func NewCoordinator(oracle Oracle, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		oracle:   oracle,
		log:      log.With(slog.String("component", "availability")),
		coalesce: DefaultCoalesceWindow,
		now:      time.Now,
	}
}

// Query resolves the available slots for q. An incomplete query clears
// the slot set without touching the network. At most one request is in
// flight at a time: issuing a new query always cancels the previous one,
// never queues behind it. Superseded calls return ErrSuperseded.
func (c *Coordinator) Query(ctx context.Context, q domain.SlotQuery) ([]domain.TimeOfDay, error) {
	if !q.Complete() {
		c.mu.Lock()
		c.seq++
		if c.cancel != nil {
			c.cancel()
			c.cancel = nil
		}
		c.slots = nil
		c.loading = false
		c.mu.Unlock()
		return nil, nil
	}

	c.mu.Lock()
	c.seq++
	mine := c.seq
	if c.cancel != nil {
		c.cancel()
	}
	qctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.loading = true
	c.mu.Unlock()

	timer := time.NewTimer(c.coalesce)
	select {
	case <-qctx.Done():
		timer.Stop()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrSuperseded
	case <-timer.C:
	}

	got, err := c.oracle.AvailableSlots(qctx, q)

	c.mu.Lock()
	defer c.mu.Unlock()
	if mine != c.seq {
		// A newer query owns the state; drop this response unseen. This
		// holds even when the transport ignored the cancellation and
		// delivered a late success.
		return nil, ErrSuperseded
	}
	c.cancel = nil
	c.loading = false

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.slots = nil
		c.log.Warn("availability query failed",
			slog.String("barber", q.BarberName),
			slog.Time("date", q.Date),
			slog.Any("err", err),
		)
		return nil, err
	}

	slots := filterSlots(q, got, c.now())
	c.slots = slots
	if c.hasSel && !containsSlot(slots, c.selected) {
		c.hasSel = false
	}
	return slots, nil
}

// Select records the user's chosen time. The choice is cleared when a
// later result no longer offers it.
func (c *Coordinator) Select(t domain.TimeOfDay) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = t
	c.hasSel = true
}

func (c *Coordinator) Selected() (domain.TimeOfDay, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected, c.hasSel
}

func (c *Coordinator) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Slots returns a copy of the most recently applied result set.
func (c *Coordinator) Slots() []domain.TimeOfDay {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.TimeOfDay, len(c.slots))
	copy(out, c.slots)
	return out
}

// filterSlots re-applies the business rules on top of the panel's
// answer: closed days yield nothing, off-grid times are dropped, and on
// the current day slots already in the past are pruned for display.
func filterSlots(q domain.SlotQuery, got []domain.TimeOfDay, now time.Time) []domain.TimeOfDay {
	if !domain.IsBookableDay(q.Date) {
		return []domain.TimeOfDay{}
	}

	grid := make(map[domain.TimeOfDay]struct{}, 30)
	for _, t := range domain.SlotGrid() {
		grid[t] = struct{}{}
	}

	sameDay := q.Date.Year() == now.Year() && q.Date.YearDay() == now.YearDay()
	floor := domain.CeilToGrid(domain.TimeOfDayOf(now))

	out := make([]domain.TimeOfDay, 0, len(got))
	for _, t := range got {
		if _, ok := grid[t]; !ok {
			continue
		}
		if sameDay && t.Before(floor) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func containsSlot(slots []domain.TimeOfDay, t domain.TimeOfDay) bool {
	for _, s := range slots {
		if s == t {
			return true
		}
	}
	return false
}
