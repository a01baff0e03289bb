package availability

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pkzinx/dlux-booking/internal/domain"
)

type fakeOracle struct {
	fn func(ctx context.Context, q domain.SlotQuery) ([]domain.TimeOfDay, error)
}

func (f *fakeOracle) AvailableSlots(ctx context.Context, q domain.SlotQuery) ([]domain.TimeOfDay, error) {
	return f.fn(ctx, q)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustTime(t *testing.T, s string) domain.TimeOfDay {
	t.Helper()
	tod, err := domain.ParseTimeOfDay(s)
	if err != nil {
		t.Fatalf("ParseTimeOfDay(%q) error: %v", s, err)
	}
	return tod
}

func newTestCoordinator(oracle Oracle, now time.Time) *Coordinator {
	c := NewCoordinator(oracle, testLogger())
	c.coalesce = time.Millisecond
	c.now = func() time.Time { return now }
	return c
}

func TestQuery_IncompleteClearsWithoutNetwork(t *testing.T) {
	called := false
	oracle := &fakeOracle{fn: func(ctx context.Context, q domain.SlotQuery) ([]domain.TimeOfDay, error) {
		called = true
		return []domain.TimeOfDay{{Hour: 9}}, nil
	}}
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	c := newTestCoordinator(oracle, now)

	got, err := c.Query(context.Background(), domain.SlotQuery{BarberName: "Kaue"})
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("incomplete query returned slots: %v", got)
	}
	if called {
		t.Fatalf("incomplete query must not reach the oracle")
	}
	if c.Loading() {
		t.Fatalf("loading after incomplete query")
	}
}

func TestQuery_AppliesFilteredResult(t *testing.T) {
	oracle := &fakeOracle{fn: func(ctx context.Context, q domain.SlotQuery) ([]domain.TimeOfDay, error) {
		return []domain.TimeOfDay{
			{Hour: 9, Minute: 0},
			{Hour: 9, Minute: 33}, // off grid
			{Hour: 14, Minute: 20},
		}, nil
	}}
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	c := newTestCoordinator(oracle, now)

	q := domain.SlotQuery{
		Date:            time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
		BarberName:      "Kaue",
		DurationMinutes: 40,
	}
	got, err := c.Query(context.Background(), q)
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	want := []domain.TimeOfDay{{Hour: 9, Minute: 0}, {Hour: 14, Minute: 20}}
	if len(got) != len(want) {
		t.Fatalf("slots = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("slots = %v, want %v", got, want)
		}
	}
	if c.Loading() {
		t.Fatalf("loading after completed query")
	}
}

func TestQuery_SameDayPrunesPastSlots(t *testing.T) {
	oracle := &fakeOracle{fn: func(ctx context.Context, q domain.SlotQuery) ([]domain.TimeOfDay, error) {
		return []domain.TimeOfDay{
			{Hour: 8, Minute: 40},
			{Hour: 9, Minute: 20},
			{Hour: 10, Minute: 0},
		}, nil
	}}
	// 09:05 rounds up to 09:20, so 08:40 is gone and 09:20 survives.
	now := time.Date(2024, 6, 3, 9, 5, 0, 0, time.UTC)
	c := newTestCoordinator(oracle, now)

	q := domain.SlotQuery{
		Date:            time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
		BarberName:      "Kaue",
		DurationMinutes: 40,
	}
	got, err := c.Query(context.Background(), q)
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	want := []domain.TimeOfDay{{Hour: 9, Minute: 20}, {Hour: 10, Minute: 0}}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("slots = %v, want %v", got, want)
	}
}

func TestQuery_ClosedDayYieldsNothing(t *testing.T) {
	oracle := &fakeOracle{fn: func(ctx context.Context, q domain.SlotQuery) ([]domain.TimeOfDay, error) {
		return []domain.TimeOfDay{{Hour: 9, Minute: 0}}, nil
	}}
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	c := newTestCoordinator(oracle, now)

	q := domain.SlotQuery{
		Date:            time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC), // Sunday
		BarberName:      "Kaue",
		DurationMinutes: 40,
	}
	got, err := c.Query(context.Background(), q)
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("closed day returned slots: %v", got)
	}
}

func TestQuery_FailureClearsSlots(t *testing.T) {
	boom := errors.New("boom")
	fail := false
	oracle := &fakeOracle{fn: func(ctx context.Context, q domain.SlotQuery) ([]domain.TimeOfDay, error) {
		if fail {
			return nil, boom
		}
		return []domain.TimeOfDay{{Hour: 9, Minute: 0}}, nil
	}}
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	c := newTestCoordinator(oracle, now)

	q := domain.SlotQuery{
		Date:            time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
		BarberName:      "Kaue",
		DurationMinutes: 40,
	}
	if _, err := c.Query(context.Background(), q); err != nil {
		t.Fatalf("first Query error: %v", err)
	}
	if len(c.Slots()) != 1 {
		t.Fatalf("slots not applied: %v", c.Slots())
	}

	fail = true
	if _, err := c.Query(context.Background(), q); !errors.Is(err, boom) {
		t.Fatalf("Query error = %v, want %v", err, boom)
	}
	if len(c.Slots()) != 0 {
		t.Fatalf("slots survived a failed query: %v", c.Slots())
	}
	if c.Loading() {
		t.Fatalf("loading after failed query")
	}
}

func TestQuery_LateResultOfOlderQueryIsDiscarded(t *testing.T) {
	type call struct {
		q       domain.SlotQuery
		release chan struct{}
	}
	calls := make(chan *call, 2)
	oracle := &fakeOracle{fn: func(ctx context.Context, q domain.SlotQuery) ([]domain.TimeOfDay, error) {
		c := &call{q: q, release: make(chan struct{})}
		calls <- c
		// Deliberately ignore cancellation: simulates a transport that
		// delivers a late success after a newer query went out.
		<-c.release
		if q.DurationMinutes == 30 {
			return []domain.TimeOfDay{{Hour: 9, Minute: 0}}, nil
		}
		return []domain.TimeOfDay{{Hour: 14, Minute: 0}}, nil
	}}
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	c := newTestCoordinator(oracle, now)

	date := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	q1 := domain.SlotQuery{Date: date, BarberName: "Kaue", DurationMinutes: 30}
	q2 := domain.SlotQuery{Date: date, BarberName: "Kaue", DurationMinutes: 60}

	type result struct {
		slots []domain.TimeOfDay
		err   error
	}
	res1 := make(chan result, 1)
	res2 := make(chan result, 1)

	go func() {
		s, err := c.Query(context.Background(), q1)
		res1 <- result{s, err}
	}()
	c1 := <-calls

	if !c.Loading() {
		t.Fatalf("expected loading while a query is in flight")
	}

	go func() {
		s, err := c.Query(context.Background(), q2)
		res2 <- result{s, err}
	}()
	c2 := <-calls

	// Newest query completes first and is applied.
	close(c2.release)
	r2 := <-res2
	if r2.err != nil {
		t.Fatalf("newest query error: %v", r2.err)
	}
	if len(r2.slots) != 1 || r2.slots[0] != (domain.TimeOfDay{Hour: 14, Minute: 0}) {
		t.Fatalf("newest query slots = %v", r2.slots)
	}

	// The older query's late success is dropped unseen.
	close(c1.release)
	r1 := <-res1
	if !errors.Is(r1.err, ErrSuperseded) {
		t.Fatalf("older query error = %v, want ErrSuperseded", r1.err)
	}
	got := c.Slots()
	if len(got) != 1 || got[0] != (domain.TimeOfDay{Hour: 14, Minute: 0}) {
		t.Fatalf("visible slots = %v, want the newest query's result", got)
	}
}

func TestQuery_SupersededWhileCoalescing(t *testing.T) {
	oracle := &fakeOracle{fn: func(ctx context.Context, q domain.SlotQuery) ([]domain.TimeOfDay, error) {
		t.Errorf("oracle must not be reached")
		return nil, nil
	}}
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	c := newTestCoordinator(oracle, now)
	c.coalesce = time.Hour

	q := domain.SlotQuery{
		Date:            time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
		BarberName:      "Kaue",
		DurationMinutes: 40,
	}
	res := make(chan error, 1)
	go func() {
		_, err := c.Query(context.Background(), q)
		res <- err
	}()

	// Clearing the form supersedes the pending query before its coalesce
	// window elapses; the oracle is never contacted.
	deadline := time.After(5 * time.Second)
	for {
		if c.Loading() {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("pending query never became loading")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	if _, err := c.Query(context.Background(), domain.SlotQuery{}); err != nil {
		t.Fatalf("clearing query error: %v", err)
	}

	if err := <-res; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("pending query error = %v, want ErrSuperseded", err)
	}
}

func TestSelect_ClearedWhenSlotDisappears(t *testing.T) {
	slots := []domain.TimeOfDay{{Hour: 9, Minute: 0}, {Hour: 10, Minute: 0}}
	oracle := &fakeOracle{fn: func(ctx context.Context, q domain.SlotQuery) ([]domain.TimeOfDay, error) {
		return slots, nil
	}}
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	c := newTestCoordinator(oracle, now)

	q := domain.SlotQuery{
		Date:            time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
		BarberName:      "Kaue",
		DurationMinutes: 40,
	}
	if _, err := c.Query(context.Background(), q); err != nil {
		t.Fatalf("Query error: %v", err)
	}

	c.Select(mustTime(t, "10:00"))
	if _, ok := c.Selected(); !ok {
		t.Fatalf("selection not recorded")
	}

	// Still offered: the selection survives a refresh.
	if _, err := c.Query(context.Background(), q); err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if _, ok := c.Selected(); !ok {
		t.Fatalf("selection dropped although the slot is still offered")
	}

	// Slot gone: the selection is invalidated.
	slots = []domain.TimeOfDay{{Hour: 9, Minute: 0}}
	if _, err := c.Query(context.Background(), q); err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if _, ok := c.Selected(); ok {
		t.Fatalf("selection kept although the slot disappeared")
	}
}
