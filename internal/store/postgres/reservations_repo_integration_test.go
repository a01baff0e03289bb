package postgres

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/pkzinx/dlux-booking/internal/domain"
)

func TestPostgresIntegration_ReservationUpsertRemoveAndSweep(t *testing.T) {
	databaseURL := strings.TrimSpace(os.Getenv("DLUX_TEST_DATABASE_URL"))
	if databaseURL == "" {
		t.Skip("DLUX_TEST_DATABASE_URL not set")
	}

	// A single connection keeps the session-level search_path in effect
	// for every statement of the test.
	db, err := Open(databaseURL, PoolConfig{MaxOpenConns: 1, MaxIdleConns: 1})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() {
		_ = Close(db)
	})

	schema := "dlux_test_" + randomHex(t, 8)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = db.NewRaw("DROP SCHEMA IF EXISTS " + schema + " CASCADE").Exec(ctx)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := db.NewRaw("CREATE SCHEMA " + schema).Exec(ctx); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	if _, err := db.NewRaw("SET search_path TO " + schema).Exec(ctx); err != nil {
		t.Fatalf("set search_path: %v", err)
	}
	if err := EnsureSchema(ctx, db); err != nil {
		t.Fatalf("EnsureSchema error: %v", err)
	}

	repo := NewReservationRepo(db)
	now := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)

	// Upsert by remote id converges to one row and bumps the version.
	first, err := repo.Upsert(ctx, domain.Reservation{
		RemoteID:     "5",
		ServiceTitle: "Cabelo",
		BarberName:   "Kaue",
		StartTime:    now.Add(time.Hour),
		EndTime:      now.Add(100 * time.Minute),
	})
	if err != nil {
		t.Fatalf("first Upsert error: %v", err)
	}
	_, err = repo.Upsert(ctx, domain.Reservation{
		RemoteID:     "5",
		ServiceTitle: "Barba",
		BarberName:   "Kaue",
		StartTime:    now.Add(2 * time.Hour),
		EndTime:      now.Add(150 * time.Minute),
	})
	if err != nil {
		t.Fatalf("second Upsert error: %v", err)
	}

	rows, err := repo.ListActive(ctx, now)
	if err != nil {
		t.Fatalf("ListActive error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("active rows = %d, want 1", len(rows))
	}
	if rows[0].Key != first.Key {
		t.Fatalf("upsert changed the key: %s -> %s", first.Key, rows[0].Key)
	}
	if rows[0].ServiceTitle != "Barba" {
		t.Fatalf("service = %q, want the updated one", rows[0].ServiceTitle)
	}
	if rows[0].Version != 2 {
		t.Fatalf("version = %d, want 2", rows[0].Version)
	}

	// Pending rows without a remote id never collide with each other.
	for i := 0; i < 2; i++ {
		_, err := repo.Upsert(ctx, domain.Reservation{
			ServiceTitle: "Cabelo",
			BarberName:   "Nicolas",
			StartTime:    now.Add(3 * time.Hour),
			EndTime:      now.Add(200 * time.Minute),
		})
		if err != nil {
			t.Fatalf("pending Upsert error: %v", err)
		}
	}
	rows, err = repo.ListActive(ctx, now)
	if err != nil {
		t.Fatalf("ListActive error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("active rows = %d, want 3", len(rows))
	}

	// Remove is idempotent.
	if err := repo.Remove(ctx, "5"); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if err := repo.Remove(ctx, "5"); err != nil {
		t.Fatalf("second Remove error: %v", err)
	}

	// Sweep deletes everything that has ended by now.
	_, err = repo.Upsert(ctx, domain.Reservation{
		RemoteID:     "6",
		ServiceTitle: "Barba",
		BarberName:   "Kaue",
		StartTime:    now.Add(-2 * time.Hour),
		EndTime:      now.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("expired Upsert error: %v", err)
	}
	n, err := repo.SweepExpired(ctx, now)
	if err != nil {
		t.Fatalf("SweepExpired error: %v", err)
	}
	if n != 1 {
		t.Fatalf("swept %d, want 1", n)
	}
	n, err = repo.SweepExpired(ctx, now)
	if err != nil {
		t.Fatalf("second SweepExpired error: %v", err)
	}
	if n != 0 {
		t.Fatalf("second sweep removed %d", n)
	}

	rows, err = repo.ListActive(ctx, now)
	if err != nil {
		t.Fatalf("ListActive error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("active rows = %d, want the two pending ones", len(rows))
	}
}

func randomHex(t *testing.T, bytesLen int) string {
	t.Helper()
	b := make([]byte, bytesLen)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("rand.Read error: %v", err)
	}
	return hex.EncodeToString(b)
}
