package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"distress-detector/internal/market"
	"distress-detector/internal/storage"
)

func TestRescoreAlertsOnlyOnCrossing(t *testing.T) {
	store := newMemoryListings(
		// stale score 0, now 30% below average with "urgent" → 7
		storage.Listing{Title: "A", Description: "urgent", Location: "Karen", Price: decimal.NewFromInt(70000)},
		// already announced at 9, still above threshold
		storage.Listing{Title: "B", Description: "auction must sell", Location: "Karen", Price: decimal.NewFromInt(130000), DistressScore: 9},
		// unchanged
		storage.Listing{Title: "C", Description: "", Location: "Karen", Price: decimal.NewFromInt(100000), DistressScore: 0},
	)
	notifier := &recordingNotifier{}
	svc := newTestService(store, &stubAverages{values: map[string]decimal.Decimal{"karen": decimal.NewFromInt(100000)}}, notifier)

	result, err := svc.Rescore(context.Background())
	if err != nil {
		t.Fatalf("rescore: %v", err)
	}
	if result.Scanned != 3 || result.Updated != 2 || result.Alerted != 1 || result.Failed != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(notifier.alerts) != 1 || notifier.alerts[0].Title != "A" || notifier.alerts[0].Score != 7 {
		t.Fatalf("unexpected alerts: %+v", notifier.alerts)
	}
	b, _ := store.GetListing(context.Background(), 2)
	if b.DistressScore != 6 {
		t.Fatalf("listing B score = %v, want 6", b.DistressScore)
	}
}

func TestRescoreAgainstStoreAverages(t *testing.T) {
	store := newMemoryListings(
		storage.Listing{Title: "A", Location: "Kilimani", Price: decimal.NewFromInt(50)},
		storage.Listing{Title: "B", Location: "kilimani", Price: decimal.NewFromInt(150)},
	)
	svc := New(Options{Threshold: 5}, nil, store, market.NewStoreProvider(store), nil, nil, zerolog.Nop())

	result, err := svc.Rescore(context.Background())
	if err != nil {
		t.Fatalf("rescore: %v", err)
	}
	if result.Updated != 1 {
		t.Fatalf("expected only the discounted listing to change: %+v", result)
	}
	a, _ := store.GetListing(context.Background(), 1)
	if a.DistressScore != 5 {
		t.Fatalf("score = %v, want 5", a.DistressScore)
	}
}

type fakeLocker struct {
	*memoryListings
	acquired bool
	released bool
	err      error
}

func (f *fakeLocker) TryAdvisoryLock(context.Context, int64) (func(), bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	if !f.acquired {
		return nil, false, nil
	}
	return func() { f.released = true }, true, nil
}

func TestSweepHonoursAdvisoryLock(t *testing.T) {
	locked := &fakeLocker{memoryListings: newMemoryListings(
		storage.Listing{Title: "A", Description: "auction", Location: "X", Price: decimal.NewFromInt(1)},
	)}
	svc := New(Options{Threshold: 5, LockKey: 42}, nil, locked, &stubAverages{}, nil, nil, zerolog.Nop())

	if err := svc.sweep(context.Background(), time.Now()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if l, _ := locked.GetListing(context.Background(), 1); l.DistressScore != 0 {
		t.Fatal("sweep must not run without the lock")
	}

	locked.acquired = true
	if err := svc.sweep(context.Background(), time.Now()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if l, _ := locked.GetListing(context.Background(), 1); l.DistressScore != 3 {
		t.Fatalf("score = %v, want 3", l.DistressScore)
	}
	if !locked.released {
		t.Fatal("lock not released")
	}

	locked.err = errors.New("db down")
	if err := svc.sweep(context.Background(), time.Now()); err == nil {
		t.Fatal("expected lock error")
	}
}
