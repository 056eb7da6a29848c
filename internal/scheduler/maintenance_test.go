package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

type mockRetentionStore struct {
	purged  int64
	err     error
	cutoffs []time.Time
}

func (m *mockRetentionStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	m.cutoffs = append(m.cutoffs, cutoff)
	if m.err != nil {
		return 0, m.err
	}
	return m.purged, nil
}

// stubClock returns a fixed instant so retention cutoffs are exact.
type stubClock struct {
	now time.Time
}

func (c *stubClock) Now() time.Time { return c.now }

func TestMaintenance_PurgeUsesRetentionCutoff(t *testing.T) {
	store := &mockRetentionStore{purged: 7}
	now := time.Date(2025, 8, 1, 6, 0, 0, 0, time.UTC)
	maint := NewMaintenance(store, 90, quietLogger(), &stubClock{now: now})

	purged, err := maint.Purge(context.Background())
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if purged != 7 {
		t.Errorf("purged = %d, want 7", purged)
	}

	want := now.AddDate(0, 0, -90)
	if len(store.cutoffs) != 1 || !store.cutoffs[0].Equal(want) {
		t.Errorf("cutoffs = %v, want [%v]", store.cutoffs, want)
	}
}

func TestMaintenance_DisabledWithoutRetention(t *testing.T) {
	if maint := NewMaintenance(&mockRetentionStore{}, 0, quietLogger(), nil); maint.Enabled() {
		t.Error("zero retention days should disable the sweep")
	}
	if maint := NewMaintenance(nil, 90, quietLogger(), nil); maint.Enabled() {
		t.Error("missing store should disable the sweep")
	}
}

func TestMaintenance_PurgeWhenDisabled(t *testing.T) {
	maint := NewMaintenance(nil, 0, quietLogger(), nil)
	if _, err := maint.Purge(context.Background()); err == nil {
		t.Fatal("expected error purging with no configuration")
	}
}

func TestMaintenance_RunIfDue_ThrottlesToInterval(t *testing.T) {
	store := &mockRetentionStore{}
	clock := &stubClock{now: time.Date(2025, 8, 1, 6, 0, 0, 0, time.UTC)}
	maint := NewMaintenance(store, 30, quietLogger(), clock)

	maint.RunIfDue(context.Background())
	if len(store.cutoffs) != 1 {
		t.Fatalf("first check ran %d purges, want 1", len(store.cutoffs))
	}

	// An hour later the sweep is still within its daily interval.
	clock.now = clock.now.Add(time.Hour)
	maint.RunIfDue(context.Background())
	if len(store.cutoffs) != 1 {
		t.Fatalf("second check ran %d purges, want still 1", len(store.cutoffs))
	}

	clock.now = clock.now.Add(maintenanceInterval)
	maint.RunIfDue(context.Background())
	if len(store.cutoffs) != 2 {
		t.Fatalf("after a day, %d purges, want 2", len(store.cutoffs))
	}
}

func TestMaintenance_RunIfDue_RetriesAfterFailure(t *testing.T) {
	store := &mockRetentionStore{err: errors.New("relation is locked")}
	clock := &stubClock{now: time.Date(2025, 8, 1, 6, 0, 0, 0, time.UTC)}
	maint := NewMaintenance(store, 30, quietLogger(), clock)

	// The failure is swallowed; the next due window tries again.
	maint.RunIfDue(context.Background())
	clock.now = clock.now.Add(maintenanceInterval)
	store.err = nil
	maint.RunIfDue(context.Background())

	if len(store.cutoffs) != 2 {
		t.Fatalf("ran %d purges, want 2 (failure then retry)", len(store.cutoffs))
	}
}
