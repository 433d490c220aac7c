/*
scheduler_test.go - Tests for the background renewal sweep

Tests for:
- Flagging policies that end inside the expiring-soon window
- Idempotence across repeated sweeps
- Dismissed renewal cards staying dismissed
*/
package api

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coverclarity/coverage-engine/policy"
	"github.com/coverclarity/coverage-engine/recommend"
	"github.com/coverclarity/coverage-engine/store/sqlite"
)

func sweeperFixture(t *testing.T) (*sqlite.Store, *recommend.Service, *RenewalSweeper) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	recs := recommend.NewService(store.Recommendations())
	return store, recs, NewRenewalSweeper(store, recs)
}

func savePolicyEnding(t *testing.T, store *sqlite.Store, owner policy.OwnerID, title, status string, end time.Time) policy.Record {
	t.Helper()
	now := time.Now().UTC()
	premium := decimal.NewFromInt(10)
	rec := policy.Record{
		ID:        policy.NewRecordID(),
		OwnerID:   owner,
		Title:     title,
		Status:    status,
		Premium:   &premium,
		EndDate:   &end,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.Save(context.Background(), rec); err != nil {
		t.Fatalf("Failed to save policy: %v", err)
	}
	return rec
}

func TestSweep_FlagsOnlyPoliciesInWindow(t *testing.T) {
	store, recs, sweeper := sweeperFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// GIVEN: one policy ending in 10 days, one far out, one already inactive
	savePolicyEnding(t, store, "user-1", "Travel Insurance", policy.StatusActive, now.Add(10*24*time.Hour))
	savePolicyEnding(t, store, "user-1", "Home Insurance", policy.StatusActive, now.Add(300*24*time.Hour))
	savePolicyEnding(t, store, "user-1", "Old Warranty", "expired", now.Add(5*24*time.Hour))

	// WHEN: sweeping
	sweeper.RunNow()

	// THEN: only the in-window active policy is flagged
	list, err := recs.List(ctx, "user-1")
	if err != nil {
		t.Fatalf("Failed to list recommendations: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("Expected 1 renewal recommendation, got %d", len(list))
	}
	if list[0].Type != "renewal" || list[0].Priority != "high" {
		t.Errorf("Unexpected recommendation: %+v", list[0])
	}
}

func TestSweep_RepeatedSweepsDoNotDuplicate(t *testing.T) {
	store, recs, sweeper := sweeperFixture(t)
	ctx := context.Background()

	savePolicyEnding(t, store, "user-1", "Travel Insurance", policy.StatusActive,
		time.Now().UTC().Add(10*24*time.Hour))

	sweeper.RunNow()
	sweeper.RunNow()
	sweeper.RunNow()

	list, err := recs.List(ctx, "user-1")
	if err != nil {
		t.Fatalf("Failed to list recommendations: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("Expected 1 recommendation after repeated sweeps, got %d", len(list))
	}
}

func TestSweep_DismissedRenewalStaysDismissed(t *testing.T) {
	store, recs, sweeper := sweeperFixture(t)
	ctx := context.Background()

	savePolicyEnding(t, store, "user-1", "Travel Insurance", policy.StatusActive,
		time.Now().UTC().Add(10*24*time.Hour))
	sweeper.RunNow()

	list, err := recs.List(ctx, "user-1")
	if err != nil || len(list) != 1 {
		t.Fatalf("Setup failed: %v (%d recommendations)", err, len(list))
	}
	if err := recs.Dismiss(ctx, "user-1", list[0].ID); err != nil {
		t.Fatalf("Failed to dismiss: %v", err)
	}

	// The next sweep must not bring the card back
	sweeper.RunNow()
	list, err = recs.List(ctx, "user-1")
	if err != nil {
		t.Fatalf("Failed to list recommendations: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("Dismissed renewal came back: %+v", list)
	}
}
