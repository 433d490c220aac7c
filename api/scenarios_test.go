/*
scenarios_test.go - Tests for the demo scenario loaders

Tests for:
- Loading each scenario end to end (reset, demo account, data)
- Reloading replacing prior data instead of piling on
- Unknown scenario ids
*/
package api

import (
	"context"
	"testing"
	"time"

	"github.com/coverclarity/coverage-engine/policy"
	"github.com/coverclarity/coverage-engine/recommend"
	"github.com/coverclarity/coverage-engine/session"
	"github.com/coverclarity/coverage-engine/store/sqlite"
)

func scenarioFixture(t *testing.T) (*sqlite.Store, *Scenarios) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	sessions := session.NewProvider(store, testSecret)
	t.Cleanup(sessions.Close)

	return store, &Scenarios{
		Store:    store,
		Sessions: sessions,
		Recs:     recommend.NewService(store.Recommendations()),
	}
}

func demoOwner(t *testing.T, store *sqlite.Store) policy.OwnerID {
	t.Helper()
	user, err := store.GetUserByEmail(context.Background(), demoEmail)
	if err != nil || user == nil {
		t.Fatalf("Demo account missing: %v", err)
	}
	return policy.OwnerID(user.ID)
}

func TestLoadScenario_Homeowner(t *testing.T) {
	store, s := scenarioFixture(t)
	ctx := context.Background()

	if err := s.load(ctx, "homeowner"); err != nil {
		t.Fatalf("Failed to load scenario: %v", err)
	}

	owner := demoOwner(t, store)
	records, err := store.ListByOwner(ctx, owner)
	if err != nil {
		t.Fatalf("Failed to list policies: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("Expected 3 policies, got %d", len(records))
	}

	recs, err := s.Recs.List(ctx, owner)
	if err != nil {
		t.Fatalf("Failed to list recommendations: %v", err)
	}
	if len(recs) != 1 {
		t.Errorf("Expected 1 recommendation, got %d", len(recs))
	}
}

func TestLoadScenario_ExpiringCoverage(t *testing.T) {
	store, s := scenarioFixture(t)
	ctx := context.Background()

	if err := s.load(ctx, "expiring-coverage"); err != nil {
		t.Fatalf("Failed to load scenario: %v", err)
	}

	records, err := store.ListByOwner(ctx, demoOwner(t, store))
	if err != nil {
		t.Fatalf("Failed to list policies: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 policies, got %d", len(records))
	}

	// Two of the three sit inside the dashboard's expiring-soon window
	inWindow := 0
	for _, rec := range records {
		if stats := policy.Aggregate([]policy.Record{rec}, time.Now()); stats.ExpiringSoonCount == 1 {
			inWindow++
		}
	}
	if inWindow != 2 {
		t.Errorf("Expected 2 policies in the expiring window, got %d", inWindow)
	}
}

func TestLoadScenario_ReloadReplacesData(t *testing.T) {
	store, s := scenarioFixture(t)
	ctx := context.Background()

	if err := s.load(ctx, "homeowner"); err != nil {
		t.Fatalf("First load failed: %v", err)
	}
	if err := s.load(ctx, "fresh-start"); err != nil {
		t.Fatalf("Second load failed: %v", err)
	}

	records, err := store.ListByOwner(ctx, demoOwner(t, store))
	if err != nil {
		t.Fatalf("Failed to list policies: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Expected a clean slate, got %d policies", len(records))
	}
}

func TestLoadScenario_UnknownID(t *testing.T) {
	_, s := scenarioFixture(t)

	if err := s.load(context.Background(), "nope"); err == nil {
		t.Fatal("Expected an error for an unknown scenario")
	}
}
