/*
scenarios.go - Demo scenario loaders for development and demonstrations

PURPOSE:

	Populates the database with realistic data for demos and manual
	testing. Each scenario resets the database, creates a demo account,
	and loads a themed set of policies and recommendations.

AVAILABLE SCENARIOS:

	fresh-start:       New account, nothing tracked yet
	homeowner:         Home, auto, and appliance coverage in good standing
	expiring-coverage: Policies about to lapse; exercises the dashboard's
	                   expiring-soon count and the renewal sweep

USAGE VIA API (dev deployments only):

	GET  /api/scenarios
	POST /api/scenarios/load
	{"scenario_id": "homeowner"}

	The response includes the demo account's credentials.

NOTE:

	Loading a scenario wipes every table. The routes are only mounted when
	the server runs with dev routes enabled.
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coverclarity/coverage-engine/policy"
	"github.com/coverclarity/coverage-engine/recommend"
	"github.com/coverclarity/coverage-engine/session"
	"github.com/coverclarity/coverage-engine/store/sqlite"
)

const (
	demoEmail    = "demo@coverclarity.dev"
	demoPassword = "demo-password"
	demoFullName = "Demo User"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// ScenarioDTO describes one loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "fresh-start",
		Name:        "Fresh Start",
		Description: "A brand-new account with nothing tracked yet",
	},
	{
		ID:          "homeowner",
		Name:        "Homeowner",
		Description: "Home, auto, and appliance coverage in good standing",
	},
	{
		ID:          "expiring-coverage",
		Name:        "Expiring Coverage",
		Description: "Several policies about to lapse within 30 days",
	},
}

// Scenarios loads demo data. Wired into the router only for dev deployments.
type Scenarios struct {
	Store    *sqlite.Store
	Sessions *session.Provider
	Recs     *recommend.Service
}

// =============================================================================
// HTTP HANDLERS
// =============================================================================

// List returns the available scenarios.
// GET /api/scenarios
func (s *Scenarios) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// Load resets the database and loads the named scenario.
// POST /api/scenarios/load
func (s *Scenarios) Load(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	if err := s.load(r.Context(), req.ScenarioID); err != nil {
		log.Printf("api: scenario load failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"scenario": req.ScenarioID,
		"email":    demoEmail,
		"password": demoPassword,
	})
}

func (s *Scenarios) load(ctx context.Context, id string) error {
	var populate func(ctx context.Context, owner policy.OwnerID) error
	switch id {
	case "fresh-start":
		populate = func(context.Context, policy.OwnerID) error { return nil }
	case "homeowner":
		populate = s.loadHomeowner
	case "expiring-coverage":
		populate = s.loadExpiringCoverage
	default:
		return fmt.Errorf("unknown scenario: %q", id)
	}

	if err := s.Store.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}

	result, err := s.Sessions.SignUp(ctx, demoEmail, demoPassword, demoFullName)
	if err != nil {
		return fmt.Errorf("create demo account: %w", err)
	}

	return populate(ctx, policy.OwnerID(result.Identity.ID))
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (s *Scenarios) loadHomeowner(ctx context.Context, owner policy.OwnerID) error {
	now := time.Now().UTC()
	year := func(years int) *time.Time {
		t := now.AddDate(years, 0, 0)
		return &t
	}

	records := []policy.Record{
		demoRecord(owner, now, "Home Insurance", "insurance", "home", "Acme Mutual",
			"350000", "129.99", year(1)),
		demoRecord(owner, now, "Auto Insurance", "insurance", "auto", "Roadstar",
			"50000", "89.50", year(1)),
		demoRecord(owner, now, "Washer & Dryer Warranty", "warranty", "appliance", "HomeShield",
			"2400", "12.00", year(3)),
	}
	for _, rec := range records {
		if err := s.Store.Save(ctx, rec); err != nil {
			return err
		}
	}

	_, err := s.Recs.Add(ctx, owner, recommend.Input{
		Type:        "coverage_gap",
		Priority:    "medium",
		Title:       "Consider umbrella liability coverage",
		Description: "Your home and auto limits leave a gap above $350k.",
		ActionType:  "explore",
	})
	return err
}

func (s *Scenarios) loadExpiringCoverage(ctx context.Context, owner policy.OwnerID) error {
	now := time.Now().UTC()
	days := func(d int) *time.Time {
		t := now.Add(time.Duration(d) * 24 * time.Hour)
		return &t
	}

	records := []policy.Record{
		demoRecord(owner, now, "Travel Insurance", "insurance", "travel", "Globetrot",
			"10000", "18.00", days(7)),
		demoRecord(owner, now, "Phone Warranty", "warranty", "electronics", "GadgetCare",
			"900", "7.99", days(21)),
		demoRecord(owner, now, "Renters Insurance", "insurance", "home", "Acme Mutual",
			"25000", "24.00", days(200)),
	}
	for _, rec := range records {
		if err := s.Store.Save(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func demoRecord(owner policy.OwnerID, now time.Time, title, typ, category, provider, coverage, premium string, endDate *time.Time) policy.Record {
	return policy.Record{
		ID:             policy.NewRecordID(),
		OwnerID:        owner,
		Title:          title,
		Type:           typ,
		Category:       category,
		Provider:       provider,
		CoverageAmount: demoDecimal(coverage),
		Premium:        demoDecimal(premium),
		EndDate:        endDate,
		Status:         policy.StatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func demoDecimal(s string) *decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}
