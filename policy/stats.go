/*
stats.go - Dashboard aggregation

Pure, synchronous derivation over the caller's fetched records. No caching,
no pagination: the full owner-scoped list is aggregated on every call,
against the wall-clock "now" the caller passes in.
*/
package policy

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExpiringWindow is how far ahead a policy's end date counts as
// "expiring soon".
const ExpiringWindow = 30 * 24 * time.Hour

// DashboardStats is the aggregate view rendered on the dashboard.
type DashboardStats struct {
	TotalPolicies       int
	ActiveCount         int
	TotalMonthlyPremium decimal.Decimal
	ExpiringSoonCount   int
	CoverageScore       int
}

// Aggregate derives dashboard statistics from a list of records.
func Aggregate(records []Record, now time.Time) DashboardStats {
	stats := DashboardStats{
		TotalPolicies:       len(records),
		TotalMonthlyPremium: decimal.Zero,
	}

	cutoff := now.Add(ExpiringWindow)
	for _, r := range records {
		if r.Status == StatusActive {
			stats.ActiveCount++
		}
		if r.Premium != nil {
			stats.TotalMonthlyPremium = stats.TotalMonthlyPremium.Add(*r.Premium)
		}
		// Inclusive upper bound, no lower bound: already-expired policies
		// still count as needing attention.
		if r.EndDate != nil && !r.EndDate.After(cutoff) {
			stats.ExpiringSoonCount++
		}
	}

	stats.CoverageScore = coverageScore(stats)
	return stats
}

// coverageScore is a bounded 0-100 heuristic: credit for active coverage,
// a penalty while anything is expiring.
func coverageScore(s DashboardStats) int {
	if s.TotalPolicies == 0 {
		return 0
	}
	score := 40
	active := s.ActiveCount * 10
	if active > 40 {
		active = 40
	}
	score += active
	if s.ExpiringSoonCount == 0 {
		score += 20
	} else {
		score -= 10 * s.ExpiringSoonCount
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}
