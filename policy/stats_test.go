package policy_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/coverclarity/coverage-engine/policy"
)

func premiumOf(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func endingOn(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestAggregate_TotalMonthlyPremium_MissingTreatedAsZero(t *testing.T) {
	// GIVEN: Premiums of 100, absent, and 50
	// WHEN: Aggregating
	// THEN: The total is 150

	records := []policy.Record{
		{Premium: premiumOf("100")},
		{Premium: nil},
		{Premium: premiumOf("50")},
	}

	stats := policy.Aggregate(records, time.Now())

	assert.True(t, stats.TotalMonthlyPremium.Equal(decimal.NewFromInt(150)),
		"expected 150, got %s", stats.TotalMonthlyPremium)
}

func TestAggregate_ExpiringSoon_InclusiveThirtyDayWindow(t *testing.T) {
	// GIVEN: Now is 2024-01-01; one policy ends 2024-01-15, another 2024-03-01
	// WHEN: Aggregating
	// THEN: Only the January policy counts as expiring soon

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []policy.Record{
		{EndDate: endingOn(2024, time.January, 15)},
		{EndDate: endingOn(2024, time.March, 1)},
	}

	stats := policy.Aggregate(records, now)

	assert.Equal(t, 1, stats.ExpiringSoonCount)
}

func TestAggregate_ExpiringSoon_WindowBoundaryIncluded(t *testing.T) {
	// The 30th day itself is inside the window.
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []policy.Record{
		{EndDate: endingOn(2024, time.January, 31)},
	}

	stats := policy.Aggregate(records, now)
	assert.Equal(t, 1, stats.ExpiringSoonCount)
}

func TestAggregate_ExpiredPoliciesStillCount(t *testing.T) {
	// No lower bound: a policy already past its end date still needs attention.
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	records := []policy.Record{
		{EndDate: endingOn(2023, time.December, 31)},
	}

	stats := policy.Aggregate(records, now)
	assert.Equal(t, 1, stats.ExpiringSoonCount)
}

func TestAggregate_ActiveCount(t *testing.T) {
	records := []policy.Record{
		{Status: policy.StatusActive},
		{Status: "inactive"},
		{Status: policy.StatusActive},
		{Status: "cancelled"},
	}

	stats := policy.Aggregate(records, time.Now())
	assert.Equal(t, 2, stats.ActiveCount)
	assert.Equal(t, 4, stats.TotalPolicies)
}

func TestAggregate_CoverageScoreBounds(t *testing.T) {
	// No records: no coverage to score.
	assert.Equal(t, 0, policy.Aggregate(nil, time.Now()).CoverageScore)

	// Plenty of active coverage, nothing expiring: score stays within 0-100.
	records := make([]policy.Record, 10)
	for i := range records {
		records[i] = policy.Record{Status: policy.StatusActive}
	}
	score := policy.Aggregate(records, time.Now()).CoverageScore
	assert.GreaterOrEqual(t, score, 0)
	assert.LessOrEqual(t, score, 100)
}
