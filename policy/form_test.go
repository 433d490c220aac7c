package policy_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coverclarity/coverage-engine/policy"
)

func TestValidate_TitleRequired(t *testing.T) {
	// GIVEN: A form with no title
	// WHEN: Validating
	// THEN: A per-field error is returned, nothing panics

	result := policy.Validate(policy.Form{Title: "   "})

	assert.False(t, result.OK)
	assert.Equal(t, "Policy name is required", result.Errors["title"])
}

func TestValidate_TitleOnlyIsEnough(t *testing.T) {
	// GIVEN: A form with only a title
	// WHEN: Validating
	// THEN: Validation passes and every optional field is absent

	result := policy.Validate(policy.Form{Title: "Renters Insurance"})

	require.True(t, result.OK)
	assert.Equal(t, "Renters Insurance", result.Fields.Title)
	assert.Nil(t, result.Fields.Premium)
	assert.Nil(t, result.Fields.CoverageAmount)
	assert.Nil(t, result.Fields.StartDate)
	assert.Nil(t, result.Fields.EndDate)
	assert.Equal(t, policy.StatusActive, result.Fields.Status)
}

func TestValidate_NonNumericOptionalFieldsAreAbsent(t *testing.T) {
	// GIVEN: Optional numeric fields containing non-numeric text
	// WHEN: Validating
	// THEN: Validation passes and the fields are absent, not errors

	result := policy.Validate(policy.Form{
		Title:          "Phone Warranty",
		CoverageAmount: "a lot",
		Deductible:     "n/a",
		Premium:        "twelve",
	})

	require.True(t, result.OK)
	assert.Nil(t, result.Fields.CoverageAmount)
	assert.Nil(t, result.Fields.Deductible)
	assert.Nil(t, result.Fields.Premium)
}

func TestValidate_ParsesNumericAndDateFields(t *testing.T) {
	result := policy.Validate(policy.Form{
		Title:          "Auto Policy",
		Premium:        "129.50",
		CoverageAmount: "50000",
		StartDate:      "2024-01-01",
		EndDate:        "2024-12-31",
		Status:         "inactive",
	})

	require.True(t, result.OK)
	require.NotNil(t, result.Fields.Premium)
	assert.True(t, result.Fields.Premium.Equal(decimal.RequireFromString("129.50")))
	require.NotNil(t, result.Fields.CoverageAmount)
	assert.True(t, result.Fields.CoverageAmount.Equal(decimal.NewFromInt(50000)))
	require.NotNil(t, result.Fields.StartDate)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *result.Fields.StartDate)
	assert.Equal(t, "inactive", result.Fields.Status)
}

func TestValidate_MalformedDatesAreAbsent(t *testing.T) {
	result := policy.Validate(policy.Form{
		Title:     "Travel Insurance",
		StartDate: "01/02/2024",
		EndDate:   "next year",
	})

	require.True(t, result.OK)
	assert.Nil(t, result.Fields.StartDate)
	assert.Nil(t, result.Fields.EndDate)
}

func TestFieldsRecord_DefaultsAndIdentity(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	result := policy.Validate(policy.Form{Title: "Home Insurance"})
	require.True(t, result.OK)

	rec := result.Fields.Record("user-1", now)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, policy.OwnerID("user-1"), rec.OwnerID)
	assert.Equal(t, policy.StatusActive, rec.Status)
	assert.Equal(t, now, rec.CreatedAt)
}
