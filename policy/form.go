/*
form.go - The policy submission form and its validation

The form is an explicit struct of named string fields, exactly as received
from the client. Validate is a pure function returning a tagged result:
either OK with the parsed fields, or a per-field error map. It never
panics and makes no I/O.

PARSING POLICY:
  - Title is the only required field.
  - Optional numeric fields parse permissively: non-numeric text is treated
    as absent, never as an error.
  - Optional dates use the 2006-01-02 layout; malformed values are absent.
*/
package policy

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Form carries the raw string fields of a policy submission.
type Form struct {
	Title          string
	Type           string
	Category       string
	Provider       string
	PolicyNumber   string
	CoverageAmount string
	Deductible     string
	Premium        string
	StartDate      string
	EndDate        string
	Status         string
	Notes          string
}

// DefaultForm returns the form reset to its default values.
func DefaultForm() Form {
	return Form{}
}

// Fields holds the parsed, typed view of a valid form.
type Fields struct {
	Title          string
	Type           string
	Category       string
	Provider       string
	PolicyNumber   *string
	CoverageAmount *decimal.Decimal
	Deductible     *decimal.Decimal
	Premium        *decimal.Decimal
	StartDate      *time.Time
	EndDate        *time.Time
	Status         string
	Notes          string
}

// ValidationResult is the tagged outcome of Validate: OK with Fields, or
// a per-field error map.
type ValidationResult struct {
	OK     bool
	Fields Fields
	Errors map[string]string
}

// Validate checks the form and parses its fields. Pure; safe to call with
// any input.
func Validate(f Form) ValidationResult {
	errs := make(map[string]string)

	title := strings.TrimSpace(f.Title)
	if title == "" {
		errs["title"] = "Policy name is required"
	}

	if len(errs) > 0 {
		return ValidationResult{OK: false, Errors: errs}
	}

	status := strings.TrimSpace(f.Status)
	if status == "" {
		status = StatusActive
	}

	return ValidationResult{
		OK: true,
		Fields: Fields{
			Title:          title,
			Type:           strings.TrimSpace(f.Type),
			Category:       strings.TrimSpace(f.Category),
			Provider:       strings.TrimSpace(f.Provider),
			PolicyNumber:   optionalString(f.PolicyNumber),
			CoverageAmount: ParseOptionalDecimal(f.CoverageAmount),
			Deductible:     ParseOptionalDecimal(f.Deductible),
			Premium:        ParseOptionalDecimal(f.Premium),
			StartDate:      ParseOptionalDate(f.StartDate),
			EndDate:        ParseOptionalDate(f.EndDate),
			Status:         status,
			Notes:          strings.TrimSpace(f.Notes),
		},
	}
}

// Record builds a new policy record from the parsed fields.
func (f Fields) Record(owner OwnerID, now time.Time) Record {
	return Record{
		ID:             NewRecordID(),
		OwnerID:        owner,
		Title:          f.Title,
		Type:           f.Type,
		Category:       f.Category,
		Provider:       f.Provider,
		PolicyNumber:   f.PolicyNumber,
		CoverageAmount: f.CoverageAmount,
		Deductible:     f.Deductible,
		Premium:        f.Premium,
		StartDate:      f.StartDate,
		EndDate:        f.EndDate,
		Status:         f.Status,
		Notes:          f.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// ParseOptionalDecimal parses a money field. Empty or non-numeric input is
// absent, not an error.
func ParseOptionalDecimal(s string) *decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}

const dateLayout = "2006-01-02"

// ParseOptionalDate parses a 2006-01-02 date field; malformed input is
// absent.
func ParseOptionalDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil
	}
	return &t
}
