/*
Package policy holds the CoverClarity policy domain: the record model, the
submission form with its pure validation, and dashboard aggregation.

KEY CONCEPTS IN THIS FILE (types.go):
  - Record: one insurance policy or warranty owned by a user
  - DocumentRef: pointer to a stored policy document blob
  - Typed IDs: RecordID / OwnerID prevent mixing identifiers

DESIGN PRINCIPLES:
  1. Precision: money fields use decimal.Decimal, never float64
  2. Optionality is explicit: absent fields are nil pointers, not zero values
  3. Record IDs are ULIDs, so lexicographic order is creation order
*/
package policy

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type RecordID string
type OwnerID string

// NewRecordID returns a fresh creation-ordered record id.
func NewRecordID() RecordID {
	return RecordID(ulid.Make().String())
}

// =============================================================================
// RECORD - one stored policy or warranty
// =============================================================================

// DocumentRef points at a successfully stored document blob. Once set on a
// Record, the URL must be retrievable; the submission workflow guarantees
// this by deleting the blob when record creation fails.
type DocumentRef struct {
	URL         string `json:"url"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

// Record is one insurance policy or warranty. Only Title is required;
// optional fields are nil when absent. Status is a free-form string and
// defaults to "active" for new records.
type Record struct {
	ID      RecordID
	OwnerID OwnerID

	Title    string
	Type     string
	Category string
	Provider string

	PolicyNumber   *string
	CoverageAmount *decimal.Decimal
	Deductible     *decimal.Decimal
	Premium        *decimal.Decimal

	StartDate *time.Time
	EndDate   *time.Time

	Status string

	Document    *DocumentRef
	Attachments []DocumentRef

	Notes string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// StatusActive is the default status for newly created records.
const StatusActive = "active"

// =============================================================================
// STORE INTERFACE - implemented by store/sqlite
// =============================================================================

// Store persists policy records. Records are never deleted; updates go
// through Save with the same id.
type Store interface {
	Save(ctx context.Context, rec Record) error
	Get(ctx context.Context, id RecordID) (*Record, error)
	ListByOwner(ctx context.Context, owner OwnerID) ([]Record, error)
}
