/*
Package recommend manages owner-scoped coverage recommendations: the
"increase your liability cover" cards shown next to the dashboard.

All reads and writes are scoped to the owning identity; an update that
targets another owner's recommendation reports not-found rather than
leaking its existence.
*/
package recommend

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/coverclarity/coverage-engine/policy"
)

// Recommendation is one stored coverage recommendation.
type Recommendation struct {
	ID              string
	OwnerID         policy.OwnerID
	Type            string
	Priority        string
	Title           string
	Description     string
	ActionType      string
	EstimatedImpact string
	Dismissed       bool
	Completed       bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Input is the caller-supplied part of a new recommendation.
type Input struct {
	Type            string
	Priority        string
	Title           string
	Description     string
	ActionType      string
	EstimatedImpact string
}

// Store persists recommendations, implemented by store/sqlite.
type Store interface {
	Save(ctx context.Context, r Recommendation) error
	// ListActive returns an owner's undismissed recommendations,
	// newest first.
	ListActive(ctx context.Context, owner policy.OwnerID) ([]Recommendation, error)
	// SetFlags updates dismissed/completed on a row the owner holds,
	// reporting whether such a row existed.
	SetFlags(ctx context.Context, id string, owner policy.OwnerID, dismissed, completed *bool) (bool, error)
	// Exists reports whether a row with the id exists, dismissed or not.
	Exists(ctx context.Context, id string) (bool, error)
}

// ErrNotFound is returned when the recommendation does not exist or
// belongs to someone else.
var ErrNotFound = errors.New("recommendation not found")

// Service wraps a Store with validation and identity checks.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Add stores a new recommendation for the owner.
func (s *Service) Add(ctx context.Context, owner policy.OwnerID, in Input) (*Recommendation, error) {
	if owner == "" {
		return nil, policy.ErrNotAuthenticated
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, &policy.ValidationError{Fields: map[string]string{"title": "Title is required"}}
	}

	priority := strings.TrimSpace(in.Priority)
	if priority == "" {
		priority = "medium"
	}

	now := s.now().UTC()
	rec := Recommendation{
		ID:              ulid.Make().String(),
		OwnerID:         owner,
		Type:            strings.TrimSpace(in.Type),
		Priority:        priority,
		Title:           strings.TrimSpace(in.Title),
		Description:     strings.TrimSpace(in.Description),
		ActionType:      strings.TrimSpace(in.ActionType),
		EstimatedImpact: strings.TrimSpace(in.EstimatedImpact),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.Save(ctx, rec); err != nil {
		return nil, &policy.PersistenceError{Err: err}
	}
	return &rec, nil
}

// EnsureRenewal stores a renewal recommendation for an expiring policy
// record, keyed on the record so repeated sweeps neither duplicate it nor
// resurrect a dismissed one. Reports whether a new recommendation was made.
func (s *Service) EnsureRenewal(ctx context.Context, rec policy.Record) (bool, error) {
	if rec.OwnerID == "" || rec.EndDate == nil {
		return false, nil
	}

	id := "renewal-" + string(rec.ID)
	exists, err := s.store.Exists(ctx, id)
	if err != nil {
		return false, &policy.PersistenceError{Err: err}
	}
	if exists {
		return false, nil
	}

	now := s.now().UTC()
	renewal := Recommendation{
		ID:          id,
		OwnerID:     rec.OwnerID,
		Type:        "renewal",
		Priority:    "high",
		Title:       rec.Title + " expires soon",
		Description: "Coverage ends on " + rec.EndDate.Format("2006-01-02") + ". Renew or replace it to avoid a gap.",
		ActionType:  "renew",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Save(ctx, renewal); err != nil {
		return false, &policy.PersistenceError{Err: err}
	}
	return true, nil
}

// List returns the owner's undismissed recommendations, newest first.
func (s *Service) List(ctx context.Context, owner policy.OwnerID) ([]Recommendation, error) {
	if owner == "" {
		return nil, policy.ErrNotAuthenticated
	}
	return s.store.ListActive(ctx, owner)
}

// Dismiss marks a recommendation dismissed.
func (s *Service) Dismiss(ctx context.Context, owner policy.OwnerID, id string) error {
	return s.setFlag(ctx, owner, id, boolPtr(true), nil)
}

// Complete marks a recommendation completed.
func (s *Service) Complete(ctx context.Context, owner policy.OwnerID, id string) error {
	return s.setFlag(ctx, owner, id, nil, boolPtr(true))
}

func (s *Service) setFlag(ctx context.Context, owner policy.OwnerID, id string, dismissed, completed *bool) error {
	if owner == "" {
		return policy.ErrNotAuthenticated
	}
	ok, err := s.store.SetFlags(ctx, id, owner, dismissed, completed)
	if err != nil {
		return &policy.PersistenceError{Err: err}
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func boolPtr(b bool) *bool { return &b }
