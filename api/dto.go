/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY FIELDS:
  Decimal money fields are emitted as JSON numbers (float64) for client
  convenience; the domain keeps decimals internally.
*/
package api

import (
	"time"

	"github.com/coverclarity/coverage-engine/policy"
	"github.com/coverclarity/coverage-engine/recommend"
	"github.com/coverclarity/coverage-engine/session"
)

// =============================================================================
// AUTH
// =============================================================================

// SignUpRequest is the request to create an account.
type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// SignInRequest is the request to sign in.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserDTO represents the signed-in identity.
type UserDTO struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
}

// AuthResponse is returned on successful sign-up/sign-in.
type AuthResponse struct {
	Token string  `json:"token"`
	User  UserDTO `json:"user"`
}

// =============================================================================
// POLICIES
// =============================================================================

// DocumentDTO represents a stored policy document.
type DocumentDTO struct {
	URL         string `json:"url"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

// PolicyDTO represents a policy record in API responses.
type PolicyDTO struct {
	ID             string        `json:"id"`
	Title          string        `json:"title"`
	Type           string        `json:"type,omitempty"`
	Category       string        `json:"category,omitempty"`
	Provider       string        `json:"provider,omitempty"`
	PolicyNumber   *string       `json:"policy_number,omitempty"`
	CoverageAmount *float64      `json:"coverage_amount,omitempty"`
	Deductible     *float64      `json:"deductible,omitempty"`
	Premium        *float64      `json:"premium,omitempty"`
	StartDate      *string       `json:"start_date,omitempty"`
	EndDate        *string       `json:"end_date,omitempty"`
	Status         string        `json:"status"`
	Document       *DocumentDTO  `json:"document,omitempty"`
	Attachments    []DocumentDTO `json:"attachments,omitempty"`
	Notes          string        `json:"notes,omitempty"`
	CreatedAt      string        `json:"created_at"`
	UpdatedAt      string        `json:"updated_at"`
}

// UpdatePolicyRequest carries optional field updates; nil means unchanged.
type UpdatePolicyRequest struct {
	Title          *string `json:"title"`
	Type           *string `json:"type"`
	Category       *string `json:"category"`
	Provider       *string `json:"provider"`
	PolicyNumber   *string `json:"policy_number"`
	CoverageAmount *string `json:"coverage_amount"`
	Deductible     *string `json:"deductible"`
	Premium        *string `json:"premium"`
	StartDate      *string `json:"start_date"`
	EndDate        *string `json:"end_date"`
	Status         *string `json:"status"`
	Notes          *string `json:"notes"`
}

// =============================================================================
// DASHBOARD
// =============================================================================

// DashboardDTO is the aggregate view over the caller's records.
type DashboardDTO struct {
	TotalPolicies       int     `json:"total_policies"`
	ActivePolicies      int     `json:"active_policies"`
	TotalMonthlyPremium float64 `json:"total_monthly_premium"`
	ExpiringSoon        int     `json:"expiring_soon"`
	CoverageScore       int     `json:"coverage_score"`
}

// =============================================================================
// RECOMMENDATIONS
// =============================================================================

// RecommendationDTO represents a coverage recommendation.
type RecommendationDTO struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	Priority        string `json:"priority"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	ActionType      string `json:"action_type"`
	EstimatedImpact string `json:"estimated_impact,omitempty"`
	Completed       bool   `json:"is_completed"`
	CreatedAt       string `json:"created_at"`
}

// AddRecommendationRequest is the request to add a recommendation.
type AddRecommendationRequest struct {
	Type            string `json:"type"`
	Priority        string `json:"priority"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	ActionType      string `json:"action_type"`
	EstimatedImpact string `json:"estimated_impact"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toUserDTO(id session.Identity) UserDTO {
	return UserDTO{ID: id.ID, Email: id.Email, FullName: id.FullName}
}

func toPolicyDTO(rec policy.Record) PolicyDTO {
	dto := PolicyDTO{
		ID:           string(rec.ID),
		Title:        rec.Title,
		Type:         rec.Type,
		Category:     rec.Category,
		Provider:     rec.Provider,
		PolicyNumber: rec.PolicyNumber,
		Status:       rec.Status,
		Notes:        rec.Notes,
		CreatedAt:    rec.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    rec.UpdatedAt.Format(time.RFC3339),
	}

	if rec.CoverageAmount != nil {
		v, _ := rec.CoverageAmount.Float64()
		dto.CoverageAmount = &v
	}
	if rec.Deductible != nil {
		v, _ := rec.Deductible.Float64()
		dto.Deductible = &v
	}
	if rec.Premium != nil {
		v, _ := rec.Premium.Float64()
		dto.Premium = &v
	}
	if rec.StartDate != nil {
		s := rec.StartDate.Format("2006-01-02")
		dto.StartDate = &s
	}
	if rec.EndDate != nil {
		s := rec.EndDate.Format("2006-01-02")
		dto.EndDate = &s
	}
	if rec.Document != nil {
		d := toDocumentDTO(*rec.Document)
		dto.Document = &d
	}
	for _, a := range rec.Attachments {
		dto.Attachments = append(dto.Attachments, toDocumentDTO(a))
	}
	return dto
}

func toDocumentDTO(d policy.DocumentRef) DocumentDTO {
	return DocumentDTO{URL: d.URL, Filename: d.Filename, Size: d.Size, ContentType: d.ContentType}
}

func toRecommendationDTO(r recommend.Recommendation) RecommendationDTO {
	return RecommendationDTO{
		ID:              r.ID,
		Type:            r.Type,
		Priority:        r.Priority,
		Title:           r.Title,
		Description:     r.Description,
		ActionType:      r.ActionType,
		EstimatedImpact: r.EstimatedImpact,
		Completed:       r.Completed,
		CreatedAt:       r.CreatedAt.Format(time.RFC3339),
	}
}
