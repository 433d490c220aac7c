/*
handlers.go - HTTP API handlers for the CoverClarity service

PURPOSE:
  Exposes auth, policies, the dashboard, and recommendations via REST.
  Handles HTTP request/response and JSON serialization, and delegates to
  the domain packages.

ENDPOINTS:
  Auth:
    POST   /api/auth/signup            Create account, open session
    POST   /api/auth/signin            Sign in
    POST   /api/auth/signout           Revoke session, redirect to /
    GET    /api/session                Current identity

  Policies:
    GET    /api/policies               Owner's records, newest first
    POST   /api/policies               Multipart submission (runs the saga)
    GET    /api/policies/{id}          One record
    PUT    /api/policies/{id}          Field updates

  Dashboard:
    GET    /api/dashboard              Aggregates for the caller

  Recommendations:
    GET    /api/recommendations
    POST   /api/recommendations
    POST   /api/recommendations/{id}/dismiss
    POST   /api/recommendations/{id}/complete

ERROR HANDLING:
  Domain failures map onto the taxonomy:
  - 400: validation errors (with a per-field map)
  - 401: authentication errors
  - 404: records invisible to the caller
  - 502: storage upload failures
  - 500: persistence and unexpected failures (generic message)
  Nothing propagates as a panic past chi's Recoverer.
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/coverclarity/coverage-engine/auth"
	"github.com/coverclarity/coverage-engine/policy"
	"github.com/coverclarity/coverage-engine/recommend"
	"github.com/coverclarity/coverage-engine/session"
	"github.com/coverclarity/coverage-engine/submission"
)

// maxUploadBytes bounds one multipart submission (documents included).
const maxUploadBytes = 32 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Sessions *session.Provider
	Policies policy.Store
	Workflow *submission.Workflow
	Recs     *recommend.Service

	// Secret verifies the session cookie on the sign-out route, which sits
	// outside the auth middleware.
	Secret string
}

// NewHandler creates a new handler over the given services.
func NewHandler(sessions *session.Provider, policies policy.Store, wf *submission.Workflow, recs *recommend.Service, secret string) *Handler {
	return &Handler{Sessions: sessions, Policies: policies, Workflow: wf, Recs: recs, Secret: secret}
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

// SignUp creates an account and opens a session.
// POST /api/auth/signup
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	result, err := h.Sessions.SignUp(r.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		h.writeAuthFailure(w, err)
		return
	}

	h.setSessionCookie(w, result.Token)
	writeJSON(w, http.StatusCreated, AuthResponse{Token: result.Token, User: toUserDTO(result.Identity)})
}

// SignIn verifies credentials and opens a session.
// POST /api/auth/signin
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	result, err := h.Sessions.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeAuthFailure(w, err)
		return
	}

	h.setSessionCookie(w, result.Token)
	writeJSON(w, http.StatusOK, AuthResponse{Token: result.Token, User: toUserDTO(result.Identity)})
}

// SignOut revokes the caller's session. The cookie is cleared and the
// redirect to the landing route happens no matter what: a failed
// revocation must never leave the client looking signed in.
// POST /api/auth/signout
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	if sessionID := h.sessionID(r); sessionID != "" {
		if err := h.Sessions.SignOut(r.Context(), sessionID); err != nil {
			log.Printf("api: sign-out error (proceeding anyway): %v", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// GetSession returns the current identity.
// GET /api/session
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	claims := auth.FromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}

	identity, err := h.Sessions.Current(r.Context(), claims.SessionID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}

	writeJSON(w, http.StatusOK, toUserDTO(*identity))
}

// =============================================================================
// POLICY HANDLERS
// =============================================================================

// ListPolicies returns the caller's records, newest first.
// GET /api/policies
func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	records, err := h.Policies.ListByOwner(r.Context(), owner)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list policies", err)
		return
	}

	dtos := make([]PolicyDTO, len(records))
	for i, rec := range records {
		dtos[i] = toPolicyDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePolicy runs the submission saga over a multipart form: the policy
// fields, a required "document" file, and optional "attachments" files.
// POST /api/policies
func (h *Handler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form", err)
		return
	}

	form := policy.Form{
		Title:          r.FormValue("title"),
		Type:           r.FormValue("type"),
		Category:       r.FormValue("category"),
		Provider:       r.FormValue("provider"),
		PolicyNumber:   r.FormValue("policy_number"),
		CoverageAmount: r.FormValue("coverage_amount"),
		Deductible:     r.FormValue("deductible"),
		Premium:        r.FormValue("premium"),
		StartDate:      r.FormValue("start_date"),
		EndDate:        r.FormValue("end_date"),
		Status:         r.FormValue("status"),
		Notes:          r.FormValue("notes"),
	}

	document, err := readUpload(r, "document")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read document", err)
		return
	}

	attachments, err := readUploads(r, "attachments")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read attachments", err)
		return
	}

	result := h.Workflow.Submit(r.Context(), owner, form, document, attachments)
	if !result.Succeeded() {
		h.writeSubmissionFailure(w, result)
		return
	}

	writeJSON(w, http.StatusCreated, toPolicyDTO(*result.Record))
}

// GetPolicy returns one record. Records belonging to another owner report
// not-found rather than forbidden.
// GET /api/policies/{id}
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	rec, err := h.loadOwned(w, r, owner)
	if rec == nil || err != nil {
		return
	}
	writeJSON(w, http.StatusOK, toPolicyDTO(*rec))
}

// UpdatePolicy applies field updates to an owned record.
// PUT /api/policies/{id}
func (h *Handler) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	rec, err := h.loadOwned(w, r, owner)
	if rec == nil || err != nil {
		return
	}

	var req UpdatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	applyUpdates(rec, req)

	if rec.Title == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  "Validation failed",
			Fields: map[string]string{"title": "Policy name is required"},
		})
		return
	}

	rec.UpdatedAt = time.Now().UTC()
	if err := h.Policies.Save(r.Context(), *rec); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update policy", err)
		return
	}

	writeJSON(w, http.StatusOK, toPolicyDTO(*rec))
}

// =============================================================================
// DASHBOARD HANDLER
// =============================================================================

// Dashboard returns aggregate statistics over the caller's records,
// computed against wall-clock now.
// GET /api/dashboard
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	records, err := h.Policies.ListByOwner(r.Context(), owner)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load policies", err)
		return
	}

	stats := policy.Aggregate(records, time.Now())
	premium, _ := stats.TotalMonthlyPremium.Float64()
	writeJSON(w, http.StatusOK, DashboardDTO{
		TotalPolicies:       stats.TotalPolicies,
		ActivePolicies:      stats.ActiveCount,
		TotalMonthlyPremium: premium,
		ExpiringSoon:        stats.ExpiringSoonCount,
		CoverageScore:       stats.CoverageScore,
	})
}

// =============================================================================
// RECOMMENDATION HANDLERS
// =============================================================================

// ListRecommendations returns the caller's undismissed recommendations.
// GET /api/recommendations
func (h *Handler) ListRecommendations(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	recs, err := h.Recs.List(r.Context(), owner)
	if err != nil {
		h.writeDomainFailure(w, err)
		return
	}

	dtos := make([]RecommendationDTO, len(recs))
	for i, rec := range recs {
		dtos[i] = toRecommendationDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// AddRecommendation stores a recommendation for the caller.
// POST /api/recommendations
func (h *Handler) AddRecommendation(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req AddRecommendationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	rec, err := h.Recs.Add(r.Context(), owner, recommend.Input{
		Type:            req.Type,
		Priority:        req.Priority,
		Title:           req.Title,
		Description:     req.Description,
		ActionType:      req.ActionType,
		EstimatedImpact: req.EstimatedImpact,
	})
	if err != nil {
		h.writeDomainFailure(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toRecommendationDTO(*rec))
}

// DismissRecommendation marks a recommendation dismissed.
// POST /api/recommendations/{id}/dismiss
func (h *Handler) DismissRecommendation(w http.ResponseWriter, r *http.Request) {
	h.flagRecommendation(w, r, h.Recs.Dismiss)
}

// CompleteRecommendation marks a recommendation completed.
// POST /api/recommendations/{id}/complete
func (h *Handler) CompleteRecommendation(w http.ResponseWriter, r *http.Request) {
	h.flagRecommendation(w, r, h.Recs.Complete)
}

func (h *Handler) flagRecommendation(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, owner policy.OwnerID, id string) error) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := op(r.Context(), owner, id); err != nil {
		if errors.Is(err, recommend.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Recommendation not found", nil)
			return
		}
		h.writeDomainFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// owner extracts the authenticated owner id, writing a 401 when absent.
func (h *Handler) owner(w http.ResponseWriter, r *http.Request) (policy.OwnerID, bool) {
	claims := auth.FromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated", nil)
		return "", false
	}
	return policy.OwnerID(claims.UserID), true
}

// sessionID resolves the caller's session id from context or cookie; the
// sign-out route sits outside the auth middleware so an expired token can
// still sign out.
func (h *Handler) sessionID(r *http.Request) string {
	if claims := auth.FromContext(r.Context()); claims != nil {
		return claims.SessionID
	}
	if c, err := r.Cookie(auth.SessionCookie); err == nil && c.Value != "" {
		if claims, err := auth.ValidateToken(h.Secret, c.Value); err == nil {
			return claims.SessionID
		}
	}
	return ""
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.TokenTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// loadOwned loads a record and hides other owners' records as 404.
func (h *Handler) loadOwned(w http.ResponseWriter, r *http.Request, owner policy.OwnerID) (*policy.Record, error) {
	id := policy.RecordID(chi.URLParam(r, "id"))
	rec, err := h.Policies.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load policy", err)
		return nil, err
	}
	if rec == nil || rec.OwnerID != owner {
		writeError(w, http.StatusNotFound, "Policy not found", nil)
		return nil, nil
	}
	return rec, nil
}

func (h *Handler) writeAuthFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrEmailTaken):
		writeError(w, http.StatusConflict, "Email already registered", nil)
	case errors.Is(err, session.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid email or password", nil)
	default:
		log.Printf("api: auth failure: %v", err)
		writeError(w, http.StatusInternalServerError, "Something went wrong. Please try again.", nil)
	}
}

// writeSubmissionFailure maps a failed saga result onto the error taxonomy.
func (h *Handler) writeSubmissionFailure(w http.ResponseWriter, result submission.Result) {
	err := result.Err

	var vErr *policy.ValidationError
	var upErr *policy.UploadError

	switch {
	case errors.Is(err, policy.ErrNotAuthenticated):
		writeError(w, http.StatusUnauthorized, "Not authenticated", nil)
	case errors.Is(err, policy.ErrDocumentRequired):
		writeError(w, http.StatusBadRequest, "Please upload a policy document", nil)
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Validation failed", Fields: vErr.Fields})
	case errors.As(err, &upErr):
		writeError(w, http.StatusBadGateway, "Failed to upload file. Please try again.", nil)
	default:
		log.Printf("api: submission failure: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create policy. Please try again.", nil)
	}
}

func (h *Handler) writeDomainFailure(w http.ResponseWriter, err error) {
	var vErr *policy.ValidationError
	switch {
	case errors.Is(err, policy.ErrNotAuthenticated):
		writeError(w, http.StatusUnauthorized, "Not authenticated", nil)
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Validation failed", Fields: vErr.Fields})
	default:
		log.Printf("api: failure: %v", err)
		writeError(w, http.StatusInternalServerError, "Something went wrong. Please try again.", nil)
	}
}

// readUpload reads one named file from the multipart form, nil when absent.
func readUpload(r *http.Request, field string) (*submission.File, error) {
	file, header, err := r.FormFile(field)
	if err == http.ErrMissingFile {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	return &submission.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// readUploads reads all files under a repeated field name.
func readUploads(r *http.Request, field string) ([]submission.File, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	headers := r.MultipartForm.File[field]
	files := make([]submission.File, 0, len(headers))
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		files = append(files, submission.File{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return files, nil
}

func applyUpdates(rec *policy.Record, req UpdatePolicyRequest) {
	if req.Title != nil {
		rec.Title = trimmed(*req.Title)
	}
	if req.Type != nil {
		rec.Type = trimmed(*req.Type)
	}
	if req.Category != nil {
		rec.Category = trimmed(*req.Category)
	}
	if req.Provider != nil {
		rec.Provider = trimmed(*req.Provider)
	}
	if req.PolicyNumber != nil {
		rec.PolicyNumber = optionalField(*req.PolicyNumber)
	}
	if req.CoverageAmount != nil {
		rec.CoverageAmount = policy.ParseOptionalDecimal(*req.CoverageAmount)
	}
	if req.Deductible != nil {
		rec.Deductible = policy.ParseOptionalDecimal(*req.Deductible)
	}
	if req.Premium != nil {
		rec.Premium = policy.ParseOptionalDecimal(*req.Premium)
	}
	if req.StartDate != nil {
		rec.StartDate = policy.ParseOptionalDate(*req.StartDate)
	}
	if req.EndDate != nil {
		rec.EndDate = policy.ParseOptionalDate(*req.EndDate)
	}
	if req.Status != nil && trimmed(*req.Status) != "" {
		rec.Status = trimmed(*req.Status)
	}
	if req.Notes != nil {
		rec.Notes = trimmed(*req.Notes)
	}
}

func trimmed(s string) string { return strings.TrimSpace(s) }

func optionalField(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
