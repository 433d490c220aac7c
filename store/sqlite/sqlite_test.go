package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coverclarity/coverage-engine/policy"
	"github.com/coverclarity/coverage-engine/recommend"
	"github.com/coverclarity/coverage-engine/session"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// =============================================================================
// POLICIES
// =============================================================================

func TestPolicyRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// GIVEN a fully-populated record
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	num := "POL-2024-001"
	rec := policy.Record{
		ID:             policy.NewRecordID(),
		OwnerID:        "user-1",
		Title:          "Home Insurance",
		Type:           "insurance",
		Category:       "home",
		Provider:       "Acme Mutual",
		PolicyNumber:   &num,
		CoverageAmount: dec("250000"),
		Deductible:     dec("1000"),
		Premium:        dec("129.99"),
		StartDate:      date(2024, 1, 1),
		EndDate:        date(2025, 1, 1),
		Status:         policy.StatusActive,
		Document: &policy.DocumentRef{
			URL:         "https://files.example.com/files/user/user-1/abc.pdf",
			Filename:    "policy.pdf",
			Size:        2048,
			ContentType: "application/pdf",
		},
		Attachments: []policy.DocumentRef{
			{URL: "https://files.example.com/files/user/user-1/def.pdf", Filename: "receipt.pdf", Size: 512, ContentType: "application/pdf"},
		},
		Notes:     "covers the garage too",
		CreatedAt: now,
		UpdatedAt: now,
	}

	// WHEN saved and re-read
	require.NoError(t, store.Save(ctx, rec))
	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	// THEN everything survives the round trip
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.OwnerID, got.OwnerID)
	assert.Equal(t, rec.Title, got.Title)
	require.NotNil(t, got.PolicyNumber)
	assert.Equal(t, num, *got.PolicyNumber)
	require.NotNil(t, got.Premium)
	assert.True(t, rec.Premium.Equal(*got.Premium), "premium %s != %s", rec.Premium, got.Premium)
	require.NotNil(t, got.CoverageAmount)
	assert.True(t, rec.CoverageAmount.Equal(*got.CoverageAmount))
	require.NotNil(t, got.StartDate)
	assert.True(t, rec.StartDate.Equal(*got.StartDate))
	require.NotNil(t, got.EndDate)
	assert.True(t, rec.EndDate.Equal(*got.EndDate))
	require.NotNil(t, got.Document)
	assert.Equal(t, *rec.Document, *got.Document)
	assert.Equal(t, rec.Attachments, got.Attachments)
	assert.Equal(t, rec.Notes, got.Notes)
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
}

func TestPolicyRoundTrip_SparseRecord(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Only title and status are guaranteed; everything optional stays absent.
	rec := policy.Record{
		ID:        policy.NewRecordID(),
		OwnerID:   "user-1",
		Title:     "Phone Warranty",
		Status:    policy.StatusActive,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.Save(ctx, rec))

	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Nil(t, got.PolicyNumber)
	assert.Nil(t, got.Premium)
	assert.Nil(t, got.CoverageAmount)
	assert.Nil(t, got.Deductible)
	assert.Nil(t, got.StartDate)
	assert.Nil(t, got.EndDate)
	assert.Nil(t, got.Document)
	assert.Empty(t, got.Attachments)
}

func TestPolicySaveIsUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := policy.Record{
		ID: policy.NewRecordID(), OwnerID: "user-1", Title: "Before",
		Status: policy.StatusActive, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, store.Save(ctx, rec))

	rec.Title = "After"
	rec.Premium = dec("42")
	rec.UpdatedAt = now.Add(time.Hour)
	require.NoError(t, store.Save(ctx, rec))

	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "After", got.Title)
	require.NotNil(t, got.Premium)
	assert.True(t, got.Premium.Equal(decimal.NewFromInt(42)))

	list, err := store.ListByOwner(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, list, 1, "upsert must not duplicate the row")
}

func TestListByOwner_ScopedAndNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	save := func(owner policy.OwnerID, title string, at time.Time) {
		require.NoError(t, store.Save(ctx, policy.Record{
			ID: policy.NewRecordID(), OwnerID: owner, Title: title,
			Status: policy.StatusActive, CreatedAt: at, UpdatedAt: at,
		}))
	}
	save("user-1", "oldest", base)
	save("user-1", "middle", base.Add(time.Hour))
	save("user-2", "other owner", base.Add(2*time.Hour))
	save("user-1", "newest", base.Add(3*time.Hour))

	list, err := store.ListByOwner(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 3)

	titles := []string{list[0].Title, list[1].Title, list[2].Title}
	assert.Equal(t, []string{"newest", "middle", "oldest"}, titles)

	for _, r := range list {
		assert.Equal(t, policy.OwnerID("user-1"), r.OwnerID)
	}
}

func TestGet_AbsentReturnsNil(t *testing.T) {
	store := newTestStore(t)

	got, err := store.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

// =============================================================================
// USERS / PROFILES / SESSIONS
// =============================================================================

func TestUserLookupByIDAndEmail(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	u := session.User{
		ID: "user-1", Email: "ana@example.com", PasswordHash: "hash",
		FullName: "Ana", CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.CreateUser(ctx, u))

	byID, err := store.GetUser(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "ana@example.com", byID.Email)

	byEmail, err := store.GetUserByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, "user-1", byEmail.ID)

	missing, err := store.GetUserByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCreateUser_DuplicateEmailFails(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	u := session.User{ID: "user-1", Email: "dup@example.com", PasswordHash: "h", CreatedAt: time.Now()}
	require.NoError(t, store.CreateUser(ctx, u))

	u.ID = "user-2"
	assert.Error(t, store.CreateUser(ctx, u))
}

func TestSaveProfileIsUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.CreateUser(ctx, session.User{
		ID: "user-1", Email: "ana@example.com", PasswordHash: "h", CreatedAt: now,
	}))
	p := session.Profile{ID: "user-1", Email: "ana@example.com", FullName: "Ana", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, store.SaveProfile(ctx, p))

	p.FullName = "Ana Resek"
	p.UpdatedAt = now.Add(time.Minute)
	require.NoError(t, store.SaveProfile(ctx, p))

	got, err := store.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Ana Resek", got.FullName)
}

func TestSessionLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.CreateUser(ctx, session.User{
		ID: "user-1", Email: "ana@example.com", PasswordHash: "h", CreatedAt: now,
	}))
	sess := session.Session{ID: "sess-1", UserID: "user-1", CreatedAt: now, ExpiresAt: now.Add(24 * time.Hour)}
	require.NoError(t, store.CreateSession(ctx, sess))

	got, err := store.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "user-1", got.UserID)

	// Deleting the row revokes it
	require.NoError(t, store.DeleteSession(ctx, "sess-1"))
	got, err = store.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting an absent session is not an error
	assert.NoError(t, store.DeleteSession(ctx, "sess-1"))
}

// =============================================================================
// RECOMMENDATIONS
// =============================================================================

func saveRec(t *testing.T, rs recommend.Store, id string, owner policy.OwnerID, at time.Time) {
	t.Helper()
	require.NoError(t, rs.Save(context.Background(), recommend.Recommendation{
		ID: id, OwnerID: owner, Title: "review coverage", Priority: "medium",
		CreatedAt: at, UpdatedAt: at,
	}))
}

func TestRecommendations_ListActiveExcludesDismissed(t *testing.T) {
	store := newTestStore(t)
	rs := store.Recommendations()
	ctx := context.Background()

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	saveRec(t, rs, "rec-1", "user-1", base)
	saveRec(t, rs, "rec-2", "user-1", base.Add(time.Hour))
	saveRec(t, rs, "rec-3", "user-2", base)

	dismissed := true
	updated, err := rs.SetFlags(ctx, "rec-1", "user-1", &dismissed, nil)
	require.NoError(t, err)
	assert.True(t, updated)

	list, err := rs.ListActive(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "rec-2", list[0].ID)
}

func TestRecommendations_SetFlagsIsOwnerScoped(t *testing.T) {
	store := newTestStore(t)
	rs := store.Recommendations()
	ctx := context.Background()

	saveRec(t, rs, "rec-1", "user-1", time.Now())

	// Another owner cannot touch the row
	dismissed := true
	updated, err := rs.SetFlags(ctx, "rec-1", "user-2", &dismissed, nil)
	require.NoError(t, err)
	assert.False(t, updated)

	list, err := rs.ListActive(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, list, 1, "row must be untouched")
}

func TestRecommendations_SetFlagsPartialUpdate(t *testing.T) {
	store := newTestStore(t)
	rs := store.Recommendations()
	ctx := context.Background()

	saveRec(t, rs, "rec-1", "user-1", time.Now())

	// Completing must not dismiss
	completed := true
	updated, err := rs.SetFlags(ctx, "rec-1", "user-1", nil, &completed)
	require.NoError(t, err)
	assert.True(t, updated)

	list, err := rs.ListActive(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Completed)
	assert.False(t, list[0].Dismissed)
}
