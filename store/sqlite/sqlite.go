/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

INTERFACES IMPLEMENTED:
  session.Store:   users, profiles, sessions
  policy.Store:    policy records
  recommend.Store: coverage recommendations

KEY TABLES:
  users:            credential rows (bcrypt hashes)
  profiles:         application-level user metadata
  sessions:         server-held sessions; deleting a row revokes its tokens
  policies:         policy/warranty records, owner-scoped
  recommendations:  coverage recommendations, owner-scoped

OWNER SCOPING:
  Every policy and recommendation query filters on owner_id. That filter is
  the application-level stand-in for the row-level security the original
  platform enforced.

MONEY AND DATES:
  Decimal money fields are stored as TEXT and parsed with shopspring/decimal
  to avoid floating-point drift. Timestamps are RFC3339 TEXT; policy
  start/end dates are DATE-only TEXT (2006-01-02).

WAL MODE:
  Opened with WAL and foreign keys on. sync.RWMutex guards the connection;
  with PostgreSQL the database's own concurrency control would take over.

USAGE:
  store, err := sqlite.New("./data/coverclarity.db")   // ":memory:" in tests

MIGRATION:
  Schema is auto-migrated on New(). A production deployment would move to a
  versioned migration tool.
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/coverclarity/coverage-engine/policy"
	"github.com/coverclarity/coverage-engine/recommend"
	"github.com/coverclarity/coverage-engine/session"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		full_name TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY REFERENCES users(id),
		email TEXT NOT NULL,
		full_name TEXT NOT NULL DEFAULT '',
		avatar_url TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		created_at TEXT NOT NULL,
		expires_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);

	CREATE TABLE IF NOT EXISTS policies (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		title TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		provider TEXT NOT NULL DEFAULT '',
		policy_number TEXT,
		coverage_amount TEXT,
		deductible TEXT,
		premium TEXT,
		start_date TEXT,
		end_date TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		document_url TEXT,
		file_name TEXT,
		file_size INTEGER,
		file_type TEXT,
		attachments TEXT NOT NULL DEFAULT '[]',
		notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Hot path: the dashboard fetches an owner's full list, newest first
	CREATE INDEX IF NOT EXISTS idx_policies_owner_created
		ON policies(owner_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS recommendations (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT '',
		priority TEXT NOT NULL DEFAULT 'medium',
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		action_type TEXT NOT NULL DEFAULT '',
		estimated_impact TEXT NOT NULL DEFAULT '',
		is_dismissed INTEGER NOT NULL DEFAULT 0,
		is_completed INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_recommendations_owner
		ON recommendations(owner_id, is_dismissed, created_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// USERS / PROFILES / SESSIONS (session.Store)
// =============================================================================

// CreateUser inserts a credential row. A duplicate email is an error.
func (s *Store) CreateUser(ctx context.Context, u session.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, full_name, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.FullName, u.CreatedAt.Format(time.RFC3339))
	return err
}

// GetUser returns a user by id, nil when absent.
func (s *Store) GetUser(ctx context.Context, id string) (*session.User, error) {
	return s.queryUser(ctx, `SELECT id, email, password_hash, full_name, created_at FROM users WHERE id = ?`, id)
}

// GetUserByEmail returns a user by email, nil when absent.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*session.User, error) {
	return s.queryUser(ctx, `SELECT id, email, password_hash, full_name, created_at FROM users WHERE email = ?`, email)
}

func (s *Store) queryUser(ctx context.Context, query string, arg any) (*session.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var u session.User
	var createdAt string
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &u, nil
}

// SaveProfile inserts or updates a profile row.
func (s *Store) SaveProfile(ctx context.Context, p session.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, email, full_name, avatar_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			full_name = excluded.full_name,
			avatar_url = excluded.avatar_url,
			updated_at = excluded.updated_at`,
		p.ID, p.Email, p.FullName, p.AvatarURL,
		p.CreatedAt.Format(time.RFC3339), p.UpdatedAt.Format(time.RFC3339))
	return err
}

// GetProfile returns a profile by user id, nil when absent.
func (s *Store) GetProfile(ctx context.Context, id string) (*session.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p session.Profile
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, full_name, avatar_url, created_at, updated_at
		FROM profiles WHERE id = ?`, id).
		Scan(&p.ID, &p.Email, &p.FullName, &p.AvatarURL, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &p, nil
}

// CreateSession inserts a session row.
func (s *Store) CreateSession(ctx context.Context, sess session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, created_at, expires_at)
		VALUES (?, ?, ?, ?)`,
		sess.ID, sess.UserID,
		sess.CreatedAt.Format(time.RFC3339), sess.ExpiresAt.Format(time.RFC3339))
	return err
}

// GetSession returns a session by id, nil when absent.
func (s *Store) GetSession(ctx context.Context, id string) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sess session.Session
	var createdAt, expiresAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, created_at, expires_at FROM sessions WHERE id = ?`, id).
		Scan(&sess.ID, &sess.UserID, &createdAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sess.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	sess.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt)
	return &sess, nil
}

// DeleteSession removes a session row, revoking its tokens.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return err
}

// =============================================================================
// POLICIES (policy.Store)
// =============================================================================

// Save inserts or updates a policy record.
func (s *Store) Save(ctx context.Context, rec policy.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	attachments, err := json.Marshal(rec.Attachments)
	if err != nil {
		return fmt.Errorf("marshal attachments: %w", err)
	}

	var docURL, fileName, fileType *string
	var fileSize *int64
	if rec.Document != nil {
		docURL = &rec.Document.URL
		fileName = &rec.Document.Filename
		fileSize = &rec.Document.Size
		fileType = &rec.Document.ContentType
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO policies (
			id, owner_id, title, type, category, provider, policy_number,
			coverage_amount, deductible, premium, start_date, end_date, status,
			document_url, file_name, file_size, file_type, attachments, notes,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			type = excluded.type,
			category = excluded.category,
			provider = excluded.provider,
			policy_number = excluded.policy_number,
			coverage_amount = excluded.coverage_amount,
			deductible = excluded.deductible,
			premium = excluded.premium,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			status = excluded.status,
			document_url = excluded.document_url,
			file_name = excluded.file_name,
			file_size = excluded.file_size,
			file_type = excluded.file_type,
			attachments = excluded.attachments,
			notes = excluded.notes,
			updated_at = excluded.updated_at`,
		string(rec.ID), string(rec.OwnerID), rec.Title, rec.Type, rec.Category, rec.Provider,
		rec.PolicyNumber,
		decimalText(rec.CoverageAmount), decimalText(rec.Deductible), decimalText(rec.Premium),
		dateText(rec.StartDate), dateText(rec.EndDate), rec.Status,
		docURL, fileName, fileSize, fileType,
		string(attachments), rec.Notes,
		rec.CreatedAt.UTC().Format(time.RFC3339), rec.UpdatedAt.UTC().Format(time.RFC3339))
	return err
}

// Get returns a policy record by id, nil when absent.
func (s *Store) Get(ctx context.Context, id policy.RecordID) (*policy.Record, error) {
	records, err := s.queryPolicies(ctx, selectPolicy+` WHERE id = ?`, string(id))
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// ListByOwner returns an owner's records, newest first.
func (s *Store) ListByOwner(ctx context.Context, owner policy.OwnerID) ([]policy.Record, error) {
	return s.queryPolicies(ctx,
		selectPolicy+` WHERE owner_id = ? ORDER BY created_at DESC, id DESC`,
		string(owner))
}

// ListExpiring returns active records, across all owners, whose end date
// falls inside [from, to]. The renewal sweep runs over this set.
func (s *Store) ListExpiring(ctx context.Context, from, to time.Time) ([]policy.Record, error) {
	return s.queryPolicies(ctx,
		selectPolicy+` WHERE status = 'active' AND end_date IS NOT NULL
			AND end_date >= ? AND end_date <= ?
		ORDER BY end_date ASC, id ASC`,
		from.Format(dateLayout), to.Format(dateLayout))
}

const selectPolicy = `
	SELECT id, owner_id, title, type, category, provider, policy_number,
	       coverage_amount, deductible, premium, start_date, end_date, status,
	       document_url, file_name, file_size, file_type, attachments, notes,
	       created_at, updated_at
	FROM policies`

func (s *Store) queryPolicies(ctx context.Context, query string, args ...any) ([]policy.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []policy.Record{}
	for rows.Next() {
		rec, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanPolicy(rows *sql.Rows) (policy.Record, error) {
	var rec policy.Record
	var id, owner string
	var policyNumber, coverageAmount, deductible, premium sql.NullString
	var startDate, endDate sql.NullString
	var docURL, fileName, fileType sql.NullString
	var fileSize sql.NullInt64
	var attachments string
	var createdAt, updatedAt string

	err := rows.Scan(&id, &owner, &rec.Title, &rec.Type, &rec.Category, &rec.Provider,
		&policyNumber, &coverageAmount, &deductible, &premium,
		&startDate, &endDate, &rec.Status,
		&docURL, &fileName, &fileSize, &fileType,
		&attachments, &rec.Notes, &createdAt, &updatedAt)
	if err != nil {
		return rec, err
	}

	rec.ID = policy.RecordID(id)
	rec.OwnerID = policy.OwnerID(owner)
	if policyNumber.Valid {
		rec.PolicyNumber = &policyNumber.String
	}
	rec.CoverageAmount = parseDecimal(coverageAmount)
	rec.Deductible = parseDecimal(deductible)
	rec.Premium = parseDecimal(premium)
	rec.StartDate = parseDate(startDate)
	rec.EndDate = parseDate(endDate)

	if docURL.Valid {
		rec.Document = &policy.DocumentRef{
			URL:         docURL.String,
			Filename:    fileName.String,
			Size:        fileSize.Int64,
			ContentType: fileType.String,
		}
	}
	if err := json.Unmarshal([]byte(attachments), &rec.Attachments); err != nil {
		return rec, fmt.Errorf("unmarshal attachments: %w", err)
	}

	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return rec, nil
}

// =============================================================================
// RECOMMENDATIONS (recommend.Store)
// =============================================================================

// Recommendations returns the recommend.Store view of this store. The view
// type exists because recommend.Store and policy.Store both name a Save
// method.
func (s *Store) Recommendations() recommend.Store {
	return (*recommendationStore)(s)
}

type recommendationStore Store

func (rs *recommendationStore) Save(ctx context.Context, r recommend.Recommendation) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	_, err := rs.db.ExecContext(ctx, `
		INSERT INTO recommendations (
			id, owner_id, type, priority, title, description, action_type,
			estimated_impact, is_dismissed, is_completed, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			priority = excluded.priority,
			title = excluded.title,
			description = excluded.description,
			action_type = excluded.action_type,
			estimated_impact = excluded.estimated_impact,
			is_dismissed = excluded.is_dismissed,
			is_completed = excluded.is_completed,
			updated_at = excluded.updated_at`,
		r.ID, string(r.OwnerID), r.Type, r.Priority, r.Title, r.Description,
		r.ActionType, r.EstimatedImpact, boolInt(r.Dismissed), boolInt(r.Completed),
		r.CreatedAt.UTC().Format(time.RFC3339), r.UpdatedAt.UTC().Format(time.RFC3339))
	return err
}

func (rs *recommendationStore) ListActive(ctx context.Context, owner policy.OwnerID) ([]recommend.Recommendation, error) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	rows, err := rs.db.QueryContext(ctx, `
		SELECT id, owner_id, type, priority, title, description, action_type,
		       estimated_impact, is_dismissed, is_completed, created_at, updated_at
		FROM recommendations
		WHERE owner_id = ? AND is_dismissed = 0
		ORDER BY created_at DESC, id DESC`, string(owner))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recs := []recommend.Recommendation{}
	for rows.Next() {
		var r recommend.Recommendation
		var ownerID string
		var dismissed, completed int
		var createdAt, updatedAt string
		err := rows.Scan(&r.ID, &ownerID, &r.Type, &r.Priority, &r.Title, &r.Description,
			&r.ActionType, &r.EstimatedImpact, &dismissed, &completed, &createdAt, &updatedAt)
		if err != nil {
			return nil, err
		}
		r.OwnerID = policy.OwnerID(ownerID)
		r.Dismissed = dismissed != 0
		r.Completed = completed != 0
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		r.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

func (rs *recommendationStore) Exists(ctx context.Context, id string) (bool, error) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	var n int
	err := rs.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM recommendations WHERE id = ?`, id).Scan(&n)
	return n > 0, err
}

func (rs *recommendationStore) SetFlags(ctx context.Context, id string, owner policy.OwnerID, dismissed, completed *bool) (bool, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	res, err := rs.db.ExecContext(ctx, `
		UPDATE recommendations SET
			is_dismissed = COALESCE(?, is_dismissed),
			is_completed = COALESCE(?, is_completed),
			updated_at = ?
		WHERE id = ? AND owner_id = ?`,
		boolIntPtr(dismissed), boolIntPtr(completed),
		time.Now().UTC().Format(time.RFC3339), id, string(owner))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// =============================================================================
// MAINTENANCE
// =============================================================================

// Reset clears all tables. Dev and test use only.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		DELETE FROM recommendations;
		DELETE FROM policies;
		DELETE FROM sessions;
		DELETE FROM profiles;
		DELETE FROM users;`)
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func decimalText(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func parseDecimal(ns sql.NullString) *decimal.Decimal {
	if !ns.Valid {
		return nil
	}
	d, err := decimal.NewFromString(ns.String)
	if err != nil {
		return nil
	}
	return &d
}

const dateLayout = "2006-01-02"

func dateText(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

func parseDate(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(dateLayout, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func boolIntPtr(b *bool) *int {
	if b == nil {
		return nil
	}
	n := boolInt(*b)
	return &n
}
