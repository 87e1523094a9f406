// Package store is the SQLite persistence layer: resume rows and the
// skills-prompt table. Every extractor writes through UpdateField, which
// enforces the column whitelist and retries driver-level lock contention
// so concurrent per-field updates to one row cannot lose each other.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Resume represents a row in the resumes table. Empty strings stand for
// NULL in the optional columns; use GetResumeMap when NULL vs empty
// matters (background tasks).
type Resume struct {
	ID             int64  `json:"id"`
	Filename       string `json:"filename"`
	ResumeText     string `json:"resume_text,omitempty"`
	MasterCategory string `json:"master_category,omitempty"`
	Category       string `json:"category,omitempty"`
	CandidateName  string `json:"candidate_name,omitempty"`
	Designation    string `json:"designation,omitempty"`
	JobRole        string `json:"job_role,omitempty"`
	Experience     string `json:"experience,omitempty"`
	Domain         string `json:"domain,omitempty"`
	Mobile         string `json:"mobile,omitempty"`
	Email          string `json:"email,omitempty"`
	Education      string `json:"education,omitempty"`
	Location       string `json:"location,omitempty"`
	Skillset       string `json:"skillset,omitempty"`
	Status         string `json:"status"`
	Indexed        int    `json:"indexed"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// Master-category values stored on the resume row.
const (
	MasterIT    = "IT"
	MasterNonIT = "NON_IT"
)

// notNullColumns may never be set to nil.
var notNullColumns = map[string]bool{
	"filename": true,
}

// nullableColumns is the whitelist of extractor-writable columns that
// accept nil.
var nullableColumns = map[string]bool{
	"resume_text":     true,
	"master_category": true,
	"category":        true,
	"candidate_name":  true,
	"designation":     true,
	"job_role":        true,
	"experience":      true,
	"domain":          true,
	"mobile":          true,
	"email":           true,
	"education":       true,
	"location":        true,
	"skillset":        true,
	"status":          true,
}

const (
	deadlockMaxAttempts = 3
	deadlockBaseDelay   = 100 * time.Millisecond
)

// Store wraps the SQLite database for all resumeflow persistence.
type Store struct {
	db *sql.DB
}

// New opens (or creates) a SQLite database at the given path and
// initialises the schema, seeding the mandatory fallback prompts.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	// Connection pool settings for SQLite.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db}

	if err := s.seedPrompts(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("seeding prompts: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// --- Resume operations ---

// CreateResume inserts a new pending resume row. Filename must be
// non-empty; this is checked before touching the database.
func (s *Store) CreateResume(ctx context.Context, filename string) (int64, error) {
	if filename == "" {
		return 0, fmt.Errorf("filename must be non-empty")
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO resumes (filename, status) VALUES (?, 'pending')", filename)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpdateField sets exactly one whitelisted column on a resume row in its
// own short transaction. A nil value stores NULL; nil on a NOT-NULL
// column fails synchronously before any SQL runs. Lock contention from
// concurrent field updates is retried with exponential backoff.
func (s *Store) UpdateField(ctx context.Context, id int64, column string, value interface{}) error {
	if err := validateField(column, value); err != nil {
		return err
	}

	query := fmt.Sprintf(
		"UPDATE resumes SET %s = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", column)

	var lastErr error
	for attempt := 0; attempt < deadlockMaxAttempts; attempt++ {
		if attempt > 0 {
			delay := deadlockBaseDelay * time.Duration(1<<(attempt-1))
			slog.Warn("store: database locked, retrying update",
				"column", column, "resume_id", id, "attempt", attempt, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		res, err := s.db.ExecContext(ctx, query, value, id)
		if err != nil {
			if isLockErr(err) {
				lastErr = err
				continue
			}
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return sql.ErrNoRows
		}
		return nil
	}
	return fmt.Errorf("update %s failed after %d attempts: %w", column, deadlockMaxAttempts, lastErr)
}

// validateField enforces the column whitelist and NOT-NULL rules.
func validateField(column string, value interface{}) error {
	if notNullColumns[column] {
		if value == nil {
			return fmt.Errorf("column %s is NOT NULL, refusing nil", column)
		}
		if s, ok := value.(string); ok && s == "" {
			return fmt.Errorf("column %s requires a non-empty string", column)
		}
		return nil
	}
	if !nullableColumns[column] {
		return fmt.Errorf("column %s is not writable", column)
	}
	if column == "master_category" && value != nil {
		if s, _ := value.(string); s != MasterIT && s != MasterNonIT {
			return fmt.Errorf("master_category %q not in {IT, NON_IT}", value)
		}
	}
	return nil
}

// isLockErr reports the SQLite lock/busy signals that stand in for a
// deadlock under concurrent writers.
func isLockErr(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return false
}

const resumeColumns = `id, filename, resume_text, master_category, category,
	candidate_name, designation, job_role, experience, domain, mobile, email,
	education, location, skillset, status, indexed, created_at, updated_at`

// GetResume retrieves a resume by ID as a struct.
func (s *Store) GetResume(ctx context.Context, id int64) (*Resume, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+resumeColumns+" FROM resumes WHERE id = ?", id)
	return scanResume(row)
}

func scanResume(row *sql.Row) (*Resume, error) {
	r := &Resume{}
	var text, master, category, name, desig, role, exp, domain,
		mobile, email, edu, loc, skills sql.NullString
	err := row.Scan(&r.ID, &r.Filename, &text, &master, &category,
		&name, &desig, &role, &exp, &domain, &mobile, &email,
		&edu, &loc, &skills, &r.Status, &r.Indexed, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.ResumeText = text.String
	r.MasterCategory = master.String
	r.Category = category.String
	r.CandidateName = name.String
	r.Designation = desig.String
	r.JobRole = role.String
	r.Experience = exp.String
	r.Domain = domain.String
	r.Mobile = mobile.String
	r.Email = email.String
	r.Education = edu.String
	r.Location = loc.String
	r.Skillset = skills.String
	return r, nil
}

// GetResumeMap retrieves a resume as a plain map with nil for NULL
// columns. Background tasks use this form so they never hold a struct
// reference across asynchronous boundaries.
func (s *Store) GetResumeMap(ctx context.Context, id int64) (map[string]interface{}, error) {
	r, err := s.GetResume(ctx, id)
	if err != nil {
		return nil, err
	}

	m := map[string]interface{}{
		"id":         r.ID,
		"filename":   r.Filename,
		"status":     r.Status,
		"indexed":    r.Indexed,
		"created_at": r.CreatedAt,
		"updated_at": r.UpdatedAt,
	}
	put := func(key, val string) {
		if val == "" {
			m[key] = nil
		} else {
			m[key] = val
		}
	}
	put("resume_text", r.ResumeText)
	put("master_category", r.MasterCategory)
	put("category", r.Category)
	put("candidate_name", r.CandidateName)
	put("designation", r.Designation)
	put("job_role", r.JobRole)
	put("experience", r.Experience)
	put("domain", r.Domain)
	put("mobile", r.Mobile)
	put("email", r.Email)
	put("education", r.Education)
	put("location", r.Location)
	put("skillset", r.Skillset)
	return m, nil
}

// ResumeFromMap rebuilds a Resume from its map form. Nil and missing
// values become zero values, mirroring GetResumeMap's NULL handling.
func ResumeFromMap(m map[string]interface{}) Resume {
	str := func(key string) string {
		s, _ := m[key].(string)
		return s
	}
	r := Resume{
		Filename:       str("filename"),
		ResumeText:     str("resume_text"),
		MasterCategory: str("master_category"),
		Category:       str("category"),
		CandidateName:  str("candidate_name"),
		Designation:    str("designation"),
		JobRole:        str("job_role"),
		Experience:     str("experience"),
		Domain:         str("domain"),
		Mobile:         str("mobile"),
		Email:          str("email"),
		Education:      str("education"),
		Location:       str("location"),
		Skillset:       str("skillset"),
		Status:         str("status"),
		CreatedAt:      str("created_at"),
		UpdatedAt:      str("updated_at"),
	}
	if id, ok := m["id"].(int64); ok {
		r.ID = id
	}
	if idx, ok := m["indexed"].(int); ok {
		r.Indexed = idx
	}
	return r
}

// SetStatus updates just the status column.
func (s *Store) SetStatus(ctx context.Context, id int64, status string) error {
	return s.UpdateField(ctx, id, "status", status)
}

// SetIndexed flips the indexed flag. Callers must only pass 1 after the
// full vector set for the resume is durably written.
func (s *Store) SetIndexed(ctx context.Context, id int64, indexed int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE resumes SET indexed = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		indexed, id)
	return err
}

// ListForIndexing returns resumes eligible for vector indexing: non-null
// text and master-category, and (unless force) not yet indexed. When ids
// is non-empty the result is restricted to those rows.
func (s *Store) ListForIndexing(ctx context.Context, limit int, ids []int64, force bool) ([]Resume, error) {
	query := "SELECT " + resumeColumns + ` FROM resumes
		WHERE resume_text IS NOT NULL AND master_category IS NOT NULL`
	var args []interface{}

	if !force {
		query += " AND indexed = 0"
	}
	if len(ids) > 0 {
		query += " AND id IN (?" + repeatPlaceholders(len(ids)-1) + ")"
		for _, id := range ids {
			args = append(args, id)
		}
	}
	query += " ORDER BY id LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var resumes []Resume
	for rows.Next() {
		r := Resume{}
		var text, master, category, name, desig, role, exp, domain,
			mobile, email, edu, loc, skills sql.NullString
		if err := rows.Scan(&r.ID, &r.Filename, &text, &master, &category,
			&name, &desig, &role, &exp, &domain, &mobile, &email,
			&edu, &loc, &skills, &r.Status, &r.Indexed, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		r.ResumeText = text.String
		r.MasterCategory = master.String
		r.Category = category.String
		r.CandidateName = name.String
		r.Designation = desig.String
		r.JobRole = role.String
		r.Experience = exp.String
		r.Domain = domain.String
		r.Mobile = mobile.String
		r.Email = email.String
		r.Education = edu.String
		r.Location = loc.String
		r.Skillset = skills.String
		resumes = append(resumes, r)
	}
	return resumes, rows.Err()
}

func repeatPlaceholders(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		s += ", ?"
	}
	return s
}
