package vector

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// Local is the sqlite-vec backed vector store. One records table carries
// id, routing and metadata; a vec0 virtual table keyed by the same rowid
// carries the embedding. Deletion is a logical tombstone filtered at
// query time, since vec0 rows cannot be cheaply removed mid-index.
type Local struct {
	db  *sql.DB
	dim int
}

func localSchema(dim int) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS records (
    rowid INTEGER PRIMARY KEY,
    vid TEXT NOT NULL,
    idx TEXT NOT NULL,
    namespace TEXT NOT NULL,
    resume_id INTEGER NOT NULL,
    metadata JSON,
    deleted INTEGER NOT NULL DEFAULT 0,
    UNIQUE(idx, namespace, vid)
);

CREATE INDEX IF NOT EXISTS idx_records_resume ON records(idx, namespace, resume_id);

CREATE VIRTUAL TABLE IF NOT EXISTS vec_records USING vec0(
    embedding float[%d]
);
`, dim)
}

// NewLocal opens (or creates) the local index at the given path.
func NewLocal(dbPath string, dim int) (*Local, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating index directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening local index: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging local index: %w", err)
	}
	if _, err := db.Exec(localSchema(dim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating index schema: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &Local{db: db, dim: dim}, nil
}

// Close closes the underlying database.
func (l *Local) Close() error { return l.db.Close() }

// Upsert writes the records inside one transaction. An existing (index,
// namespace, id) row is replaced in place, so repeating an upsert leaves
// the store unchanged.
func (l *Local) Upsert(ctx context.Context, index, namespace string, records []Record) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, r := range records {
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata for %s: %w", r.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO records (vid, idx, namespace, resume_id, metadata, deleted)
			VALUES (?, ?, ?, ?, ?, 0)
			ON CONFLICT(idx, namespace, vid) DO UPDATE SET
				resume_id = excluded.resume_id,
				metadata = excluded.metadata,
				deleted = 0
		`, r.ID, index, namespace, metaResumeID(r.Metadata), string(meta))
		if err != nil {
			return err
		}

		// LastInsertId is unreliable when the upsert took the UPDATE arm,
		// so resolve the rowid explicitly.
		var rowid int64
		row := tx.QueryRowContext(ctx,
			"SELECT rowid FROM records WHERE idx = ? AND namespace = ? AND vid = ?",
			index, namespace, r.ID)
		if err := row.Scan(&rowid); err != nil {
			return err
		}

		// vec0 rows are keyed by the records rowid; delete-then-insert is
		// the supported replace path for virtual tables.
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM vec_records WHERE rowid = ?", rowid); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO vec_records (rowid, embedding) VALUES (?, ?)",
			rowid, serializeFloat32(r.Values)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Query runs a KNN search scoped to one index and namespace. Tombstoned
// rows are filtered after the nearest-neighbor pass, so the vec scan
// overfetches to keep topK results available.
func (l *Local) Query(ctx context.Context, index, namespace string, vector []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		topK = 10
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT r.vid, v.distance, r.metadata
		FROM vec_records v
		JOIN records r ON r.rowid = v.rowid
		WHERE v.embedding MATCH ? AND k = ?
			AND r.idx = ? AND r.namespace = ? AND r.deleted = 0
		ORDER BY v.distance
	`, serializeFloat32(vector), topK*4, index, namespace)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		var distance float64
		var meta sql.NullString
		if err := rows.Scan(&m.ID, &distance, &meta); err != nil {
			return nil, err
		}
		// Cosine similarity from L2 distance over unit vectors.
		m.Score = 1.0 - distance*distance/2.0
		if meta.Valid {
			json.Unmarshal([]byte(meta.String), &m.Metadata)
		}
		matches = append(matches, m)
		if len(matches) == topK {
			break
		}
	}
	return matches, rows.Err()
}

// DeleteResume tombstones every record of one resume in the given index
// and namespace. An empty namespace tombstones across all namespaces.
func (l *Local) DeleteResume(ctx context.Context, index, namespace string, resumeID int64) error {
	if namespace == "" {
		_, err := l.db.ExecContext(ctx, `
			UPDATE records SET deleted = 1
			WHERE idx = ? AND resume_id = ?
		`, index, resumeID)
		return err
	}
	_, err := l.db.ExecContext(ctx, `
		UPDATE records SET deleted = 1
		WHERE idx = ? AND namespace = ? AND resume_id = ?
	`, index, namespace, resumeID)
	return err
}

// metaResumeID reads the resume id out of record metadata regardless of
// whether it arrived as an integer or a decoded JSON number.
func metaResumeID(m map[string]interface{}) int64 {
	switch v := m["resume_id"].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// serializeFloat32 converts a float32 slice to little-endian bytes for
// sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
