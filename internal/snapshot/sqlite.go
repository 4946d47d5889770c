package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/voxelgraph/emurun/internal/models"
	"github.com/voxelgraph/emurun/internal/pathutil"
)

// dbFileName is the snapshot database inside the snapshot directory.
const dbFileName = "snapshots.db"

// createRetries bounds reference regeneration when a concurrent writer in
// another process lands the same token.
const createRetries = 3

// SQLiteStore implements Store on a SQLite database. The payload column is
// an opaque blob; the ref primary key enforces uniqueness even when several
// processes share the same snapshot directory.
type SQLiteStore struct {
	db  *sql.DB
	gen *refGenerator
	dir string
}

// NewSQLiteStore opens (creating if needed) the snapshot database under dir.
func NewSQLiteStore(dir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot: create directory %s: %w", pathutil.Redact(dir), err)
	}
	dbPath := filepath.Join(dir, dbFileName)

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("snapshot: open database %s: %w", pathutil.Redact(dbPath), err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with a single writer

	schema := `
CREATE TABLE IF NOT EXISTS snapshots (
	ref        TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL,
	meta       TEXT NOT NULL DEFAULT '{}',
	payload    BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_created ON snapshots(created_at, ref);`
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("snapshot: initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, gen: newRefGenerator(), dir: dir}, nil
}

// Dir returns the snapshot directory.
func (s *SQLiteStore) Dir() string { return s.dir }

// Create persists the context under a fresh reference.
func (s *SQLiteStore) Create(ctx context.Context, sim *models.Context) (Ref, error) {
	return s.CreateWithMeta(ctx, sim, "{}")
}

// CreateWithMeta persists the context along with a caller-supplied JSON
// metadata document.
func (s *SQLiteStore) CreateWithMeta(ctx context.Context, sim *models.Context, metaJSON string) (Ref, error) {
	if sim == nil {
		return "", fmt.Errorf("snapshot: nil context")
	}
	payload, err := encodeContext(sim)
	if err != nil {
		return "", err
	}
	if metaJSON == "" {
		metaJSON = "{}"
	}

	var lastErr error
	for attempt := 0; attempt < createRetries; attempt++ {
		now := time.Now().UTC()
		ref, err := s.gen.Next(now)
		if err != nil {
			return "", err
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO snapshots (ref, created_at, meta, payload) VALUES (?, ?, ?, ?)`,
			ref.String(), now.UnixMilli(), metaJSON, payload)
		if err == nil {
			return ref, nil
		}
		if !isUniqueViolation(err) {
			return "", fmt.Errorf("snapshot: persist %s: %w", ref, err)
		}
		lastErr = err
	}
	return "", fmt.Errorf("snapshot: reference collision persisted across %d attempts: %w", createRetries, lastErr)
}

// Restore returns the context stored under ref.
func (s *SQLiteStore) Restore(ctx context.Context, ref Ref) (*models.Context, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM snapshots WHERE ref = ?`, ref.String()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: load %s: %w", ref, err)
	}
	return decodeContext(payload)
}

// Meta returns the metadata document stored with ref.
func (s *SQLiteStore) Meta(ctx context.Context, ref Ref) (string, error) {
	var meta string
	err := s.db.QueryRowContext(ctx,
		`SELECT meta FROM snapshots WHERE ref = ?`, ref.String()).Scan(&meta)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	if err != nil {
		return "", fmt.Errorf("snapshot: load meta %s: %w", ref, err)
	}
	return meta, nil
}

// List returns all references in creation order.
func (s *SQLiteStore) List(ctx context.Context) ([]Ref, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ref FROM snapshots ORDER BY created_at ASC, ref ASC`)
	if err != nil {
		return nil, fmt.Errorf("snapshot: list: %w", err)
	}
	defer rows.Close()

	refs := []Ref{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("snapshot: scan ref: %w", err)
		}
		refs = append(refs, Ref(raw))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot: list: %w", err)
	}
	// created_at has millisecond resolution; break ties by embedded ULID.
	sort.SliceStable(refs, func(i, j int) bool { return refs[i].Compare(refs[j]) < 0 })
	return refs, nil
}

// ApplyRetention deletes the oldest snapshots beyond keep. A keep of zero
// or less disables retention. Returns the number of snapshots deleted.
func (s *SQLiteStore) ApplyRetention(ctx context.Context, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	refs, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(refs) <= keep {
		return 0, nil
	}
	deleted := 0
	for _, ref := range refs[:len(refs)-keep] {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE ref = ?`, ref.String()); err != nil {
			return deleted, fmt.Errorf("snapshot: delete %s: %w", ref, err)
		}
		deleted++
	}
	return deleted, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isUniqueViolation detects a primary-key collision from the driver.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
