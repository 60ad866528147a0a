// Package sqlite implements the approval request store on a shared SQLite
// database using modernc.org/sqlite (pure Go, no CGO). WAL mode plus a
// busy timeout lets the gate process and the responder daemon read and
// write the same records without ever observing a partial row.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/telegate/telegate/internal/request"

	_ "modernc.org/sqlite" // SQLite driver registration
)

const defaultBusyTimeout = 5000 // milliseconds

// Compile-time interface guard.
var _ request.Store = (*Store)(nil)

// Store is a request.Store backed by a SQLite database file.
type Store struct {
	db *sql.DB
}

// Open opens (and if necessary creates) the database at path and migrates
// the schema. The caller must Close the store when done.
//
// The database is opened with WAL mode, a 5 s busy timeout, and a single
// connection (SQLite serialises writes).
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	ctx := context.TODO()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", defaultBusyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create implements request.Store.
func (s *Store) Create(ctx context.Context, req request.Request) error {
	input, err := json.Marshal(req.Input)
	if err != nil {
		return fmt.Errorf("sqlite: marshal input for %s: %w", req.ID, err)
	}

	status := req.Status
	if status == "" {
		status = request.StatusPending
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO approvals (id, tool, input, status, created_at) VALUES (?, ?, ?, ?, ?)",
		req.ID, req.Tool, string(input), string(status), req.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: create request %s: %w", req.ID, err)
	}
	return nil
}

// Get implements request.Store. It returns (nil, nil) when the request
// does not exist, which includes a read racing a concurrent delete.
func (s *Store) Get(ctx context.Context, id string) (*request.Request, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, tool, input, status, created_at FROM approvals WHERE id = ?", id)

	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get request %s: %w", id, err)
	}
	return req, nil
}

// Resolve implements request.Store. The status guard makes late and
// duplicate responses no-ops: only a pending row can be resolved.
func (s *Store) Resolve(ctx context.Context, id string, status request.Status) error {
	if !status.Terminal() {
		return fmt.Errorf("sqlite: resolve %s: status %q is not terminal", id, status)
	}

	_, err := s.db.ExecContext(ctx,
		"UPDATE approvals SET status = ? WHERE id = ? AND status = ?",
		string(status), id, string(request.StatusPending),
	)
	if err != nil {
		return fmt.Errorf("sqlite: resolve request %s: %w", id, err)
	}
	return nil
}

// Delete implements request.Store. Deleting an absent row is a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM approvals WHERE id = ?", id); err != nil {
		return fmt.Errorf("sqlite: delete request %s: %w", id, err)
	}
	return nil
}

// List implements request.Store.
func (s *Store) List(ctx context.Context) ([]request.Request, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, tool, input, status, created_at FROM approvals ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("sqlite: list requests: %w", err)
	}
	defer rows.Close()

	var out []request.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: list requests: %w", err)
		}
		out = append(out, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list requests: %w", err)
	}
	return out, nil
}

// Sweep implements request.Store. A single DELETE covers all expired rows,
// so an individual row vanishing underneath the sweep cannot abort it.
func (s *Store) Sweep(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := time.Now().Add(-retention).UnixMilli()

	res, err := s.db.ExecContext(ctx, "DELETE FROM approvals WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("sqlite: sweep: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(n), nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(sc scanner) (*request.Request, error) {
	var (
		req       request.Request
		input     string
		status    string
		createdAt int64
	)
	if err := sc.Scan(&req.ID, &req.Tool, &input, &status, &createdAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(input), &req.Input); err != nil {
		return nil, fmt.Errorf("unmarshal input: %w", err)
	}
	req.Status = request.Status(status)
	req.CreatedAt = time.UnixMilli(createdAt)
	return &req, nil
}
