// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/3tharva/split-the-tab-ai/internal/models"
	"github.com/3tharva/split-the-tab-ai/internal/storage"
)

// MemoryDSN keeps all sessions in process memory; nothing survives a restart.
const MemoryDSN = ":memory:"

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new SQLiteStore for dsn, which is either MemoryDSN, a
// "file:" URI, or a plain database path. Parent directories of plain paths
// are created. Migrations run automatically.
func New(dsn string) (*SQLiteStore, error) {
	if isFilePath(dsn) {
		dir := filepath.Dir(dsn)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Open database with pure Go driver
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database lives and dies with its connection, so keep
	// exactly one open for the lifetime of the store.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Run migrations
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

func isFilePath(dsn string) bool {
	return dsn != MemoryDSN && !strings.HasPrefix(dsn, "file:")
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateSession persists a new session with its bill.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *models.Session) error {
	// Generate IDs if not set
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	now := s.now().Unix()
	if session.CreatedAt == 0 {
		session.CreatedAt = now
	}
	if session.UpdatedAt == 0 {
		session.UpdatedAt = session.CreatedAt
	}
	if session.Step == "" {
		session.Step = models.StepUpload
	}
	if !session.Step.Valid() {
		return fmt.Errorf("%w: %q", storage.ErrInvalidStep, session.Step)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	bill := session.Bill
	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, step, receipt_name, subtotal, tax, tip, total, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, string(session.Step), session.ReceiptName,
		bill.Subtotal, bill.Tax, bill.Tip, bill.Total,
		session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	if err := insertBill(ctx, tx, session.ID, bill); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UpdateSession overwrites the session's step, receipt and bill.
func (s *SQLiteStore) UpdateSession(ctx context.Context, session *models.Session) error {
	if !session.Step.Valid() {
		return fmt.Errorf("%w: %q", storage.ErrInvalidStep, session.Step)
	}
	session.UpdatedAt = s.now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	bill := session.Bill
	res, err := tx.ExecContext(ctx,
		`UPDATE sessions
		 SET step = ?, receipt_name = ?, subtotal = ?, tax = ?, tip = ?, total = ?, updated_at = ?
		 WHERE id = ?`,
		string(session.Step), session.ReceiptName,
		bill.Subtotal, bill.Tax, bill.Tip, bill.Total,
		session.UpdatedAt, session.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, session.ID)
	}

	// Replace the bill wholesale; item_assignments cascade from items.
	for _, q := range []string{
		"DELETE FROM items WHERE session_id = ?",
		"DELETE FROM people WHERE session_id = ?",
	} {
		if _, err := tx.ExecContext(ctx, q, session.ID); err != nil {
			return fmt.Errorf("failed to clear bill: %w", err)
		}
	}
	if err := insertBill(ctx, tx, session.ID, bill); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertBill(ctx context.Context, tx *sql.Tx, sessionID string, bill models.Bill) error {
	for i, p := range bill.People {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO people (session_id, id, name, position) VALUES (?, ?, ?, ?)",
			sessionID, p.ID, p.Name, i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert person: %w", err)
		}
	}

	for i, item := range bill.Items {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO items (session_id, id, name, price, quantity, position) VALUES (?, ?, ?, ?, ?, ?)",
			sessionID, item.ID, item.Name, item.Price, item.Quantity, i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert item: %w", err)
		}

		for j, personID := range item.AssignedTo {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO item_assignments (session_id, item_id, person_id, position) VALUES (?, ?, ?, ?)",
				sessionID, item.ID, personID, j,
			)
			if err != nil {
				return fmt.Errorf("failed to insert item assignment: %w", err)
			}
		}
	}
	return nil
}

// GetSession retrieves a session by ID, including its people, items and assignments.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	session := &models.Session{}
	var step string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, step, receipt_name, subtotal, tax, tip, total, created_at, updated_at
		 FROM sessions WHERE id = ?`,
		sessionID,
	).Scan(&session.ID, &step, &session.ReceiptName,
		&session.Bill.Subtotal, &session.Bill.Tax, &session.Bill.Tip, &session.Bill.Total,
		&session.CreatedAt, &session.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	session.Step = models.Step(step)
	if !session.Step.Valid() {
		return nil, fmt.Errorf("%w: session %s has %q", storage.ErrInvalidStep, sessionID, step)
	}

	people, err := s.getPeople(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	session.Bill.People = people

	items, err := s.getItems(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	session.Bill.Items = items

	return session, nil
}

func (s *SQLiteStore) getPeople(ctx context.Context, sessionID string) ([]models.Person, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name FROM people WHERE session_id = ? ORDER BY position",
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get people: %w", err)
	}
	defer rows.Close()

	people := []models.Person{}
	for rows.Next() {
		var p models.Person
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}
		people = append(people, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate people: %w", err)
	}
	return people, nil
}

func (s *SQLiteStore) getItems(ctx context.Context, sessionID string) ([]models.BillItem, error) {
	// Assignments are loaded in one pass and grouped by item, since the
	// single connection cannot run a nested query while rows are open.
	assignments, err := s.getAssignments(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, price, quantity FROM items WHERE session_id = ? ORDER BY position",
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get items: %w", err)
	}
	defer rows.Close()

	items := []models.BillItem{}
	for rows.Next() {
		var item models.BillItem
		if err := rows.Scan(&item.ID, &item.Name, &item.Price, &item.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		item.AssignedTo = assignments[item.ID]
		if item.AssignedTo == nil {
			item.AssignedTo = []string{}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}
	return items, nil
}

func (s *SQLiteStore) getAssignments(ctx context.Context, sessionID string) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT item_id, person_id FROM item_assignments WHERE session_id = ? ORDER BY item_id, position",
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get item assignments: %w", err)
	}
	defer rows.Close()

	assignments := make(map[string][]string)
	for rows.Next() {
		var itemID, personID string
		if err := rows.Scan(&itemID, &personID); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments[itemID] = append(assignments[itemID], personID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate assignments: %w", err)
	}
	return assignments, nil
}

// DeleteSession removes a session; people, items and assignments cascade.
func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// PruneSessions deletes sessions whose last update is older than before.
func (s *SQLiteStore) PruneSessions(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE updated_at < ?", before.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned sessions: %w", err)
	}
	return int(n), nil
}
