package webhook

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store persists registered webhooks across restarts.
type Store interface {
	Save(ctx context.Context, e Entry) error
	Delete(ctx context.Context, url string) error
	List(ctx context.Context) ([]Entry, error)
}

// SQLiteStore implements Store on the webhooks table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store on an open, migrated database.
//
// Parameters:
//   - db: Open SQLite connection used for queries
//
// Returns:
//   - *SQLiteStore: Store instance ready for use
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Save inserts or refreshes an entry.
func (s *SQLiteStore) Save(ctx context.Context, e Entry) error {
	if e.URL == "" {
		return fmt.Errorf("%w: empty", ErrInvalidURL)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO webhooks (url, last_activated, refusals)
		VALUES (?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			last_activated = excluded.last_activated,
			refusals = excluded.refusals`,
		e.URL,
		e.LastActivated.UTC().Format(time.RFC3339Nano),
		e.Refusals,
	)
	if err != nil {
		return fmt.Errorf("saving webhook: %w", err)
	}
	return nil
}

// Delete removes an entry. Deleting an unknown URL is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, url string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM webhooks WHERE url = ?", url); err != nil {
		return fmt.Errorf("deleting webhook: %w", err)
	}
	return nil
}

// List returns all stored entries, oldest registration first.
func (s *SQLiteStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT url, last_activated, refusals FROM webhooks ORDER BY created_at, rowid",
	)
	if err != nil {
		return nil, fmt.Errorf("querying webhooks: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var activated string
		if err := rows.Scan(&e.URL, &activated, &e.Refusals); err != nil {
			return nil, fmt.Errorf("scanning webhook row: %w", err)
		}
		e.LastActivated, err = time.Parse(time.RFC3339Nano, activated)
		if err != nil {
			return nil, fmt.Errorf("parsing last_activated for %s: %w", e.URL, err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating webhooks: %w", err)
	}
	return entries, nil
}
