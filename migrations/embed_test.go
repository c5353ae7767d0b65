package migrations

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-blehub/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-blehub/internal/webhook"
)

func TestEmbeddedMigrations(t *testing.T) {
	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "blehub.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	applied, pending, err := db.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) == 0 || len(pending) != 0 {
		t.Fatalf("applied = %d pending = %d, want all applied", len(applied), len(pending))
	}

	// The webhook store works against the migrated schema.
	store := webhook.NewSQLiteStore(db.DB)
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	if err := store.Save(ctx, webhook.Entry{URL: "http://10.0.0.5/hook", LastActivated: now}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	entries, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 1 || !entries[0].LastActivated.Equal(now) {
		t.Errorf("List() = %+v", entries)
	}

	if err := db.Rollback(ctx); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}
	var count int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='webhooks'",
	).Scan(&count); err != nil {
		t.Fatalf("query error: %v", err)
	}
	if count != 0 {
		t.Error("webhooks table still present after Rollback")
	}
}
