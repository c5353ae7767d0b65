// Package database provides SQLite database connectivity for the BLE hub.
//
// The hub keeps very little on disk: the webhook subscriber list, so
// registrations survive a restart within their TTL. Device records are
// deliberately memory-only and rebuilt from live advertisements.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Schema migrations embedded from the migrations package
//   - STRICT tables for type safety
//
// Usage:
//
//	db, err := database.Open(database.FromConfig(cfg.Database))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_name.up.sql with a matching
// .down.sql. Migrations are additive: new columns must be NULLABLE or have
// DEFAULT values.
package database
