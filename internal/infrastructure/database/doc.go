// Package database provides SQLite connectivity for the Homey bridge.
//
// It backs the entity registry: one database file, WAL mode, a single
// writer connection and embedded, additive-only migrations.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: "./data/homey.db", WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files live in the top-level migrations package and are named
// YYYYMMDD_HHMMSS_description.up.sql with an optional matching .down.sql.
package database
