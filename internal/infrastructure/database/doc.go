// Package database opens the SQLite databases used by pbexport.
//
// Two databases are involved in an export:
//   - the historian index, opened read-only and shared by all export
//     workers
//   - the state database, which records export runs and is migrated from
//     the embedded SQL files in the migrations package
//
// Usage:
//
//	db, err := database.Open(cfg.Database.Config())
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql. They are applied in version order, each in
// its own transaction, and recorded in the schema_migrations table.
package database
