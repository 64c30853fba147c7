// Package postgres holds kotoba's storage plumbing: the PostgreSQL connection
// manager, the embedded schema migrations and the Redis client constructor.
//
// Migrations live in migrations/NNN_description.up.sql and are applied in
// version order, each in its own transaction, with progress recorded in
// schema_migrations:
//
//	cm, err := postgres.NewConnectionManager(postgres.ConnectionConfig{URL: cfg.Database.URL})
//	if err != nil {
//		return err
//	}
//	if err := postgres.RunMigrations(ctx, cm.DB(), logger); err != nil {
//		return err
//	}
//
// Integration tests get a migrated database from the postgrestest subpackage
// (build tag "integration").
package postgres
