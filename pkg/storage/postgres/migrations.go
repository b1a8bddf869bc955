package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations returns the ordered schema migrations.
//
// The resource_permissions primary key is (cid, resource, entity) without
// the group flag: a user and a group sharing a numeric id cannot hold
// independent grants on the same resource. User and group ids are drawn
// from disjoint ranges upstream, which is what makes this safe; the key is
// kept as-is for compatibility with existing data.
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create resource tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS resource (
					cid INTEGER NOT NULL,
					id INTEGER NOT NULL,
					identifier VARCHAR(255) NOT NULL,
					"displayName" VARCHAR(255) NOT NULL,
					mail VARCHAR(255),
					available BOOLEAN NOT NULL DEFAULT TRUE,
					description TEXT,
					"lastModified" BIGINT NOT NULL,
					PRIMARY KEY (cid, id)
				);

				CREATE TABLE IF NOT EXISTS del_resource (
					cid INTEGER NOT NULL,
					id INTEGER NOT NULL,
					identifier VARCHAR(255),
					"displayName" VARCHAR(255),
					mail VARCHAR(255),
					available BOOLEAN NOT NULL DEFAULT TRUE,
					description TEXT,
					"lastModified" BIGINT NOT NULL,
					PRIMARY KEY (cid, id)
				);
			`,
		},
		{
			Version:     2,
			Description: "Create resource permission table",
			SQL: `
				CREATE TABLE IF NOT EXISTS resource_permissions (
					cid INTEGER NOT NULL,
					resource INTEGER NOT NULL,
					entity INTEGER NOT NULL,
					"group" BOOLEAN NOT NULL,
					privilege VARCHAR(64) NOT NULL,
					PRIMARY KEY (cid, resource, entity)
				);

				CREATE INDEX IF NOT EXISTS idx_resource_permissions_entity
					ON resource_permissions (cid, entity, "group");
			`,
		},
		{
			Version:     3,
			Description: "Create resource group tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS resource_group (
					cid INTEGER NOT NULL,
					id INTEGER NOT NULL,
					identifier VARCHAR(255) NOT NULL,
					"displayName" VARCHAR(255) NOT NULL,
					available BOOLEAN NOT NULL DEFAULT TRUE,
					PRIMARY KEY (cid, id)
				);

				CREATE TABLE IF NOT EXISTS resource_group_member (
					cid INTEGER NOT NULL,
					id INTEGER NOT NULL,
					member INTEGER NOT NULL,
					PRIMARY KEY (cid, id, member)
				);
			`,
		},
		{
			Version:     4,
			Description: "Create use count table",
			SQL: `
				CREATE TABLE IF NOT EXISTS "principalUseCount" (
					cid INTEGER NOT NULL,
					"user" INTEGER NOT NULL,
					principal INTEGER NOT NULL,
					value INTEGER NOT NULL DEFAULT 0,
					"lastModified" BIGINT NOT NULL,
					PRIMARY KEY (cid, "user", principal)
				);
			`,
		},
		{
			Version:     5,
			Description: "Create principal directory tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS groups (
					cid INTEGER NOT NULL,
					id INTEGER NOT NULL,
					identifier VARCHAR(255) NOT NULL,
					"displayName" VARCHAR(255) NOT NULL,
					PRIMARY KEY (cid, id)
				);

				CREATE TABLE IF NOT EXISTS "user" (
					cid INTEGER NOT NULL,
					id INTEGER NOT NULL,
					mail VARCHAR(255),
					"guestCreatedBy" INTEGER NOT NULL DEFAULT 0,
					PRIMARY KEY (cid, id)
				);
			`,
		},
		{
			Version:     6,
			Description: "Create context attribute table",
			SQL: `
				CREATE TABLE IF NOT EXISTS context_attribute (
					cid INTEGER NOT NULL,
					name VARCHAR(255) NOT NULL,
					value TEXT NOT NULL,
					PRIMARY KEY (cid, name)
				);
			`,
		},
	}
}

// RunMigrations applies all pending migrations, tracking applied versions
// in a schema_migrations table.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, m := range Migrations() {
		var exists bool
		err := db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, m.Version).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check migration %d: %w", m.Version, err)
		}
		if exists {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, description) VALUES ($1, $2)`, m.Version, m.Description); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}
	}
	return nil
}
