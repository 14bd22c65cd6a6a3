package store

import "context"

// Column types are chosen to be valid for both SQLite and MySQL.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS update_cache (
		position     INTEGER NOT NULL,
		component    VARCHAR(100) NOT NULL,
		version      BIGINT NOT NULL,
		release_name VARCHAR(255) NOT NULL DEFAULT '',
		maturity     INTEGER NOT NULL DEFAULT 0,
		url          TEXT,
		download     TEXT,
		downloadmd5  VARCHAR(64) NOT NULL DEFAULT '',
		PRIMARY KEY (position)
	)`,
	`CREATE TABLE IF NOT EXISTS fetch_state (
		name       VARCHAR(32) NOT NULL,
		fetched_at BIGINT NOT NULL,
		provider   VARCHAR(255) NOT NULL DEFAULT '',
		for_branch VARCHAR(32) NOT NULL DEFAULT '',
		ticket     TEXT,
		PRIMARY KEY (name)
	)`,
	`CREATE TABLE IF NOT EXISTS install_log (
		batch_id     VARCHAR(36) NOT NULL,
		component    VARCHAR(100) NOT NULL,
		version      BIGINT NOT NULL,
		installed_at BIGINT NOT NULL,
		success      INTEGER NOT NULL,
		PRIMARY KEY (batch_id, component)
	)`,
}

// Migrate creates missing tables. It is safe to run on every start.
func (s *Store) Migrate(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageError("begin migration", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return storageError("migrate", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return storageError("commit migration", err)
	}
	return nil
}
