package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/recap/internal/errors"
	"github.com/hpungsan/recap/internal/instruction"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 3

// Migration is one forward schema step. Up must be idempotent: running it
// against a store that already has the step applied changes nothing observable.
type Migration struct {
	Version int
	Name    string
	Up      func(ctx context.Context, tx *sql.Tx) error
}

// Migrations returns the ordered migration chain.
func Migrations() []Migration {
	return []Migration{
		{Version: 1, Name: "initial_schema", Up: migrateInitialSchema},
		{Version: 2, Name: "history_index_and_single_active", Up: migrateHistoryIndex},
		{Version: 3, Name: "refresh_default_template", Up: migrateRefreshDefault},
	}
}

// migrate applies every migration above the persisted user_version, in order.
func migrate(ctx context.Context, db *sql.DB, logger *zap.Logger) error {
	version, err := GetUserVersion(ctx, db)
	if err != nil {
		return err
	}

	if version > CurrentSchemaVersion {
		return errors.NewStorageUnavailable(fmt.Errorf(
			"store schema version %d is newer than supported version %d", version, CurrentSchemaVersion))
	}

	for _, m := range Migrations() {
		if m.Version <= version {
			continue
		}
		if err := ApplyMigration(ctx, db, m); err != nil {
			return err
		}
		logger.Info("applied schema migration",
			zap.Int("version", m.Version),
			zap.String("name", m.Name))
	}

	return nil
}

// ApplyMigration runs a single step in its own transaction and checkpoints
// user_version in the same transaction. The checkpoint only moves forward, so
// re-running an older step never rewinds the version.
func ApplyMigration(ctx context.Context, db *sql.DB, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Name, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := m.Up(ctx, tx); err != nil {
		return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Name, err)
	}

	current, err := GetUserVersion(ctx, tx)
	if err != nil {
		return err
	}
	if m.Version > current {
		if err := SetUserVersion(ctx, tx, m.Version); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migration %d (%s) commit failed: %w", m.Version, m.Name, err)
	}
	return nil
}

// Migration 0 -> 1: tables and the seeded default instruction.
func migrateInitialSchema(ctx context.Context, tx *sql.Tx) error {
	schema := `
	CREATE TABLE IF NOT EXISTS summaries (
	  id              INTEGER PRIMARY KEY AUTOINCREMENT,
	  created_at      INTEGER NOT NULL,
	  title           TEXT NOT NULL,
	  original_text   TEXT NOT NULL,
	  narrative       TEXT NOT NULL,
	  technical       TEXT NOT NULL,
	  word_count      INTEGER NOT NULL,
	  char_count      INTEGER NOT NULL,
	  token_estimate  INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS instructions (
	  id          INTEGER PRIMARY KEY AUTOINCREMENT,
	  name        TEXT NOT NULL,
	  content     TEXT NOT NULL,
	  is_active   INTEGER NOT NULL DEFAULT 0,
	  is_default  INTEGER NOT NULL DEFAULT 0,
	  created_at  INTEGER NOT NULL
	);
	`
	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return err
	}

	tmpl, _ := instruction.Builtin(1)

	// Seed only when no default exists; activate only when nothing else is active.
	_, err := tx.ExecContext(ctx, `
		INSERT INTO instructions (name, content, is_active, is_default, created_at)
		SELECT ?, ?, NOT EXISTS (SELECT 1 FROM instructions WHERE is_active = 1), 1, ?
		WHERE NOT EXISTS (SELECT 1 FROM instructions WHERE is_default = 1)
	`, tmpl.Name, tmpl.Content, time.Now().UnixMilli())
	return err
}

// Migration 1 -> 2: updated_at column, history index, engine-level single-active guard.
func migrateHistoryIndex(ctx context.Context, tx *sql.Tx) error {
	hasUpdatedAt, err := columnExists(ctx, tx, "instructions", "updated_at")
	if err != nil {
		return err
	}
	if !hasUpdatedAt {
		if _, err := tx.ExecContext(ctx, `ALTER TABLE instructions ADD COLUMN updated_at INTEGER NOT NULL DEFAULT 0`); err != nil {
			return err
		}
	}

	stmts := []string{
		`UPDATE instructions SET updated_at = created_at WHERE updated_at = 0`,

		`CREATE INDEX IF NOT EXISTS idx_summaries_recent
		 ON summaries(created_at DESC, id DESC)`,

		// Stores written before the guard existed may hold several active rows;
		// keep the most recently created one.
		`UPDATE instructions SET is_active = 0
		 WHERE is_active = 1
		   AND id != (SELECT MAX(id) FROM instructions WHERE is_active = 1)`,

		`CREATE UNIQUE INDEX IF NOT EXISTS idx_instructions_single_active
		 ON instructions(is_active)
		 WHERE is_active = 1`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Migration 2 -> 3: move the default instruction to the v2 built-in template.
// A default record whose content no longer matches any built-in template has
// been customized and is left alone.
func migrateRefreshDefault(ctx context.Context, tx *sql.Tx) error {
	tmpl, _ := instruction.Builtin(2)

	rows, err := tx.QueryContext(ctx, `SELECT id, name, content FROM instructions WHERE is_default = 1`)
	if err != nil {
		return err
	}

	type candidate struct {
		id            int64
		name, content string
	}
	var defaults []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.id, &c.name, &c.content); err != nil {
			rows.Close()
			return err
		}
		defaults = append(defaults, c)
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return err
	}

	now := time.Now().UnixMilli()
	for _, c := range defaults {
		if c.name == tmpl.Name && c.content == tmpl.Content {
			continue
		}
		if !instruction.IsBuiltinContent(c.content) {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE instructions SET name = ?, content = ?, updated_at = ? WHERE id = ?`,
			tmpl.Name, tmpl.Content, now, c.id,
		); err != nil {
			return err
		}
	}
	return nil
}

// columnExists reports whether table has a column with the given name.
func columnExists(ctx context.Context, tx *sql.Tx, table, column string) (bool, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
