package sqlite

import (
	"database/sql"
	"fmt"
)

// Schema creates the memories table for the SQLite backend. SQLite has no
// pgvector analogue, so the embedding is stored as a raw float32 blob and
// cosine distance is computed in Go at search time.
const Schema = `
CREATE TABLE IF NOT EXISTS memories (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    text TEXT NOT NULL,
    chunk TEXT NOT NULL DEFAULT '',
    metadata TEXT NOT NULL DEFAULT '{}',
    embedding BLOB,
    hash TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    superseded_by TEXT
);

CREATE INDEX IF NOT EXISTS idx_memories_user_live
    ON memories(user_id) WHERE superseded_by IS NULL;
`

// legacyColumns are the columns a memories table created by an earlier
// version of this schema may be missing. Each is defaulted to "" when
// materialized into the rebuilt table.
var legacyColumns = []string{"chunk", "hash"}

// migrateSchema inspects the live table for legacyColumns and, if any are
// absent, materializes every row into a freshly created table that has
// them, defaulted to "". Idempotent: a table already carrying every column
// is left untouched. Must run after Schema, which only creates the table
// when it doesn't exist yet.
func migrateSchema(db *sql.DB) error {
	cols, err := tableColumns(db, "memories")
	if err != nil {
		return fmt.Errorf("inspect schema: %w", err)
	}
	if len(cols) == 0 {
		// Table doesn't exist (first run); Schema already created it with
		// every current column, nothing to migrate.
		return nil
	}

	var missing []string
	for _, c := range legacyColumns {
		if !cols[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return rebuildTable(db, cols)
}

func tableColumns(db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var cid, notnull, pk int
		var name, ctype string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// rebuildTable renames the existing memories table aside, creates the
// current schema in its place, and copies every row across. Columns absent
// from the legacy table are materialized as '' (chunk, hash); columns
// present on the legacy table are copied verbatim.
func rebuildTable(db *sql.DB, legacy map[string]bool) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`ALTER TABLE memories RENAME TO memories_legacy`); err != nil {
		return fmt.Errorf("rename legacy table: %w", err)
	}
	if _, err := tx.Exec(Schema); err != nil {
		return fmt.Errorf("recreate table: %w", err)
	}

	selectExpr := func(col string) string {
		if legacy[col] {
			return col
		}
		return `''`
	}

	insert := fmt.Sprintf(`
		INSERT INTO memories (id, user_id, text, chunk, metadata, embedding, hash, created_at, updated_at, superseded_by)
		SELECT id, user_id, text, %s, metadata, embedding, %s, created_at, updated_at, superseded_by
		FROM memories_legacy
	`, selectExpr("chunk"), selectExpr("hash"))
	if _, err := tx.Exec(insert); err != nil {
		return fmt.Errorf("materialize rows: %w", err)
	}

	if _, err := tx.Exec(`DROP TABLE memories_legacy`); err != nil {
		return fmt.Errorf("drop legacy table: %w", err)
	}

	return tx.Commit()
}
