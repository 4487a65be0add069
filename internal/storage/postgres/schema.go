package postgres

// Schema creates the single memories table. One row per fact: a flat
// taxonomy has no need for the teacher's separate entities/relationships
// tables, so those are not carried forward.
const Schema = `
CREATE TABLE IF NOT EXISTS memories (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    text TEXT NOT NULL,
    chunk TEXT NOT NULL DEFAULT '',
    metadata JSONB NOT NULL DEFAULT '{}',
    hash TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    superseded_by TEXT
);

CREATE INDEX IF NOT EXISTS idx_memories_user_live
    ON memories(user_id) WHERE superseded_by IS NULL;
`

// MigrationPgvector adds the embedding column once the pgvector extension
// is confirmed present. Applied separately from Schema because CREATE
// EXTENSION may fail on servers without the extension installed.
const MigrationPgvector = `
ALTER TABLE memories ADD COLUMN IF NOT EXISTS embedding vector(1024);
CREATE INDEX IF NOT EXISTS idx_memories_embedding_cosine
    ON memories USING ivfflat (embedding vector_cosine_ops)
    WITH (lists = 100);
`

// MigrationColumns brings a pre-existing memories table (created by an
// older version of this schema) up to date: chunk, hash, and
// superseded_by were all added after the table's original shape. Each
// statement is idempotent, so this is safe to run on every startup
// regardless of which columns are already present. The live-row index
// statement repeats the one in Schema; IF NOT EXISTS makes it a no-op when
// Schema already created it.
const MigrationColumns = `
ALTER TABLE memories ADD COLUMN IF NOT EXISTS chunk TEXT NOT NULL DEFAULT '';
ALTER TABLE memories ADD COLUMN IF NOT EXISTS hash TEXT NOT NULL DEFAULT '';
ALTER TABLE memories ADD COLUMN IF NOT EXISTS superseded_by TEXT;

CREATE INDEX IF NOT EXISTS idx_memories_user_live
    ON memories(user_id) WHERE superseded_by IS NULL;
`
