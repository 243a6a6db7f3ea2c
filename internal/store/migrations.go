package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create conversations and messages",
		SQL: `
			CREATE TABLE conversations (
				id          TEXT PRIMARY KEY,
				user_id     TEXT NOT NULL,
				title       TEXT NOT NULL DEFAULT '',
				created_at  TEXT NOT NULL DEFAULT (datetime('now')),
				updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_conversations_user ON conversations (user_id);

			CREATE TABLE messages (
				id               TEXT PRIMARY KEY,
				conversation_id  TEXT NOT NULL,
				seq              INTEGER NOT NULL,
				role             TEXT NOT NULL,
				content          TEXT NOT NULL DEFAULT '',
				reasoning        TEXT NOT NULL DEFAULT '',
				tool_calls       TEXT,
				tool_call_id     TEXT NOT NULL DEFAULT '',
				metadata         TEXT,
				created_at       TEXT NOT NULL
			);

			CREATE INDEX idx_messages_conversation ON messages (conversation_id, seq);
		`,
	},
	{
		Version: 2,
		Name:    "create sources and chunk vectors",
		SQL: `
			CREATE TABLE sources (
				id          TEXT PRIMARY KEY,
				name        TEXT NOT NULL,
				user_id     TEXT NOT NULL DEFAULT '',
				created_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE TABLE chunks (
				id           TEXT PRIMARY KEY,
				source_id    TEXT NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
				chunk_index  INTEGER NOT NULL,
				content      TEXT NOT NULL,
				embedding    BLOB NOT NULL,
				created_at   TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_chunks_source ON chunks (source_id, chunk_index);
		`,
	},
}
