package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "nodes: units of remembered knowledge",
		SQL: `
CREATE TABLE nodes (
    id           TEXT PRIMARY KEY,
    node_type    TEXT NOT NULL CHECK (node_type IN ('memory', 'person', 'project', 'concept', 'event', 'preference', 'other')),
    label        TEXT NOT NULL,
    body         TEXT NOT NULL DEFAULT '',
    category     TEXT NOT NULL DEFAULT '',

    -- Importance weight, reserved for decay/pruning
    strength     REAL NOT NULL DEFAULT 1.0,

    -- Access tracking
    last_access  INTEGER,
    access_count INTEGER NOT NULL DEFAULT 0,

    -- Opaque key/value bag, JSON
    metadata     TEXT NOT NULL DEFAULT '{}',

    created_at   INTEGER NOT NULL,
    updated_at   INTEGER NOT NULL
);

CREATE INDEX idx_nodes_label    ON nodes(label COLLATE NOCASE);
CREATE INDEX idx_nodes_type     ON nodes(node_type);
CREATE INDEX idx_nodes_category ON nodes(category);
`,
	},
	{
		Version:     2,
		Description: "edges: weighted directed relations between nodes",
		SQL: `
CREATE TABLE edges (
    id         TEXT PRIMARY KEY,
    source_id  TEXT NOT NULL,
    target_id  TEXT NOT NULL,
    relation   TEXT NOT NULL,
    weight     REAL NOT NULL DEFAULT 1.0,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,

    UNIQUE (source_id, target_id, relation)
);

CREATE INDEX idx_edges_source ON edges(source_id);
CREATE INDEX idx_edges_target ON edges(target_id);
`,
	},
	{
		Version:     3,
		Description: "node_vectors: embedding vectors for similarity search",
		SQL: `
CREATE TABLE node_vectors (
    node_id    TEXT PRIMARY KEY,
    embedding  BLOB NOT NULL,
    model      TEXT NOT NULL,
    dimensions INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (node_id) REFERENCES nodes(id) ON DELETE CASCADE
);
`,
	},
	{
		Version:     4,
		Description: "messages: conversation turns recorded by the outer agent",
		SQL: `
CREATE TABLE messages (
    id         INTEGER PRIMARY KEY,
    role       TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
    content    TEXT NOT NULL,
    medium     TEXT NOT NULL DEFAULT 'chat',
    created_at INTEGER NOT NULL
);

CREATE INDEX idx_messages_created ON messages(created_at DESC);
`,
	},
	{
		Version:     5,
		Description: "summaries: session summaries with coverage watermark",
		SQL: `
CREATE TABLE summaries (
    id           INTEGER PRIMARY KEY,
    content      TEXT NOT NULL,
    covers_until INTEGER NOT NULL,
    created_at   INTEGER NOT NULL
);

CREATE INDEX idx_summaries_covers ON summaries(covers_until DESC);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
