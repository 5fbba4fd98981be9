package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Node type enumeration. The extractor emits free text; anything unrecognized
// is normalized to TypeOther before it reaches the store.
const (
	TypeMemory     = "memory"
	TypePerson     = "person"
	TypeProject    = "project"
	TypeConcept    = "concept"
	TypeEvent      = "event"
	TypePreference = "preference"
	TypeOther      = "other"
)

// CategoryCore marks a node as permanently surfaced: it is always included
// in activation results and never counted against the result budget.
const CategoryCore = "core"

// ValidTypes lists the node types the schema accepts.
var ValidTypes = map[string]bool{
	TypeMemory: true, TypePerson: true, TypeProject: true,
	TypeConcept: true, TypeEvent: true, TypePreference: true,
	TypeOther: true,
}

// Node is a unit of remembered knowledge in the graph.
type Node struct {
	ID          string
	Type        string
	Label       string
	Body        string
	Category    string
	Strength    float64
	LastAccess  *int64
	AccessCount int
	Metadata    string // JSON bag, opaque to the engine
	CreatedAt   int64
	UpdatedAt   int64
}

const nodeColumns = `id, node_type, label, body, category, strength, last_access, access_count, metadata, created_at, updated_at`

// CreateNode inserts a new node. Assigns a UUID if the node has no ID,
// and defaults strength to 1.0.
func (db *DB) CreateNode(node *Node) error {
	now := time.Now().UnixMilli()
	if node.ID == "" {
		node.ID = uuid.NewString()
	}
	if node.Strength == 0 {
		node.Strength = 1.0
	}
	if node.Metadata == "" {
		node.Metadata = "{}"
	}
	if !ValidTypes[node.Type] {
		return fmt.Errorf("create node: invalid type %q", node.Type)
	}

	_, err := db.Exec(`
		INSERT INTO nodes (id, node_type, label, body, category, strength, last_access, access_count, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)
	`, node.ID, node.Type, node.Label, node.Body, node.Category,
		node.Strength, now, node.Metadata, now, now)
	if err != nil {
		return fmt.Errorf("create node: %w", err)
	}

	node.LastAccess = &now
	node.CreatedAt = now
	node.UpdatedAt = now
	return nil
}

// GetNode returns a node by ID, or nil if not found.
func (db *DB) GetNode(id string) (*Node, error) {
	row := db.QueryRow(`SELECT `+nodeColumns+` FROM nodes WHERE id = ?`, id)
	n, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get node: %w", err)
	}
	return n, nil
}

// FindByLabel returns the node with the given label and type, matching the
// label case-insensitively. Returns nil if no such node exists.
func (db *DB) FindByLabel(label, nodeType string) (*Node, error) {
	row := db.QueryRow(`
		SELECT `+nodeColumns+` FROM nodes
		WHERE label = ? COLLATE NOCASE AND node_type = ?
		LIMIT 1
	`, label, nodeType)
	n, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by label: %w", err)
	}
	return n, nil
}

// AppendNodeBody merges new content into a node's body. The body is
// append-only: existing text is never overwritten, only extended with a
// newline separator.
func (db *DB) AppendNodeBody(id, addition string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		UPDATE nodes
		SET body = CASE WHEN body = '' THEN ? ELSE body || char(10) || ? END,
		    updated_at = ?
		WHERE id = ?
	`, addition, addition, now, id)
	if err != nil {
		return fmt.Errorf("append node body: %w", err)
	}
	return nil
}

// TouchNode updates last_access and increments access_count.
func (db *DB) TouchNode(id string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		UPDATE nodes SET last_access = ?, access_count = access_count + 1
		WHERE id = ?
	`, now, id)
	if err != nil {
		return fmt.Errorf("touch node: %w", err)
	}
	return nil
}

// CoreNodes returns all nodes tagged with the core category, in creation
// order. Core nodes are always surfaced by activation regardless of score.
func (db *DB) CoreNodes() ([]Node, error) {
	rows, err := db.Query(`
		SELECT ` + nodeColumns + ` FROM nodes
		WHERE category = '` + CategoryCore + `'
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("core nodes: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// GetNodesByIDs returns nodes for the given list of IDs.
func (db *DB) GetNodesByIDs(ids []string) ([]Node, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`SELECT %s FROM nodes WHERE id IN (%s)`,
		nodeColumns, strings.Join(placeholders, ","))

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("get nodes by ids: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// AllNodes returns every node in the graph, in creation order.
func (db *DB) AllNodes() ([]Node, error) {
	rows, err := db.Query(`SELECT ` + nodeColumns + ` FROM nodes ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("all nodes: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// CountNodes returns the total number of nodes in the graph.
func (db *DB) CountNodes() (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM nodes").Scan(&count)
	return count, err
}

// scanner abstracts sql.Row and sql.Rows for single-node scans.
type scanner interface {
	Scan(dest ...any) error
}

func scanNode(s scanner) (*Node, error) {
	var n Node
	var lastAccess sql.NullInt64
	if err := s.Scan(&n.ID, &n.Type, &n.Label, &n.Body, &n.Category,
		&n.Strength, &lastAccess, &n.AccessCount, &n.Metadata,
		&n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	if lastAccess.Valid {
		n.LastAccess = &lastAccess.Int64
	}
	return &n, nil
}

func scanNodes(rows *sql.Rows) ([]Node, error) {
	var nodes []Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, *n)
	}
	return nodes, rows.Err()
}
