package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Edge weight constants. A fresh edge starts at defaultEdgeWeight; every
// duplicate upsert or reinforcement adds reinforceStep.
const (
	defaultEdgeWeight = 1.0
	reinforceStep     = 0.1
)

// Edge is a directed, weighted, labeled relation between two nodes.
// Edges do not own their endpoints; referential cleanup on node deletion
// is an administrative concern outside this engine.
type Edge struct {
	ID        string
	SourceID  string
	TargetID  string
	Relation  string
	Weight    float64
	CreatedAt int64
	UpdatedAt int64
}

const edgeColumns = `id, source_id, target_id, relation, weight, created_at, updated_at`

// UpsertEdge creates an edge or, if the (source, target, relation) triple
// already exists, increments its weight instead. Returns true when a new
// edge row was created.
func (db *DB) UpsertEdge(sourceID, targetID, relation string) (bool, error) {
	now := time.Now().UnixMilli()

	res, err := db.Exec(`
		UPDATE edges SET weight = weight + ?, updated_at = ?
		WHERE source_id = ? AND target_id = ? AND relation = ?
	`, reinforceStep, now, sourceID, targetID, relation)
	if err != nil {
		return false, fmt.Errorf("upsert edge: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return false, nil
	}

	_, err = db.Exec(`
		INSERT INTO edges (id, source_id, target_id, relation, weight, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), sourceID, targetID, relation, defaultEdgeWeight, now, now)
	if err != nil {
		return false, fmt.Errorf("insert edge: %w", err)
	}
	return true, nil
}

// StrengthenEdge increments an edge's weight. Used as a light reinforcement
// signal for co-activated nodes.
func (db *DB) StrengthenEdge(id string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		UPDATE edges SET weight = weight + ?, updated_at = ? WHERE id = ?
	`, reinforceStep, now, id)
	if err != nil {
		return fmt.Errorf("strengthen edge: %w", err)
	}
	return nil
}

// EdgesFrom returns all outgoing edges of a node.
func (db *DB) EdgesFrom(nodeID string) ([]Edge, error) {
	rows, err := db.Query(`SELECT `+edgeColumns+` FROM edges WHERE source_id = ?`, nodeID)
	if err != nil {
		return nil, fmt.Errorf("edges from: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// EdgesTo returns all incoming edges of a node.
func (db *DB) EdgesTo(nodeID string) ([]Edge, error) {
	rows, err := db.Query(`SELECT `+edgeColumns+` FROM edges WHERE target_id = ?`, nodeID)
	if err != nil {
		return nil, fmt.Errorf("edges to: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// AllEdges returns every edge in the graph.
func (db *DB) AllEdges() ([]Edge, error) {
	rows, err := db.Query(`SELECT ` + edgeColumns + ` FROM edges`)
	if err != nil {
		return nil, fmt.Errorf("all edges: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// EdgesAmong returns edges whose both endpoints are in the given ID set.
func (db *DB) EdgesAmong(ids []string) ([]Edge, error) {
	if len(ids) < 2 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)*2)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}
	for _, id := range ids {
		args = append(args, id)
	}
	ph := strings.Join(placeholders, ",")

	query := fmt.Sprintf(`
		SELECT %s FROM edges
		WHERE source_id IN (%s) AND target_id IN (%s)
	`, edgeColumns, ph, ph)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("edges among: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// CountEdges returns the total number of edges in the graph.
func (db *DB) CountEdges() (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM edges").Scan(&count)
	return count, err
}

func scanEdges(rows *sql.Rows) ([]Edge, error) {
	var edges []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.ID, &e.SourceID, &e.TargetID, &e.Relation,
			&e.Weight, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}
