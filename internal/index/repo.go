package index

import (
	"fmt"
	"time"
)

// EntityRow represents a row in the entities table.
type EntityRow struct {
	Collection string
	ID         string
	Title      string
	Checksum   string
	UpdatedAt  time.Time
}

// Edge is one directed relation link held by an entity's relation field.
type Edge struct {
	SourceCollection string `json:"sourceCollection"`
	SourceID         string `json:"sourceId"`
	Field            string `json:"field"`
	TargetCollection string `json:"targetCollection"`
	TargetID         string `json:"targetId"`
}

// SearchResult represents one search hit.
type SearchResult struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Title      string `json:"title"`
	Snippet    string `json:"snippet"`
}

// GraphNode is one entity in the relation graph view.
type GraphNode struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Title      string `json:"title"`
}

// UpsertEntity inserts or replaces an entity row, its FTS entry, and its
// outgoing edges within a transaction.
func (db *DB) UpsertEntity(row EntityRow, content string, edges []Edge) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO entities (collection, id, title, content, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			title      = excluded.title,
			content    = excluded.content,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, row.Collection, row.ID, row.Title, content, row.Checksum, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert entity: %w", err)
	}

	// FTS upsert (no-op when the FTS5 tag is absent).
	if err := ftsUpsert(tx, row.Collection, row.ID, row.Title, content); err != nil {
		return err
	}

	// Replace edges: delete old then bulk insert.
	_, _ = tx.Exec(`DELETE FROM edges WHERE source_collection = ? AND source_id = ?`, row.Collection, row.ID)
	if len(edges) > 0 {
		stmt, err := tx.Prepare(`
			INSERT OR IGNORE INTO edges (source_collection, source_id, field, target_collection, target_id)
			VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare edge insert: %w", err)
		}
		defer stmt.Close()
		for _, e := range edges {
			if _, err := stmt.Exec(e.SourceCollection, e.SourceID, e.Field, e.TargetCollection, e.TargetID); err != nil {
				return fmt.Errorf("index: insert edge: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteEntity removes an entity row, its FTS entry, and its outgoing edges.
func (db *DB) DeleteEntity(collection, id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, collection, id)
	_, _ = tx.Exec(`DELETE FROM edges WHERE source_collection = ? AND source_id = ?`, collection, id)
	_, _ = tx.Exec(`DELETE FROM entities WHERE collection = ? AND id = ?`, collection, id)

	return tx.Commit()
}

// AllChecksums returns checksum by "collection/id" for every indexed entity.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT collection, id, checksum FROM entities`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var collection, id, cs string
		if err := rows.Scan(&collection, &id, &cs); err != nil {
			return nil, err
		}
		out[collection+"/"+id] = cs
	}
	return out, rows.Err()
}

// ListEntities returns rows of one collection ordered by update time,
// newest first.
func (db *DB) ListEntities(collection string, limit, offset int) ([]EntityRow, int, error) {
	if limit <= 0 {
		limit = 100
	}
	var total int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM entities WHERE collection = ?`, collection).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count entities: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT collection, id, title, checksum, updated_at
		FROM entities
		WHERE collection = ?
		ORDER BY updated_at DESC
		LIMIT ? OFFSET ?
	`, collection, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list entities: %w", err)
	}
	defer rows.Close()

	var out []EntityRow
	for rows.Next() {
		var r EntityRow
		if err := rows.Scan(&r.Collection, &r.ID, &r.Title, &r.Checksum, &r.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// Graph returns every entity as a node plus every relation edge as a link.
func (db *DB) Graph() ([]GraphNode, []Edge, error) {
	nodeRows, err := db.conn.Query(`SELECT collection, id, title FROM entities`)
	if err != nil {
		return nil, nil, fmt.Errorf("index: graph nodes: %w", err)
	}
	defer nodeRows.Close()

	var nodes []GraphNode
	for nodeRows.Next() {
		var n GraphNode
		if err := nodeRows.Scan(&n.Collection, &n.ID, &n.Title); err != nil {
			return nil, nil, err
		}
		nodes = append(nodes, n)
	}
	if err := nodeRows.Err(); err != nil {
		return nil, nil, err
	}

	edgeRows, err := db.conn.Query(`
		SELECT source_collection, source_id, field, target_collection, target_id FROM edges`)
	if err != nil {
		return nil, nil, fmt.Errorf("index: graph edges: %w", err)
	}
	defer edgeRows.Close()

	var edges []Edge
	for edgeRows.Next() {
		var e Edge
		if err := edgeRows.Scan(&e.SourceCollection, &e.SourceID, &e.Field, &e.TargetCollection, &e.TargetID); err != nil {
			return nil, nil, err
		}
		edges = append(edges, e)
	}
	return nodes, edges, edgeRows.Err()
}

// Inbound returns every edge pointing at (collection, id).
func (db *DB) Inbound(collection, id string) ([]Edge, error) {
	rows, err := db.conn.Query(`
		SELECT source_collection, source_id, field, target_collection, target_id
		FROM edges
		WHERE target_collection = ? AND target_id = ?
	`, collection, id)
	if err != nil {
		return nil, fmt.Errorf("index: inbound: %w", err)
	}
	defer rows.Close()

	var out []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.SourceCollection, &e.SourceID, &e.Field, &e.TargetCollection, &e.TargetID); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
