//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS entities_fts USING fts5(
			collection UNINDEXED,
			id UNINDEXED,
			title,
			content,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, collection, id, title, content string) error {
	_, _ = tx.Exec(`DELETE FROM entities_fts WHERE collection = ? AND id = ?`, collection, id)
	_, err := tx.Exec(`INSERT INTO entities_fts (collection, id, title, content) VALUES (?, ?, ?, ?)`,
		collection, id, title, content)
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, collection, id string) {
	_, _ = tx.Exec(`DELETE FROM entities_fts WHERE collection = ? AND id = ?`, collection, id)
}

// Search performs an FTS5 full-text search and returns matching results with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT collection,
		       id,
		       title,
		       snippet(entities_fts, 3, '<b>', '</b>', '...', 64)
		FROM entities_fts
		WHERE entities_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Collection, &r.ID, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
