// package repositories is the persistence layer: one repository per
// entity (users, connections, import jobs, import items), each
// implementing models.Repository[T] over the shared SQLite handle.
package repositories

import (
	"database/sql"
	"fmt"
)

// NextSequence advances and returns the per-table sequence counter.
// Each entity table has a companion <table>_sequence row seeded by the
// migrations; the single UPDATE..RETURNING keeps concurrent creates
// from ever seeing the same number.
//
// Sequences give entities a stable creation order (jobs list
// newest-first by it); they are never shown to users in place of ids.
func NextSequence(db *sql.DB, table string) (int, error) {
	query := fmt.Sprintf("UPDATE %s_sequence SET value = value + 1 WHERE id = 1 RETURNING value", table)

	var sequence int
	if err := db.QueryRow(query).Scan(&sequence); err != nil {
		return 0, fmt.Errorf("failed to advance %s sequence: %w", table, err)
	}
	return sequence, nil
}
