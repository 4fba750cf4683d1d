// Package store persists versioned table snapshots as JSON blobs in
// SQLite, plus per-round provenance rows for auditor queries.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS table_snapshots (
	table_id TEXT PRIMARY KEY,
	version  INTEGER NOT NULL,
	data     BLOB NOT NULL,
	updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS card_provenance (
	round_id INTEGER NOT NULL,
	table_id TEXT NOT NULL,
	shuffled_position INTEGER NOT NULL,
	record BLOB NOT NULL,
	PRIMARY KEY (table_id, round_id, shuffled_position)
);
`

// SQLiteStore wraps mattn/go-sqlite3, storing the versioned TableSnapshot
// JSON blob plus one row per CardProvenance record for auditor queries.
type SQLiteStore struct {
	db *sql.DB
}

func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveSnapshot upserts the versioned snapshot blob for tableID.
func (s *SQLiteStore) SaveSnapshot(tableID string, version byte, data []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO table_snapshots (table_id, version, data) VALUES (?, ?, ?)
		 ON CONFLICT(table_id) DO UPDATE SET version = excluded.version, data = excluded.data, updated_at = CURRENT_TIMESTAMP`,
		tableID, int(version), data,
	)
	if err != nil {
		return fmt.Errorf("store: save snapshot for %q: %w", tableID, err)
	}
	return nil
}

// LoadSnapshot returns the most recently saved snapshot for tableID.
func (s *SQLiteStore) LoadSnapshot(tableID string) (version byte, data []byte, err error) {
	row := s.db.QueryRow(`SELECT version, data FROM table_snapshots WHERE table_id = ?`, tableID)
	var v int
	if err := row.Scan(&v, &data); err != nil {
		return 0, nil, fmt.Errorf("store: load snapshot for %q: %w", tableID, err)
	}
	return byte(v), data, nil
}

// SaveProvenanceRecord persists one CardProvenance record (already
// marshaled by the caller) for auditor queries.
func (s *SQLiteStore) SaveProvenanceRecord(tableID string, roundID int64, shuffledPosition int, record []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO card_provenance (round_id, table_id, shuffled_position, record) VALUES (?, ?, ?, ?)
		 ON CONFLICT(table_id, round_id, shuffled_position) DO UPDATE SET record = excluded.record`,
		roundID, tableID, shuffledPosition, record,
	)
	if err != nil {
		return fmt.Errorf("store: save provenance for table %q round %d: %w", tableID, roundID, err)
	}
	return nil
}

// LoadProvenanceForRound returns the raw marshaled records for a round, in
// shuffled-position order.
func (s *SQLiteStore) LoadProvenanceForRound(tableID string, roundID int64) ([][]byte, error) {
	rows, err := s.db.Query(
		`SELECT record FROM card_provenance WHERE table_id = ? AND round_id = ? ORDER BY shuffled_position ASC`,
		tableID, roundID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: load provenance for table %q round %d: %w", tableID, roundID, err)
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var record []byte
		if err := rows.Scan(&record); err != nil {
			return nil, fmt.Errorf("store: scan provenance row: %w", err)
		}
		out = append(out, record)
	}
	return out, rows.Err()
}
