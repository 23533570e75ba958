package sqlite

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// jsonlTableMapping maps snapshot JSONL files to their SQLite tables and
// column lists. Fields not listed are ignored, so files written by a later
// layout still load.
var jsonlTableMapping = []struct {
	file    string
	table   string
	columns []string
}{
	{ledgerJSONL, "ledger", []string{"administrator", "revision", "logic", "refunds_enabled"}},
	{contributorsJSONL, "contributors", []string{"identity", "position"}},
	{amountsJSONL, "contributor_amounts", []string{"identity", "amount"}},
	{accountsJSONL, "accounts", []string{"identity", "balance"}},
}

// loadAllJSONL replaces the contents of every table with the JSONL files in
// dataDir. Loading is transactional: all files load or the tables keep their
// previous rows. Malformed lines and records that violate constraints are
// skipped.
func loadAllJSONL(db *sql.DB, dataDir string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback()

	for _, mapping := range jsonlTableMapping {
		if _, err := tx.Exec("DELETE FROM " + mapping.table); err != nil {
			return fmt.Errorf("clearing %s: %w", mapping.table, err)
		}
	}
	if _, err := tx.Exec("DELETE FROM events"); err != nil {
		return fmt.Errorf("clearing events: %w", err)
	}

	for _, mapping := range jsonlTableMapping {
		records, err := readJSONL(filepath.Join(dataDir, mapping.file))
		if err != nil {
			return fmt.Errorf("reading %s: %w", mapping.file, err)
		}
		if len(records) == 0 {
			continue
		}
		if err := insertRecords(tx, mapping.table, mapping.columns, records); err != nil {
			return fmt.Errorf("loading %s into %s: %w", mapping.file, mapping.table, err)
		}
	}

	events, err := readJSONL(filepath.Join(dataDir, eventsJSONL))
	if err != nil {
		return fmt.Errorf("reading %s: %w", eventsJSONL, err)
	}
	if err := insertEvents(tx, 0, events); err != nil {
		return fmt.Errorf("loading %s: %w", eventsJSONL, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing load transaction: %w", err)
	}
	return nil
}

// insertRecords inserts parsed JSONL records into a SQLite table. Only the
// listed columns are extracted. Numbers are kept as their literal text so
// large amounts are not rounded through float64.
func insertRecords(tx *sql.Tx, table string, columns []string, records []json.RawMessage) error {
	placeholders := make([]string, len(columns))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	insertSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)

	stmt, err := tx.Prepare(insertSQL)
	if err != nil {
		return fmt.Errorf("preparing insert for %s: %w", table, err)
	}
	defer stmt.Close()

	for _, rec := range records {
		dec := json.NewDecoder(bytes.NewReader(rec))
		dec.UseNumber()
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			continue
		}

		args := make([]any, len(columns))
		for i, col := range columns {
			switch v := obj[col].(type) {
			case json.Number:
				args[i] = v.String()
			case map[string]any, []any:
				args[i] = nil
			default:
				args[i] = v
			}
		}

		if _, err := stmt.Exec(args...); err != nil {
			continue
		}
	}
	return nil
}

// eventHeader is the part of an event record indexed in SQLite. The full
// record is kept verbatim as the payload.
type eventHeader struct {
	EventID   string    `json:"event_id"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// insertEvents appends event records after sequence number after. Records
// without an id or with a duplicate id are skipped.
func insertEvents(tx *sql.Tx, after int64, records []json.RawMessage) error {
	if len(records) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`INSERT INTO events (seq, event_id, kind, created_at, payload) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert for events: %w", err)
	}
	defer stmt.Close()

	seq := after
	for _, rec := range records {
		var h eventHeader
		if err := json.Unmarshal(rec, &h); err != nil || h.EventID == "" {
			continue
		}
		if _, err := stmt.Exec(seq+1, h.EventID, h.Kind, h.CreatedAt.UTC().Format(time.RFC3339Nano), string(rec)); err != nil {
			continue
		}
		seq++
	}
	return nil
}
