package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/cofund/pkg/types"
)

// setupTestDB creates empty JSONL files and a SQLite database with the full
// schema in a temp dir.
func setupTestDB(t *testing.T) (*sql.DB, string) {
	t.Helper()

	dataDir := t.TempDir()
	require.NoError(t, initJSONLFiles(dataDir))

	db, err := sql.Open("sqlite", memoryDSN)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	for _, ddl := range append(append([]string(nil), schemaDDL...), indexDDL...) {
		_, err := db.Exec(ddl)
		require.NoError(t, err)
	}
	return db, dataDir
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadJSONLUnknownFields(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		jsonl    string
		checkSQL string
		checkVal string
	}{
		{
			name:     "ledger with unknown fields",
			file:     ledgerJSONL,
			jsonl:    `{"administrator":"admin","revision":2,"logic":"refundable-ledger/v2","refunds_enabled":true,"owner_history":["admin"],"fee_bps":25}` + "\n",
			checkSQL: "SELECT administrator FROM ledger",
			checkVal: "admin",
		},
		{
			name:     "contributors with unknown fields",
			file:     contributorsJSONL,
			jsonl:    `{"identity":"alice","position":0,"joined_at":"2025-01-15T10:30:00Z","meta":{"tier":"gold"}}` + "\n",
			checkSQL: "SELECT identity FROM contributors WHERE position = 0",
			checkVal: "alice",
		},
		{
			name:     "amounts with unknown fields",
			file:     amountsJSONL,
			jsonl:    `{"identity":"bob","amount":"900000","currency":"COF"}` + "\n",
			checkSQL: "SELECT amount FROM contributor_amounts WHERE identity = 'bob'",
			checkVal: "900000",
		},
		{
			name:     "accounts with unknown fields",
			file:     accountsJSONL,
			jsonl:    `{"identity":"carol","balance":"1000000000","frozen":false}` + "\n",
			checkSQL: "SELECT balance FROM accounts WHERE identity = 'carol'",
			checkVal: "1000000000",
		},
		{
			name:     "events with unknown fields",
			file:     eventsJSONL,
			jsonl:    `{"event_id":"e1","kind":"contributed","who":"alice","amount":1000000,"revision":1,"created_at":"2025-01-15T10:30:00Z","trace_id":"abc"}` + "\n",
			checkSQL: "SELECT kind FROM events WHERE event_id = 'e1'",
			checkVal: "contributed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, dataDir := setupTestDB(t)
			writeFile(t, dataDir, tt.file, tt.jsonl)

			require.NoError(t, loadAllJSONL(db, dataDir), "loadAllJSONL must not error on unknown fields")

			var val string
			require.NoError(t, db.QueryRow(tt.checkSQL).Scan(&val))
			assert.Equal(t, tt.checkVal, val)
		})
	}
}

func TestLoadJSONLMalformedLinesSkipped(t *testing.T) {
	db, dataDir := setupTestDB(t)
	writeFile(t, dataDir, contributorsJSONL, `{"identity":"alice","position":0}
not valid json at all
{"identity":"alice","position":5}
{"identity":"bob","position":1}
`)

	require.NoError(t, loadAllJSONL(db, dataDir))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM contributors").Scan(&count))
	assert.Equal(t, 2, count, "malformed and duplicate records are skipped")
}

func TestLoadJSONLKeepsLargeNumbersExact(t *testing.T) {
	db, dataDir := setupTestDB(t)
	// A bare JSON number above 2^53 would be rounded through float64.
	writeFile(t, dataDir, accountsJSONL, `{"identity":"whale","balance":18446744073709551615}`+"\n")

	require.NoError(t, loadAllJSONL(db, dataDir))

	var val string
	require.NoError(t, db.QueryRow("SELECT balance FROM accounts").Scan(&val))
	assert.Equal(t, "18446744073709551615", val)
}

// A data dir written before the logic and refunds fields existed loads as a
// revision 1 ledger.
func TestAttachLoadsRevisionOneLayout(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ledgerJSONL, `{"administrator":"admin","revision":1}`+"\n")
	writeFile(t, dir, contributorsJSONL, `{"identity":"bob","position":1}
{"identity":"alice","position":0}
`)
	writeFile(t, dir, accountsJSONL, `{"identity":"cofund:custody","balance":"2000000"}`+"\n")

	b := attach(t, dir)
	snap, err := b.Load(context.Background())
	require.NoError(t, err)

	st := snap.State
	require.NotNil(t, st)
	assert.Equal(t, types.Revision1, st.Revision)
	assert.Equal(t, types.LogicContributionV1, st.Logic)
	assert.False(t, st.RefundsEnabled)
	assert.Empty(t, st.AmountByContributor)
	assert.Equal(t, []types.Identity{"alice", "bob"}, st.Contributors)
	assert.NoError(t, st.Validate())
	assert.Equal(t, types.Amount(2_000_000), snap.Balances["cofund:custody"])
}

func TestLoadRejectsUnparseableAmount(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, accountsJSONL, `{"identity":"alice","balance":"lots"}`+"\n")

	b := attach(t, dir)
	_, err := b.Load(context.Background())
	assert.ErrorIs(t, err, types.ErrCorruptState)
}

func TestLoadJSONLEmptyFiles(t *testing.T) {
	db, dataDir := setupTestDB(t)
	require.NoError(t, loadAllJSONL(db, dataDir))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM ledger").Scan(&count))
	assert.Zero(t, count)
}
