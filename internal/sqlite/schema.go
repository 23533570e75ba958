// Package sqlite implements the SQLite store for the ledger. JSONL files in
// the data directory are the source of truth, grouped into generations named
// by a manifest. An in-memory SQLite database is built from the committed
// generation on Attach, reloaded when another process commits a newer one,
// and serves reads.
package sqlite

// Schema DDL. Amounts are stored as TEXT holding base units so values above
// 2^53 survive the JSON round trip.
const (
	createLedger = `CREATE TABLE ledger (
    administrator TEXT NOT NULL,
    revision INTEGER NOT NULL,
    logic TEXT,
    refunds_enabled INTEGER
);`

	createContributors = `CREATE TABLE contributors (
    identity TEXT PRIMARY KEY,
    position INTEGER NOT NULL
);`

	createAmounts = `CREATE TABLE contributor_amounts (
    identity TEXT PRIMARY KEY,
    amount TEXT NOT NULL
);`

	createAccounts = `CREATE TABLE accounts (
    identity TEXT PRIMARY KEY,
    balance TEXT NOT NULL
);`

	createEvents = `CREATE TABLE events (
    seq INTEGER PRIMARY KEY,
    event_id TEXT NOT NULL UNIQUE,
    kind TEXT NOT NULL,
    created_at TEXT NOT NULL,
    payload TEXT NOT NULL
);`
)

// Index DDL.
const (
	idxContributorsPosition = `CREATE UNIQUE INDEX idx_contributors_position ON contributors(position);`
	idxEventsKind           = `CREATE INDEX idx_events_kind ON events(kind);`
)

// schemaDDL lists all CREATE TABLE statements.
var schemaDDL = []string{
	createLedger,
	createContributors,
	createAmounts,
	createAccounts,
	createEvents,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxContributorsPosition,
	idxEventsKind,
}
