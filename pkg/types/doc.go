// Package types defines the ledger contract for cofund: the persisted state
// record shared by every logic revision, the Ledger and Store interfaces,
// notification events, and the standard error values.
//
// See docs/ARCHITECTURE § Persisted State and § Revisions.
package types
