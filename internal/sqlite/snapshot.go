package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/mesh-intelligence/cofund/pkg/types"
)

// JSONL record layouts. New fields may be added; none may be removed or
// change meaning.
type (
	ledgerRecord struct {
		Administrator  string `json:"administrator"`
		Revision       int    `json:"revision"`
		Logic          string `json:"logic,omitempty"`
		RefundsEnabled bool   `json:"refunds_enabled"`
	}

	contributorRecord struct {
		Identity string `json:"identity"`
		Position int    `json:"position"`
	}

	amountRecord struct {
		Identity string `json:"identity"`
		Amount   string `json:"amount"`
	}

	accountRecord struct {
		Identity string `json:"identity"`
		Balance  string `json:"balance"`
	}
)

// defaultLogic is the logic reference of a ledger record written before the
// logic field existed.
var defaultLogic = map[types.Revision]string{
	types.Revision1: types.LogicContributionV1,
	types.Revision2: types.LogicRefundableV2,
}

// Load returns the snapshot of the committed generation.
func (b *Backend) Load(ctx context.Context) (types.Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.Snapshot{}, types.ErrStoreDetached
	}
	if err := b.sync(ctx); err != nil {
		return types.Snapshot{}, err
	}

	st, err := b.loadState(ctx)
	if err != nil {
		return types.Snapshot{}, err
	}
	balances, err := b.loadAmounts(ctx, "SELECT identity, balance FROM accounts")
	if err != nil {
		return types.Snapshot{}, fmt.Errorf("loading accounts: %w", err)
	}
	return types.Snapshot{State: st, Balances: balances, Generation: b.gen}, nil
}

func (b *Backend) loadState(ctx context.Context) (*types.State, error) {
	var (
		admin   string
		rev     int
		logic   sql.NullString
		refunds sql.NullBool
	)
	err := b.db.QueryRowContext(ctx,
		"SELECT administrator, revision, logic, refunds_enabled FROM ledger ORDER BY rowid LIMIT 1",
	).Scan(&admin, &rev, &logic, &refunds)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading ledger: %w", err)
	}

	st := &types.State{
		Administrator:       types.Identity(admin),
		Revision:            types.Revision(rev),
		Logic:               logic.String,
		HasContributed:      make(map[types.Identity]bool),
		AmountByContributor: make(map[types.Identity]types.Amount),
		RefundsEnabled:      refunds.Valid && refunds.Bool,
	}
	if st.Logic == "" {
		st.Logic = defaultLogic[st.Revision]
	}

	rows, err := b.db.QueryContext(ctx, "SELECT identity FROM contributors ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("loading contributors: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning contributor: %w", err)
		}
		st.AddContributor(types.Identity(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading contributors: %w", err)
	}

	amounts, err := b.loadAmounts(ctx, "SELECT identity, amount FROM contributor_amounts")
	if err != nil {
		return nil, fmt.Errorf("loading contributor amounts: %w", err)
	}
	for id, amt := range amounts {
		st.AmountByContributor[id] = amt
	}
	return st, nil
}

// loadAmounts runs an (identity, amount) query and parses the base-unit
// amounts. Zero amounts are dropped.
func (b *Backend) loadAmounts(ctx context.Context, query string) (map[types.Identity]types.Amount, error) {
	rows, err := b.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[types.Identity]types.Amount)
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: amount %q for %s", types.ErrCorruptState, raw, id)
		}
		if n > 0 {
			out[types.Identity(id)] = types.Amount(n)
		}
	}
	return out, rows.Err()
}

// Save commits snap and events as the generation after snap.Generation. The
// files of the new generation are staged in their own directory and become
// current only when the manifest names them, so a failed save leaves the
// previous generation intact on disk and in the tables.
func (b *Backend) Save(ctx context.Context, snap types.Snapshot, events []types.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.ErrStoreDetached
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	dataDir := b.config.DataDir

	lock, err := lockDir(ctx, dataDir, true)
	if err != nil {
		return err
	}
	defer lock.unlock()

	current, err := readManifest(dataDir)
	if err != nil {
		return err
	}
	if current != snap.Generation {
		return fmt.Errorf("%w: saving over generation %d, stored generation is %d",
			types.ErrStaleSnapshot, snap.Generation, current)
	}
	if b.gen != current {
		if err := loadAllJSONL(b.db, genDir(dataDir, current)); err != nil {
			return fmt.Errorf("loading generation %d: %w", current, err)
		}
		b.gen = current
	}

	files, err := snapshotRecords(snap)
	if err != nil {
		return err
	}
	eventRecs := make([]json.RawMessage, 0, len(events))
	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshaling event: %w", err)
		}
		eventRecs = append(eventRecs, data)
	}

	next := current + 1
	dir, err := stageGeneration(dataDir, current, next, files, eventRecs)
	if err != nil {
		return fmt.Errorf("staging generation %d: %w", next, err)
	}
	committed := false
	defer func() {
		if !committed {
			os.RemoveAll(dir)
		}
	}()

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning save transaction: %w", err)
	}
	defer tx.Rollback()

	if err := replaceTables(ctx, tx, files); err != nil {
		return err
	}
	var last int64
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), 0) FROM events").Scan(&last); err != nil {
		return fmt.Errorf("reading event sequence: %w", err)
	}
	if err := insertEvents(tx, last, eventRecs); err != nil {
		return err
	}

	if err := writeManifest(dataDir, next); err != nil {
		return fmt.Errorf("committing generation %d: %w", next, err)
	}
	committed = true
	b.gen = next

	if err := tx.Commit(); err != nil {
		// The generation is committed on disk; rebuild the tables from it.
		if lerr := loadAllJSONL(b.db, dir); lerr != nil {
			return fmt.Errorf("generation %d committed but not loaded: %w", next, errors.Join(err, lerr))
		}
	}
	pruneGenerations(dataDir, next)
	return nil
}

// snapshotRecords renders snap as JSONL records keyed by file name.
func snapshotRecords(snap types.Snapshot) (map[string][]json.RawMessage, error) {
	out := map[string][]json.RawMessage{
		ledgerJSONL:       nil,
		contributorsJSONL: nil,
		amountsJSONL:      nil,
		accountsJSONL:     nil,
	}
	add := func(file string, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshaling %s record: %w", file, err)
		}
		out[file] = append(out[file], data)
		return nil
	}

	if st := snap.State; st != nil {
		if err := add(ledgerJSONL, ledgerRecord{
			Administrator:  st.Administrator.String(),
			Revision:       int(st.Revision),
			Logic:          st.Logic,
			RefundsEnabled: st.RefundsEnabled,
		}); err != nil {
			return nil, err
		}
		for i, id := range st.Contributors {
			if err := add(contributorsJSONL, contributorRecord{Identity: id.String(), Position: i}); err != nil {
				return nil, err
			}
		}
		for _, id := range sortedIdentities(st.AmountByContributor) {
			if err := add(amountsJSONL, amountRecord{Identity: id.String(), Amount: baseUnits(st.AmountByContributor[id])}); err != nil {
				return nil, err
			}
		}
	}
	for _, id := range sortedIdentities(snap.Balances) {
		if err := add(accountsJSONL, accountRecord{Identity: id.String(), Balance: baseUnits(snap.Balances[id])}); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// replaceTables rewrites the snapshot tables from the rendered records.
func replaceTables(ctx context.Context, tx *sql.Tx, files map[string][]json.RawMessage) error {
	for _, mapping := range jsonlTableMapping {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+mapping.table); err != nil {
			return fmt.Errorf("clearing %s: %w", mapping.table, err)
		}
		if err := insertRecords(tx, mapping.table, mapping.columns, files[mapping.file]); err != nil {
			return err
		}
	}
	return nil
}

// Events returns the event log of the committed generation in append order.
func (b *Backend) Events(ctx context.Context) ([]types.Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil, types.ErrStoreDetached
	}
	if err := b.sync(ctx); err != nil {
		return nil, err
	}

	rows, err := b.db.QueryContext(ctx, "SELECT payload FROM events ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var out []types.Event
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		var e types.Event
		if err := json.Unmarshal([]byte(payload), &e); err != nil {
			return nil, fmt.Errorf("decoding event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func baseUnits(a types.Amount) string {
	return strconv.FormatUint(uint64(a), 10)
}

func sortedIdentities(m map[types.Identity]types.Amount) []types.Identity {
	ids := make([]types.Identity, 0, len(m))
	for id, amt := range m {
		if amt > 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
