package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/cofund/internal/eventlog"
	"github.com/mesh-intelligence/cofund/internal/memstore"
	"github.com/mesh-intelligence/cofund/internal/sqlite"
	"github.com/mesh-intelligence/cofund/pkg/types"
)

// campaign drives a ledger through both revisions: contributions under
// revision 1, an upgrade, a refund, a toggle, the goal, and a withdrawal.
func campaign(t *testing.T, e *Engine) {
	t.Helper()
	ctx := context.Background()
	ids := users(types.FundingGoal)

	for _, id := range append([]types.Identity{admin}, ids...) {
		require.NoError(t, e.Credit(ctx, id, types.Coin))
	}
	require.NoError(t, e.Initialize(ctx, admin))
	for _, id := range ids[:2] {
		require.NoError(t, e.Contribute(ctx, id, types.MinimumFundingV1))
	}
	require.NoError(t, e.Upgrade(ctx, admin, types.LogicRefundableV2))

	require.NoError(t, e.Contribute(ctx, ids[2], types.MinimumFundingV2))
	_, err := e.Refund(ctx, ids[2])
	require.NoError(t, err)
	_, err = e.ToggleRefunds(ctx, admin)
	require.NoError(t, err)

	for _, id := range ids[2:] {
		require.NoError(t, e.Contribute(ctx, id, types.MinimumFundingV2))
	}
	_, err = e.Withdraw(ctx, admin)
	require.NoError(t, err)
}

func TestBackendsAgree(t *testing.T) {
	ctx := context.Background()

	memStore := memstore.New()
	memSink := &eventlog.Recorder{}
	mem, err := Open(ctx, memStore, WithSink(memSink))
	require.NoError(t, err)
	campaign(t, mem)

	dir := t.TempDir()
	sqlStore := sqlite.NewBackend()
	require.NoError(t, sqlStore.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir}))
	sqlSink := &eventlog.Recorder{}
	sq, err := Open(ctx, sqlStore, WithSink(sqlSink))
	require.NoError(t, err)
	campaign(t, sq)

	memSnap, err := memStore.Load(ctx)
	require.NoError(t, err)
	sqlSnap, err := sqlStore.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, memSnap.Balances, sqlSnap.Balances)
	assert.Equal(t, memSnap.State.Contributors, sqlSnap.State.Contributors)
	assert.Equal(t, memSnap.State.Revision, sqlSnap.State.Revision)
	assert.Equal(t, memSnap.State.RefundsEnabled, sqlSnap.State.RefundsEnabled)

	memEvents, err := memStore.Events(ctx)
	require.NoError(t, err)
	sqlEvents, err := sqlStore.Events(ctx)
	require.NoError(t, err)
	assert.Equal(t, memSink.Kinds(), sqlSink.Kinds())
	require.Len(t, sqlEvents, len(memEvents))
	for i := range memEvents {
		assert.Equal(t, memEvents[i].Kind, sqlEvents[i].Kind)
		assert.Equal(t, memEvents[i].Amount, sqlEvents[i].Amount)
	}

	// The data dir reopens on revision 2 with the campaign's state.
	require.NoError(t, sqlStore.Detach())
	reopened := sqlite.NewBackend()
	require.NoError(t, reopened.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir}))
	t.Cleanup(func() { reopened.Detach() })

	e, err := Open(ctx, reopened)
	require.NoError(t, err)
	st, err := e.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.Revision2, st.Revision)
	assert.Equal(t, types.FundingGoal, st.ContributorCount)
	assert.True(t, st.GoalMet)
	assert.Zero(t, st.Balance)
	require.NotNil(t, st.RefundsEnabled)
	assert.False(t, *st.RefundsEnabled)
}

// A ledger saved on revision 1 by the SQLite store upgrades after a restart.
func TestUpgradeAfterRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := types.Config{Backend: types.BackendSQLite, DataDir: dir}

	store := sqlite.NewBackend()
	require.NoError(t, store.Attach(cfg))
	e, err := Open(ctx, store)
	require.NoError(t, err)
	require.NoError(t, e.Credit(ctx, "user1", types.Coin))
	require.NoError(t, e.Initialize(ctx, admin))
	require.NoError(t, e.Contribute(ctx, "user1", types.MinimumFundingV1))
	require.NoError(t, store.Detach())

	store = sqlite.NewBackend()
	require.NoError(t, store.Attach(cfg))
	t.Cleanup(func() { store.Detach() })
	e, err = Open(ctx, store)
	require.NoError(t, err)

	require.NoError(t, e.Upgrade(ctx, admin, types.LogicRefundableV2))
	has, err := e.HasContributed(ctx, "user1")
	require.NoError(t, err)
	assert.True(t, has)
	bal, err := e.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.MinimumFundingV1, bal)
}

// openShared opens an engine on its own SQLite backend over dir.
func openShared(t *testing.T, dir string) *Engine {
	t.Helper()
	store := sqlite.NewBackend()
	require.NoError(t, store.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir}))
	t.Cleanup(func() { store.Detach() })
	e, err := Open(context.Background(), store)
	require.NoError(t, err)
	return e
}

func TestEnginesSharingADataDirSeeEachOther(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	server := openShared(t, dir)
	cli := openShared(t, dir)

	_, err := server.Status(ctx)
	require.ErrorIs(t, err, types.ErrNotInitialized)

	require.NoError(t, cli.Credit(ctx, "user1", types.Coin))
	require.NoError(t, cli.Initialize(ctx, admin))
	require.NoError(t, cli.Contribute(ctx, "user1", types.MinimumFundingV1))

	st, err := server.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.ContributorCount)
	assert.Equal(t, types.MinimumFundingV1, st.Balance)

	// A write from the stale side lands on top of the other engine's state.
	require.NoError(t, server.Upgrade(ctx, admin, types.LogicRefundableV2))
	rev, err := cli.Revision(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.Revision2, rev)

	has, err := cli.HasContributed(ctx, "user1")
	require.NoError(t, err)
	assert.True(t, has)
	bal, err := cli.AccountBalance(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, types.Coin-types.MinimumFundingV1, bal)
}
