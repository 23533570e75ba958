package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/cofund/internal/eventlog"
	"github.com/mesh-intelligence/cofund/internal/memstore"
	"github.com/mesh-intelligence/cofund/pkg/types"
)

const admin types.Identity = "admin"

// amt parses decimal coin notation or fails the test.
func amt(t *testing.T, s string) types.Amount {
	t.Helper()
	a, err := types.ParseAmount(s)
	require.NoError(t, err)
	return a
}

// testLedger bundles an engine with the store and sink it writes to.
type testLedger struct {
	*Engine
	store *memstore.Store
	sink  *eventlog.Recorder
}

// newLedger opens an engine on an empty memory store and credits each
// identity with one coin.
func newLedger(t *testing.T, funded ...types.Identity) *testLedger {
	t.Helper()
	ctx := context.Background()

	store := memstore.New()
	sink := &eventlog.Recorder{}
	e, err := Open(ctx, store, WithSink(sink))
	require.NoError(t, err)

	for _, id := range append([]types.Identity{admin}, funded...) {
		require.NoError(t, e.Credit(ctx, id, types.Coin))
	}
	return &testLedger{Engine: e, store: store, sink: sink}
}

// newInitialized returns a ledger initialized by admin.
func newInitialized(t *testing.T, funded ...types.Identity) *testLedger {
	t.Helper()
	l := newLedger(t, funded...)
	require.NoError(t, l.Initialize(context.Background(), admin))
	return l
}

// upgraded returns an initialized ledger already migrated to revision 2.
func upgraded(t *testing.T, funded ...types.Identity) *testLedger {
	t.Helper()
	l := newInitialized(t, funded...)
	require.NoError(t, l.Upgrade(context.Background(), admin, types.LogicRefundableV2))
	return l
}

func users(n int) []types.Identity {
	ids := make([]types.Identity, n)
	for i := range ids {
		ids[i] = types.Identity("user" + itoa(i+1))
	}
	return ids
}

// snapshot captures the committed world for before/after comparisons.
func (l *testLedger) snapshot(t *testing.T) types.Snapshot {
	t.Helper()
	snap, err := l.store.Load(context.Background())
	require.NoError(t, err)
	return snap
}
