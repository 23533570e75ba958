package cli

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/cofund/internal/eventlog"
	"github.com/mesh-intelligence/cofund/internal/ledger"
	"github.com/mesh-intelligence/cofund/internal/logging"
	"github.com/mesh-intelligence/cofund/internal/memstore"
	"github.com/mesh-intelligence/cofund/internal/paths"
	"github.com/mesh-intelligence/cofund/pkg/sqlite"
	"github.com/mesh-intelligence/cofund/pkg/types"
)

// session is an engine over an attached store. Close detaches the store.
type session struct {
	engine *ledger.Engine
	store  types.Store
}

func (s *session) Close() error {
	return s.store.Detach()
}

// storeConfig resolves the backend and data directory.
func (a *app) storeConfig() (types.Config, error) {
	dataDir, err := paths.ResolveDataDir(a.dataDir, a.cfg.GetString(keyDataDir))
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	cfg := types.Config{
		Backend: a.cfg.GetString(keyBackend),
		DataDir: dataDir,
	}
	if err := cfg.Validate(); err != nil {
		return types.Config{}, fmt.Errorf("config %s %q: %w", keyBackend, cfg.Backend, err)
	}
	return cfg, nil
}

// open attaches the configured store and opens an engine over it. Events go
// to the log sink plus any extra sinks.
func (a *app) open(ctx context.Context, extra ...types.EventSink) (*session, error) {
	cfg, err := a.storeConfig()
	if err != nil {
		return nil, sysErr(err)
	}

	var store types.Store
	switch cfg.Backend {
	case types.BackendMemory:
		store = memstore.New()
	default:
		store = sqlite.NewBackend()
		if err := store.Attach(cfg); err != nil {
			return nil, sysErr(fmt.Errorf("attach store: %w", err))
		}
	}

	sinks := append([]types.EventSink{eventlog.NewLogSink(a.log)}, extra...)
	opts := []ledger.Option{
		ledger.WithLogger(logging.Component(a.log, "ledger")),
		ledger.WithSink(eventlog.Multi(sinks)),
	}
	if acct := a.cfg.GetString(keyLedgerAccount); acct != "" {
		opts = append(opts, ledger.WithCustodyAccount(types.Identity(acct)))
	}

	e, err := ledger.Open(ctx, store, opts...)
	if err != nil {
		store.Detach()
		return nil, sysErr(fmt.Errorf("open ledger: %w", err))
	}
	return &session{engine: e, store: store}, nil
}

// withLedger runs fn against a freshly opened session and closes it.
func (a *app) withLedger(ctx context.Context, fn func(s *session) error) error {
	s, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}
