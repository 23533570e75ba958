package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/cofund/pkg/types"
)

// memoryDSN opens a private in-memory database. The tables are derived from
// the JSONL files, so each attached process builds its own.
const memoryDSN = ":memory:"

// Backend implements types.Store using SQLite as the query engine and JSONL
// files as the source of truth. Several processes may attach the same data
// directory; each save commits a new generation of files.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB

	// gen is the generation the tables hold.
	gen uint64
}

var (
	_ types.Store     = (*Backend)(nil)
	_ types.Versioned = (*Backend)(nil)
)

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend() *Backend {
	return &Backend{}
}

// Attach creates DataDir if needed, builds a fresh SQLite schema, and loads
// the JSONL files of the committed generation into it.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	lock, err := lockDir(context.Background(), dataDir, false)
	if err != nil {
		return err
	}
	defer lock.unlock()

	gen, err := readManifest(dataDir)
	if err != nil {
		return err
	}

	db, err := sql.Open("sqlite", memoryDSN)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	// One connection keeps every statement on the same in-memory database.
	db.SetMaxOpenConns(1)

	for _, ddl := range append(append([]string(nil), schemaDDL...), indexDDL...) {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return fmt.Errorf("creating schema: %w", err)
		}
	}

	if gen == 0 {
		if err := initJSONLFiles(dataDir); err != nil {
			db.Close()
			return err
		}
	}
	if err := loadAllJSONL(db, genDir(dataDir, gen)); err != nil {
		db.Close()
		return fmt.Errorf("load JSONL: %w", err)
	}

	config.DataDir = dataDir
	b.db = db
	b.config = config
	b.gen = gen
	b.attached = true
	return nil
}

// Generation returns the generation committed in the data directory.
func (b *Backend) Generation(ctx context.Context) (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return 0, types.ErrStoreDetached
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return readManifest(b.config.DataDir)
}

// sync reloads the tables when another process has committed a newer
// generation. The caller holds b.mu.
func (b *Backend) sync(ctx context.Context) error {
	gen, err := readManifest(b.config.DataDir)
	if err != nil || gen == b.gen {
		return err
	}

	lock, err := lockDir(ctx, b.config.DataDir, false)
	if err != nil {
		return err
	}
	defer lock.unlock()

	if gen, err = readManifest(b.config.DataDir); err != nil || gen == b.gen {
		return err
	}
	if err := loadAllJSONL(b.db, genDir(b.config.DataDir, gen)); err != nil {
		return fmt.Errorf("loading generation %d: %w", gen, err)
	}
	b.gen = gen
	return nil
}

// Detach closes the SQLite connection. After Detach, all operations return
// ErrStoreDetached. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}
	b.attached = false
	return nil
}

// DataDir returns the directory the backend is attached to.
func (b *Backend) DataDir() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.config.DataDir
}
