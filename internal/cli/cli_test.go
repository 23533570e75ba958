package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/cofund/pkg/types"
)

// env is an isolated config and data directory pair.
type env struct {
	configDir string
	dataDir   string
}

func newEnv(t *testing.T) env {
	t.Helper()
	for _, k := range []string{"COFUND_IDENTITY", "COFUND_BACKEND", "COFUND_DATA_DIR", "COFUND_CONFIG_DIR", "COFUND_LEDGER_ACCOUNT", "COFUND_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	root := t.TempDir()
	return env{configDir: filepath.Join(root, "config"), dataDir: filepath.Join(root, "data")}
}

// run executes the CLI in-process and returns stdout.
func (e env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config-dir", e.configDir, "--data-dir", e.dataDir}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (e env) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	require.NoError(t, err, "cofund %s", strings.Join(args, " "))
	return out
}

func TestVersion(t *testing.T) {
	out := newEnv(t).mustRun(t, "version")
	assert.Contains(t, out, "cofund v")
	assert.Contains(t, out, "github.com/mesh-intelligence/cofund")
}

func TestInitWritesConfig(t *testing.T) {
	e := newEnv(t)
	out := e.mustRun(t, "init", "--as", "admin")
	assert.Contains(t, out, "administrator admin")

	data, err := os.ReadFile(filepath.Join(e.configDir, "config.yaml"))
	require.NoError(t, err)
	var cfg configFile
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, types.BackendSQLite, cfg.Backend)
	assert.Equal(t, "admin", cfg.Identity)
	assert.Equal(t, e.dataDir, cfg.DataDir)

	for _, name := range []string{"ledger.jsonl", "events.jsonl"} {
		_, err := os.Stat(filepath.Join(e.dataDir, name))
		assert.NoError(t, err, name)
	}

	_, err = e.run(t, "init", "--as", "admin")
	assert.ErrorIs(t, err, types.ErrAlreadyInitialized)
	assert.Equal(t, exitUserError, exitCode(err))
}

func TestInitRequiresIdentity(t *testing.T) {
	_, err := newEnv(t).run(t, "init")
	assert.ErrorIs(t, err, types.ErrInvalidIdentity)
	assert.Equal(t, exitUserError, exitCode(err))
}

func TestCampaignThroughCLI(t *testing.T) {
	e := newEnv(t)
	e.mustRun(t, "init", "--as", "admin")

	users := []string{"u1", "u2", "u3", "u4", "u5"}
	for _, u := range users {
		e.mustRun(t, "faucet", u, "1")
	}

	// Identity defaults to the one init wrote, so contributors pass --as.
	_, err := e.run(t, "fund", "0.0009", "--as", "u1")
	assert.ErrorIs(t, err, types.ErrBelowMinimum)

	e.mustRun(t, "fund", "0.001", "--as", "u1")
	e.mustRun(t, "fund", "0.001", "--as", "u2")

	_, err = e.run(t, "withdraw")
	assert.ErrorIs(t, err, types.ErrGoalNotMet)

	out := e.mustRun(t, "upgrade")
	assert.Contains(t, out, "revision 2")

	e.mustRun(t, "fund", "0.0005", "--as", "u3")
	out = e.mustRun(t, "refund", "--as", "u3")
	assert.Contains(t, out, "Refunded 0.0005 to u3")

	_, err = e.run(t, "refund", "--as", "u3")
	assert.ErrorIs(t, err, types.ErrNothingToRefund)

	for _, u := range users[2:] {
		e.mustRun(t, "fund", "0.0005", "--as", u)
	}

	var st types.Status
	require.NoError(t, json.Unmarshal([]byte(e.mustRun(t, "status", "--json")), &st))
	assert.Equal(t, types.Revision2, st.Revision)
	assert.Equal(t, 5, st.ContributorCount)
	assert.True(t, st.GoalMet)

	out = e.mustRun(t, "withdraw")
	assert.Contains(t, out, "Withdrew 0.0035 to admin")

	out = e.mustRun(t, "balance", "admin")
	assert.Contains(t, out, "admin: 0.0035")

	out = e.mustRun(t, "events")
	assert.Contains(t, out, "migrated")
	assert.Contains(t, out, "withdrawn")
}

func TestStatusText(t *testing.T) {
	e := newEnv(t)
	e.mustRun(t, "init", "--as", "admin")

	out := e.mustRun(t, "status")
	assert.Contains(t, out, "contribution-ledger/v1")
	assert.Contains(t, out, "0/5")
	assert.Contains(t, out, "n/a")
}

func TestUnknownBackendIsSystemError(t *testing.T) {
	e := newEnv(t)
	t.Setenv("COFUND_BACKEND", "etcd")

	_, err := e.run(t, "status")
	assert.ErrorIs(t, err, types.ErrBackendUnknown)
	assert.Equal(t, exitSysError, exitCode(err))
}

func TestUpgradeUnknownLogic(t *testing.T) {
	e := newEnv(t)
	e.mustRun(t, "init", "--as", "admin")

	_, err := e.run(t, "upgrade", "refundable-ledger/v7")
	assert.ErrorIs(t, err, types.ErrUnknownLogic)
}

func TestFundRejectsBadAmount(t *testing.T) {
	e := newEnv(t)
	e.mustRun(t, "init", "--as", "admin")

	_, err := e.run(t, "fund", "a lot", "--as", "u1")
	assert.ErrorIs(t, err, types.ErrInvalidAmount)
	assert.Equal(t, exitUserError, exitCode(err))
}
