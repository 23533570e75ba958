// Package cli implements the cofund command-line interface.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/cofund/internal/logging"
	"github.com/mesh-intelligence/cofund/internal/paths"
	"github.com/mesh-intelligence/cofund/pkg/cofund"
	"github.com/mesh-intelligence/cofund/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// app holds global flag values and the state every subcommand shares.
type app struct {
	configDir string
	dataDir   string
	as        string
	logLevel  string
	jsonMode  bool

	cfg *viper.Viper
	log zerolog.Logger
}

// NewRootCmd creates the top-level "cofund" command with global flags and all
// subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{log: zerolog.Nop()}

	root := &cobra.Command{
		Use:     "cofund",
		Short:   "An upgradeable crowdfunding ledger",
		Long:    "cofund records contributions toward a funding goal, lets the administrator\nwithdraw once the goal is met, and upgrades in place to a refundable revision.",
		Version: cofund.Version,
		// Do not print usage on errors returned by subcommands.
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	pf.StringVar(&a.dataDir, "data-dir", "", "data directory (default: platform data dir)")
	pf.StringVar(&a.as, "as", "", "identity to act as (default: identity from config.yaml)")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&a.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(a),
		newFundCmd(a),
		newWithdrawCmd(a),
		newRefundCmd(a),
		newToggleRefundsCmd(a),
		newStatusCmd(a),
		newUpgradeCmd(a),
		newFaucetCmd(a),
		newBalanceCmd(a),
		newEventsCmd(a),
		newServeCmd(a),
	)
	return root
}

// Execute loads .env, runs the root command and returns the process exit code.
func Execute() int {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: loading .env: %s\n", err)
	}

	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		return exitCode(err)
	}
	return exitSuccess
}

// setup resolves the config directory, loads config.yaml and builds the
// logger.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	dir, err := paths.ResolveConfigDir(a.configDir)
	if err != nil {
		return sysErr(fmt.Errorf("resolve config dir: %w", err))
	}
	a.configDir = dir

	cfg, err := loadConfig(dir)
	if err != nil {
		return sysErr(err)
	}
	a.cfg = cfg

	level := a.logLevel
	if level == "" {
		level = cfg.GetString(keyLogLevel)
	}
	log, err := logging.NewAuto(cmd.ErrOrStderr(), level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	a.log = log
	return nil
}

// caller returns the identity the command acts as.
func (a *app) caller() (types.Identity, error) {
	id := types.Identity(a.as)
	if id == "" {
		id = types.Identity(a.cfg.GetString(keyIdentity))
	}
	if id == "" {
		return "", fmt.Errorf("%w: pass --as or set identity in %s", types.ErrInvalidIdentity, paths.ConfigFileName)
	}
	if err := id.Validate(); err != nil {
		return "", err
	}
	return id, nil
}

// cliError carries an explicit exit code.
type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) Unwrap() error { return e.err }

// sysErr marks err as a storage or configuration failure.
func sysErr(err error) error {
	if err == nil {
		return nil
	}
	return &cliError{code: exitSysError, err: err}
}

// exitCode maps an error to the process exit code. Anything not marked as a
// system error is the user's to fix.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	return exitUserError
}
