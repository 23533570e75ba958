package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/cofund/internal/logging"
	"github.com/mesh-intelligence/cofund/internal/metrics"
	"github.com/mesh-intelligence/cofund/internal/paths"
	"github.com/mesh-intelligence/cofund/internal/server"
	"github.com/mesh-intelligence/cofund/pkg/cofund"
	"github.com/mesh-intelligence/cofund/pkg/types"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the cofund version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "cofund v%s\nmodule: %s\n", cofund.Version, cofund.ModulePath)
			return nil
		},
	}
}

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write config.yaml and initialize the ledger",
		Long:  "Create the configuration directory and config.yaml if missing, then\ninitialize the ledger with the caller as administrator.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := a.caller()
			if err != nil {
				return err
			}
			storeCfg, err := a.storeConfig()
			if err != nil {
				return sysErr(err)
			}

			if err := os.MkdirAll(a.configDir, 0o755); err != nil {
				return sysErr(fmt.Errorf("create config directory: %w", err))
			}
			if _, err := writeConfigIfMissing(paths.ConfigFile(a.configDir), configFile{
				Backend:  storeCfg.Backend,
				DataDir:  storeCfg.DataDir,
				Identity: caller.String(),
				LogLevel: logging.DefaultLevel,
			}); err != nil {
				return sysErr(err)
			}

			return a.withLedger(cmd.Context(), func(s *session) error {
				if err := s.engine.Initialize(cmd.Context(), caller); err != nil {
					return err
				}
				return a.emit(cmd.OutOrStdout(),
					map[string]any{"administrator": caller, "data_dir": storeCfg.DataDir},
					fmt.Sprintf("Ledger initialized in %s with administrator %s", storeCfg.DataDir, caller))
			})
		},
	}
}

func newFundCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fund <amount>",
		Short: "Contribute value to the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := a.caller()
			if err != nil {
				return err
			}
			amount, err := types.ParseAmount(args[0])
			if err != nil {
				return fmt.Errorf("amount %q: %w", args[0], err)
			}
			return a.withLedger(cmd.Context(), func(s *session) error {
				if err := s.engine.Contribute(cmd.Context(), caller, amount); err != nil {
					return err
				}
				return a.emit(cmd.OutOrStdout(),
					map[string]any{"contributor": caller, "amount": amount.String()},
					fmt.Sprintf("%s contributed %s", caller, amount))
			})
		},
	}
}

func newWithdrawCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw",
		Short: "Send the custody balance to the administrator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := a.caller()
			if err != nil {
				return err
			}
			return a.withLedger(cmd.Context(), func(s *session) error {
				amount, err := s.engine.Withdraw(cmd.Context(), caller)
				if err != nil {
					return err
				}
				return a.emit(cmd.OutOrStdout(),
					map[string]any{"administrator": caller, "amount": amount.String()},
					fmt.Sprintf("Withdrew %s to %s", amount, caller))
			})
		},
	}
}

func newRefundCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refund",
		Short: "Reclaim value contributed under the refundable revision",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := a.caller()
			if err != nil {
				return err
			}
			return a.withLedger(cmd.Context(), func(s *session) error {
				amount, err := s.engine.Refund(cmd.Context(), caller)
				if err != nil {
					return err
				}
				return a.emit(cmd.OutOrStdout(),
					map[string]any{"contributor": caller, "amount": amount.String()},
					fmt.Sprintf("Refunded %s to %s", amount, caller))
			})
		},
	}
}

func newToggleRefundsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle-refunds",
		Short: "Open or close the refund path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := a.caller()
			if err != nil {
				return err
			}
			return a.withLedger(cmd.Context(), func(s *session) error {
				enabled, err := s.engine.ToggleRefunds(cmd.Context(), caller)
				if err != nil {
					return err
				}
				state := "disabled"
				if enabled {
					state = "enabled"
				}
				return a.emit(cmd.OutOrStdout(),
					map[string]any{"refunds_enabled": enabled},
					"Refunds "+state)
			})
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the ledger status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLedger(cmd.Context(), func(s *session) error {
				st, err := s.engine.Status(cmd.Context())
				if err != nil {
					return err
				}
				return a.emit(cmd.OutOrStdout(), st, renderStatus(st))
			})
		},
	}
}

func newUpgradeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade [logic-ref]",
		Short: "Repoint the ledger at new logic and run its migration",
		Long:  fmt.Sprintf("Authorize, repoint and migrate in one call. logic-ref defaults to %s.", types.LogicRefundableV2),
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := a.caller()
			if err != nil {
				return err
			}
			logic := types.LogicRefundableV2
			if len(args) == 1 {
				logic = args[0]
			}
			return a.withLedger(cmd.Context(), func(s *session) error {
				if err := s.engine.Upgrade(cmd.Context(), caller, logic); err != nil {
					return err
				}
				rev, err := s.engine.Revision(cmd.Context())
				if err != nil {
					return err
				}
				return a.emit(cmd.OutOrStdout(),
					map[string]any{"revision": rev, "logic": logic},
					fmt.Sprintf("Upgraded to revision %d (%s)", rev, logic))
			})
		},
	}
}

func newFaucetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "faucet <identity> <amount>",
		Short: "Credit a host account (development only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := types.Identity(args[0])
			amount, err := types.ParseAmount(args[1])
			if err != nil {
				return fmt.Errorf("amount %q: %w", args[1], err)
			}
			return a.withLedger(cmd.Context(), func(s *session) error {
				if err := s.engine.Credit(cmd.Context(), id, amount); err != nil {
					return err
				}
				bal, err := s.engine.AccountBalance(cmd.Context(), id)
				if err != nil {
					return err
				}
				return a.emit(cmd.OutOrStdout(),
					map[string]any{"identity": id, "balance": bal.String()},
					fmt.Sprintf("Credited %s to %s (balance %s)", amount, id, bal))
			})
		},
	}
}

func newBalanceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "balance [identity]",
		Short: "Show a host account balance",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id types.Identity
			if len(args) == 1 {
				id = types.Identity(args[0])
			} else {
				caller, err := a.caller()
				if err != nil {
					return err
				}
				id = caller
			}
			return a.withLedger(cmd.Context(), func(s *session) error {
				bal, err := s.engine.AccountBalance(cmd.Context(), id)
				if err != nil {
					return err
				}
				return a.emit(cmd.OutOrStdout(),
					map[string]any{"identity": id, "balance": bal.String()},
					fmt.Sprintf("%s: %s", id, bal))
			})
		},
	}
}

func newEventsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "List the committed event log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLedger(cmd.Context(), func(s *session) error {
				events, err := s.store.Events(cmd.Context())
				if err != nil {
					return sysErr(err)
				}
				if a.jsonMode {
					return a.emit(cmd.OutOrStdout(), events, "")
				}
				for _, e := range events {
					fmt.Fprintln(cmd.OutOrStdout(), renderEvent(e))
				}
				return nil
			})
		},
	}
}

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve status, contributors, events and metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.GetString(keyListenAddr)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sink := metrics.NewSink()
			s, err := a.open(ctx, sink)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := sink.Refresh(ctx, s.engine); err != nil {
				return sysErr(fmt.Errorf("serve: reading ledger: %w", err))
			}

			srv := server.New(s.engine, s.store,
				server.WithMetrics(sink.HandlerFor(s.engine)),
				server.WithLogger(logging.Component(a.log, "http")),
			)
			if err := srv.ListenAndServe(ctx, addr); err != nil {
				return sysErr(fmt.Errorf("serve: %w", err))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: listen_addr from config.yaml)")
	return cmd
}
