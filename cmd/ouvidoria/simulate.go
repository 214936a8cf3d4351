package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/harunnryd/ouvidoria/internal/adapter"
	"github.com/harunnryd/ouvidoria/internal/config"
	"github.com/harunnryd/ouvidoria/internal/idempotency"
	"github.com/harunnryd/ouvidoria/internal/ingress"
	"github.com/harunnryd/ouvidoria/internal/intake"
	"github.com/harunnryd/ouvidoria/internal/intel"
	"github.com/harunnryd/ouvidoria/internal/report"
	"github.com/harunnryd/ouvidoria/internal/session"
	"github.com/harunnryd/ouvidoria/internal/store"

	"github.com/spf13/cobra"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Talk to the bot in the terminal",
	Long:  `Runs the full conversation engine against an in-memory session store, reading messages from stdin. Reports go to an in-memory database unless --persist is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("config not loaded")
		}
		sender, _ := cmd.Flags().GetString("sender")
		persist, _ := cmd.Flags().GetBool("persist")
		useIntel, _ := cmd.Flags().GetBool("intel")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runSimulation(ctx, cfg, simulationOptions{
			sender:   sender,
			persist:  persist,
			useIntel: useIntel,
			in:       cmd.InOrStdin(),
			out:      cmd.OutOrStdout(),
		})
	},
}

type simulationOptions struct {
	sender   string
	persist  bool
	useIntel bool
	in       io.Reader
	out      io.Writer
}

func runSimulation(ctx context.Context, cfg *config.Config, opts simulationOptions) error {
	sessionTimeout, err := config.DurationOrDefault(cfg.Intake.SessionTimeout, config.DefaultIntakeSessionTimeout)
	if err != nil {
		return err
	}
	engineCfg, err := intake.ConfigFrom(cfg.Intake)
	if err != nil {
		return err
	}

	dbPath := ":memory:"
	if opts.persist {
		dbPath = cfg.Records.Path
	}
	db, err := store.OpenSQLite(ctx, dbPath, report.Schema(cfg.Records.Table))
	if err != nil {
		return fmt.Errorf("open records store: %w", err)
	}
	defer db.Close()

	var svc intel.Service = intel.Noop{}
	if opts.useIntel {
		svc, err = intel.FromConfig(cfg)
		if err != nil {
			return err
		}
	} else {
		engineCfg.CorrectText = false
		engineCfg.Analyze = false
	}

	sessions := session.NewMemoryStore(session.Options{Timeout: sessionTimeout})
	engine := intake.New(sessions, report.NewStoreRepository(db, cfg.Records.Table), svc, engineCfg)

	ing := ingress.NewIngress(engine, idempotency.NewMemoryStore(), ingress.RuntimeConfig{}, nil)
	cli := adapter.NewCLIAdapter(opts.in, opts.out, opts.sender, ing.HandleMessage)
	ing.RegisterOutput(cli)

	return cli.Start(ctx)
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().String("sender", "+5500000000000", "sender id to simulate")
	simulateCmd.Flags().Bool("persist", false, "write reports to records.path instead of memory")
	simulateCmd.Flags().Bool("intel", false, "call the configured models for correction and analysis")
}
