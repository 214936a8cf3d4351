package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/harunnryd/ouvidoria/internal/adapter"
	"github.com/harunnryd/ouvidoria/internal/daemon"
	"github.com/harunnryd/ouvidoria/internal/daemon/components"
	"github.com/harunnryd/ouvidoria/internal/intake"
	"github.com/harunnryd/ouvidoria/internal/metrics"

	"github.com/spf13/cobra"
)

const whatsappPrefix = "whatsapp:"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the intake bot",
	Long:  `Starts the HTTP server and the enabled gateways (Twilio WhatsApp webhook, Telegram polling) and serves conversations until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("config not loaded")
		}
		if err := cfg.ValidateServing(); err != nil {
			return err
		}

		daemonMgr, err := daemon.NewDaemon(cfg)
		if err != nil {
			return fmt.Errorf("failed to create daemon manager: %w", err)
		}

		m := metrics.New()
		storeComp := components.NewStoreComponent(cfg)

		var ingressComp *components.IngressComponent
		eventHandler := func(ctx context.Context, msg adapter.Message) error {
			ing := ingressComp.GetIngress()
			if ing == nil {
				return fmt.Errorf("ingress not initialized")
			}
			return ing.HandleMessage(ctx, msg)
		}

		adapterMgr, err := adapter.NewRuntimeManager(cfg.Adapters, eventHandler, adapter.RuntimeAdapterOptions{
			PublicURL: cfg.Server.PublicURL,
		})
		if err != nil {
			return fmt.Errorf("failed to configure adapters: %w", err)
		}

		var notifier intake.Notifier
		if n := adapterMgr.Notifier(); n != nil {
			notifier = n
		}
		intakeComp := components.NewIntakeComponent(cfg, storeComp, notifier, m, nil)
		ingressComp = components.NewIngressComponent(storeComp, intakeComp, &cfg.Ingress, m, adapterMgr.OutputAdapters(), ownAddresses()...)
		adaptersComp := components.NewAdaptersComponent(adapterMgr)
		httpComp := components.NewHTTPServerComponent(daemonMgr, &cfg.Server, ingressComp, intakeComp, components.HTTPRoutes{
			Twilio:  adapterMgr.Twilio(),
			Metrics: m,
		})
		janitorComp := components.NewJanitorComponent(&cfg.Janitor, intakeComp, ingressComp)

		daemonMgr.AddComponent(storeComp)
		daemonMgr.AddComponent(intakeComp)
		daemonMgr.AddComponent(ingressComp)
		daemonMgr.AddComponent(adaptersComp)
		daemonMgr.AddComponent(httpComp)
		daemonMgr.AddComponent(janitorComp)

		slog.Info("Ouvidoria starting up...", "port", cfg.Server.Port, "data_path", cfg.Daemon.DataPath, "flow", cfg.Intake.Flow)
		err = daemonMgr.Start(context.Background())
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				slog.Info("Ouvidoria stopped gracefully")
				return nil
			}
			return fmt.Errorf("daemon failed: %w", err)
		}

		slog.Info("Ouvidoria stopped gracefully")
		return nil
	},
}

// ownAddresses are the bot's own sender ids; Twilio echoes outbound
// messages to the webhook in some sandbox setups.
func ownAddresses() []string {
	from := strings.TrimSpace(cfg.Adapters.Twilio.From)
	if !cfg.Adapters.Twilio.Enabled || from == "" {
		return nil
	}
	if strings.HasPrefix(from, whatsappPrefix) {
		return []string{from}
	}
	return []string{from, whatsappPrefix + from}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("daemon.data_path", "", "data directory (lock, sessions, processed message ids)")
	serveCmd.Flags().String("intake.flow", "", "conversation flow: full or short")
}
