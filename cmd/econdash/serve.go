package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"EconDash/internal/dashboard"
	"EconDash/internal/notifier"
	"EconDash/internal/scheduler"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard, scheduled refreshes and Telegram bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = cfg.Server.Addr
		}
		refreshOnStart, _ := cmd.Flags().GetBool("refresh-on-start")

		// Context for graceful shutdown
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a := newApp(cfg)
		defer a.Close()

		// Telegram is optional; a nil Sender disables digests.
		var (
			sender scheduler.Sender
			tn     *notifier.TelegramNotifier
		)
		if cfg.TelegramEnabled() {
			tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
			sender = tn
		}

		sched := scheduler.NewScheduler(ctx, a.acc, cfg.Series, a.markets, sender, a.recorder)
		if err := sched.RegisterAll(cfg.Schedule.RefreshCron, cfg.Schedule.IndicesCron); err != nil {
			return fmt.Errorf("register cron tasks: %w", err)
		}
		sched.Start()
		defer sched.Stop()

		if tn != nil {
			go tn.StartPolling(ctx, sched.HandleCommand)
			log.Println("[INFO] Telegram polling started")
		}
		if refreshOnStart || os.Getenv("RUN_ON_START") == "true" {
			log.Println("[INFO] refreshing all series on start")
			go sched.RefreshNow()
		}

		srv, err := dashboard.New(dashboard.Options{
			Accumulator: a.acc,
			Series:      cfg.Series,
			Markets:     a.markets,
			Recorder:    a.recorder,
			Metrics:     a.metrics,
			Version:     version,
		})
		if err != nil {
			return err
		}

		log.Println("[INFO] EconDash is running. Press Ctrl+C to stop.")
		if err := srv.ListenAndServe(ctx, addr); err != nil {
			return fmt.Errorf("dashboard: %w", err)
		}
		log.Println("[INFO] EconDash stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default: server.addr from config)")
	serveCmd.Flags().Bool("refresh-on-start", false, "refresh every series once at startup")
}
