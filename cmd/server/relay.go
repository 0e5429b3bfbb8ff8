package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/trading-storefront/internal/config"
	"github.com/iliyamo/trading-storefront/internal/logging"
	"github.com/iliyamo/trading-storefront/internal/queue"
)

func relayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "relay",
		Short: "Forward order.completed events to the automation webhook",
		Long: "Consumes the order event queue and posts each event to N8N_WEBHOOK_URL. " +
			"Without a webhook URL events are appended to ORDER_EVENTS_LOG.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg := config.LoadRelay()
			log := logging.Init(logging.Config{Env: cfg.Env, Level: cfg.LogLevel, ServiceName: "storefront-relay"})
			defer func() { _ = logging.Sync() }()

			var sink queue.Sink = queue.FileSink{Path: cfg.Queue.LogFile}
			if cfg.Queue.WebhookURL != "" {
				sink = queue.NewWebhookSink(cfg.Queue.WebhookURL)
			}
			r := &queue.Relay{URL: cfg.Queue.URL, Queue: cfg.Queue.Queue, Sink: sink, Log: log.Named("relay")}
			log.Info("relay started", zap.String("queue", cfg.Queue.Queue), zap.Bool("webhook", cfg.Queue.WebhookURL != ""))
			if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
