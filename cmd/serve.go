package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"raffler/api"
	"raffler/application"
	"raffler/config"
	"raffler/infrastructure"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the admin API and the draw worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, config.Get())
		},
	}
}

// serve runs until ctx is cancelled
func serve(ctx context.Context, cfg *config.Config) error {
	log.WithField("environment", cfg.Environment).Info("Starting raffler...")

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if cfg.DiscordEnabled() {
		session, err := infrastructure.NewDiscordSession(cfg.DiscordToken)
		if err != nil {
			return err
		}
		infrastructure.NewDiscordResultPoster(session, cfg.DiscordChannelID).Attach(a.bus)
		log.WithField("channel_id", cfg.DiscordChannelID).Info("Announcing draw results on Discord")
	}

	worker := application.NewDrawWorker(a.engine, cfg.DrawWorkerInterval, cfg.AutoPayout, a.clock)
	stopWorker := worker.Start(ctx)
	defer stopWorker()

	stopJanitor := a.startCacheJanitor(ctx, cfg.TxCacheTTL)
	defer stopJanitor()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewServer(a.engine, registry, a.healthChecks()).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("Admin API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down raffler...")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("admin API failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Error shutting down admin API")
	}
	return nil
}

// startCacheJanitor drops expired receipts and reservations every interval
func (a *app) startCacheJanitor(ctx context.Context, interval time.Duration) func() {
	if interval <= 0 {
		return func() {}
	}
	ticker := a.clock.Ticker(interval)
	done := make(chan struct{})
	stopChan := make(chan struct{})

	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stopChan:
				return
			case <-ticker.C:
				receipts := a.receipts.Purge()
				reservations := a.reservations.Purge()
				if receipts+reservations > 0 {
					log.WithFields(log.Fields{
						"receipts":     receipts,
						"reservations": reservations,
					}).Debug("Purged expired cache entries")
				}
			}
		}
	}()

	return func() {
		close(stopChan)
		<-done
	}
}
