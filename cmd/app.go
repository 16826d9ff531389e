package cmd

import (
	"context"
	"errors"
	"fmt"

	"raffler/api"
	"raffler/application"
	"raffler/config"
	"raffler/database"
	"raffler/domain/entities"
	"raffler/domain/interfaces"
	"raffler/domain/services"
	"raffler/events"
	"raffler/infrastructure"
	"raffler/infrastructure/cache"
	"raffler/infrastructure/chain"
	"raffler/infrastructure/observability"
	"raffler/repository"

	"github.com/benbjohnson/clock"
	log "github.com/sirupsen/logrus"
)

// app holds everything wired from config. Closers run in reverse order.
type app struct {
	cfg          *config.Config
	db           *database.DB
	bus          *events.Bus
	engine       *application.RaffleEngine
	chain        *chain.Client
	nats         *infrastructure.NATSClient
	metrics      *observability.MetricsProvider
	receipts     *cache.ReceiptCache
	reservations *cache.HashReservations
	clock        clock.Clock
	closers      []func()
}

// newApp connects to every configured dependency and builds the engine
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, clock: clock.New()}

	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.db = db
	a.closers = append(a.closers, db.Close)
	log.Info("Database connection established successfully")

	a.metrics = observability.NewMetricsProvider(cfg)
	if err := a.metrics.Initialize(ctx); err != nil {
		a.close()
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	a.closers = append(a.closers, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.metrics.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("Failed to shut down metrics provider")
		}
	})

	a.bus = events.NewBus()

	if cfg.NATSEnabled() {
		if err := a.connectNATS(ctx); err != nil {
			a.close()
			return nil, err
		}
	}

	var chainReader interfaces.ChainReader
	var transfers interfaces.TransferExecutor
	if cfg.ChainEnabled() {
		client, err := chain.NewClient(chain.Config{
			Host: cfg.ChainRPCHost,
			User: cfg.ChainRPCUser,
			Pass: cfg.ChainRPCPass,
		}, a.metrics)
		if err != nil {
			a.close()
			return nil, err
		}
		a.chain = client
		chainReader = client
		transfers = client
	} else {
		log.Warn("No chain RPC configured, entry verification, verifiable draws and payouts are unavailable")
	}

	a.receipts = cache.NewReceiptCache(cfg.TxCacheTTL, a.clock)
	a.reservations = cache.NewHashReservations(cfg.RPCTimeout*2, a.clock)

	randomness := services.RandomnessSources{
		Opaque: services.NewOpaqueRandomnessSource(),
	}
	if chainReader != nil {
		randomness.Verifiable = services.NewVerifiableRandomnessSource(chainReader, cfg.FinalityDepth, cfg.RPCTimeout)
	}

	a.engine = application.NewRaffleEngine(
		repository.NewUnitOfWorkFactory(db, a.bus),
		application.EngineDeps{
			Chain:        chainReader,
			Transfers:    transfers,
			Randomness:   randomness,
			Receipts:     a.receipts,
			Reservations: a.reservations,
			Metrics:      a.metrics,
		},
		application.EngineConfig{
			PlatformAddress:       cfg.PlatformAddress,
			MinConfirmations:      cfg.MinConfirmations,
			RPCTimeout:            cfg.RPCTimeout,
			PayoutTimeout:         cfg.PayoutTimeout,
			PayoutConcurrency:     cfg.PayoutConcurrency,
			DefaultRandomnessMode: entities.RandomnessMode(cfg.DefaultRandomnessMode),
		},
		a.clock,
	)
	return a, nil
}

func (a *app) connectNATS(ctx context.Context) error {
	log.WithField("servers", a.cfg.NATSServers).Info("Connecting to NATS...")
	client := infrastructure.NewNATSClient(a.cfg.NATSServers)
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	a.closers = append(a.closers, func() {
		if err := client.Close(); err != nil {
			log.WithError(err).Error("Failed to close NATS connection")
		}
	})
	if err := client.EnsureStream(infrastructure.EventStreamName, infrastructure.AllSubjects()); err != nil {
		return fmt.Errorf("failed to ensure event stream: %w", err)
	}
	infrastructure.NewNATSEventPublisher(client, a.clock).Attach(a.bus)
	a.nats = client
	log.Info("Forwarding raffle events to NATS")
	return nil
}

// healthChecks returns a check per connected dependency
func (a *app) healthChecks() map[string]api.HealthChecker {
	checks := map[string]api.HealthChecker{
		"database": func(ctx context.Context) error { return a.db.Ping(ctx) },
	}
	if a.chain != nil {
		checks["chain"] = func(ctx context.Context) error {
			_, err := a.chain.LatestBlock(ctx)
			return err
		}
	}
	if a.nats != nil {
		checks["nats"] = func(ctx context.Context) error {
			if !a.nats.IsConnected() {
				return errors.New("not connected")
			}
			return nil
		}
	}
	return checks
}

func (a *app) close() {
	// Let in-flight event handlers finish before their sinks go away
	if a.bus != nil {
		a.bus.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
