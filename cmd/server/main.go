package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"examledger/internal/events"
	"examledger/internal/exam"
	exammetrics "examledger/internal/exam/metrics"
	"examledger/internal/payment"
	"examledger/internal/platform/config"
	"examledger/internal/platform/db"
	"examledger/internal/platform/httpserver"
	"examledger/internal/platform/logger"
	platformredis "examledger/internal/platform/redis"
	"examledger/internal/platform/token"
	"examledger/internal/registry"
	"examledger/internal/registry/cache"
	registrymetrics "examledger/internal/registry/metrics"
	httptransport "examledger/internal/transport/http"
	"examledger/pkg/domain"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal services.
func main() {
	cfg := config.FromEnv()
	log := logger.New(slog.LevelInfo)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	// The in-process ledgers start empty; genesis allocations fund the
	// accounts every value-moving operation draws on.
	native := payment.NewMemoryLedger()
	rail := payment.NewMemoryLedger()
	for addr, amount := range cfg.GenesisNative {
		native.Credit(domain.Address(addr), payment.Amount(amount))
	}
	for addr, amount := range cfg.GenesisToken {
		rail.Credit(domain.Address(addr), payment.Amount(amount))
	}

	store, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	var certCache *cache.CertificateCache
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		certCache = cache.New(redisClient.Client, config.CertificateCacheTTL)
	}

	var pub events.Publisher = events.NewMemorySink()
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			return err
		}
		defer kafka.Close()
		pub = kafka
	}

	template := exam.Template{
		Native:  native,
		Events:  pub,
		Metrics: exammetrics.New(),
		Logger:  log,
	}
	svc, err := registry.NewService(registry.Params{
		Owner:         domain.Address(cfg.OwnerAddress),
		CreationFee:   payment.Amount(cfg.CreationFee),
		CredentialURI: cfg.CredentialBaseURI,
		Native:        native,
		Rail:          rail,
		Deployer:      registry.NewTemplateDeployer(template),
		Store:         store,
		Cache:         certCache,
		Events:        pub,
		Metrics:       registrymetrics.New(),
		Logger:        log,
	})
	if err != nil {
		return err
	}

	tokens := token.NewManager(cfg.JWTSigningKey, 24*time.Hour)
	handler := httptransport.NewHandler(svc, tokens, log)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler))

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("starting examledger", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

func buildStore(ctx context.Context, cfg config.Server) (registry.Store, func(), error) {
	if cfg.DBDriver == "" {
		return registry.NewMemoryStore(), func() {}, nil
	}
	handle, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		return nil, nil, err
	}
	store, err := registry.NewSQLStore(ctx, handle)
	if err != nil {
		handle.Close()
		return nil, nil, err
	}
	return store, func() { handle.Close() }, nil
}
