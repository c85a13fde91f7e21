package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"selns/internal/authtoken"
	"selns/internal/events"
	"selns/internal/events/kafka"
	"selns/internal/funds"
	fundshandler "selns/internal/funds/handler"
	"selns/internal/platform/config"
	"selns/internal/platform/httpserver"
	"selns/internal/platform/logger"
	"selns/internal/platform/metrics"
	platformredis "selns/internal/platform/redis"
	"selns/internal/registrar"
	registrarhandler "selns/internal/registrar/handler"
	"selns/internal/registration"
	"selns/internal/registration/commitstore"
	registrationhandler "selns/internal/registration/handler"
	regmetrics "selns/internal/registration/metrics"
	"selns/internal/registry"
	registryhandler "selns/internal/registry/handler"
	"selns/internal/resolver"
	resolverhandler "selns/internal/resolver/handler"
	"selns/internal/reverse"
	"selns/internal/state"
	httptransport "selns/internal/transport/http"
	"selns/pkg/clock"
	"selns/pkg/domain"
)

// registrarPrincipal is the system principal that owns the TLD node and
// signs lease-driven registry writes.
const registrarPrincipal domain.Principal = "0x0000000000000000000000000000000000000001"

func main() {
	cfg := config.FromEnv()
	log := logger.New(logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	health := map[string]httptransport.HealthChecker{}

	// State store: postgres when configured, in-process memory otherwise.
	var store state.Store
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("failed to open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := state.Migrate(ctx, db); err != nil {
			log.Error("failed to migrate state tables", "error", err)
			os.Exit(1)
		}
		store = state.NewPostgres(db)
		health["postgres"] = db.Ping
		log.Info("using postgres state store")
	} else {
		store = state.NewMemory()
		log.Info("using in-memory state store")
	}

	if err := state.SeedRoots(ctx, store, registrar.TLD, cfg.AdminPrincipal, registrarPrincipal); err != nil {
		log.Error("failed to seed registry roots", "error", err)
		os.Exit(1)
	}

	// Commitment store: redis when configured, memory otherwise.
	var commits commitstore.Store
	redisClient, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		// TTL is housekeeping only; the reveal window is enforced against
		// the injected clock.
		commits = commitstore.NewRedis(redisClient.Client, 2*cfg.Registration.MaxCommitmentAge)
		health["redis"] = func() error { return redisClient.Health(ctx) }
		log.Info("using redis commitment store")
	} else {
		commits = commitstore.NewMemory()
		log.Info("using in-memory commitment store")
	}

	// Event publisher: kafka when brokers are configured.
	var publisher events.Publisher = events.Discard{}
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := kafka.New(ctx, cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			log.Error("failed to connect to kafka", "error", err)
			os.Exit(1)
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = kp.Close(closeCtx)
		}()
		publisher = kp
		log.Info("publishing events to kafka", "topic", cfg.KafkaTopic)
	}

	clk := clock.NewSystem()
	httpMetrics := metrics.New()
	regCounters := regmetrics.New()

	registrySvc := registry.New(store, clk,
		registry.WithLogger(log),
		registry.WithEvents(publisher),
	)
	registrarSvc := registrar.New(store, clk, registrarPrincipal,
		registrar.WithLogger(log),
		registrar.WithEvents(publisher),
		registrar.WithGracePeriod(cfg.GracePeriod),
		registrar.WithRenewPolicy(cfg.RenewPolicy),
	)
	registrationSvc := registration.New(store, commits, registrarSvc, clk, cfg.AdminPrincipal, cfg.TreasuryPrincipal,
		registration.WithConfig(cfg.Registration),
		registration.WithLogger(log),
		registration.WithEvents(publisher),
		registration.WithMetrics(regCounters),
	)
	resolverSvc := resolver.New(store, log)
	reverseSvc := reverse.New(store, log)
	fundsSvc := funds.New(store, log)

	tokens := authtoken.New(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)

	router := httptransport.NewRouter(log, httpMetrics, httptransport.Handlers{
		Registration: registrationhandler.New(registrationSvc, log, httpMetrics, tokens, cfg.AdminToken, cfg.AdminPrincipal),
		Registry:     registryhandler.New(registrySvc, log, tokens),
		Registrar:    registrarhandler.New(registrarSvc, log, tokens),
		Resolver:     resolverhandler.New(resolverSvc, reverseSvc, log, tokens),
		Funds:        fundshandler.New(fundsSvc, log, tokens),
	}, health)

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting selns", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
