package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/vnmchuo/rpc-quorum/config"
	"github.com/vnmchuo/rpc-quorum/internal/api"
	"github.com/vnmchuo/rpc-quorum/internal/auth"
	"github.com/vnmchuo/rpc-quorum/internal/client"
	"github.com/vnmchuo/rpc-quorum/internal/ethrpc"
	"github.com/vnmchuo/rpc-quorum/internal/registry"
	"github.com/vnmchuo/rpc-quorum/internal/rpccache"
	"github.com/vnmchuo/rpc-quorum/internal/seeder"
	"github.com/vnmchuo/rpc-quorum/internal/telemetry"
	"github.com/vnmchuo/rpc-quorum/internal/usage"
	"github.com/vnmchuo/rpc-quorum/internal/worker"
	"github.com/vnmchuo/rpc-quorum/pkg/ratelimit"
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// 2. Init telemetry
	shutdownTracer, err := telemetry.InitTracer("rpc-quorum", cfg)
	if err != nil {
		log.Fatalf("failed to init tracer: %v", err)
	}
	defer shutdownTracer()

	// 3. Connect PostgreSQL
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to connect postgres: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("failed to ping postgres: %v", err)
	}
	log.Println("PostgreSQL connected")

	// 4. Connect Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to ping redis: %v", err)
	}
	log.Println("Redis connected")

	// 5. Build the provider registry: built-ins, then any rows the
	// operator added to the providers table, then env overrides.
	network := ethrpc.Network(cfg.EthNetwork)
	reg := registry.Default()

	providerStore := registry.NewPostgresStore(pool)
	configs, err := providerStore.ListActive(ctx)
	if err != nil {
		log.Printf("providers table not loaded, using built-ins: %v", err)
	} else if err := registry.Apply(reg, configs); err != nil {
		log.Fatalf("failed to apply provider configs: %v", err)
	}
	for name, url := range cfg.ProviderOverrides {
		if err := reg.Register(network, ethrpc.Provider(name), ethrpc.Endpoint{URL: url}); err != nil {
			log.Fatalf("failed to register provider override %q: %v", name, err)
		}
	}

	// 6. Init the consensus RPC client
	transport := ethrpc.NewHTTPTransport(reg, nil)
	var clientOpts []client.Option
	if cfg.DebugRPC {
		clientOpts = append(clientOpts, client.WithDebugLogging())
	}
	rpc, err := client.New(network, reg, transport, clientOpts...)
	if err != nil {
		log.Fatalf("failed to init rpc client: %v", err)
	}
	log.Printf("Consensus client ready: network=%s providers=%v", network, rpc.Providers())

	// 7. Init auth
	authStore := auth.NewPostgresStore(pool)
	authMiddleware := auth.NewMiddleware(authStore, rdb)

	// 8. Init usage accounting
	usageStore := usage.NewPostgresStore(pool)

	// 9. Init rate limiter and result cache
	limiter := ratelimit.NewLimiter(rdb, cfg.DefaultRateLimitRPM)
	cache := rpccache.New(rdb, 30*time.Second)

	// 10. Start the head poller
	pollerCtx, stopPoller := context.WithCancel(ctx)
	defer stopPoller()
	poller := worker.NewHeadPoller(rpc, cfg.HeadPollInterval)
	go poller.Run(pollerCtx)

	// 11. Init handler
	tracer := otel.GetTracerProvider().Tracer("rpc-quorum")
	handler := api.NewHandler(rpc, usageStore, limiter, cache, poller, tracer)

	// 12. Seed test API key if RUN_SEED=true
	if os.Getenv("RUN_SEED") == "true" {
		seeder.SeedTestAPIKey(ctx, authStore)
	}

	// 13. Init Chi router
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	// Public routes
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"rpc-quorum"}`))
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/v1/logs", handler.HandleGetLogs)
		r.Get("/v1/blocks/{spec}", handler.HandleGetBlock)
		r.Get("/v1/receipts/{hash}", handler.HandleGetReceipt)
		r.Get("/v1/fees", handler.HandleFeeHistory)
		r.Post("/v1/transactions", handler.HandleSendTransaction)
		r.Get("/v1/accounts/{address}/nonce", handler.HandleGetNonce)
		r.Get("/v1/head", handler.HandleHead)
		r.Get("/v1/usage", handler.HandleUsage)
	})

	// 14. Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("rpc-quorum gateway starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down gracefully...")
	stopPoller()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
