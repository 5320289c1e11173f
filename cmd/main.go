/**
 * @description
 * This is the main entry point for the wallet-service. It initializes all
 * components of the service: configuration, the PostgreSQL connection pool,
 * the Redis client, the settlement queue, the Paystack client, repositories,
 * the application services, and the HTTP server, then wires everything
 * together and starts the service.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: For HTTP routing (via internal/api).
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/redis/go-redis/v9: Settlement job deduplication keys.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages.
 * - pkg/paystackclient, pkg/settlementqueue: External service clients.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/payvault/wallet-service/internal/api"
	"github.com/payvault/wallet-service/internal/app"
	"github.com/payvault/wallet-service/internal/config"
	"github.com/payvault/wallet-service/internal/store"
	"github.com/payvault/wallet-service/pkg/paystackclient"
	"github.com/payvault/wallet-service/pkg/settlementqueue"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.WebhookSecret) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"webhook secret must be configured\" env=\"WEBHOOK_SECRET or PAYSTACK_SECRET_KEY\"")
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"jwt secret must be configured\" env=JWT_SECRET")
	}

	log.Printf("level=info component=bootstrap msg=\"starting wallet-service\" port=%s", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}
	poolConfig.MaxConns = 50
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Redis backs settlement job deduplication. A missing Redis degrades to the
	// worker-side idempotency check alone rather than blocking startup.
	var redisClient *redis.Client
	if strings.TrimSpace(cfg.RedisURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"redis url missing; enqueue dedup disabled\" env=REDIS_URL")
	} else {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; enqueue dedup disabled\" err=%v", parseErr)
		} else {
			redisClient = redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
			if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis ping failed; enqueue dedup disabled\" err=%v", pingErr)
				redisClient.Close()
				redisClient = nil
			} else {
				defer redisClient.Close()
				log.Println("level=info component=bootstrap msg=\"redis connected\"")
			}
			cancelPing()
		}
	}

	policy := settlementqueue.RetryPolicy{
		MaxAttempts: cfg.SettlementMaxAttempts,
		Backoff: settlementqueue.ExponentialBackoff(
			time.Duration(cfg.SettlementBackoffSeconds)*time.Second,
			2*time.Minute,
		),
		JobTimeout: time.Duration(cfg.SettlementTimeoutSeconds) * time.Second,
	}

	var rdb redis.UniversalClient
	if redisClient != nil {
		rdb = redisClient
	}
	queue, err := settlementqueue.New(cfg.RabbitMQURL, cfg.SettlementQueue, rdb, policy)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"settlement queue init failed\" err=%v", err)
	}
	defer queue.Close()
	log.Println("level=info component=bootstrap msg=\"settlement queue connected\"")

	paystackClient := paystackclient.NewClient(cfg.PaystackBaseURL, cfg.PaystackSecretKey)

	repository := store.NewPostgresRepository(dbpool)

	callbackURL := strings.TrimRight(cfg.FrontendDomain, "/") + "/dashboard"
	walletService := app.NewService(repository, paystackClient, cfg.MinFundingAmount, callbackURL)
	reconciler := app.NewReconciler(repository, queue)
	worker := app.NewSettlementWorker(repository)

	if err := queue.Consume(worker.Handle); err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"settlement consumer start failed\" err=%v", err)
	}
	log.Println("level=info component=bootstrap msg=\"settlement worker consuming\"")

	walletHandlers := api.NewWalletHandlers(walletService)
	webhookHandler := api.NewWebhookHandler(reconciler, cfg.WebhookSecret)
	router := api.Routes(walletHandlers, webhookHandler, cfg.JWTSecret)

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
