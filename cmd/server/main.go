package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/nbylich/creditflow/internal/api"
	"github.com/nbylich/creditflow/internal/config"
	"github.com/nbylich/creditflow/internal/handler"
	"github.com/nbylich/creditflow/internal/infrastructure/kafka"
	"github.com/nbylich/creditflow/internal/infrastructure/redis"
	"github.com/nbylich/creditflow/internal/observability"
	"github.com/nbylich/creditflow/internal/payments"
	core "github.com/nbylich/creditflow/internal/repository/postgres"
	service "github.com/nbylich/creditflow/internal/services"
)

func main() {
	cfg := config.Load()

	shutdown, _ := observability.Setup("creditflow")
	defer shutdown(context.Background())

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer db.Close()

	userRepo := core.NewPostgresUserRepository(db)
	transactionRepo := core.NewPostgresTransactionRepository(db)
	redisClient, err := redis.NewClient(cfg.RedisAddr)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	kafkaProducer := kafka.NewProducer(cfg.KafkaBrokers)
	defer kafkaProducer.Close()

	// One provider client for the whole process; it holds no per-request
	// state and is shared by issuance and reconciliation.
	provider := payments.NewStripeProvider(cfg.StripeSecretKey, cfg.StripeWebhookSecret)

	paymentSvc := service.NewPaymentService(transactionRepo, userRepo, provider, redisClient, kafkaProducer, cfg.Currency, cfg.ProviderTimeout)
	userSvc := service.NewUserService(userRepo, redisClient, kafkaProducer, cfg.JWTSecret)

	h := handler.NewHandler(paymentSvc, userSvc)
	router := api.SetupRouter(h, redisClient, cfg.JWTSecret)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}
	go func() {
		log.Printf("Starting server on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}
	log.Println("Server stopped")
}
