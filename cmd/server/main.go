package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Leeman92/symfony-headless-ecommerce-sub001/config"
	"github.com/Leeman92/symfony-headless-ecommerce-sub001/internal/api"
	"github.com/Leeman92/symfony-headless-ecommerce-sub001/internal/broker"
	"github.com/Leeman92/symfony-headless-ecommerce-sub001/internal/gateway"
	"github.com/Leeman92/symfony-headless-ecommerce-sub001/internal/redisclient"
	"github.com/Leeman92/symfony-headless-ecommerce-sub001/internal/service"
	"github.com/Leeman92/symfony-headless-ecommerce-sub001/internal/store"
	"github.com/Leeman92/symfony-headless-ecommerce-sub001/internal/util"
	"github.com/Leeman92/symfony-headless-ecommerce-sub001/internal/worker"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting ecommerce API")

	tp, err := util.InitTracer("ecommerce-api", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	stripeGateway := gateway.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)

	catalogService := service.NewCatalogService(db, redisClient)
	orderService := service.NewOrderService(db, eventPublisher, redisClient)
	paymentService := service.NewPaymentService(db, stripeGateway, eventPublisher)
	fulfillment := service.NewFulfillmentOrchestrator(db, orderService)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
	fulfillmentWorker := worker.NewFulfillmentWorker(consumer, fulfillment)
	go func() {
		if err := fulfillmentWorker.Start(workerCtx); err != nil {
			log.Printf("Fulfillment worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(catalogService, orderService, paymentService, stripeGateway, redisClient, cfg.Auth.JWTSecret)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	fulfillmentWorker.Stop()

	log.Println("Server exited")
}
