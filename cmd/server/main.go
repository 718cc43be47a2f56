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

	"retail-order-service/config"
	"retail-order-service/internal/api"
	"retail-order-service/internal/auth"
	"retail-order-service/internal/broker"
	"retail-order-service/internal/mailer"
	"retail-order-service/internal/redisclient"
	"retail-order-service/internal/service"
	"retail-order-service/internal/store"
	"retail-order-service/internal/store/memstore"
	"retail-order-service/internal/util"
	"retail-order-service/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Log.File); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting retail order service")

	if cfg.Observ.JaegerEndpoint != "" {
		tp, err := util.InitTracer(util.TracerOptions{
			Endpoint: cfg.Observ.JaegerEndpoint,
			Env:      cfg.Server.Env,
			NodeID:   cfg.Business.NodeID,
		})
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Error("Error shutting down tracer", zap.Error(err))
			}
		}()
	}

	checks := map[string]api.Pinger{}

	var repo store.Repository
	switch cfg.Database.Driver {
	case "memory":
		repo = memstore.New()
		logger.Warn("Using in-memory store, data is lost on restart")
	default:
		db, err := store.NewStore(cfg.Database.URL)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		if err := db.Migrate(context.Background()); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
		checks["database"] = db
		repo = db
		logger.Info("Database connected")
	}

	minTotal, err := decimal.NewFromString(cfg.Business.MinOrderTotal)
	if err != nil {
		logger.Fatal("Invalid MIN_ORDER_TOTAL", zap.Error(err))
	}

	ids, err := util.NewBillIDGenerator(cfg.Business.NodeID)
	if err != nil {
		logger.Fatal("Invalid NODE_ID", zap.Error(err))
	}

	var (
		catalog service.CatalogCache
		idem    service.IdempotencyStore
		events  service.EventPublisher
	)

	if cfg.Redis.Enabled() {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		catalog = redisclient.NewCatalogCache(redisClient, cfg.Redis.CatalogTTL)
		idem = redisclient.NewIdempotencyStore(redisClient, cfg.Redis.IdempotencyTTL)
		checks["redis"] = redisClient
		logger.Info("Redis connected")
	}

	var producer *broker.Producer
	if cfg.Kafka.Enabled() {
		producer = broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
		defer producer.Close()
		events = broker.NewEventPublisher(producer)
		logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
	}

	var sender mailer.Sender = mailer.NewLogSender()
	if cfg.Mail.Host != "" {
		sender = mailer.NewSMTPSender(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.User, cfg.Mail.Password, cfg.Mail.From)
	}
	mail := mailer.New(sender)

	tokens := auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	orderService := service.NewOrderService(repo, ids, events, catalog, idem, minTotal)
	productService := service.NewProductService(repo, catalog)
	accountService := service.NewAccountService(repo, tokens, mail, service.AccountOptions{
		OTPTTL:           cfg.Business.OTPTTL,
		AllowAdminSignup: cfg.Auth.AllowAdminSignup,
		Production:       cfg.Server.IsProduction(),
	})

	scheduler := worker.NewScheduler()
	if err := scheduler.AddOTPReaper(cfg.Business.OTPReaperSchedule, accountService); err != nil {
		logger.Fatal("Failed to schedule OTP reaper", zap.Error(err))
	}
	scheduler.Start()

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var notificationWorker *worker.NotificationWorker
	if cfg.Kafka.Enabled() {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
		notificationWorker = worker.NewNotificationWorker(consumer, accountService, mail)
		go func() {
			if err := notificationWorker.Start(workerCtx); err != nil {
				logger.Error("Notification worker error", zap.Error(err))
			}
		}()
	}

	if cfg.Server.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(orderService, productService, accountService, tokens, checks)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	scheduler.Stop(shutdownCtx)
	workerCancel()
	if notificationWorker != nil {
		if err := notificationWorker.Stop(); err != nil {
			logger.Error("Error stopping notification worker", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}
