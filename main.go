package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"order-payment-service/controllers"
	"order-payment-service/database"
	"order-payment-service/events"
	"order-payment-service/gateway"
	"order-payment-service/kafka"
	"order-payment-service/logger"
	"order-payment-service/middleware"
	"order-payment-service/models"
	"order-payment-service/repository"
	"order-payment-service/routes"
	"order-payment-service/services"

	aws_pkg "order-payment-service/pkg/aws"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := LoadConfig(rootCtx)
	if err != nil {
		panic("config load failed: " + err.Error())
	}

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// --- Database ---
	db, err := database.ConnectPostgres(cfg.Postgres, log, &models.Order{}, &models.PaymentNotification{})
	if err != nil {
		log.Fatal("DB connection failed", zap.Error(err))
	}

	// --- AWS setup (non-fatal: SNS, SQS relay and metrics are optional) ---
	metricsClient := aws_pkg.NewDisabledMetricsClient()
	var snsClient aws_pkg.SNSPublisher
	var relayConsumer *aws_pkg.SQSConsumer
	if awsCfg, err := aws_pkg.LoadAWSConfig(rootCtx); err != nil {
		log.Warn("AWS config unavailable, SNS, relay and metrics disabled", zap.Error(err))
	} else {
		metricsClient = aws_pkg.NewMetricsClient(awsCfg)
		if cfg.OrderSNSTopicARN != "" {
			snsClient = aws_pkg.NewSNSClient(awsCfg)
		}
		if cfg.RelayQueueURL != "" {
			relayConsumer = aws_pkg.NewSQSConsumer(awsCfg, cfg.RelayQueueURL, log)
		}
	}

	// --- Kafka ---
	var kafkaSink events.KeyedPublisher
	var kafkaProducer *kafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		kafkaProducer = kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		kafkaSink = kafkaProducer
	}

	// --- Redis status cache ---
	var statusCache services.StatusCache
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.NewRedisClient(rootCtx, cfg.RedisURL)
		if err != nil {
			log.Warn("Redis unavailable, status cache disabled", zap.Error(err))
		} else {
			statusCache = services.NewRedisStatusCache(redisClient, cfg.StatusCacheTTL)
		}
	}

	// --- Payment gateway ---
	gw, err := gateway.New(cfg.Gateway, log)
	if err != nil {
		log.Fatal("Payment gateway init failed", zap.Error(err))
	}

	// --- User provisioning ---
	var provisioner services.UserProvisioner
	if cfg.UserServiceURL != "" {
		provisioner = services.NewHTTPUserProvisioner(cfg.UserServiceURL, cfg.UserServiceToken, cfg.ProvisionTimeout)
	} else {
		log.Warn("USER_SERVICE_URL not set, registration orders cannot provision users")
	}

	// --- Dependency injection ---
	orderRepo := repository.NewGormOrderRepository(db)
	notificationRepo := repository.NewGormNotificationRepository(db)

	orderService := services.NewOrderService(orderRepo, gw, metricsClient, log)
	reconciliation := services.NewReconciliationService(services.ReconciliationDeps{
		Orders:        orderRepo,
		Notifications: notificationRepo,
		Gateway:       gw,
		Provisioner:   provisioner,
		Publisher:     events.NewPublisher(snsClient, cfg.OrderSNSTopicARN, kafkaSink, log),
		Cache:         statusCache,
		Metrics:       metricsClient,
	}, log)

	orderController := controllers.NewOrderController(orderService, reconciliation)
	paymentController := controllers.NewPaymentController(reconciliation, log)

	// --- HTTP router ---
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.HTTPMetrics(metricsClient))
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.Timeout(30 * time.Second))

	limiter := middleware.NewRateLimiter(cfg.PublicRatePerMinute, cfg.PublicRatePerMinute/4+1)
	go limiter.Cleanup(time.Minute, rootCtx.Done())

	routes.RegisterRoutes(r, routes.Handlers{
		Orders:   orderController,
		Payments: paymentController,
		Auth: middleware.AuthMiddleware(middleware.AuthConfig{
			JWTSecret:           []byte(cfg.JWTSecret),
			TrustGatewayHeaders: cfg.TrustGatewayHeaders,
		}),
		PublicLimit: middleware.RateLimit(limiter),
	})

	// --- Notification relay ---
	if relayConsumer != nil {
		relay := services.NewNotificationRelay(reconciliation, metricsClient, log)
		go func() {
			log.Info("Notification relay started", zap.String("queue", cfg.RelayQueueURL))
			if err := relay.Start(rootCtx, relayConsumer); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Notification relay stopped", zap.Error(err))
			}
		}()
	}

	// --- HTTP server ---
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("Order Payment Service started",
			zap.String("port", cfg.Port),
			zap.String("gateway", gw.Name()),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	<-rootCtx.Done()
	log.Info("Initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", zap.Error(err))
	}

	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			log.Error("Kafka producer close error", zap.Error(err))
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error("Redis close error", zap.Error(err))
		}
	}
	if err := database.Close(db); err != nil {
		log.Error("Database close error", zap.Error(err))
	}

	log.Info("Order Payment Service stopped gracefully")
}
