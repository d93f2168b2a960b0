package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ecommerce-api/cache"
	"ecommerce-api/controllers"
	"ecommerce-api/database"
	"ecommerce-api/kafka"
	"ecommerce-api/repository"
	"ecommerce-api/routes"
	servicepkg "ecommerce-api/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	cfg, err := LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	if err := database.Connect(
		cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDB,
		cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresSSLMode, cfg.PostgresTimeZone,
	); err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close() //nolint:errcheck

	if err := database.Migrate(); err != nil {
		logger.Fatal("Migration failed", zap.Error(err))
	}

	// Redis cache is optional; the API serves from Postgres without it
	var productCache *cache.ProductCache
	if cfg.RedisAddr != "" {
		redisClient, err := cache.NewClient(context.Background(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Warn("Redis unavailable, product cache disabled", zap.Error(err))
		} else {
			productCache = cache.NewProductCache(redisClient, logger)
		}
	}

	// Kafka is optional; order events are best-effort
	var publisher servicepkg.OrderEventPublisher
	if brokers := cfg.KafkaBrokerList(); len(brokers) > 0 {
		producer := kafka.NewProducer(brokers, cfg.OrderTopic, logger)
		defer producer.Close() //nolint:errcheck
		publisher = producer
	}

	// DI chain
	userRepo := repository.NewGormUserRepository(database.DB)
	productRepo := repository.NewGormProductRepository(database.DB)
	cartRepo := repository.NewGormCartRepository(database.DB)
	orderRepo := repository.NewGormOrderRepository(database.DB)

	authService := servicepkg.NewAuthService(userRepo, []byte(cfg.JWTSecret), logger)
	productService := servicepkg.NewProductService(productRepo, productCache, logger)
	cartService := servicepkg.NewCartService(cartRepo, productRepo, logger)
	orderService := servicepkg.NewOrderService(orderRepo, logger)
	checkoutService := servicepkg.NewCheckoutService(database.DB, cartRepo, orderRepo, productRepo, publisher, logger)

	authController := controllers.NewAuthController(authService)
	productController := controllers.NewProductController(productService)
	cartController := controllers.NewCartController(cartService)
	orderController := controllers.NewOrderController(checkoutService, orderService)

	r := gin.New()
	r.Use(gin.Recovery())

	// Global request-logging middleware
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})

	// 30-second request timeout; a timed-out checkout aborts as a whole
	r.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "ecommerce-api"})
	})

	routes.RegisterRoutes(r, []byte(cfg.JWTSecret), authController, productController, cartController, orderController)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	logger.Info("ecommerce-api started", zap.String("port", cfg.Port))
	<-quit
	logger.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Server exited cleanly")
}
