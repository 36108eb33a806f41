package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stripe/stripe-go/v82/client"
	"go.uber.org/zap"

	"finwise/api/config"
	"finwise/api/db"
	"finwise/api/db/migrations"
	"finwise/api/handlers"
	"finwise/api/llm"
	"finwise/api/logger"
	"finwise/api/middleware"
	"finwise/api/sweeper"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	if err := logger.Init(cfg.Development, logger.LogLevel(cfg.LogLevel)); err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.Get()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("error connecting to database", zap.Error(err))
	}
	defer conn.Close()

	if err := migrations.Up(conn); err != nil {
		log.Fatal("error applying migrations", zap.Error(err))
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatal("error parsing redis url", zap.Error(err))
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	stripeAPI := &client.API{}
	stripeAPI.Init(cfg.StripeSecretKey, nil)

	subStore := db.NewSubscriptionStore(conn)
	userStore := db.NewUserStore(conn)
	accountStore := db.NewAccountStore(conn)
	txnStore := db.NewTransactionStore(conn)
	insightsClient := llm.NewClient(cfg.OpenAIAPIKey)

	sweep := sweeper.New(subStore, cfg.PeriodEndSweep)
	sweep.Start()
	defer sweep.Stop()

	subHandler := handlers.NewSubscriptionHandler(subStore)
	billingHandler := handlers.NewBillingHandler(stripeAPI, subStore, cfg)
	webhookHandler := handlers.NewWebhookHandler(subStore, cfg)
	accountHandler := handlers.NewAccountHandler(accountStore)
	txnHandler := handlers.NewTransactionHandler(txnStore)
	insightsHandler := handlers.NewInsightsHandler(subStore, txnStore, insightsClient)
	userHandler := handlers.NewUserHandler(userStore, subStore, accountStore, txnStore, stripeAPI, cfg)
	internalHandler := handlers.NewInternalHandler(sweep)

	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.SetTrustedProxies([]string{"127.0.0.1", "localhost"})
	router.Use(middleware.CORS(cfg.FrontendURL))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/webhook/stripe",
		middleware.StripeWebhookVerifier(cfg.StripeWebhookSecret),
		webhookHandler.HandleStripeWebhook)

	internal := router.Group("/internal", middleware.InternalAuth(cfg.InternalAPIKey))
	{
		internal.POST("/subscriptions/period-end", internalHandler.RunPeriodEnd)
	}

	// Authenticated surface. The user row is upserted from the verified
	// claims so foreign keys always resolve.
	api := router.Group("/api", middleware.Auth(cfg.SupabaseJWTSecret, cfg.JWTIssuer()))
	api.Use(func(c *gin.Context) {
		if claims, ok := middleware.ClaimsFrom(c); ok {
			if err := userStore.Ensure(c.Request.Context(), claims.Sub, claims.Email); err != nil {
				log.Warn("error ensuring user row", zap.String("user_id", claims.Sub), zap.Error(err))
			}
		}
		c.Next()
	})
	{
		api.GET("/subscription/status", subHandler.GetStatus)
		api.POST("/subscription/trial",
			middleware.RateLimit(rdb, "trial", 5, time.Hour),
			subHandler.StartTrial)
		api.POST("/subscription/checkout", billingHandler.CreateCheckoutSession)
		api.POST("/subscription/portal", billingHandler.CreatePortalSession)

		api.POST("/accounts", accountHandler.Create)
		api.GET("/accounts", accountHandler.List)
		api.PUT("/accounts/:id", accountHandler.Update)
		api.DELETE("/accounts/:id", accountHandler.Delete)

		api.POST("/transactions", txnHandler.Create)
		api.GET("/transactions", txnHandler.List)
		api.PUT("/transactions/:id", txnHandler.Update)
		api.DELETE("/transactions/:id", txnHandler.Delete)

		api.POST("/insights",
			middleware.RateLimit(rdb, "insights", cfg.InsightsRateLimit, cfg.InsightsRateWindow),
			insightsHandler.Generate)

		api.GET("/user/export", userHandler.Export)
		api.DELETE("/user", userHandler.Delete)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info("server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
	}
}
