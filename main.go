package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/checkout-service/common/auth"
	apperrors "github.com/yashrajoria/checkout-service/common/errors"
	"github.com/yashrajoria/checkout-service/common/logger"
	commonmw "github.com/yashrajoria/checkout-service/common/middleware"
	"github.com/yashrajoria/checkout-service/config"
	"github.com/yashrajoria/checkout-service/controllers"
	"github.com/yashrajoria/checkout-service/database"
	"github.com/yashrajoria/checkout-service/middleware"
	"github.com/yashrajoria/checkout-service/models"
	aws_pkg "github.com/yashrajoria/checkout-service/pkg/aws"
	"github.com/yashrajoria/checkout-service/providers"
	"github.com/yashrajoria/checkout-service/repository"
	"github.com/yashrajoria/checkout-service/routes"
	servicepkg "github.com/yashrajoria/checkout-service/services"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const serviceName = "checkout-service"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// AWS clients
	awsCfg, awsErr := aws_pkg.LoadAWSConfig(context.Background(), cfg.AWSRegion, cfg.AWSEndpoint)

	var sink io.Writer
	if awsErr == nil && cfg.CloudWatchEnabled {
		cwLogs, err := aws_pkg.NewCloudWatchLogsClient(context.Background(), awsCfg, cfg.CloudWatchLogGroup, serviceName)
		if err != nil {
			log.Printf("CloudWatch logs unavailable: %v", err)
		} else {
			sink = cwLogs
		}
	}

	zapLogger, err := logger.New(cfg.Env, sink)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync() //nolint:errcheck

	var (
		snsClient     aws_pkg.SNSPublisher
		metricsClient *aws_pkg.MetricsClient
	)
	if awsErr != nil {
		zapLogger.Warn("AWS config unavailable, SNS and metrics disabled", zap.Error(awsErr))
	} else {
		snsClient = aws_pkg.NewSNSClient(awsCfg)
		metricsClient = aws_pkg.NewMetricsClient(awsCfg, cfg.MetricsNamespace, cfg.CloudWatchEnabled)
	}

	if cfg.AWSUseSecrets {
		if awsErr != nil {
			zapLogger.Fatal("AWS_USE_SECRETS is set but AWS config failed", zap.Error(awsErr))
		}
		if err := loadSecrets(awsCfg, cfg); err != nil {
			zapLogger.Fatal("Failed to load secrets", zap.Error(err))
		}
	}

	// Stores
	mongoClient, err := database.ConnectMongo(context.Background(), cfg.MongoURI, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer database.DisconnectMongo(mongoClient, zapLogger)
	db := mongoClient.Database(cfg.MongoDatabase)

	redisClient, err := database.NewRedisClient(context.Background(), cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close() //nolint:errcheck

	ledgerDB, err := database.ConnectPostgres(cfg.PostgresDSN(), zapLogger, &models.PaymentAttempt{})
	if err != nil {
		zapLogger.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer database.ClosePostgres(ledgerDB) //nolint:errcheck

	// Repositories
	carts := repository.NewMongoCartRepository(db)
	addresses := repository.NewMongoAddressRepository(db)
	intents := repository.NewMongoPaymentIntentRepository(db)
	rates := repository.NewMongoConversionRateRepository(db)
	users := repository.NewMongoUserRepository(db)
	committer := repository.NewMongoOrderCommitter(
		mongoClient,
		repository.NewMongoOrderRepository(db),
		repository.NewMongoProductRepository(db),
		carts,
		cfg.MongoTransactions,
	)
	ledger := repository.NewGormPaymentRepository(ledgerDB)
	checkoutStore := repository.NewRedisCheckoutStore(redisClient, cfg.CheckoutLockTTL, cfg.IdempotencyTTL)

	// Provider and DI chain
	stripeProvider := providers.NewStripeProvider(cfg.StripeSecretKey, cfg.StripeWebhookKey, nil)
	rateProvider := providers.NewExchangeRateAPI(cfg.CurrencyAPIURL, zapLogger)

	currencyService := servicepkg.NewCurrencyService(rates, rateProvider, metricsClient, cfg.RateRefreshInterval, zapLogger)
	rateRefresher := servicepkg.NewRateRefresher(rates, rateProvider, metricsClient, cfg.RateRefreshInterval, zapLogger)
	taxService := servicepkg.NewTaxService(stripeProvider, carts, addresses, currencyService, zapLogger)
	paymentService := servicepkg.NewPaymentIntentService(
		intents,
		carts,
		ledger,
		stripeProvider,
		currencyService,
		checkoutStore,
		cfg.PlaceholderIntentAmount,
		zapLogger,
	)
	checkoutService := servicepkg.NewCheckoutService(servicepkg.CheckoutDeps{
		Carts:       carts,
		Addresses:   addresses,
		Intents:     intents,
		Ledger:      ledger,
		Committer:   committer,
		Locker:      checkoutStore,
		Idempotency: checkoutStore,
		Aggregator:  servicepkg.NewCartAggregator(currencyService),
		Taxes:       taxService,
		Payments:    paymentService,
		SNSClient:   snsClient,
		SNSTopicArn: cfg.OrderSNSTopicARN,
		Metrics:     metricsClient,
		Logger:      zapLogger,
	})
	webhookService := servicepkg.NewWebhookService(ledger, zapLogger)

	checkoutController := controllers.NewCheckoutController(paymentService, checkoutService, taxService)
	webhookController := controllers.NewWebhookController(stripeProvider, webhookService, zapLogger)
	ratesController := controllers.NewRatesController(rateRefresher)

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	go rateRefresher.Start(bgCtx)

	limiter := commonmw.NewRateLimiter(rate.Limit(20), 40, 10*time.Minute)
	go limiter.Run(bgCtx)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestID())
	r.Use(commonmw.RequestLogger(zapLogger))
	r.Use(commonmw.SecurityHeaders())
	r.Use(commonmw.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(commonmw.RateLimitMiddleware(limiter))
	r.Use(commonmw.MetricsMiddleware(metricsClient, serviceName, "/health"))
	r.Use(apperrors.ErrorMiddleware())

	// 30-second request timeout
	r.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	routes.RegisterHealthRoute(r, serviceName)
	routes.RegisterCheckoutRoutes(
		r,
		middleware.AuthMiddleware(auth.NewTokenValidator(cfg.JWTSecret), users, zapLogger),
		middleware.APIKeyMiddleware(cfg.InternalAPIKey),
		checkoutController,
		webhookController,
		ratesController,
	)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	zapLogger.Info("Checkout service started", zap.String("port", cfg.Port))
	<-quit
	zapLogger.Info("Shutting down checkout service...")
	stopBackground()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Fatal("Server forced to shutdown", zap.Error(err))
	}
	zapLogger.Info("Server exited cleanly")
}

func loadSecrets(awsCfg sdkaws.Config, cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return cfg.ApplySecrets(ctx, aws_pkg.NewSecretsClient(awsCfg))
}
