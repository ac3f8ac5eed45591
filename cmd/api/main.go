package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ahwlsqja/chainauth/docs"
	"github.com/ahwlsqja/chainauth/internal/common/handler"
	"github.com/ahwlsqja/chainauth/internal/common/middleware"
	"github.com/ahwlsqja/chainauth/internal/config"
	"github.com/ahwlsqja/chainauth/internal/metrics"
	"github.com/ahwlsqja/chainauth/internal/proof"
	"github.com/ahwlsqja/chainauth/internal/twofactor"
	pkgdb "github.com/ahwlsqja/chainauth/pkg/db"
	"github.com/ahwlsqja/chainauth/pkg/ethsig"
	"github.com/ahwlsqja/chainauth/pkg/ledger"
	"github.com/ahwlsqja/chainauth/pkg/nonce"
	"github.com/ahwlsqja/chainauth/pkg/ratelimit"
	pkgredis "github.com/ahwlsqja/chainauth/pkg/redis"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title Chainauth Wallet Second Factor API
// @version 1.0
// @description 지갑 서명 기반 2차 인증: 논스 챌린지 발급, personal_sign 검증, 온체인 로그인 증명

// @contact.name API Support
// @contact.email support@example.com

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Primary session token, "Bearer <jwt>"

func main() {
	// 0) .env 로드 (없으면 무시)
	_ = godotenv.Load()

	// 1) 로거 초기화
	logger, err := initLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// 2) 설정 로드
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	logger.Info("starting server",
		zap.String("environment", cfg.Server.Environment),
		zap.String("addr", cfg.Server.Addr()),
		zap.String("challenge_backend", cfg.Challenge.Backend),
		zap.String("rate_limit_backend", cfg.RateLimit.Backend),
		zap.Bool("chain_enabled", cfg.Chain.Enabled),
	)

	// 3) Sentry 초기화
	if err := initSentry(cfg); err != nil {
		logger.Error("failed to initialize sentry", zap.Error(err))
	}
	defer sentry.Flush(2 * time.Second)

	// 4) Redis 초기화 (redis 백엔드 또는 이벤트 발행 시에만)
	var rdb *redis.Client
	if cfg.UsesRedis() {
		rdb = pkgredis.New(cfg.Redis.Redis())
		defer rdb.Close()
	}

	// 5) DB 초기화 (증명 아카이브 사용 시에만)
	var db *sql.DB
	if cfg.Chain.Enabled && cfg.Database.ArchiveEnabled {
		db, err = pkgdb.New(cfg.Database.DB())
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()
	}

	// 6) 연결 테스트 (fail-fast)
	if err := testConnections(db, rdb); err != nil {
		logger.Fatal("failed to test connections", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 7) 챌린지 매니저 + 레이트 리미터
	manager := initChallenges(ctx, cfg, rdb, logger)
	limiter := initLimiter(ctx, cfg, rdb, logger)

	// 8) 로그인 증명 기록기
	recorder, dispatcher, err := initRecorder(ctx, cfg, db, rdb, logger)
	if err != nil {
		logger.Fatal("failed to initialize proof recorder", zap.Error(err))
	}

	// 9) 라우터 구성
	router := setupRouter(cfg, logger, db, rdb, manager, limiter, recorder)

	// 10) HTTP 서버 생성
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 11) 서버 비동기 시작
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	logger.Info("server started",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("swagger", fmt.Sprintf("http://localhost:%d/swagger/index.html", cfg.Server.Port)),
	)

	// 12) 종료 시그널 대기
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// 13) Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	// 백그라운드 작업 정리
	cancel()
	if dispatcher != nil {
		dispatcher.Stop()
	}

	logger.Info("server exited")
}

func initLogger() (*zap.Logger, error) {
	env := os.Getenv("ENVIRONMENT")
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func initSentry(cfg *config.Config) error {
	if cfg.Observability.SentryDSN == "" {
		return nil
	}
	return sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.Observability.SentryDSN,
		Environment:      cfg.Server.Environment,
		AttachStacktrace: true,
	})
}

func testConnections(db *sql.DB, rdb *redis.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if db != nil {
		if err := pkgdb.Ping(ctx, db); err != nil {
			return err
		}
	}

	if rdb != nil {
		if err := pkgredis.Ping(ctx, rdb); err != nil {
			return err
		}
	}

	return nil
}

func initChallenges(ctx context.Context, cfg *config.Config, rdb *redis.Client, logger *zap.Logger) *nonce.Manager {
	var store nonce.Store
	switch cfg.Challenge.Backend {
	case config.BackendRedis:
		store = nonce.NewRedisStoreWithRetention(rdb, cfg.Challenge.RedisRetention, logger)
	default:
		store = nonce.NewMemoryStore()
	}

	manager := nonce.NewManager(store, nonce.Config{
		TTL:           cfg.Challenge.TTL,
		SweepInterval: cfg.Challenge.SweepInterval,
		OnSweep: func(removed int) {
			metrics.ChallengesSwept.Add(float64(removed))
		},
	}, logger)

	go manager.Run(ctx)
	return manager
}

func initLimiter(ctx context.Context, cfg *config.Config, rdb *redis.Client, logger *zap.Logger) ratelimit.Limiter {
	limitCfg := ratelimit.Config{
		MaxAttempts: cfg.RateLimit.MaxAttempts,
		Window:      cfg.RateLimit.Window,
	}

	if cfg.RateLimit.Backend == config.BackendRedis {
		return ratelimit.NewRedisLimiter(rdb, limitCfg, logger)
	}

	limiter := ratelimit.NewMemoryLimiter(limitCfg, logger)
	go limiter.Run(ctx)
	return limiter
}

// initRecorder wires the proof pipeline. Everything is a no-op unless CHAIN_ENABLED.
func initRecorder(ctx context.Context, cfg *config.Config, db *sql.DB, rdb *redis.Client, logger *zap.Logger) (proof.Recorder, *proof.Dispatcher, error) {
	if !cfg.Chain.Enabled {
		logger.Info("proof recording disabled")
		return proof.NopRecorder{}, nil, nil
	}

	client, err := ethclient.DialContext(ctx, cfg.Chain.RPCURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to dial chain rpc: %w", err)
	}

	writer, err := ledger.NewEthWriter(client, ledger.EthConfig{
		ContractAddress: cfg.Chain.ContractAddress,
		ChainID:         cfg.Chain.ChainID,
		PrivateKey:      cfg.Chain.SignerPrivateKey,
		TxTimeout:       cfg.Chain.TxTimeout,
		PollingInterval: cfg.Chain.PollingInterval,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	var repo proof.Repository
	if db != nil {
		mysqlRepo := proof.NewMySQLRepository(pkgdb.NewTxRunner(db))
		if err := mysqlRepo.EnsureSchema(ctx); err != nil {
			return nil, nil, err
		}
		repo = mysqlRepo
	}

	var publisher proof.Publisher
	if cfg.Observability.EventsEnabled {
		streamPub, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client: rdb,
			},
			proof.NewWatermillLogger(logger),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create event publisher: %w", err)
		}
		publisher = proof.NewWatermillPublisher(streamPub, cfg.Observability.EventsTopic)
	}

	dispatcher := proof.NewDispatcher(proof.NewService(writer, repo, publisher, logger), proof.DispatcherConfig{
		Workers:        cfg.Worker.Count,
		QueueSize:      cfg.Worker.QueueSize,
		MaxRetries:     cfg.Worker.MaxRetries,
		RetryBaseDelay: cfg.Worker.RetryBaseDelay,
		AttemptTimeout: cfg.Worker.AttemptTimeout,
	}, logger)
	dispatcher.Start(ctx)

	logger.Info("proof recording enabled",
		zap.String("signer", writer.From().Hex()),
		zap.String("contract", cfg.Chain.ContractAddress),
		zap.Bool("archive", repo != nil),
		zap.Bool("events", publisher != nil),
	)

	return dispatcher, dispatcher, nil
}

func setupRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *sql.DB,
	rdb *redis.Client,
	manager *nonce.Manager,
	limiter ratelimit.Limiter,
	recorder proof.Recorder,
) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true

	// Global middleware
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))

	router.NoMethod(middleware.MethodNotAllowed)
	router.NoRoute(middleware.NotFound)

	// Swagger 설정
	docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", cfg.Server.Port)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health + metrics
	handler.NewHealthHandler(db, rdb).RegisterRoutes(router)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// ============================================================================
	// Service & Handler Setup
	// ============================================================================

	twoFactorService := twofactor.NewService(manager, limiter, ethsig.NewEthVerifier(), logger)
	twoFactorHandler := twofactor.NewHandler(twoFactorService, recorder, logger)

	var guards []gin.HandlerFunc
	if cfg.Auth.JWTSecret != "" {
		guards = append(guards, middleware.PrimarySession(middleware.SessionConfig{
			Secret: cfg.Auth.JWTSecret,
			Issuer: cfg.Auth.JWTIssuer,
		}, logger))
	} else {
		logger.Warn("AUTH_JWT_SECRET not set; identities are taken from the request")
	}

	// ============================================================================
	// Route Registration
	// ============================================================================

	v1 := router.Group("/api/v1")
	{
		twoFactorHandler.RegisterRoutes(v1, guards...)
	}

	return router
}
