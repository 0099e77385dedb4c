package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/tgmarket/internal/auth"
	"github.com/hitoshi/tgmarket/internal/config"
	"github.com/hitoshi/tgmarket/internal/database"
	"github.com/hitoshi/tgmarket/internal/handler"
	"github.com/hitoshi/tgmarket/internal/logger"
	"github.com/hitoshi/tgmarket/internal/market"
	"github.com/hitoshi/tgmarket/internal/metrics"
	"github.com/hitoshi/tgmarket/internal/middleware"
	"github.com/hitoshi/tgmarket/internal/order"
	"github.com/hitoshi/tgmarket/internal/payauth"
	"github.com/hitoshi/tgmarket/internal/payment"
	"github.com/hitoshi/tgmarket/internal/product"
	"github.com/hitoshi/tgmarket/internal/repository"
	"github.com/hitoshi/tgmarket/internal/review"
	"github.com/hitoshi/tgmarket/internal/security"
	"github.com/hitoshi/tgmarket/internal/store"
	"github.com/hitoshi/tgmarket/internal/user"
	"github.com/hitoshi/tgmarket/internal/worker/cleanup"
	"github.com/hitoshi/tgmarket/internal/worker/confirm"
	"github.com/hitoshi/tgmarket/internal/worker/geosync"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, os.Getenv("LOG_LEVEL"))

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	storeRepo := repository.NewPostgresStoreRepo(db)
	productRepo := repository.NewPostgresProductRepo(db)
	orderRepo := repository.NewPostgresOrderRepo(db)
	reviewRepo := repository.NewPostgresReviewRepo(db)
	marketRepo := repository.NewPostgresMarketRepo(db)
	regionRepo := repository.NewPostgresRegionRepo(db)
	paymentRepo := repository.NewPostgresPaymentRepo(db)
	queueRepo := repository.NewPostgresConfirmationRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)
	metricsHandler := metrics.SetupMetricsRoute(registry)

	// 4. セキュリティサービスの初期化
	sanitizer := security.NewTextSanitizer()

	// 5. ドメインサービスの初期化
	verifier := payauth.NewVerifier(cfg.BotToken)
	authService := auth.NewService(verifier, userRepo, collector, auth.ServiceConfig{
		JWTSecret:   []byte(cfg.JWTSecret),
		TokenMaxAge: cfg.TokenMaxAge,
		AuthMaxAge:  cfg.AuthMaxAge,
	}, slog.Default())

	gateway := payment.NewGateway(paymentRepo, queueRepo, slog.Default())

	userService := user.NewService(userRepo, slog.Default())
	storeService := store.NewService(storeRepo, sanitizer)
	productService := product.NewService(productRepo, storeRepo, sanitizer)
	reviewService := review.NewService(reviewRepo, productRepo, sanitizer)
	orderService := order.NewService(orderRepo, productRepo, gateway, slog.Default())
	marketService := market.NewService(marketRepo, regionRepo)

	// 6. レート制限の構成（configはreq/min単位、rate.Limitはreq/sec単位）
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.PaymentRate = rate.Limit(float64(cfg.RateLimitPayment) / 60.0)
	rateLimiterCfg.PaymentBurst = cfg.RateLimitPayment

	// 7. ルーターの構築
	deps := &handler.RouterDeps{
		JWTSecret:         []byte(cfg.JWTSecret),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       middleware.NewRateLimiter(rateLimiterCfg),
		Logger:            slog.Default(),
		HTTPMetrics:       collector,
		MetricsHandler:    metricsHandler,

		AuthService: authService,

		UserService:    userService,
		StoreService:   storeService,
		ProductService: productService,
		ReviewService:  reviewService,
		OrderService:   orderService,
		MarketService:  marketService,

		PaymentGateway: gateway,
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、確認パイプラインのスケジューラを起動する。
// 地域データ同期とキューのクリーンアップもバックグラウンドで実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. リポジトリの初期化
	paymentRepo := repository.NewPostgresPaymentRepo(db)
	queueRepo := repository.NewPostgresConfirmationRepo(db)
	regionRepo := repository.NewPostgresRegionRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. 確認パイプラインの初期化
	processor := confirm.NewProcessor(paymentRepo, collector, slog.Default(), 0)
	scheduler := confirm.NewScheduler(
		queueRepo, processor, collector, slog.Default(),
		cfg.ConfirmMaxConcurrent, cfg.ConfirmMaxAttempts,
	)

	// 5. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewJob(queueRepo, slog.Default())
	cleanupJob.Retention = cfg.ConfirmRetention

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("poll_interval", cfg.ConfirmPollInterval),
		slog.Int("max_concurrent", cfg.ConfirmMaxConcurrent),
		slog.Int("max_attempts", cfg.ConfirmMaxAttempts),
	)

	// 6. 地域データ同期ジョブ（URL未設定の場合は起動しない）
	if cfg.GeoSyncURL != "" {
		guard := security.NewOutboundGuard()
		fetcher := geosync.NewDatasetClient(
			guard.NewSafeClient(cfg.GeoSyncTimeout), slog.Default(), cfg.GeoSyncMaxSize,
		)
		geoJob := geosync.NewJob(regionRepo, fetcher, slog.Default(), geosync.JobConfig{
			DatasetURL:   cfg.GeoSyncURL,
			SyncInterval: cfg.GeoSyncInterval,
		})
		go geoJob.Start(ctx)
	}

	// 7. クリーンアップジョブを日次でバックグラウンド実行
	go func() {
		// 起動直後に1回実行
		if err := cleanupJob.Run(ctx); err != nil {
			slog.Error("cleanup job failed", slog.String("error", err.Error()))
		}
		cleanupJob.Start(ctx, 24*time.Hour)
	}()

	// 確認パイプラインをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.ConfirmPollInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
