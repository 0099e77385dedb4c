package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/tgmarket/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	JWTSecret         []byte
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	HTTPMetrics       middleware.HTTPMetricsRecorder
	MetricsHandler    http.Handler

	// 認証
	AuthService AuthServiceInterface

	// マーケットプレイス
	UserService    UserServiceInterface
	StoreService   StoreServiceInterface
	ProductService ProductServiceInterface
	ReviewService  ReviewServiceInterface
	OrderService   OrderServiceInterface
	MarketService  MarketServiceInterface

	// 決済
	PaymentGateway PaymentGatewayInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → [Auth → RateLimit(General)]
//
// 認証ルート（/auth/*）、/health、/metrics、および確認イベント受付（/internal/*）は
// 認証ミドルウェアの外に配置する。/internal/* はネットワーク層でのアクセス制御を前提とする。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルートに効くミドルウェア
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.HTTPMetrics))

	authHandler := NewAuthHandler(deps.AuthService)
	userHandler := NewUserHandler(deps.UserService)
	storeHandler := NewStoreHandler(deps.StoreService)
	productHandler := NewProductHandler(deps.ProductService, deps.ReviewService)
	orderHandler := NewOrderHandler(deps.OrderService)
	marketHandler := NewMarketHandler(deps.MarketService)
	paymentHandler := NewPaymentHandler(deps.PaymentGateway)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler)

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// Telegram認証
	r.Route("/auth/telegram", func(r chi.Router) {
		r.Post("/widget", authHandler.LoginWidget)
		r.Post("/initdata", authHandler.LoginInitData)
	})

	// オンチェーン監視系からの確認イベント受付とオペレーター操作
	r.Route("/internal", func(r chi.Router) {
		r.Post("/confirmations", paymentHandler.SubmitConfirmation)
		r.Post("/payments/{id}/refund", paymentHandler.RefundPayment)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.JWTSecret))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// ユーザープロフィール
		r.Route("/api/me", func(r chi.Router) {
			r.Get("/", userHandler.Me)
			r.Put("/wallet", userHandler.LinkWallet)
		})

		// ストア管理
		r.Route("/api/stores", func(r chi.Router) {
			r.Post("/", storeHandler.CreateStore)
			r.Get("/", storeHandler.ListMyStores)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", storeHandler.GetStore)
				r.Patch("/", storeHandler.UpdateStore)
				r.Delete("/", storeHandler.DeleteStore)

				// ストア配下の商品
				r.Post("/products", productHandler.CreateProduct)
				r.Get("/products", productHandler.ListStoreProducts)
			})
		})

		// 商品管理とレビュー
		r.Route("/api/products/{id}", func(r chi.Router) {
			r.Get("/", productHandler.GetProduct)
			r.Patch("/", productHandler.UpdateProduct)
			r.Delete("/", productHandler.DeleteProduct)

			r.Post("/reviews", productHandler.CreateReview)
			r.Get("/reviews", productHandler.ListReviews)
		})

		// 注文管理
		r.Route("/api/orders", func(r chi.Router) {
			r.Post("/", orderHandler.CreateOrder)
			r.Get("/", orderHandler.ListMyOrders)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", orderHandler.GetOrder)
				r.Post("/cancel", orderHandler.CancelOrder)

				// POST /api/orders/{id}/payment - 決済送信（決済専用レート制限を追加）
				r.With(deps.RateLimiter.PaymentMiddleware()).Post("/payment", orderHandler.SubmitPayment)
			})
		})

		// 決済照会
		r.Get("/api/payments/{id}", paymentHandler.GetPayment)

		// マーケット閲覧
		r.Route("/api/market", func(r chi.Router) {
			r.Get("/storefronts", marketHandler.ListStorefronts)
			r.Get("/storefronts/{id}", marketHandler.GetStorefront)
			r.Get("/regions", marketHandler.ListRegions)
		})
	})

	return r
}

// healthHandler は死活監視用のエンドポイント。
// GET /health
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
