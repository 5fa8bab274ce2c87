package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/planauth/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionValidator middleware.SessionValidator
	AllowedOrigin    string
	HSTS             bool
	Logger           *slog.Logger
	StatusHook       func(method string, status int)
	HealthChecker    HealthChecker
	MetricsHandler   http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ユーザー
	UserService UserServiceInterface

	// 課金
	CheckoutService CheckoutServiceInterface
	WebhookVerifier WebhookVerifier
	EventApplier    EventApplier
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Recovery → Logging → SecurityHeaders → CORS → OriginCheck → Session
//
// Webhookはブラウザからのリクエストではないため、OriginCheckとSessionの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, deps.StatusHook))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.HSTS))
	r.Use(middleware.NewCORSMiddleware(deps.AllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	userHandler := NewUserHandler(deps.UserService, deps.AuthConfig)
	checkoutHandler := NewCheckoutHandler(deps.CheckoutService)
	webhookHandler := NewWebhookHandler(deps.WebhookVerifier, deps.EventApplier)

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// 署名で検証するため認証不要
		r.Post("/webhook/stripe", webhookHandler.Stripe)

		r.Group(func(r chi.Router) {
			r.Use(middleware.NewOriginCheckMiddleware(deps.AllowedOrigin))

			// --- 認証不要のルート ---
			r.Route("/auth", func(r chi.Router) {
				r.Post("/sign-up", authHandler.SignUp)
				r.Post("/sign-in", authHandler.SignIn)
				r.Post("/sign-out", authHandler.SignOut)
				r.Get("/{provider}/login", authHandler.Login)
				r.Get("/{provider}/callback", authHandler.Callback)
			})

			// --- 認証が必要なルート ---
			r.Group(func(r chi.Router) {
				r.Use(middleware.NewSessionMiddleware(deps.SessionValidator))

				r.Route("/users", func(r chi.Router) {
					r.Get("/@me", userHandler.Me)
					r.Patch("/{userId}", userHandler.Update)
					r.Delete("/{userId}", userHandler.Delete)
				})

				r.Post("/checkout", checkoutHandler.Create)
			})
		})
	})

	return r
}
