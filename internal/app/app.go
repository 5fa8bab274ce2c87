package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/planauth/internal/auth"
	"github.com/hitoshi/planauth/internal/billing"
	"github.com/hitoshi/planauth/internal/config"
	"github.com/hitoshi/planauth/internal/database"
	"github.com/hitoshi/planauth/internal/handler"
	"github.com/hitoshi/planauth/internal/logger"
	"github.com/hitoshi/planauth/internal/metrics"
	"github.com/hitoshi/planauth/internal/repository"
	"github.com/hitoshi/planauth/internal/user"
	"github.com/hitoshi/planauth/internal/worker/cleanup"
)

// tokenIssuer はセッショントークンのissクレーム。
const tokenIssuer = "planauth"

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップしてから環境変数のConfigを読み込み、ログレベルを反映する。
func Init(w io.Writer) (*config.Config, error) {
	logger.SetupDefault(w)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger.SetLevel(cfg.SlogLevel())

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, err := ParseCommand(args)
	if err != nil {
		return err
	}

	// healthcheck は設定の読み込みを必要としない
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
		slog.String("origin_url", cfg.OriginURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// openDatabase はコネクションプールを設定してDBに接続する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	if err := database.Ping(context.Background(), db, 5*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)
	return db, nil
}

// services はAPIサーバーが使うドメインサービス群。
type services struct {
	auth     *auth.Service
	users    *user.Service
	checkout *billing.Checkout
	machine  *billing.StateMachine
	verifier *billing.WebhookVerifier
}

// buildServices はリポジトリとドメインサービスをワイヤリングする。
func buildServices(cfg *config.Config, db *sql.DB, collector *metrics.Collector) (*services, error) {
	userRepo := repository.NewPostgresUserRepo(db)
	accountRepo := repository.NewPostgresLinkedAccountRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	planRepo := repository.NewPostgresPlanRepo(db)

	if cfg.StripeAPIKey == "" {
		slog.Warn("STRIPE_API_KEY is not set; customer creation and checkout will fail")
	}
	stripeClient := billing.NewStripeClient(cfg.StripeAPIKey)

	staticLookup, err := billing.ParseStaticLookup(cfg.PlanProducts)
	if err != nil {
		return nil, fmt.Errorf("invalid PLAN_PRODUCTS: %w", err)
	}

	sessions, err := newSessionManager(cfg, sessionRepo, userRepo)
	if err != nil {
		return nil, err
	}

	resolver := auth.NewResolver(userRepo, accountRepo, auth.NewBcryptHasher(cfg.BcryptCost), stripeClient)

	var providers []auth.OAuthProvider
	if cfg.GitHubEnabled() {
		providers = append(providers, auth.NewGitHubOAuthProvider(auth.GitHubOAuthConfig{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  cfg.GitHubCallbackURL,
		}))
	}
	if cfg.GoogleEnabled() {
		providers = append(providers, auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
		}))
	}
	slog.Info("oauth providers configured", slog.Int("count", len(providers)))

	return &services{
		auth:     auth.NewService(resolver, sessions, auth.NewProviders(providers...), collector),
		users:    user.NewService(userRepo, accountRepo, sessionRepo),
		checkout: billing.NewCheckout(stripeClient, cfg.OriginURL),
		machine: billing.NewStateMachine(
			planRepo,
			billing.ChainLookup{staticLookup, stripeClient},
			collector,
		),
		verifier: billing.NewWebhookVerifier(cfg.StripeWebhookSecret),
	}, nil
}

// newSessionManager はJWT署名付きのSessionManagerを生成する。
func newSessionManager(cfg *config.Config, sessionRepo repository.SessionRepository, userRepo repository.UserRepository) (*auth.SessionManager, error) {
	signer, err := auth.NewJWTSigner(cfg.SessionSecret, tokenIssuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create token signer: %w", err)
	}
	return auth.NewSessionManager(sessionRepo, userRepo, signer, cfg.SessionTTL), nil
}

// newRegistry はGoランタイムとプロセスのコレクターを登録したレジストリを返す。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// runServe はAPIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	reg := newRegistry()
	collector := metrics.NewCollector(reg)

	svc, err := buildServices(cfg, db, collector)
	if err != nil {
		return err
	}
	if cfg.StripeWebhookSecret == "" {
		slog.Warn("STRIPE_WEBHOOK_SECRET is not set; all webhook deliveries will be rejected")
	}

	router := handler.NewRouter(&handler.RouterDeps{
		SessionValidator: svc.auth,
		AllowedOrigin:    cfg.OriginURL,
		HSTS:             cfg.CookieSecure,
		Logger:           slog.Default(),
		StatusHook:       collector.RecordHTTPStatus,
		HealthChecker:    db,
		MetricsHandler:   metrics.Handler(reg),

		AuthService: svc.auth,
		AuthConfig: handler.AuthHandlerConfig{
			OriginURL:     cfg.OriginURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionTTL,
		},

		UserService: svc.users,

		CheckoutService: svc.checkout,
		WebhookVerifier: svc.verifier,
		EventApplier:    svc.machine,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case sig := <-stop:
		slog.Info("shutting down server...", slog.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れセッションの削除ジョブをSESSION_SWEEP_INTERVAL間隔で実行する。
func runWorker(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	sessions, err := newSessionManager(cfg,
		repository.NewPostgresSessionRepo(db),
		repository.NewPostgresUserRepo(db),
	)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector(newRegistry())
	cleanupJob := cleanup.NewCleanupJob(sessions, slog.Default(), collector)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("worker starting",
		slog.Duration("sweep_interval", cfg.SessionSweepInterval),
	)

	cleanupJob.Start(ctx, cfg.SessionSweepInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はすべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("schema_version", uint64(version)),
	)
	return nil
}

// runHealthcheck はdistroless環境でのDockerヘルスチェック用サブコマンド。
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

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
// 解析できないURLは全体を伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
