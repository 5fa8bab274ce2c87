package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// minSessionSecretLength はセッション署名鍵の最小バイト数。
const minSessionSecretLength = 32

// Config はアプリケーション全体の設定を保持する。
// 値はすべて環境変数から読み込む。
type Config struct {
	// Database
	DatabaseURL       string        `env:"DATABASE_URL,required,notEmpty"`
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`

	// Session
	SessionSecret        string        `env:"SESSION_SECRET,required,notEmpty"`
	SessionTTL           time.Duration `env:"SESSION_TTL" envDefault:"720h"`
	SessionSweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"1h"`
	BcryptCost           int           `env:"BCRYPT_COST" envDefault:"10"`

	// Stripe
	StripeAPIKey        string `env:"STRIPE_API_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	PlanProducts        string `env:"PLAN_PRODUCTS"`

	// GitHub OAuth
	GitHubClientID     string `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `env:"GITHUB_CLIENT_SECRET"`
	GitHubCallbackURL  string `env:"GITHUB_CALLBACK_URL"`

	// Google OAuth（任意）
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `env:"GOOGLE_REDIRECT_URL"`

	// Server
	OriginURL    string `env:"ORIGIN_URL" envDefault:"http://localhost:3000"`
	ServerPort   string `env:"SERVER_PORT" envDefault:"8080"`
	CookieDomain string `env:"COOKIE_DOMAIN"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`

	// CookieSecure はORIGIN_URLがhttpsの場合にtrueになる。
	CookieSecure bool
}

// Load は環境変数から設定を読み込む。
// 必須の環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if len(cfg.SessionSecret) < minSessionSecretLength {
		return nil, fmt.Errorf("SESSION_SECRET must be at least %d bytes", minSessionSecretLength)
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("SESSION_TTL must be positive, got %s", cfg.SessionTTL)
	}
	if cfg.SessionSweepInterval <= 0 {
		return nil, fmt.Errorf("SESSION_SWEEP_INTERVAL must be positive, got %s", cfg.SessionSweepInterval)
	}

	origin, err := url.Parse(cfg.OriginURL)
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("ORIGIN_URL must be an absolute URL: %q", cfg.OriginURL)
	}
	cfg.OriginURL = strings.TrimRight(cfg.OriginURL, "/")
	cfg.CookieSecure = origin.Scheme == "https"

	return &cfg, nil
}

// GoogleEnabled はGoogle OAuthの設定が揃っているかを返す。
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}

// GitHubEnabled はGitHub OAuthの設定が揃っているかを返す。
func (c *Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != "" && c.GitHubCallbackURL != ""
}

// SlogLevel はLOG_LEVELをslog.Levelに変換する。不明な値はInfoとして扱う。
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
