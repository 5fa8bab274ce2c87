package middleware

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/planauth/internal/model"
)

// NewOriginCheckMiddleware は状態変更リクエストのOriginヘッダーを検証するミドルウェアを返す。
// Originヘッダーがないリクエスト（サーバー間通信やCLI）はそのまま通す。
// SameSite=StrictのセッションCookieと組み合わせてCSRFを防ぐ。
func NewOriginCheckMiddleware(allowedOrigin string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			origin := r.Header.Get("Origin")
			if origin != "" && origin != allowedOrigin {
				slog.Warn("origin check failed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("origin", origin),
				)
				WriteError(w, r, model.NewForbiddenError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isSafeMethod はHTTPメソッドが安全（読み取り専用）かどうかを判定する。
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}
