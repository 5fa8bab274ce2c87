package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRouter_Health(t *testing.T) {
	tests := []struct {
		name       string
		checker    HealthChecker
		wantStatus int
	}{
		{"no checker", nil, http.StatusOK},
		{"database up", &mockHealthChecker{}, http.StatusOK},
		{"database down", &mockHealthChecker{err: errors.New("connection refused")}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := newTestDeps()
			deps.HealthChecker = tt.checker

			w := serve(deps, http.MethodGet, "/health", "")
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestRouter_MetricsRoute(t *testing.T) {
	deps := newTestDeps()
	deps.MetricsHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("planauth_sessions_issued_total 0\n"))
	})

	w := serve(deps, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRouter_SecurityHeaders(t *testing.T) {
	w := serve(newTestDeps(), http.MethodGet, "/health", "")

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
}

// TestRouter_CrossOriginPostRejected は別オリジンからの状態変更リクエストが拒否されることを検証する。
func TestRouter_CrossOriginPostRejected(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/sign-out", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()

	NewRouter(newTestDeps()).ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestRouter_StatusHook(t *testing.T) {
	deps := newTestDeps()
	var statuses []int
	deps.StatusHook = func(method string, status int) {
		statuses = append(statuses, status)
	}

	serve(deps, http.MethodGet, "/health", "")
	serve(deps, http.MethodGet, "/api/v1/users/@me", "")

	if len(statuses) != 2 || statuses[0] != http.StatusOK || statuses[1] != http.StatusUnauthorized {
		t.Errorf("statuses = %v, want [200 401]", statuses)
	}
}

func TestRouter_UnknownRoute(t *testing.T) {
	w := serve(newTestDeps(), http.MethodGet, "/api/v1/nope", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}
