package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/hitoshi/planauth/internal/auth"
	"github.com/hitoshi/planauth/internal/billing"
	"github.com/hitoshi/planauth/internal/middleware"
	"github.com/hitoshi/planauth/internal/model"
	"github.com/hitoshi/planauth/internal/user"
)

// --- モック定義 ---

type mockAuthService struct {
	signUpFn         func(ctx context.Context, email, password string) (*model.User, *auth.IssuedSession, error)
	signInFn         func(ctx context.Context, email, password string) (*model.User, *auth.IssuedSession, error)
	loginURLFn       func(provider, state string) (string, error)
	handleCallbackFn func(ctx context.Context, provider, code string) (*model.User, *auth.IssuedSession, error)
	logoutFn         func(ctx context.Context, token string) error
}

func (m *mockAuthService) SignUp(ctx context.Context, email, password string) (*model.User, *auth.IssuedSession, error) {
	return m.signUpFn(ctx, email, password)
}

func (m *mockAuthService) SignIn(ctx context.Context, email, password string) (*model.User, *auth.IssuedSession, error) {
	return m.signInFn(ctx, email, password)
}

func (m *mockAuthService) LoginURL(provider, state string) (string, error) {
	if m.loginURLFn != nil {
		return m.loginURLFn(provider, state)
	}
	return "", model.NewUnknownProviderError(provider)
}

func (m *mockAuthService) HandleCallback(ctx context.Context, provider, code string) (*model.User, *auth.IssuedSession, error) {
	return m.handleCallbackFn(ctx, provider, code)
}

func (m *mockAuthService) Logout(ctx context.Context, token string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, token)
	}
	return nil
}

type mockUserService struct {
	profileFn     func(ctx context.Context, userID string) (*user.Profile, error)
	updateEmailFn func(ctx context.Context, actorID, userID, email string) (*model.User, error)
	deleteFn      func(ctx context.Context, actorID, userID string) error
}

func (m *mockUserService) Profile(ctx context.Context, userID string) (*user.Profile, error) {
	return m.profileFn(ctx, userID)
}

func (m *mockUserService) UpdateEmail(ctx context.Context, actorID, userID, email string) (*model.User, error) {
	return m.updateEmailFn(ctx, actorID, userID, email)
}

func (m *mockUserService) Delete(ctx context.Context, actorID, userID string) error {
	return m.deleteFn(ctx, actorID, userID)
}

type mockCheckoutService struct {
	startFn func(ctx context.Context, user *model.User, plan string) (string, error)
}

func (m *mockCheckoutService) Start(ctx context.Context, user *model.User, plan string) (string, error) {
	return m.startFn(ctx, user, plan)
}

type mockWebhookVerifier struct {
	verifyFn func(payload []byte, signature string) (billing.Event, error)
}

func (m *mockWebhookVerifier) Verify(payload []byte, signature string) (billing.Event, error) {
	return m.verifyFn(payload, signature)
}

type mockEventApplier struct {
	applyFn func(ctx context.Context, ev billing.Event) (billing.Outcome, error)
}

func (m *mockEventApplier) Apply(ctx context.Context, ev billing.Event) (billing.Outcome, error) {
	return m.applyFn(ctx, ev)
}

// mockSessionValidator は"valid-token"のみを受け付ける。
type mockSessionValidator struct {
	user *model.User
}

func (m *mockSessionValidator) CurrentUser(ctx context.Context, token string) (*model.Session, *model.User, error) {
	if token != validToken || m.user == nil {
		return nil, nil, model.NewSessionInvalidError()
	}
	return &model.Session{ID: "session-1", UserID: m.user.ID}, m.user, nil
}

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	return m.err
}

// --- ヘルパー ---

const (
	testOrigin = "http://localhost:3000"
	validToken = "valid-token"
)

var testUser = &model.User{
	ID:               "user-1",
	Email:            "user@example.com",
	PasswordHash:     "hashed",
	StripeCustomerID: "cus_1",
	PlanState:        model.FreePlanState(),
	CreatedAt:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
}

func testAuthConfig() AuthHandlerConfig {
	return AuthHandlerConfig{
		OriginURL:     testOrigin,
		SessionMaxAge: 30 * 24 * time.Hour,
	}
}

// newTestDeps は全依存をモックで埋めたRouterDepsを返す。各テストで必要な関数のみ上書きする。
func newTestDeps() *RouterDeps {
	return &RouterDeps{
		SessionValidator: &mockSessionValidator{user: testUser},
		AllowedOrigin:    testOrigin,
		Logger:           slog.New(slog.NewJSONHandler(io.Discard, nil)),
		AuthService:      &mockAuthService{},
		AuthConfig:       testAuthConfig(),
		UserService:      &mockUserService{},
		CheckoutService:  &mockCheckoutService{},
		WebhookVerifier:  &mockWebhookVerifier{},
		EventApplier:     &mockEventApplier{},
	}
}

// serve はルーター経由でリクエストを処理する。
func serve(deps *RouterDeps, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	NewRouter(deps).ServeHTTP(w, req)
	return w
}

func sessionCookie(token string) *http.Cookie {
	return &http.Cookie{Name: middleware.SessionCookieName, Value: token}
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func issuedSession(token string) *auth.IssuedSession {
	return &auth.IssuedSession{
		Session: &model.Session{ID: "session-1", UserID: testUser.ID, ExpiresAt: time.Now().Add(time.Hour)},
		Token:   token,
	}
}
