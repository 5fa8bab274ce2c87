package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/planauth/internal/model"
)

// MetricsRecorder は認証イベントのメトリクスを記録する。
type MetricsRecorder interface {
	RecordSignUp(method string)
	RecordSignIn(method, result string)
	RecordSessionIssued()
}

type noopMetrics struct{}

func (noopMetrics) RecordSignUp(string)         {}
func (noopMetrics) RecordSignIn(string, string) {}
func (noopMetrics) RecordSessionIssued()        {}

const methodPassword = "password"

// Service はResolverとSessionManagerを組み合わせ、サインイン系の操作を提供する。
// ユーザーの解決が完了してからセッションを発行する。
type Service struct {
	resolver  *Resolver
	sessions  *SessionManager
	providers Providers
	metrics   MetricsRecorder
}

// NewService はServiceを生成する。metricsがnilの場合は記録しない。
func NewService(resolver *Resolver, sessions *SessionManager, providers Providers, metrics MetricsRecorder) *Service {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Service{
		resolver:  resolver,
		sessions:  sessions,
		providers: providers,
		metrics:   metrics,
	}
}

// SignUp はパスワード認証のユーザーを作成し、セッションを発行する。
func (s *Service) SignUp(ctx context.Context, email, password string) (*model.User, *IssuedSession, error) {
	user, err := s.resolver.SignUp(ctx, email, password)
	if err != nil {
		return nil, nil, err
	}
	s.metrics.RecordSignUp(methodPassword)

	issued, err := s.issue(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, issued, nil
}

// SignIn はメールアドレスとパスワードで認証し、セッションを発行する。
func (s *Service) SignIn(ctx context.Context, email, password string) (*model.User, *IssuedSession, error) {
	return s.signIn(ctx, methodPassword, PasswordCredential{Email: email, Password: password})
}

// LoginURL は指定プロバイダーの認可URLを返す。
func (s *Service) LoginURL(provider, state string) (string, error) {
	p, err := s.providers.Get(provider)
	if err != nil {
		return "", err
	}
	return p.AuthCodeURL(state), nil
}

// HandleCallback はOAuthコールバックの認可コードからユーザーを解決し、セッションを発行する。
func (s *Service) HandleCallback(ctx context.Context, provider, code string) (*model.User, *IssuedSession, error) {
	p, err := s.providers.Get(provider)
	if err != nil {
		return nil, nil, err
	}

	token, err := p.Exchange(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	profile, err := p.FetchProfile(ctx, token)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch oauth profile: %w", err)
	}

	return s.signIn(ctx, p.Name(), OAuthCredential{
		Provider:       p.Name(),
		ProviderUserID: profile.ProviderUserID,
		Emails:         profile.Emails,
	})
}

// Logout はトークンが指すセッションを破棄する。何度呼んでも成功する。
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.RevokeToken(ctx, token)
}

// CurrentUser はトークンから現在のセッションとユーザーを取得する。
func (s *Service) CurrentUser(ctx context.Context, token string) (*model.Session, *model.User, error) {
	return s.sessions.Validate(ctx, token)
}

func (s *Service) signIn(ctx context.Context, method string, cred Credential) (*model.User, *IssuedSession, error) {
	user, err := s.resolver.Resolve(ctx, cred)
	if err != nil {
		s.metrics.RecordSignIn(method, "failure")
		return nil, nil, err
	}
	s.metrics.RecordSignIn(method, "success")

	issued, err := s.issue(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("user signed in",
		slog.String("user_id", user.ID),
		slog.String("method", method),
	)
	return user, issued, nil
}

func (s *Service) issue(ctx context.Context, userID string) (*IssuedSession, error) {
	issued, err := s.sessions.Issue(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session: %w", err)
	}
	s.metrics.RecordSessionIssued()
	return issued, nil
}
