package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/hitoshi/planauth/internal/model"
	"github.com/hitoshi/planauth/internal/repository"
)

// DefaultSessionTTL はセッションの有効期間の既定値。
const DefaultSessionTTL = 30 * 24 * time.Hour

// ErrNoSession はセッションが無効であることを表す。
// 署名不正・未存在・期限切れを区別しない。
var ErrNoSession = model.NewSessionInvalidError()

// IssuedSession は発行されたセッションと、クライアントに渡す署名済みトークン。
type IssuedSession struct {
	Session *model.Session
	Token   string
}

// SessionManager はセッションの発行・検証・破棄を行う。
type SessionManager struct {
	sessions repository.SessionRepository
	users    repository.UserRepository
	signer   TokenSigner
	ttl      time.Duration

	now func() time.Time
}

// NewSessionManager はSessionManagerを生成する。ttlが0以下の場合はDefaultSessionTTLを使う。
func NewSessionManager(
	sessions repository.SessionRepository,
	users repository.UserRepository,
	signer TokenSigner,
	ttl time.Duration,
) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{
		sessions: sessions,
		users:    users,
		signer:   signer,
		ttl:      ttl,
		now:      time.Now,
	}
}

// TTL はセッションの有効期間を返す。
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Issue はユーザーのセッションを作成し、署名済みトークンを返す。
func (m *SessionManager) Issue(ctx context.Context, userID string) (*IssuedSession, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := m.now()
	session := &model.Session{
		ID:        id,
		UserID:    userID,
		ExpiresAt: now.Add(m.ttl),
		CreatedAt: now,
	}

	if err := m.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	token, err := m.signer.Sign(session.ID, session.ExpiresAt)
	if err != nil {
		return nil, err
	}

	return &IssuedSession{Session: session, Token: token}, nil
}

// Validate はトークンを検証し、有効なセッションとその所有ユーザーを返す。
// 無効な場合は理由にかかわらずErrNoSessionを返す。ストレージ障害のみ別のエラーになる。
func (m *SessionManager) Validate(ctx context.Context, token string) (*model.Session, *model.User, error) {
	if token == "" {
		return nil, nil, ErrNoSession
	}

	sessionID, err := m.signer.Verify(token)
	if err != nil {
		return nil, nil, ErrNoSession
	}

	session, err := m.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil || session.ExpiredAt(m.now()) {
		return nil, nil, ErrNoSession
	}

	user, err := m.users.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find session user: %w", err)
	}
	if user == nil {
		return nil, nil, ErrNoSession
	}

	return session, user, nil
}

// Revoke はセッションを削除する。存在しない場合も成功とする。
func (m *SessionManager) Revoke(ctx context.Context, sessionID string) error {
	if err := m.sessions.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// RevokeToken はトークンが指すセッションを削除する。検証できないトークンは無視する。
func (m *SessionManager) RevokeToken(ctx context.Context, token string) error {
	sessionID, err := m.signer.Verify(token)
	if err != nil {
		return nil
	}
	return m.Revoke(ctx, sessionID)
}

// PurgeExpired は現在時刻で期限切れのセッションを削除し、削除件数を返す。
func (m *SessionManager) PurgeExpired(ctx context.Context) (int64, error) {
	return m.sessions.DeleteExpired(ctx, m.now())
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
