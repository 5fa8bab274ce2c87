package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken はトークンの署名検証に失敗した場合のエラー。
var ErrInvalidToken = errors.New("invalid session token")

// TokenSigner はセッションIDへの署名と検証を行う。
type TokenSigner interface {
	Sign(sessionID string, expiresAt time.Time) (string, error)
	Verify(token string) (string, error)
}

// JWTSigner はHS256のJWTでセッションIDに署名する。
type JWTSigner struct {
	secret []byte
	issuer string
}

// NewJWTSigner はJWTSignerを生成する。
func NewJWTSigner(secret, issuer string) (*JWTSigner, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("session secret must be at least 32 bytes")
	}
	return &JWTSigner{secret: []byte(secret), issuer: issuer}, nil
}

// Sign はセッションIDをjtiに持つトークンを生成する。
func (s *JWTSigner) Sign(sessionID string, expiresAt time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        sessionID,
		Issuer:    s.issuer,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Verify はトークンを検証しセッションIDを返す。
// 失敗理由にかかわらずErrInvalidTokenを返す。
func (s *JWTSigner) Verify(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
	)
	if err != nil || !parsed.Valid || claims.ID == "" {
		return "", ErrInvalidToken
	}
	return claims.ID, nil
}

// compile-time interface check
var _ TokenSigner = (*JWTSigner)(nil)
