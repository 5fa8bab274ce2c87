package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/hitoshi/planauth/internal/model"
)

// OAuthProfile はIdPから取得したユーザー情報。
type OAuthProfile struct {
	ProviderUserID string
	Emails         []OAuthEmail
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// Name はlinked_accounts.provider_nameに保存されるプロバイダー名を返す。
	Name() string
	// AuthCodeURL は認可画面のURLを生成する。
	AuthCodeURL(state string) string
	// Exchange は認可コードをアクセストークンに交換する。
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	// FetchProfile はアクセストークンでユーザー情報を取得する。
	FetchProfile(ctx context.Context, token *oauth2.Token) (*OAuthProfile, error)
}

// Providers は名前をキーにしたOAuthProviderの集合。
type Providers map[string]OAuthProvider

// NewProviders はProvidersを生成する。nilのプロバイダーは無視する。
func NewProviders(providers ...OAuthProvider) Providers {
	set := make(Providers, len(providers))
	for _, p := range providers {
		if p == nil {
			continue
		}
		set[p.Name()] = p
	}
	return set
}

// Get は指定名のプロバイダーを返す。未登録の場合はNotFound種別のエラーを返す。
func (p Providers) Get(name string) (OAuthProvider, error) {
	provider, ok := p[name]
	if !ok {
		return nil, model.NewUnknownProviderError(name)
	}
	return provider, nil
}

// endpointOrDefault はテスト用のURLが指定されていればそれを使う。
func endpointOrDefault(authURL, tokenURL string, def oauth2.Endpoint) oauth2.Endpoint {
	if authURL == "" && tokenURL == "" {
		return def
	}
	return oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL}
}

// getJSON はOAuthクライアントでGETし、JSONレスポンスをoutにデコードする。
func getJSON(ctx context.Context, client *http.Client, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request to %s failed with status %d: %s", url, resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
