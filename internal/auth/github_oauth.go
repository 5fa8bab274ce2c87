package auth

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const defaultGitHubAPIBaseURL = "https://api.github.com"

// GitHubOAuthConfig はGitHub OAuthプロバイダーの設定。
type GitHubOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なURL
	AuthURL    string
	TokenURL   string
	APIBaseURL string
}

// GitHubOAuthProvider はGitHub OAuthによる認証を提供する。
type GitHubOAuthProvider struct {
	oauth      *oauth2.Config
	apiBaseURL string
}

// NewGitHubOAuthProvider はGitHubOAuthProviderを生成する。
func NewGitHubOAuthProvider(config GitHubOAuthConfig) *GitHubOAuthProvider {
	apiBaseURL := config.APIBaseURL
	if apiBaseURL == "" {
		apiBaseURL = defaultGitHubAPIBaseURL
	}
	return &GitHubOAuthProvider{
		oauth: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Endpoint:     endpointOrDefault(config.AuthURL, config.TokenURL, github.Endpoint),
			Scopes:       []string{"read:user", "user:email"},
		},
		apiBaseURL: strings.TrimRight(apiBaseURL, "/"),
	}
}

// Name はプロバイダー名を返す。
func (p *GitHubOAuthProvider) Name() string {
	return "github"
}

// AuthCodeURL はGitHubの認可URLを生成する。
func (p *GitHubOAuthProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// Exchange は認可コードをアクセストークンに交換する。
func (p *GitHubOAuthProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange github code: %w", err)
	}
	return token, nil
}

type githubUser struct {
	ID int64 `json:"id"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// FetchProfile は/userと/user/emailsからユーザーIDとメール一覧を取得する。
func (p *GitHubOAuthProvider) FetchProfile(ctx context.Context, token *oauth2.Token) (*OAuthProfile, error) {
	client := p.oauth.Client(ctx, token)

	var user githubUser
	if err := getJSON(ctx, client, p.apiBaseURL+"/user", &user); err != nil {
		return nil, fmt.Errorf("failed to fetch github user: %w", err)
	}
	if user.ID == 0 {
		return nil, fmt.Errorf("empty id in github user response")
	}

	var emails []githubEmail
	if err := getJSON(ctx, client, p.apiBaseURL+"/user/emails", &emails); err != nil {
		return nil, fmt.Errorf("failed to fetch github emails: %w", err)
	}

	profile := &OAuthProfile{
		ProviderUserID: strconv.FormatInt(user.ID, 10),
		Emails:         make([]OAuthEmail, 0, len(emails)),
	}
	for _, e := range emails {
		profile.Emails = append(profile.Emails, OAuthEmail{
			Address:  e.Email,
			Verified: e.Verified,
			Primary:  e.Primary,
		})
	}
	return profile, nil
}

// compile-time interface check
var _ OAuthProvider = (*GitHubOAuthProvider)(nil)
