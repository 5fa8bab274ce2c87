package auth

import "strings"

// Credential はサインイン時に提示される認証情報。
// PasswordCredentialとOAuthCredentialのいずれかのみを取る。
type Credential interface {
	credential()
}

// PasswordCredential はメールアドレスとパスワードによる認証情報。
type PasswordCredential struct {
	Email    string
	Password string
}

// OAuthCredential は外部IdPで認証済みのユーザーを表す認証情報。
type OAuthCredential struct {
	Provider       string
	ProviderUserID string
	Emails         []OAuthEmail
}

func (PasswordCredential) credential() {}
func (OAuthCredential) credential()    {}

// OAuthEmail はIdPが返すメールアドレスと検証状態。
type OAuthEmail struct {
	Address  string
	Verified bool
	Primary  bool
}

// PrimaryVerifiedEmail は検証済みかつプライマリのメールアドレスを返す。
// 該当がない場合はfalseを返す。推測による代替は行わない。
func PrimaryVerifiedEmail(emails []OAuthEmail) (string, bool) {
	for _, e := range emails {
		if e.Verified && e.Primary && strings.TrimSpace(e.Address) != "" {
			return NormalizeEmail(e.Address), true
		}
	}
	return "", false
}

// NormalizeEmail はメールアドレスを比較用に正規化する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
