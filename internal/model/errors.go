// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// ErrorKind はエラーの分類を表す。ハンドラーはこれをHTTPステータスに変換する。
type ErrorKind string

const (
	KindConflict     ErrorKind = "conflict"
	KindNotFound     ErrorKind = "not_found"
	KindUnauthorized ErrorKind = "unauthorized"
	KindForbidden    ErrorKind = "forbidden"
	KindBadRequest   ErrorKind = "bad_request"
	KindInternal     ErrorKind = "internal"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Kind     ErrorKind
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, billing, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// KindOf はエラーの分類を返す。APIError以外はすべてKindInternalとして扱う。
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindInternal
}

// 定義済みエラーコード
const (
	ErrCodeEmailTaken         = "EMAIL_TAKEN"
	ErrCodeAccountLinked      = "ACCOUNT_ALREADY_LINKED"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeSessionInvalid     = "SESSION_INVALID"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeValidation         = "VALIDATION_FAILED"
	ErrCodeNoVerifiedEmail    = "NO_VERIFIED_EMAIL"
	ErrCodeUnknownProvider    = "UNKNOWN_PROVIDER"
	ErrCodeInvalidPlan        = "INVALID_PLAN"
	ErrCodeInvalidSignature   = "INVALID_SIGNATURE"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Kind:     KindConflict,
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "auth",
		Action:   "サインインするか、別のメールアドレスを使用してください。",
	}
}

// NewAccountLinkedError は外部アカウントの紐付け重複エラーを生成する。
func NewAccountLinkedError(provider string) *APIError {
	return &APIError{
		Kind:     KindConflict,
		Code:     ErrCodeAccountLinked,
		Message:  fmt.Sprintf("このユーザーには既に別の%sアカウントが紐付いています。", provider),
		Category: "auth",
		Action:   "紐付け済みのアカウントでサインインしてください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Kind:     KindNotFound,
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "メールアドレスを確認するか、新規登録してください。",
	}
}

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Kind:     KindUnauthorized,
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認してください。",
	}
}

// NewSessionInvalidError はセッション無効エラーを生成する。
// 期限切れ・未存在・改ざんを区別しない。
func NewSessionInvalidError() *APIError {
	return &APIError{
		Kind:     KindUnauthorized,
		Code:     ErrCodeSessionInvalid,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewForbiddenError は他ユーザーのリソースへのアクセスエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Kind:     KindForbidden,
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "自分のアカウントに対してのみ操作できます。",
	}
}

// NewValidationError は入力値の検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Kind:     KindBadRequest,
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力値が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewNoVerifiedEmailError はOAuthプロバイダーから検証済みプライマリメールが得られない場合のエラーを生成する。
func NewNoVerifiedEmailError(provider string) *APIError {
	return &APIError{
		Kind:     KindBadRequest,
		Code:     ErrCodeNoVerifiedEmail,
		Message:  fmt.Sprintf("%sアカウントに検証済みのプライマリメールアドレスがありません。", provider),
		Category: "auth",
		Action:   "プロバイダー側でメールアドレスを検証してから再度お試しください。",
	}
}

// NewUnknownProviderError は未対応のOAuthプロバイダーが指定された場合のエラーを生成する。
func NewUnknownProviderError(provider string) *APIError {
	return &APIError{
		Kind:     KindNotFound,
		Code:     ErrCodeUnknownProvider,
		Message:  fmt.Sprintf("未対応のプロバイダーです: %s", provider),
		Category: "auth",
		Action:   "対応しているプロバイダーを選択してください。",
	}
}

// NewInvalidPlanError は購入できないプランが指定された場合のエラーを生成する。
func NewInvalidPlanError(plan string) *APIError {
	return &APIError{
		Kind:     KindBadRequest,
		Code:     ErrCodeInvalidPlan,
		Message:  fmt.Sprintf("無効なプランです: %s", plan),
		Category: "billing",
		Action:   "PREMIUM または PRO を指定してください。",
	}
}

// NewInvalidSignatureError はWebhook署名検証エラーを生成する。
func NewInvalidSignatureError() *APIError {
	return &APIError{
		Kind:     KindBadRequest,
		Code:     ErrCodeInvalidSignature,
		Message:  "Webhookの署名が不正です。",
		Category: "billing",
		Action:   "署名シークレットの設定を確認してください。",
	}
}
