// Package repository はデータ永続化のインターフェースを定義する。
// 一意性（メールアドレス、Stripe顧客ID、外部アカウント）はDBの一意制約でのみ保証する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/planauth/internal/model"
)

var (
	// ErrDuplicate は一意制約違反を表す。
	ErrDuplicate = errors.New("duplicate key")
	// ErrNotFound は更新・削除対象の行が存在しないことを表す。
	ErrNotFound = errors.New("record not found")
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。一意制約違反の場合はErrDuplicateを返す。
	Create(ctx context.Context, user *model.User) error

	// CreateWithLinkedAccount はユーザーと外部アカウントを同一トランザクションで作成する。
	// 一意制約違反の場合はErrDuplicateを返す。
	CreateWithLinkedAccount(ctx context.Context, user *model.User, account *model.LinkedAccount) error

	// UpdateEmail はメールアドレスを更新する。
	// 重複時はErrDuplicate、ユーザー不在時はErrNotFoundを返す。
	UpdateEmail(ctx context.Context, id, email string) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するsessions、linked_accountsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// LinkedAccountRepository は外部IdP紐付け情報の永続化インターフェース。
type LinkedAccountRepository interface {
	// FindByProvider はprovider_nameとprovider_idで紐付けを検索する。
	// 見つからない場合はnilを返す。
	FindByProvider(ctx context.Context, providerName, providerID string) (*model.LinkedAccount, error)

	// Create は紐付けを作成する。一意制約違反の場合はErrDuplicateを返す。
	Create(ctx context.Context, account *model.LinkedAccount) error

	// ListByUserID はユーザーに紐付く外部アカウントの一覧を返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.LinkedAccount, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
	// 期限切れの判定は呼び出し側で行う。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。存在しない場合もエラーにしない。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired はbefore時点で期限切れのセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// PlanRepository はプラン状態の永続化インターフェース。
type PlanRepository interface {
	// UpdateByCustomerID はStripe顧客IDに紐付くユーザーのプラン状態を上書きする。
	// 該当ユーザーがいない場合は0を返し、エラーにしない。
	UpdateByCustomerID(ctx context.Context, customerID string, state model.PlanState) (int64, error)
}
