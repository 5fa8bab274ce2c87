// Package auth は認証情報からユーザーを解決し、セッションを管理する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/planauth/internal/model"
	"github.com/hitoshi/planauth/internal/repository"
)

// CustomerCreator は課金プロバイダー上に顧客を作成する。
type CustomerCreator interface {
	CreateCustomer(ctx context.Context, email, userID string) (string, error)
}

// Resolver は提示された認証情報をただ1人のユーザーに解決する。
// 一意性はストレージの制約のみで保証し、プロセス内のロックは使わない。
type Resolver struct {
	users     repository.UserRepository
	accounts  repository.LinkedAccountRepository
	hasher    PasswordHasher
	customers CustomerCreator

	now   func() time.Time
	newID func() string
}

// NewResolver はResolverを生成する。
func NewResolver(
	users repository.UserRepository,
	accounts repository.LinkedAccountRepository,
	hasher PasswordHasher,
	customers CustomerCreator,
) *Resolver {
	return &Resolver{
		users:     users,
		accounts:  accounts,
		hasher:    hasher,
		customers: customers,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// SignUp はパスワード認証のユーザーを作成する。
// 作成直後のユーザーはFREEプランで、プラン関連のタイムスタンプを持たない。
func (r *Resolver) SignUp(ctx context.Context, email, password string) (*model.User, error) {
	email = NormalizeEmail(email)

	existing, err := r.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailTakenError()
	}

	hash, err := r.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, ErrPasswordTooLong) {
			return nil, model.NewValidationError("password is too long")
		}
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := r.newUser(ctx, email)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash

	if err := r.users.Create(ctx, user); err != nil {
		warnOrphanedCustomer(user, err)
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewEmailTakenError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user signed up",
		slog.String("user_id", user.ID),
		slog.String("method", "password"),
	)
	return user, nil
}

// SignIn はメールアドレスとパスワードでユーザーを認証する。
func (r *Resolver) SignIn(ctx context.Context, email, password string) (*model.User, error) {
	user, err := r.users.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	if !user.HasPassword() || !r.hasher.Verify(user.PasswordHash, password) {
		return nil, model.NewInvalidCredentialsError()
	}
	return user, nil
}

// Resolve は認証情報の種類に応じてユーザーを解決する。
func (r *Resolver) Resolve(ctx context.Context, cred Credential) (*model.User, error) {
	switch c := cred.(type) {
	case PasswordCredential:
		return r.SignIn(ctx, c.Email, c.Password)
	case OAuthCredential:
		return r.resolveOAuth(ctx, c)
	default:
		return nil, fmt.Errorf("unsupported credential type %T", cred)
	}
}

// resolveOAuth はOAuthの認証情報をユーザーに解決する。
//  1. 紐付け済みの外部アカウントがあればそのユーザー
//  2. 検証済みプライマリメールが既存ユーザーと一致すれば、そのユーザーに紐付けを追加
//  3. いずれもなければユーザーと紐付けを新規作成
func (r *Resolver) resolveOAuth(ctx context.Context, c OAuthCredential) (*model.User, error) {
	user, err := r.findLinkedUser(ctx, c.Provider, c.ProviderUserID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	email, ok := PrimaryVerifiedEmail(c.Emails)
	if !ok {
		return nil, model.NewNoVerifiedEmailError(c.Provider)
	}

	existing, err := r.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		return r.linkAccount(ctx, existing, c)
	}

	user, err = r.newUser(ctx, email)
	if err != nil {
		return nil, err
	}
	account := r.newLinkedAccount(c, user.ID)

	if err := r.users.CreateWithLinkedAccount(ctx, user, account); err != nil {
		warnOrphanedCustomer(user, err)
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("failed to create user with linked account: %w", err)
		}
		// 同じ外部アカウントで並行してサインインされた場合は勝者のユーザーを返す
		return r.retryLinked(ctx, c, model.NewEmailTakenError())
	}

	slog.Info("user signed up",
		slog.String("user_id", user.ID),
		slog.String("method", c.Provider),
	)
	return user, nil
}

// linkAccount は既存ユーザーに外部アカウントを紐付ける。
func (r *Resolver) linkAccount(ctx context.Context, user *model.User, c OAuthCredential) (*model.User, error) {
	err := r.accounts.Create(ctx, r.newLinkedAccount(c, user.ID))
	if err == nil {
		slog.Info("linked account to existing user",
			slog.String("user_id", user.ID),
			slog.String("provider", c.Provider),
		)
		return user, nil
	}
	if !errors.Is(err, repository.ErrDuplicate) {
		return nil, fmt.Errorf("failed to create linked account: %w", err)
	}
	// (provider, provider_id) の競合なら既存の紐付けを採用する。
	// (user_id, provider) の競合なら別アカウントが紐付け済み。
	return r.retryLinked(ctx, c, model.NewAccountLinkedError(c.Provider))
}

// retryLinked は一意制約違反の後に紐付けを再検索する。見つからなければconflictを返す。
func (r *Resolver) retryLinked(ctx context.Context, c OAuthCredential, conflict error) (*model.User, error) {
	user, err := r.findLinkedUser(ctx, c.Provider, c.ProviderUserID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}
	return nil, conflict
}

// findLinkedUser は紐付け済みの外部アカウントからユーザーを取得する。見つからない場合はnilを返す。
func (r *Resolver) findLinkedUser(ctx context.Context, provider, providerUserID string) (*model.User, error) {
	account, err := r.accounts.FindByProvider(ctx, provider, providerUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find linked account: %w", err)
	}
	if account == nil {
		return nil, nil
	}

	user, err := r.users.FindByID(ctx, account.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find linked user: %w", err)
	}
	return user, nil
}

// newUser はIDを割り当て、課金プロバイダーに顧客を作成した未保存のユーザーを返す。
func (r *Resolver) newUser(ctx context.Context, email string) (*model.User, error) {
	id := r.newID()
	customerID, err := r.customers.CreateCustomer(ctx, email, id)
	if err != nil {
		return nil, fmt.Errorf("failed to create billing customer: %w", err)
	}
	return &model.User{
		ID:               id,
		Email:            email,
		StripeCustomerID: customerID,
		PlanState:        model.FreePlanState(),
		CreatedAt:        r.now(),
	}, nil
}

func (r *Resolver) newLinkedAccount(c OAuthCredential, userID string) *model.LinkedAccount {
	return &model.LinkedAccount{
		ProviderName: c.Provider,
		ProviderID:   c.ProviderUserID,
		UserID:       userID,
		CreatedAt:    r.now(),
	}
}

// warnOrphanedCustomer はユーザー保存に失敗し参照されなくなった課金顧客を記録する。
func warnOrphanedCustomer(user *model.User, cause error) {
	slog.Warn("billing customer orphaned by failed user insert",
		slog.String("stripe_customer_id", user.StripeCustomerID),
		slog.String("user_id", user.ID),
		slog.String("error", cause.Error()),
	)
}
