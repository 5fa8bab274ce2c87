// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/planauth/internal/auth"
	"github.com/hitoshi/planauth/internal/model"
	"github.com/hitoshi/planauth/internal/repository"
)

// Profile はユーザー情報と紐付け済みプロバイダーの一覧。
type Profile struct {
	User      *model.User
	Providers []string
}

// Service はユーザー管理のサービス層。
// 本人以外のユーザーに対する更新・削除はForbiddenになる。
type Service struct {
	userRepo    repository.UserRepository
	accountRepo repository.LinkedAccountRepository
	sessionRepo repository.SessionRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	accountRepo repository.LinkedAccountRepository,
	sessionRepo repository.SessionRepository,
) *Service {
	return &Service{
		userRepo:    userRepo,
		accountRepo: accountRepo,
		sessionRepo: sessionRepo,
	}
}

// Profile はユーザーのプロフィールを返す。
func (s *Service) Profile(ctx context.Context, userID string) (*Profile, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	accounts, err := s.accountRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list linked accounts: %w", err)
	}

	providers := make([]string, 0, len(accounts))
	for _, a := range accounts {
		providers = append(providers, a.ProviderName)
	}
	return &Profile{User: user, Providers: providers}, nil
}

// UpdateEmail はactorID本人のメールアドレスを更新し、更新後のユーザーを返す。
func (s *Service) UpdateEmail(ctx context.Context, actorID, userID, email string) (*model.User, error) {
	if actorID != userID {
		return nil, model.NewForbiddenError()
	}

	email = auth.NormalizeEmail(email)
	if email == "" {
		return nil, model.NewValidationError("email is required")
	}

	err := s.userRepo.UpdateEmail(ctx, userID, email)
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		return nil, model.NewEmailTakenError()
	case errors.Is(err, repository.ErrNotFound):
		return nil, model.NewUserNotFoundError()
	case err != nil:
		return nil, fmt.Errorf("failed to update email: %w", err)
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	slog.Info("email updated", slog.String("user_id", userID))
	return user, nil
}

// Delete はactorID本人のアカウントを削除する。
// 削除順序: sessions → user（+ CASCADE: linked_accounts）
// Stripe側の顧客は残す。
func (s *Service) Delete(ctx context.Context, actorID, userID string) error {
	if actorID != userID {
		return model.NewForbiddenError()
	}

	if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}

	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewUserNotFoundError()
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}

	slog.Info("account deleted", slog.String("user_id", userID))
	return nil
}
