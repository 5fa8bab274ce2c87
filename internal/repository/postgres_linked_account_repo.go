package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/planauth/internal/model"
)

// PostgresLinkedAccountRepo はPostgreSQLを使用した外部アカウントリポジトリ。
type PostgresLinkedAccountRepo struct {
	db *sql.DB
}

// NewPostgresLinkedAccountRepo はPostgresLinkedAccountRepoを生成する。
func NewPostgresLinkedAccountRepo(db *sql.DB) *PostgresLinkedAccountRepo {
	return &PostgresLinkedAccountRepo{db: db}
}

// FindByProvider はprovider_nameとprovider_idで紐付けを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresLinkedAccountRepo) FindByProvider(ctx context.Context, providerName, providerID string) (*model.LinkedAccount, error) {
	account := &model.LinkedAccount{}
	err := r.db.QueryRowContext(ctx,
		`SELECT provider_name, provider_id, user_id, created_at
		 FROM linked_accounts
		 WHERE provider_name = $1 AND provider_id = $2`,
		providerName, providerID,
	).Scan(&account.ProviderName, &account.ProviderID, &account.UserID, &account.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find linked account: %w", err)
	}

	return account, nil
}

func insertLinkedAccount(ctx context.Context, exec execer, account *model.LinkedAccount) error {
	_, err := exec.ExecContext(ctx,
		`INSERT INTO linked_accounts (provider_name, provider_id, user_id, created_at)
		 VALUES ($1, $2, $3, $4)`,
		account.ProviderName, account.ProviderID, account.UserID, account.CreatedAt,
	)
	return err
}

// Create は紐付けを作成する。
// (provider_name, provider_id) または (user_id, provider_name) の重複はErrDuplicateを返す。
func (r *PostgresLinkedAccountRepo) Create(ctx context.Context, account *model.LinkedAccount) error {
	if err := insertLinkedAccount(ctx, r.db, account); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert linked account: %w", err)
	}
	return nil
}

// ListByUserID はユーザーに紐付く外部アカウントの一覧を返す。
func (r *PostgresLinkedAccountRepo) ListByUserID(ctx context.Context, userID string) ([]*model.LinkedAccount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT provider_name, provider_id, user_id, created_at
		 FROM linked_accounts
		 WHERE user_id = $1
		 ORDER BY provider_name`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list linked accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*model.LinkedAccount
	for rows.Next() {
		account := &model.LinkedAccount{}
		if err := rows.Scan(&account.ProviderName, &account.ProviderID, &account.UserID, &account.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan linked account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate linked accounts: %w", err)
	}

	return accounts, nil
}

// compile-time interface check
var _ LinkedAccountRepository = (*PostgresLinkedAccountRepo)(nil)
