package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/planauth/internal/model"
)

const userColumns = `id, email, password_hash, stripe_customer_id, plan,
	plan_started_at, plan_renewed_at, plan_expires_at, created_at`

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// execer は*sql.DBと*sql.Txの共通インターフェース。
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUser は1行分のユーザーを読み取る。
func scanUser(row rowScanner) (*model.User, error) {
	var (
		user         model.User
		passwordHash sql.NullString
		plan         string
		startedAt    sql.NullTime
		renewedAt    sql.NullTime
		expiresAt    sql.NullTime
	)
	err := row.Scan(
		&user.ID, &user.Email, &passwordHash, &user.StripeCustomerID, &plan,
		&startedAt, &renewedAt, &expiresAt, &user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.PasswordHash = passwordHash.String
	user.Plan = model.Plan(plan)
	user.StartedAt = timePtr(startedAt)
	user.RenewedAt = timePtr(renewedAt)
	user.ExpiresAt = timePtr(expiresAt)
	return &user, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByEmail はメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// insertUser はusersへのINSERTを実行する。
// プラン関連のタイムスタンプは作成時点では常にNULL。
func insertUser(ctx context.Context, exec execer, user *model.User) error {
	_, err := exec.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, stripe_customer_id, plan, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Email, nullString(user.PasswordHash), user.StripeCustomerID, string(user.Plan), user.CreatedAt,
	)
	return err
}

// Create はユーザーを作成する。一意制約違反の場合はErrDuplicateを返す。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	if err := insertUser(ctx, r.db, user); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// CreateWithLinkedAccount はユーザーと外部アカウントを同一トランザクションで作成する。
func (r *PostgresUserRepo) CreateWithLinkedAccount(ctx context.Context, user *model.User, account *model.LinkedAccount) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// ユーザーを作成
	if err := insertUser(ctx, tx, user); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	// 外部アカウントを紐付け
	if err := insertLinkedAccount(ctx, tx, account); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert linked account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// UpdateEmail はメールアドレスを更新する。
func (r *PostgresUserRepo) UpdateEmail(ctx context.Context, id, email string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET email = $2 WHERE id = $1`,
		id, email,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to update email: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByID は指定IDのユーザーを削除する。
// 関連するsessions、linked_accountsはCASCADE削除される。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
