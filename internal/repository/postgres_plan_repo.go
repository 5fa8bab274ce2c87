package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/planauth/internal/model"
)

// PostgresPlanRepo はPostgreSQLを使用したプラン状態リポジトリ。
type PostgresPlanRepo struct {
	db *sql.DB
}

// NewPostgresPlanRepo はPostgresPlanRepoを生成する。
func NewPostgresPlanRepo(db *sql.DB) *PostgresPlanRepo {
	return &PostgresPlanRepo{db: db}
}

// UpdateByCustomerID はstripe_customer_idに紐付くユーザーのプラン状態を1文のUPDATEで上書きする。
// 入力値のみから結果が決まるため、同じ状態の再適用は冪等になる。
func (r *PostgresPlanRepo) UpdateByCustomerID(ctx context.Context, customerID string, state model.PlanState) (int64, error) {
	if !state.Valid() {
		return 0, fmt.Errorf("invalid plan state for customer %s: plan=%s", customerID, state.Plan)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET plan = $2, plan_started_at = $3, plan_renewed_at = $4, plan_expires_at = $5
		 WHERE stripe_customer_id = $1`,
		customerID, string(state.Plan), state.StartedAt, state.RenewedAt, state.ExpiresAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update plan: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

// compile-time interface check
var _ PlanRepository = (*PostgresPlanRepo)(nil)
