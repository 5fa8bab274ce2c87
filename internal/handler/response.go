package handler

import (
	"time"

	"github.com/hitoshi/planauth/internal/model"
)

// userResponse はユーザー情報のレスポンス。パスワードハッシュは含めない。
type userResponse struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Plan          string     `json:"plan"`
	PlanStartedAt *time.Time `json:"planStartedAt"`
	PlanRenewedAt *time.Time `json:"planRenewedAt"`
	PlanExpiresAt *time.Time `json:"planExpiresAt"`
	HasPassword   bool       `json:"hasPassword"`
	Providers     []string   `json:"providers,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

func toUserResponse(user *model.User) userResponse {
	return userResponse{
		ID:            user.ID,
		Email:         user.Email,
		Plan:          string(user.Plan),
		PlanStartedAt: user.StartedAt,
		PlanRenewedAt: user.RenewedAt,
		PlanExpiresAt: user.ExpiresAt,
		HasPassword:   user.HasPassword(),
		CreatedAt:     user.CreatedAt,
	}
}
