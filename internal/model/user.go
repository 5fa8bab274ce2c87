// Package model はドメインモデルを定義する。
package model

import "time"

// Plan はサブスクリプションのプラン種別を表す。
type Plan string

const (
	PlanFree    Plan = "FREE"
	PlanPremium Plan = "PREMIUM"
	PlanPro     Plan = "PRO"
)

// ParsePlan は文字列をPlanに変換する。未知の値の場合はfalseを返す。
func ParsePlan(s string) (Plan, bool) {
	switch Plan(s) {
	case PlanFree, PlanPremium, PlanPro:
		return Plan(s), true
	default:
		return "", false
	}
}

// IsPaid は有料プランかどうかを返す。
func (p Plan) IsPaid() bool {
	return p == PlanPremium || p == PlanPro
}

// PlanState はユーザーのプランと期間情報をまとめたもの。
// Plan == PlanFree のとき3つのタイムスタンプはすべてnilでなければならない。
type PlanState struct {
	Plan      Plan
	StartedAt *time.Time
	RenewedAt *time.Time
	ExpiresAt *time.Time
}

// FreePlanState は無料プランの状態（タイムスタンプなし）を返す。
func FreePlanState() PlanState {
	return PlanState{Plan: PlanFree}
}

// PaidPlanState は有料プランの状態を返す。
func PaidPlanState(plan Plan, startedAt, renewedAt, expiresAt time.Time) PlanState {
	return PlanState{
		Plan:      plan,
		StartedAt: &startedAt,
		RenewedAt: &renewedAt,
		ExpiresAt: &expiresAt,
	}
}

// Valid はプランとタイムスタンプの整合性を検証する。
func (s PlanState) Valid() bool {
	if s.Plan == PlanFree {
		return s.StartedAt == nil && s.RenewedAt == nil && s.ExpiresAt == nil
	}
	if !s.Plan.IsPaid() {
		return false
	}
	return s.StartedAt != nil && s.RenewedAt != nil && s.ExpiresAt != nil
}

// User はサービス利用ユーザーを表す。
// PasswordHashが空の場合はOAuth専用アカウント。
type User struct {
	ID               string
	Email            string
	PasswordHash     string
	StripeCustomerID string
	PlanState
	CreatedAt time.Time
}

// HasPassword はパスワードでのサインインが可能かどうかを返す。
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// LinkedAccount は外部IdPとの紐付け情報を表す。
// (ProviderName, ProviderID) の組は最大1ユーザーにのみ紐付く。
type LinkedAccount struct {
	ProviderName string
	ProviderID   string
	UserID       string
	CreatedAt    time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// ExpiredAt は指定時刻でセッションが失効しているかを返す。
func (s *Session) ExpiredAt(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
