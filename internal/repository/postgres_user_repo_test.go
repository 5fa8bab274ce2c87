package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/planauth/internal/model"
)

// PostgresUserRepoはUserRepositoryインターフェースを満たすことを検証
func TestPostgresUserRepo_ImplementsInterface(t *testing.T) {
	var _ UserRepository = (*PostgresUserRepo)(nil)
}

// PostgresLinkedAccountRepoはLinkedAccountRepositoryインターフェースを満たすことを検証
func TestPostgresLinkedAccountRepo_ImplementsInterface(t *testing.T) {
	var _ LinkedAccountRepository = (*PostgresLinkedAccountRepo)(nil)
}

// PostgresSessionRepoはSessionRepositoryインターフェースを満たすことを検証
func TestPostgresSessionRepo_ImplementsInterface(t *testing.T) {
	var _ SessionRepository = (*PostgresSessionRepo)(nil)
}

// PostgresPlanRepoはPlanRepositoryインターフェースを満たすことを検証
func TestPostgresPlanRepo_ImplementsInterface(t *testing.T) {
	var _ PlanRepository = (*PostgresPlanRepo)(nil)
}

func TestNewRepos_Initialize(t *testing.T) {
	if NewPostgresUserRepo(nil) == nil {
		t.Fatal("expected non-nil user repo")
	}
	if NewPostgresLinkedAccountRepo(nil) == nil {
		t.Fatal("expected non-nil linked account repo")
	}
	if NewPostgresSessionRepo(nil) == nil {
		t.Fatal("expected non-nil session repo")
	}
	if NewPostgresPlanRepo(nil) == nil {
		t.Fatal("expected non-nil plan repo")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"unique violation", &pq.Error{Code: "23505"}, true},
		{"wrapped unique violation", fmt.Errorf("insert: %w", &pq.Error{Code: "23505"}), true},
		{"foreign key violation", &pq.Error{Code: "23503"}, false},
		{"plain error", errors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUniqueViolation(tt.err); got != tt.want {
				t.Errorf("isUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}

// パスワードを持たないユーザーはpassword_hashがNULLで保存される
func TestNullString(t *testing.T) {
	if got := nullString(""); got != nil {
		t.Errorf("nullString(\"\") = %v, want nil", got)
	}
	if got := nullString("hash"); got != "hash" {
		t.Errorf("nullString(\"hash\") = %v, want hash", got)
	}
}

func TestTimePtr(t *testing.T) {
	if got := timePtr(sql.NullTime{}); got != nil {
		t.Errorf("expected nil for invalid NullTime, got %v", got)
	}

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	got := timePtr(sql.NullTime{Time: now, Valid: true})
	if got == nil || !got.Equal(now) {
		t.Errorf("timePtr() = %v, want %v", got, now)
	}
}

type fakeRow struct {
	values []interface{}
	err    error
}

func (r fakeRow) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *sql.NullString:
			if r.values[i] == nil {
				*p = sql.NullString{}
			} else {
				*p = sql.NullString{String: r.values[i].(string), Valid: true}
			}
		case *sql.NullTime:
			if r.values[i] == nil {
				*p = sql.NullTime{}
			} else {
				*p = sql.NullTime{Time: r.values[i].(time.Time), Valid: true}
			}
		case *time.Time:
			*p = r.values[i].(time.Time)
		default:
			return fmt.Errorf("unsupported dest %T", d)
		}
	}
	return nil
}

func TestScanUser_FreeOAuthOnlyUser(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	row := fakeRow{values: []interface{}{
		"user-1", "a@example.com", nil, "cus_1", "FREE",
		nil, nil, nil, created,
	}}

	user, err := scanUser(row)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.HasPassword() {
		t.Error("expected user without password")
	}
	if user.Plan != model.PlanFree {
		t.Errorf("Plan = %q, want FREE", user.Plan)
	}
	if !user.PlanState.Valid() {
		t.Error("expected valid plan state")
	}
}

func TestScanUser_PaidUser(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	row := fakeRow{values: []interface{}{
		"user-1", "a@example.com", "$2a$10$hash", "cus_1", "PRO",
		start, start, end, start,
	}}

	user, err := scanUser(row)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.PasswordHash != "$2a$10$hash" {
		t.Errorf("PasswordHash = %q", user.PasswordHash)
	}
	if user.Plan != model.PlanPro {
		t.Errorf("Plan = %q, want PRO", user.Plan)
	}
	if user.ExpiresAt == nil || !user.ExpiresAt.Equal(end) {
		t.Errorf("ExpiresAt = %v, want %v", user.ExpiresAt, end)
	}
}

func TestScanUser_PropagatesNoRows(t *testing.T) {
	_, err := scanUser(fakeRow{err: sql.ErrNoRows})
	if err != sql.ErrNoRows {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
}

// 不整合なプラン状態はDBに到達する前に拒否される
func TestPostgresPlanRepo_UpdateByCustomerID_RejectsInvalidState(t *testing.T) {
	repo := NewPostgresPlanRepo(nil)
	now := time.Now()

	invalid := model.PlanState{Plan: model.PlanFree, StartedAt: &now}
	if _, err := repo.UpdateByCustomerID(context.Background(), "cus_1", invalid); err == nil {
		t.Fatal("expected error for FREE plan with timestamps")
	}

	invalid = model.PlanState{Plan: model.PlanPro}
	if _, err := repo.UpdateByCustomerID(context.Background(), "cus_1", invalid); err == nil {
		t.Fatal("expected error for paid plan without timestamps")
	}
}
