package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/planauth/internal/model"
)

// Outcome はイベント適用の結果。
type Outcome string

const (
	// OutcomeApplied はユーザーのプラン状態を書き込んだ。
	OutcomeApplied Outcome = "applied"
	// OutcomeIgnored は処理対象外のイベント種別または状態。
	OutcomeIgnored Outcome = "ignored"
	// OutcomeNoMatch は顧客IDに一致するユーザーがいなかった。
	OutcomeNoMatch Outcome = "no_match"
)

// ErrIncompleteEvent はactiveイベントに必要な項目が欠けている場合のエラー。
var ErrIncompleteEvent = errors.New("subscription event is missing required fields")

// PlanStore は顧客IDをキーにプラン状態を上書きする。
type PlanStore interface {
	UpdateByCustomerID(ctx context.Context, customerID string, state model.PlanState) (int64, error)
}

// MetricsRecorder はイベント処理のメトリクスを記録する。
type MetricsRecorder interface {
	RecordWebhookEvent(eventType, outcome string)
	RecordPlanTransition(plan string)
}

type noopMetrics struct{}

func (noopMetrics) RecordWebhookEvent(string, string) {}
func (noopMetrics) RecordPlanTransition(string)       {}

// StateMachine は課金イベントをプラン状態に反映する。
// 遷移先はイベントのペイロードのみから決まるため、同じイベントの再適用は同じ結果になる。
type StateMachine struct {
	store   PlanStore
	lookup  PlanLookup
	metrics MetricsRecorder
}

// NewStateMachine はStateMachineを生成する。metricsがnilの場合は記録しない。
func NewStateMachine(store PlanStore, lookup PlanLookup, metrics MetricsRecorder) *StateMachine {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &StateMachine{store: store, lookup: lookup, metrics: metrics}
}

// Transition はイベントから遷移先のプラン状態を求める。
// 処理対象外のイベントの場合はfalseを返す。
func (m *StateMachine) Transition(ctx context.Context, ev Event) (model.PlanState, bool, error) {
	switch ev.Type {
	case EventSubscriptionDeleted:
		return model.FreePlanState(), true, nil

	case EventSubscriptionUpdated:
		if ev.Status == StatusActive {
			return m.activeState(ctx, ev)
		}
		if downgradeStatuses[ev.Status] {
			return model.FreePlanState(), true, nil
		}
		return model.PlanState{}, false, nil

	default:
		return model.PlanState{}, false, nil
	}
}

func (m *StateMachine) activeState(ctx context.Context, ev Event) (model.PlanState, bool, error) {
	if ev.ProductID == "" || ev.CreatedAt.IsZero() || ev.CurrentPeriodStart.IsZero() || ev.CurrentPeriodEnd.IsZero() {
		return model.PlanState{}, false, fmt.Errorf("event %s: %w", ev.ID, ErrIncompleteEvent)
	}

	plan, err := m.lookup.PlanForProduct(ctx, ev.ProductID)
	if err != nil {
		return model.PlanState{}, false, fmt.Errorf("failed to resolve plan for product %s: %w", ev.ProductID, err)
	}

	return model.PaidPlanState(plan, ev.CreatedAt, ev.CurrentPeriodStart, ev.CurrentPeriodEnd), true, nil
}

// Apply はイベントを適用する。
// 顧客IDに一致するユーザーがいない場合はエラーにせずOutcomeNoMatchを返す。
func (m *StateMachine) Apply(ctx context.Context, ev Event) (Outcome, error) {
	if ev.CustomerID == "" {
		slog.Warn("billing event without customer ignored",
			slog.String("event_id", ev.ID),
			slog.String("type", ev.Type),
		)
		m.metrics.RecordWebhookEvent(ev.Type, string(OutcomeIgnored))
		return OutcomeIgnored, nil
	}

	state, ok, err := m.Transition(ctx, ev)
	if err != nil {
		m.metrics.RecordWebhookEvent(ev.Type, "error")
		return "", err
	}
	if !ok {
		slog.Debug("billing event ignored",
			slog.String("event_id", ev.ID),
			slog.String("type", ev.Type),
			slog.String("status", ev.Status),
		)
		m.metrics.RecordWebhookEvent(ev.Type, string(OutcomeIgnored))
		return OutcomeIgnored, nil
	}

	rows, err := m.store.UpdateByCustomerID(ctx, ev.CustomerID, state)
	if err != nil {
		m.metrics.RecordWebhookEvent(ev.Type, "error")
		return "", fmt.Errorf("failed to update plan for customer %s: %w", ev.CustomerID, err)
	}

	if rows == 0 {
		slog.Info("billing event matched no user",
			slog.String("event_id", ev.ID),
			slog.String("stripe_customer_id", ev.CustomerID),
		)
		m.metrics.RecordWebhookEvent(ev.Type, string(OutcomeNoMatch))
		return OutcomeNoMatch, nil
	}

	slog.Info("plan state updated",
		slog.String("event_id", ev.ID),
		slog.String("stripe_customer_id", ev.CustomerID),
		slog.String("plan", string(state.Plan)),
	)
	m.metrics.RecordWebhookEvent(ev.Type, string(OutcomeApplied))
	m.metrics.RecordPlanTransition(string(state.Plan))
	return OutcomeApplied, nil
}
