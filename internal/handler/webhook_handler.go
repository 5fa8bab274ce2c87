package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/planauth/internal/billing"
	"github.com/hitoshi/planauth/internal/middleware"
	"github.com/hitoshi/planauth/internal/model"
)

// maxWebhookBodyBytes はStripe Webhookのボディ上限。
const maxWebhookBodyBytes = 65536

// WebhookVerifier は署名を検証してイベントを取り出す。
type WebhookVerifier interface {
	Verify(payload []byte, signature string) (billing.Event, error)
}

// EventApplier は検証済みイベントをプラン状態に反映する。
type EventApplier interface {
	Apply(ctx context.Context, ev billing.Event) (billing.Outcome, error)
}

// WebhookHandler は課金プロバイダーのWebhookを受け付ける。
type WebhookHandler struct {
	verifier WebhookVerifier
	applier  EventApplier
}

// NewWebhookHandler はWebhookHandlerを生成する。
func NewWebhookHandler(verifier WebhookVerifier, applier EventApplier) *WebhookHandler {
	return &WebhookHandler{verifier: verifier, applier: applier}
}

// Stripe は署名検証後にイベントを適用する。
// 署名不正は400、適用失敗は500（Stripe側で再送される）を返す。
// POST /api/v1/webhook/stripe
func (h *WebhookHandler) Stripe(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		middleware.WriteError(w, r, model.NewValidationError("failed to read request body"))
		return
	}

	ev, err := h.verifier.Verify(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		slog.Warn("webhook signature verification failed", slog.String("error", err.Error()))
		middleware.WriteError(w, r, err)
		return
	}

	outcome, err := h.applier.Apply(r.Context(), ev)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"received": true,
		"outcome":  string(outcome),
	})
}
