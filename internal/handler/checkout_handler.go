package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/planauth/internal/middleware"
	"github.com/hitoshi/planauth/internal/model"
)

// CheckoutServiceInterface はCheckoutハンドラーが必要とするサービスインターフェース。
type CheckoutServiceInterface interface {
	Start(ctx context.Context, user *model.User, plan string) (string, error)
}

// CheckoutHandler は有料プラン購入のHTTPハンドラー。
type CheckoutHandler struct {
	service CheckoutServiceInterface
}

// NewCheckoutHandler はCheckoutHandlerを生成する。
func NewCheckoutHandler(service CheckoutServiceInterface) *CheckoutHandler {
	return &CheckoutHandler{service: service}
}

type checkoutRequest struct {
	Plan string `json:"plan" validate:"required"`
}

// Create はCheckoutセッションを作成し、遷移先URLを返す。
// POST /api/v1/checkout
func (h *CheckoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	current, err := middleware.UserFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, r, model.NewSessionInvalidError())
		return
	}

	var req checkoutRequest
	if err := decodeRequest(w, r, &req); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	url, err := h.service.Start(r.Context(), current, req.Plan)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"url": url})
}
