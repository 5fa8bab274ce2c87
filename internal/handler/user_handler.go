package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/planauth/internal/middleware"
	"github.com/hitoshi/planauth/internal/model"
	"github.com/hitoshi/planauth/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	Profile(ctx context.Context, userID string) (*user.Profile, error)
	UpdateEmail(ctx context.Context, actorID, userID, email string) (*model.User, error)
	// Delete はユーザーを削除する。sessions、linked_accountsも削除される。
	Delete(ctx context.Context, actorID, userID string) error
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service      UserServiceInterface
	cookieConfig AuthHandlerConfig
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, cookieConfig AuthHandlerConfig) *UserHandler {
	return &UserHandler{
		service:      service,
		cookieConfig: cookieConfig,
	}
}

// Me は現在のログインユーザー情報を返す。
// GET /api/v1/users/@me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	current, err := middleware.UserFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, r, model.NewSessionInvalidError())
		return
	}

	profile, err := h.service.Profile(r.Context(), current.ID)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	resp := toUserResponse(profile.User)
	resp.Providers = profile.Providers
	writeJSON(w, http.StatusOK, resp)
}

type updateUserRequest struct {
	Email string `json:"email" validate:"required,email,max=320"`
}

// Update はユーザーのメールアドレスを更新する。
// PATCH /api/v1/users/{userId}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	current, err := middleware.UserFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, r, model.NewSessionInvalidError())
		return
	}

	var req updateUserRequest
	if err := decodeRequest(w, r, &req); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	updated, err := h.service.UpdateEmail(r.Context(), current.ID, chi.URLParam(r, "userId"), req.Email)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(updated))
}

// Delete はユーザーを削除し、セッションCookieをクリアする。
// DELETE /api/v1/users/{userId}
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	current, err := middleware.UserFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, r, model.NewSessionInvalidError())
		return
	}

	if err := h.service.Delete(r.Context(), current.ID, chi.URLParam(r, "userId")); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	clearSessionCookie(w, h.cookieConfig)
	w.WriteHeader(http.StatusNoContent)
}
