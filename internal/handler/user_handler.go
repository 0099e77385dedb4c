package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/tgmarket/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// GetProfile は現在のユーザーのプロフィールを返す。
	GetProfile(ctx context.Context, userID string) (*model.User, error)
	// LinkWallet はユーザーにTONウォレットアドレスを紐づける。空文字列で解除。
	LinkWallet(ctx context.Context, userID, wallet string) (*model.User, error)
}

// UserHandler はユーザープロフィールのHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// linkWalletRequest はウォレット紐づけリクエストのボディ。
type linkWalletRequest struct {
	Wallet string `json:"wallet"`
}

// Me は現在のユーザーのプロフィールを返す。
// GET /api/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	user, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// LinkWallet はウォレットアドレスを紐づける。
// PUT /api/me/wallet
func (h *UserHandler) LinkWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req linkWalletRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.service.LinkWallet(r.Context(), userID, req.Wallet)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}
