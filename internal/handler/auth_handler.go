package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/tgmarket/internal/auth"
	"github.com/hitoshi/tgmarket/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// LoginWithWidget はログインウィジェットのペイロードを検証しログインする。
	LoginWithWidget(ctx context.Context, rawQuery string) (*auth.LoginResult, error)
	// LoginWithInitData はミニアプリのinitDataペイロードを検証しログインする。
	LoginWithInitData(ctx context.Context, rawInitData string) (*auth.LoginResult, error)
}

// AuthHandler はTelegram認証のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{
		service: service,
	}
}

// widgetLoginRequest はログインウィジェット認証リクエストのボディ。
// payloadにはウィジェットが返したクエリ文字列をそのまま入れる。
type widgetLoginRequest struct {
	Payload string `json:"payload"`
}

// initDataLoginRequest はミニアプリ認証リクエストのボディ。
// init_dataにはTelegram.WebApp.initDataをそのまま入れる。
type initDataLoginRequest struct {
	InitData string `json:"init_data"`
}

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	ID         string `json:"id"`
	TelegramID int64  `json:"telegram_id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name,omitempty"`
	Username   string `json:"username,omitempty"`
	Wallet     string `json:"wallet,omitempty"`
}

// loginResponse はログイン成功時のAPIレスポンス。
type loginResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

// LoginWidget はログインウィジェットのペイロードで認証する。
// POST /auth/telegram/widget
func (h *AuthHandler) LoginWidget(w http.ResponseWriter, r *http.Request) {
	var req widgetLoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Payload == "" {
		writeInvalidRequest(w)
		return
	}

	result, err := h.service.LoginWithWidget(r.Context(), req.Payload)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toLoginResponse(result))
}

// LoginInitData はミニアプリのinitDataペイロードで認証する。
// POST /auth/telegram/initdata
func (h *AuthHandler) LoginInitData(w http.ResponseWriter, r *http.Request) {
	var req initDataLoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.InitData == "" {
		writeInvalidRequest(w)
		return
	}

	result, err := h.service.LoginWithInitData(r.Context(), req.InitData)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toLoginResponse(result))
}

// toLoginResponse はLoginResultからAPIレスポンスに変換する。
func toLoginResponse(result *auth.LoginResult) loginResponse {
	return loginResponse{
		Token: result.Token,
		User:  toUserResponse(result.User),
	}
}

// toUserResponse はmodel.UserからAPIレスポンスに変換する。
func toUserResponse(user *model.User) userResponse {
	return userResponse{
		ID:         user.ID,
		TelegramID: user.TelegramID,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		Username:   user.Username,
		Wallet:     user.Wallet,
	}
}
