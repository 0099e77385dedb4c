// Package handler はHTTP APIのハンドラー層を提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/tgmarket/internal/middleware"
	"github.com/hitoshi/tgmarket/internal/model"
	"github.com/hitoshi/tgmarket/internal/payment"
)

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	writeJSON(w, statusCode, apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// writeUnauthorized は認証必須エラーを書き込む。
func writeUnauthorized(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	})
}

// writeInvalidRequest はリクエストボディ不正のエラーを書き込む。
func writeInvalidRequest(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	})
}

// requireUserID はリクエストコンテキストから認証済みユーザーIDを取り出す。
// 取り出せない場合は401レスポンスを書き込み、okにfalseを返す。
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return "", false
	}
	return userID, true
}

// decodeJSON はリクエストボディをJSONとしてデコードする。
// 失敗した場合は400レスポンスを書き込み、falseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeInvalidRequest(w)
		return false
	}
	return true
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// 決済サブシステムのセンチネルエラー
	if errors.Is(err, payment.ErrPaymentNotFound) {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewPaymentNotFoundError(""))
		return
	}
	if errors.Is(err, payment.ErrInvalidTransition) {
		writeAPIErrorResponse(w, http.StatusConflict, &model.APIError{
			Code:     model.ErrCodeInvalidTransition,
			Message:  "現在のステータスではこの操作を実行できません。",
			Category: "payment",
			Action:   "決済の現在のステータスを確認してください。",
		})
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeAuthRejected:
		return http.StatusUnauthorized
	case model.ErrCodeStoreNotFound,
		model.ErrCodeProductNotFound,
		model.ErrCodeOrderNotFound,
		model.ErrCodePaymentNotFound,
		model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeNotStoreOwner:
		return http.StatusForbidden
	case model.ErrCodeInvalidAmount, model.ErrCodeInvalidRating:
		return http.StatusBadRequest
	case model.ErrCodeInvalidTransition,
		model.ErrCodeOrderNotPayable,
		model.ErrCodeOrderNotCancellable:
		return http.StatusConflict
	case model.ErrCodeProductUnavailable:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
