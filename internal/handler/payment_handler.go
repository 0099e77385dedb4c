package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/tgmarket/internal/model"
)

// PaymentGatewayInterface は決済ハンドラーが必要とするゲートウェイインターフェース。
type PaymentGatewayInterface interface {
	// GetStatus は決済レコードの現在の状態を返す。
	GetStatus(ctx context.Context, paymentID string) (*model.Payment, error)
	// EnqueueConfirmation は確認イベントを永続キューに投入する。
	EnqueueConfirmation(ctx context.Context, event model.ConfirmationEvent) error
	// Refund は失敗した決済を手動で返金済みに遷移させる。
	Refund(ctx context.Context, paymentID string) (*model.Payment, error)
}

// PaymentHandler は決済照会と確認イベント受付のHTTPハンドラー。
type PaymentHandler struct {
	gateway PaymentGatewayInterface
}

// NewPaymentHandler はPaymentHandlerを生成する。
func NewPaymentHandler(gateway PaymentGatewayInterface) *PaymentHandler {
	return &PaymentHandler{
		gateway: gateway,
	}
}

// confirmationRequest はオンチェーン確認イベントのリクエストボディ。
// 外部の監視系からat-least-onceで配送される。
type confirmationRequest struct {
	TxHash         string `json:"tx_hash"`
	SenderWallet   string `json:"sender_wallet"`
	ReceiverWallet string `json:"receiver_wallet"`
	AmountNano     int64  `json:"amount_nano"`
	GasFeeNano     int64  `json:"gas_fee_nano"`
	CommissionNano int64  `json:"commission_nano"`
	Failed         bool   `json:"failed"`
	FailureReason  string `json:"failure_reason"`
}

// paymentResponse は決済情報のAPIレスポンス。
type paymentResponse struct {
	ID             string    `json:"id"`
	OrderID        string    `json:"order_id,omitempty"`
	UserID         string    `json:"user_id"`
	TxHash         string    `json:"tx_hash"`
	AmountNano     int64     `json:"amount_nano"`
	GasFeeNano     int64     `json:"gas_fee_nano"`
	CommissionNano int64     `json:"commission_nano"`
	Status         string    `json:"status"`
	SenderWallet   string    `json:"sender_wallet,omitempty"`
	ReceiverWallet string    `json:"receiver_wallet,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// GetPayment は決済の現在の状態を返す。決済の所有者本人のみが参照できる。
// GET /api/payments/:id
func (h *PaymentHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	paymentID := chi.URLParam(r, "id")

	pay, err := h.gateway.GetStatus(r.Context(), paymentID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// 他人の決済はIDの存在自体を明かさない
	if pay.UserID != userID {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewPaymentNotFoundError(paymentID))
		return
	}

	writeJSON(w, http.StatusOK, toPaymentResponse(pay))
}

// SubmitConfirmation はオンチェーン確認イベントをキューに投入する。
// 処理の完了は待たず、投入できた時点で202を返す。
// POST /internal/confirmations
func (h *PaymentHandler) SubmitConfirmation(w http.ResponseWriter, r *http.Request) {
	var req confirmationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.TxHash == "" {
		writeInvalidRequest(w)
		return
	}

	err := h.gateway.EnqueueConfirmation(r.Context(), model.ConfirmationEvent{
		TxHash:         req.TxHash,
		SenderWallet:   req.SenderWallet,
		ReceiverWallet: req.ReceiverWallet,
		AmountNano:     req.AmountNano,
		GasFeeNano:     req.GasFeeNano,
		CommissionNano: req.CommissionNano,
		Failed:         req.Failed,
		FailureReason:  req.FailureReason,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// RefundPayment は失敗した決済を返金済みに遷移させるオペレーター操作。
// POST /internal/payments/:id/refund
func (h *PaymentHandler) RefundPayment(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "id")

	pay, err := h.gateway.Refund(r.Context(), paymentID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPaymentResponse(pay))
}

// toPaymentResponse はmodel.PaymentからAPIレスポンスに変換する。
func toPaymentResponse(p *model.Payment) paymentResponse {
	return paymentResponse{
		ID:             p.ID,
		OrderID:        p.OrderID,
		UserID:         p.UserID,
		TxHash:         p.TxHash,
		AmountNano:     p.AmountNano,
		GasFeeNano:     p.GasFeeNano,
		CommissionNano: p.CommissionNano,
		Status:         string(p.Status),
		SenderWallet:   p.SenderWallet,
		ReceiverWallet: p.ReceiverWallet,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}
