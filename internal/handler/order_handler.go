package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/tgmarket/internal/model"
	"github.com/hitoshi/tgmarket/internal/order"
)

// OrderServiceInterface は注文ハンドラーが必要とするサービスインターフェース。
type OrderServiceInterface interface {
	Create(ctx context.Context, userID, productID string) (*model.Order, error)
	Get(ctx context.Context, userID, orderID string) (*model.Order, error)
	ListMine(ctx context.Context, userID string) ([]*model.Order, error)
	SubmitPayment(ctx context.Context, userID, orderID string, in order.SubmitPaymentInput) (*model.Payment, error)
	Cancel(ctx context.Context, userID, orderID string) (*model.Order, error)
}

// OrderHandler は注文管理のHTTPハンドラー。
type OrderHandler struct {
	service OrderServiceInterface
}

// NewOrderHandler はOrderHandlerを生成する。
func NewOrderHandler(service OrderServiceInterface) *OrderHandler {
	return &OrderHandler{
		service: service,
	}
}

// createOrderRequest は注文作成リクエストのボディ。
type createOrderRequest struct {
	ProductID string `json:"product_id"`
}

// submitPaymentRequest は決済送信リクエストのボディ。
// ウォレット送金後のトランザクションハッシュを添える。
type submitPaymentRequest struct {
	TxHash       string `json:"tx_hash"`
	SenderWallet string `json:"sender_wallet"`
}

// orderResponse は注文情報のAPIレスポンス。
type orderResponse struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	ProductID  string    `json:"product_id"`
	PaymentID  string    `json:"payment_id,omitempty"`
	AmountNano int64     `json:"amount_nano"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CreateOrder は商品の注文を作成する。
// POST /api/orders
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ProductID == "" {
		writeInvalidRequest(w)
		return
	}

	created, err := h.service.Create(r.Context(), userID, req.ProductID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(created))
}

// ListMyOrders は自分の注文一覧を返す。
// GET /api/orders
func (h *OrderHandler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	orders, err := h.service.ListMine(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	res := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		res = append(res, toOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, res)
}

// GetOrder は注文詳細を取得する。注文者本人のみが参照できる。
// GET /api/orders/:id
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	orderID := chi.URLParam(r, "id")

	found, err := h.service.Get(r.Context(), userID, orderID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(found))
}

// SubmitPayment は注文への決済送信を受け付ける。
// POST /api/orders/:id/payment
func (h *OrderHandler) SubmitPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	orderID := chi.URLParam(r, "id")

	var req submitPaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.TxHash == "" {
		writeInvalidRequest(w)
		return
	}

	pay, err := h.service.SubmitPayment(r.Context(), userID, orderID, order.SubmitPaymentInput{
		TxHash:       req.TxHash,
		SenderWallet: req.SenderWallet,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, toPaymentResponse(pay))
}

// CancelOrder は決済送信前の注文をキャンセルする。
// POST /api/orders/:id/cancel
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	orderID := chi.URLParam(r, "id")

	cancelled, err := h.service.Cancel(r.Context(), userID, orderID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(cancelled))
}

// toOrderResponse はmodel.OrderからAPIレスポンスに変換する。
func toOrderResponse(o *model.Order) orderResponse {
	return orderResponse{
		ID:         o.ID,
		UserID:     o.UserID,
		ProductID:  o.ProductID,
		PaymentID:  o.PaymentID,
		AmountNano: o.AmountNano,
		Status:     string(o.Status),
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}
}
