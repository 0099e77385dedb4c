package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/tgmarket/internal/model"
	"github.com/hitoshi/tgmarket/internal/order"
)

// --- モック定義 ---

type mockOrderService struct {
	createFn        func(ctx context.Context, userID, productID string) (*model.Order, error)
	getFn           func(ctx context.Context, userID, orderID string) (*model.Order, error)
	listMineFn      func(ctx context.Context, userID string) ([]*model.Order, error)
	submitPaymentFn func(ctx context.Context, userID, orderID string, in order.SubmitPaymentInput) (*model.Payment, error)
	cancelFn        func(ctx context.Context, userID, orderID string) (*model.Order, error)
}

func (m *mockOrderService) Create(ctx context.Context, userID, productID string) (*model.Order, error) {
	return m.createFn(ctx, userID, productID)
}

func (m *mockOrderService) Get(ctx context.Context, userID, orderID string) (*model.Order, error) {
	return m.getFn(ctx, userID, orderID)
}

func (m *mockOrderService) ListMine(ctx context.Context, userID string) ([]*model.Order, error) {
	return m.listMineFn(ctx, userID)
}

func (m *mockOrderService) SubmitPayment(ctx context.Context, userID, orderID string, in order.SubmitPaymentInput) (*model.Payment, error) {
	return m.submitPaymentFn(ctx, userID, orderID, in)
}

func (m *mockOrderService) Cancel(ctx context.Context, userID, orderID string) (*model.Order, error) {
	return m.cancelFn(ctx, userID, orderID)
}

// orderTestRouter は注文ルートのみを組んだテスト用ルーターを返す。
func orderTestRouter(svc OrderServiceInterface) http.Handler {
	h := NewOrderHandler(svc)
	r := chi.NewRouter()
	r.Post("/api/orders", h.CreateOrder)
	r.Get("/api/orders", h.ListMyOrders)
	r.Get("/api/orders/{id}", h.GetOrder)
	r.Post("/api/orders/{id}/payment", h.SubmitPayment)
	r.Post("/api/orders/{id}/cancel", h.CancelOrder)
	return r
}

// --- テスト ---

func TestOrderHandler_CreateOrder_Success(t *testing.T) {
	svc := &mockOrderService{
		createFn: func(ctx context.Context, userID, productID string) (*model.Order, error) {
			return &model.Order{
				ID:         "order-1",
				UserID:     userID,
				ProductID:  productID,
				AmountNano: 3_000_000_000,
				Status:     model.OrderStatusCreated,
			}, nil
		},
	}
	router := orderTestRouter(svc)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest(http.MethodPost, "/api/orders", `{"product_id":"prod-1"}`, "user-1"))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}

	var res orderResponse
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("レスポンスボディのパースに失敗: %v", err)
	}
	if res.ProductID != "prod-1" || res.AmountNano != 3_000_000_000 {
		t.Errorf("レスポンスが不正: %+v", res)
	}
}

func TestOrderHandler_CreateOrder_ProductUnavailable(t *testing.T) {
	svc := &mockOrderService{
		createFn: func(ctx context.Context, userID, productID string) (*model.Order, error) {
			return nil, model.NewProductUnavailableError(productID)
		},
	}
	router := orderTestRouter(svc)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest(http.MethodPost, "/api/orders", `{"product_id":"prod-1"}`, "user-1"))

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
}

func TestOrderHandler_CreateOrder_MissingProductID(t *testing.T) {
	router := orderTestRouter(&mockOrderService{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest(http.MethodPost, "/api/orders", `{}`, "user-1"))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestOrderHandler_SubmitPayment_Accepted(t *testing.T) {
	var gotInput order.SubmitPaymentInput
	svc := &mockOrderService{
		submitPaymentFn: func(ctx context.Context, userID, orderID string, in order.SubmitPaymentInput) (*model.Payment, error) {
			gotInput = in
			return &model.Payment{
				ID:      "pay-1",
				OrderID: orderID,
				UserID:  userID,
				TxHash:  in.TxHash,
				Status:  model.PaymentStatusPending,
			}, nil
		},
	}
	router := orderTestRouter(svc)

	body := `{"tx_hash":"tx-abc","sender_wallet":"EQsender"}`
	w := httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest(http.MethodPost, "/api/orders/order-1/payment", body, "user-1"))

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	if gotInput.TxHash != "tx-abc" || gotInput.SenderWallet != "EQsender" {
		t.Errorf("サービスへの入力が不正: %+v", gotInput)
	}

	var res paymentResponse
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("レスポンスボディのパースに失敗: %v", err)
	}
	if res.Status != string(model.PaymentStatusPending) {
		t.Errorf("status = %q, want pending", res.Status)
	}
}

func TestOrderHandler_SubmitPayment_MissingTxHash(t *testing.T) {
	router := orderTestRouter(&mockOrderService{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest(http.MethodPost, "/api/orders/order-1/payment", `{"sender_wallet":"EQx"}`, "user-1"))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestOrderHandler_SubmitPayment_NotPayable(t *testing.T) {
	svc := &mockOrderService{
		submitPaymentFn: func(ctx context.Context, userID, orderID string, in order.SubmitPaymentInput) (*model.Payment, error) {
			return nil, model.NewOrderNotPayableError(model.OrderStatusCancelled)
		},
	}
	router := orderTestRouter(svc)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest(http.MethodPost, "/api/orders/order-1/payment", `{"tx_hash":"tx-abc"}`, "user-1"))

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestOrderHandler_CancelOrder_Conflict(t *testing.T) {
	svc := &mockOrderService{
		cancelFn: func(ctx context.Context, userID, orderID string) (*model.Order, error) {
			return nil, model.NewOrderNotCancellableError(model.OrderStatusPaid)
		},
	}
	router := orderTestRouter(svc)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest(http.MethodPost, "/api/orders/order-1/cancel", "", "user-1"))

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestOrderHandler_GetOrder_NotFound(t *testing.T) {
	svc := &mockOrderService{
		getFn: func(ctx context.Context, userID, orderID string) (*model.Order, error) {
			return nil, model.NewOrderNotFoundError(orderID)
		},
	}
	router := orderTestRouter(svc)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest(http.MethodGet, "/api/orders/missing", "", "user-1"))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
