package payment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/tgmarket/internal/model"
)

// --- モック ---

type mockPaymentRepo struct {
	mu       sync.Mutex
	byID     map[string]*model.Payment
	byTxHash map[string]*model.Payment

	createCalls    int
	updateConflict bool
}

func newMockPaymentRepo() *mockPaymentRepo {
	return &mockPaymentRepo{
		byID:     make(map[string]*model.Payment),
		byTxHash: make(map[string]*model.Payment),
	}
}

func (r *mockPaymentRepo) Create(ctx context.Context, payment *model.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCalls++
	cp := *payment
	r.byID[payment.ID] = &cp
	r.byTxHash[payment.TxHash] = &cp
	return nil
}

func (r *mockPaymentRepo) FindByID(ctx context.Context, id string) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *mockPaymentRepo) FindByTxHash(ctx context.Context, txHash string) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byTxHash[txHash]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *mockPaymentRepo) UpdateTransition(ctx context.Context, payment *model.Payment, from model.PaymentStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateConflict {
		return false, nil
	}
	stored, ok := r.byID[payment.ID]
	if !ok || stored.Status != from {
		return false, nil
	}
	cp := *payment
	r.byID[payment.ID] = &cp
	r.byTxHash[payment.TxHash] = &cp
	return true, nil
}

type mockQueueRepo struct {
	mu       sync.Mutex
	enqueued []*model.QueuedConfirmation
}

func (q *mockQueueRepo) Enqueue(ctx context.Context, qc *model.QueuedConfirmation) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueued = append(q.enqueued, qc)
	return nil
}

func (q *mockQueueRepo) ListDue(ctx context.Context, limit int) ([]*model.QueuedConfirmation, error) {
	return nil, nil
}
func (q *mockQueueRepo) MarkDone(ctx context.Context, id string) error { return nil }
func (q *mockQueueRepo) Requeue(ctx context.Context, id string, attempts int, nextAttemptAt time.Time, lastError string) error {
	return nil
}
func (q *mockQueueRepo) MarkDead(ctx context.Context, id string, lastError string) error { return nil }
func (q *mockQueueRepo) DeleteFinishedBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func newTestGateway() (*Gateway, *mockPaymentRepo, *mockQueueRepo) {
	payments := newMockPaymentRepo()
	queue := &mockQueueRepo{}
	g := NewGateway(payments, queue, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return g, payments, queue
}

// --- テスト ---

func TestCreateIntent_CreatesPendingPayment(t *testing.T) {
	g, payments, _ := newTestGateway()

	p, err := g.CreateIntent(context.Background(), CreateIntentInput{
		UserID:       "user-1",
		AmountNano:   500000,
		SenderWallet: "EQsender",
		TxHash:       "abc",
	})
	if err != nil {
		t.Fatalf("作成に成功するべき: %v", err)
	}
	if p.Status != model.PaymentStatusPending {
		t.Errorf("初期ステータス = %s, want pending", p.Status)
	}
	if p.ID == "" {
		t.Error("内部IDが割り当てられていない")
	}
	if payments.createCalls != 1 {
		t.Errorf("createCalls = %d, want 1", payments.createCalls)
	}
}

func TestCreateIntent_RejectsNonPositiveAmount(t *testing.T) {
	g, _, _ := newTestGateway()

	_, err := g.CreateIntent(context.Background(), CreateIntentInput{
		UserID:     "user-1",
		AmountNano: 0,
		TxHash:     "abc",
	})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidAmount {
		t.Errorf("err = %v, want INVALID_AMOUNT", err)
	}
}

func TestCreateIntent_RejectsMissingTxHash(t *testing.T) {
	g, _, _ := newTestGateway()

	if _, err := g.CreateIntent(context.Background(), CreateIntentInput{
		UserID:     "user-1",
		AmountNano: 100,
	}); err == nil {
		t.Error("トランザクションハッシュなしは拒否するべき")
	}
}

// 同一TxHashでの再送は既存レコードを返す（冪等）。
func TestCreateIntent_IdempotentOnTxHash(t *testing.T) {
	g, payments, _ := newTestGateway()

	in := CreateIntentInput{
		UserID:     "user-1",
		AmountNano: 500000,
		TxHash:     "abc",
	}

	first, err := g.CreateIntent(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	second, err := g.CreateIntent(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}

	if first.ID != second.ID {
		t.Errorf("再送で別レコードが作成された: %s != %s", first.ID, second.ID)
	}
	if payments.createCalls != 1 {
		t.Errorf("createCalls = %d, want 1", payments.createCalls)
	}
}

func TestEnqueueConfirmation_InsertsQueuedEvent(t *testing.T) {
	g, _, queue := newTestGateway()

	err := g.EnqueueConfirmation(context.Background(), model.ConfirmationEvent{
		TxHash:     "abc",
		AmountNano: 500000,
	})
	if err != nil {
		t.Fatalf("投入に成功するべき: %v", err)
	}

	if len(queue.enqueued) != 1 {
		t.Fatalf("enqueued = %d, want 1", len(queue.enqueued))
	}
	qc := queue.enqueued[0]
	if qc.Status != model.ConfirmationStatusQueued {
		t.Errorf("Status = %s, want queued", qc.Status)
	}
	if qc.Event.TxHash != "abc" {
		t.Errorf("TxHash = %q, want abc", qc.Event.TxHash)
	}
}

func TestEnqueueConfirmation_RejectsMissingTxHash(t *testing.T) {
	g, _, _ := newTestGateway()

	if err := g.EnqueueConfirmation(context.Background(), model.ConfirmationEvent{}); err == nil {
		t.Error("トランザクションハッシュなしは拒否するべき")
	}
}

func TestGetStatus_NotFound(t *testing.T) {
	g, _, _ := newTestGateway()

	_, err := g.GetStatus(context.Background(), "missing")
	if !errors.Is(err, ErrPaymentNotFound) {
		t.Errorf("err = %v, want ErrPaymentNotFound", err)
	}
}

func TestRefund_FailedPaymentBecomesRefunded(t *testing.T) {
	g, payments, _ := newTestGateway()

	p := &model.Payment{
		ID:     "pay-1",
		TxHash: "abc",
		Status: model.PaymentStatusFailed,
	}
	if err := payments.Create(context.Background(), p); err != nil {
		t.Fatal(err)
	}

	refunded, err := g.Refund(context.Background(), "pay-1")
	if err != nil {
		t.Fatalf("返金に成功するべき: %v", err)
	}
	if refunded.Status != model.PaymentStatusRefunded {
		t.Errorf("Status = %s, want refunded", refunded.Status)
	}
}

func TestRefund_NonFailedPaymentRejected(t *testing.T) {
	g, payments, _ := newTestGateway()

	p := &model.Payment{
		ID:     "pay-1",
		TxHash: "abc",
		Status: model.PaymentStatusPending,
	}
	if err := payments.Create(context.Background(), p); err != nil {
		t.Fatal(err)
	}

	_, err := g.Refund(context.Background(), "pay-1")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}
}

// 並行する操作が先にステータスを変更していた場合もErrInvalidTransitionになる。
func TestRefund_ConcurrentModificationRejected(t *testing.T) {
	g, payments, _ := newTestGateway()

	p := &model.Payment{
		ID:     "pay-1",
		TxHash: "abc",
		Status: model.PaymentStatusFailed,
	}
	if err := payments.Create(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	payments.updateConflict = true

	_, err := g.Refund(context.Background(), "pay-1")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}
}
