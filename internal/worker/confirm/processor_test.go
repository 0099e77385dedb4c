package confirm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/tgmarket/internal/model"
)

// --- モック ---

// fakePaymentRepo はDBの条件付きUPDATEを模倣するインメモリ実装。
// FindはDBと同様にコピーを返す。
type fakePaymentRepo struct {
	mu       sync.Mutex
	byTxHash map[string]*model.Payment

	findErr   error
	updateErr error
}

func newFakePaymentRepo(payments ...*model.Payment) *fakePaymentRepo {
	r := &fakePaymentRepo{byTxHash: make(map[string]*model.Payment)}
	for _, p := range payments {
		cp := *p
		r.byTxHash[p.TxHash] = &cp
	}
	return r
}

func (r *fakePaymentRepo) Create(ctx context.Context, payment *model.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *payment
	r.byTxHash[payment.TxHash] = &cp
	return nil
}

func (r *fakePaymentRepo) FindByID(ctx context.Context, id string) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byTxHash {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakePaymentRepo) FindByTxHash(ctx context.Context, txHash string) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	p, ok := r.byTxHash[txHash]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *fakePaymentRepo) UpdateTransition(ctx context.Context, payment *model.Payment, from model.PaymentStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return false, r.updateErr
	}
	stored, ok := r.byTxHash[payment.TxHash]
	if !ok || stored.Status != from {
		return false, nil
	}
	cp := *payment
	r.byTxHash[payment.TxHash] = &cp
	return true, nil
}

// get は現在の保存状態のコピーを返す。
func (r *fakePaymentRepo) get(txHash string) *model.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byTxHash[txHash]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

// recorderMetrics は呼び出し回数を数えるMetricsRecorder実装。
type recorderMetrics struct {
	processed  atomic.Int64
	duplicates atomic.Int64
	notFound   atomic.Int64
	retried    atomic.Int64
	dead       atomic.Int64
}

func (m *recorderMetrics) RecordConfirmationProcessed(result string) { m.processed.Add(1) }
func (m *recorderMetrics) RecordConfirmationDuplicate()              { m.duplicates.Add(1) }
func (m *recorderMetrics) RecordPaymentNotFound()                    { m.notFound.Add(1) }
func (m *recorderMetrics) RecordConfirmationRetried()                { m.retried.Add(1) }
func (m *recorderMetrics) RecordConfirmationDead()                   { m.dead.Add(1) }
func (m *recorderMetrics) RecordProcessingLatency(d time.Duration)   {}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pendingPayment(txHash string, amount int64) *model.Payment {
	now := time.Now()
	return &model.Payment{
		ID:           "pay-" + txHash,
		UserID:       "user-1",
		TxHash:       txHash,
		AmountNano:   amount,
		Status:       model.PaymentStatusPending,
		SenderWallet: "EQsender",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func successEvent(txHash string) model.ConfirmationEvent {
	return model.ConfirmationEvent{
		TxHash:         txHash,
		SenderWallet:   "EQsender",
		ReceiverWallet: "EQreceiver",
		AmountNano:     500000,
		GasFeeNano:     7000,
		CommissionNano: 2500,
	}
}

func queued(event model.ConfirmationEvent) *model.QueuedConfirmation {
	return &model.QueuedConfirmation{
		ID:     "conf-" + event.TxHash,
		Event:  event,
		Status: model.ConfirmationStatusQueued,
	}
}

// --- テスト ---

func TestProcess_SuccessEventCompletesPayment(t *testing.T) {
	repo := newFakePaymentRepo(pendingPayment("abc", 500000))
	metrics := &recorderMetrics{}
	p := NewProcessor(repo, metrics, testLogger(), 0)

	if err := p.Process(context.Background(), queued(successEvent("abc"))); err != nil {
		t.Fatalf("処理に成功するべき: %v", err)
	}

	got := repo.get("abc")
	if got.Status != model.PaymentStatusCompleted {
		t.Errorf("Status = %s, want completed", got.Status)
	}
	if got.ReceiverWallet != "EQreceiver" {
		t.Errorf("ReceiverWallet = %q, want EQreceiver", got.ReceiverWallet)
	}
	if got.GasFeeNano != 7000 || got.CommissionNano != 2500 {
		t.Errorf("手数料が記録されていない: gas=%d commission=%d", got.GasFeeNano, got.CommissionNano)
	}
	if got.AmountNano != 500000 {
		t.Errorf("AmountNanoは不変のはず: %d", got.AmountNano)
	}
	if metrics.processed.Load() != 1 {
		t.Errorf("processed = %d, want 1", metrics.processed.Load())
	}
}

func TestProcess_FailureEvidenceMarksFailed(t *testing.T) {
	repo := newFakePaymentRepo(pendingPayment("def", 100))
	metrics := &recorderMetrics{}
	p := NewProcessor(repo, metrics, testLogger(), 0)

	event := model.ConfirmationEvent{
		TxHash:        "def",
		Failed:        true,
		FailureReason: "insufficient balance",
	}

	if err := p.Process(context.Background(), queued(event)); err != nil {
		t.Fatalf("処理に成功するべき: %v", err)
	}

	got := repo.get("def")
	if got.Status != model.PaymentStatusFailed {
		t.Errorf("Status = %s, want failed", got.Status)
	}
	// 失敗時は手数料フィールドを記録しない
	if got.GasFeeNano != 0 || got.CommissionNano != 0 {
		t.Errorf("失敗イベントで手数料が記録された: gas=%d commission=%d", got.GasFeeNano, got.CommissionNano)
	}
}

// 同一イベントを2回適用しても、有効なステータス遷移は1回だけ発生し、
// 金額系フィールドは同一の最終値になる（冪等性）。
func TestProcess_DuplicateEventIsIdempotent(t *testing.T) {
	repo := newFakePaymentRepo(pendingPayment("abc", 500000))
	metrics := &recorderMetrics{}
	p := NewProcessor(repo, metrics, testLogger(), 0)

	event := queued(successEvent("abc"))
	if err := p.Process(context.Background(), event); err != nil {
		t.Fatalf("1回目の処理に成功するべき: %v", err)
	}
	first := repo.get("abc")

	if err := p.Process(context.Background(), event); err != nil {
		t.Fatalf("2回目の処理（重複）もエラーにならないべき: %v", err)
	}
	second := repo.get("abc")

	if second.Status != model.PaymentStatusCompleted {
		t.Errorf("Status = %s, want completed", second.Status)
	}
	if *first != *second {
		t.Errorf("重複適用でフィールドが変化した: %+v != %+v", first, second)
	}
	if metrics.processed.Load() != 1 {
		t.Errorf("processed = %d, want 1（有効な遷移は1回だけ）", metrics.processed.Load())
	}
	if metrics.duplicates.Load() != 1 {
		t.Errorf("duplicates = %d, want 1", metrics.duplicates.Load())
	}
}

// 同一イベントの並行配送でも二重遷移は起こらない。
func TestProcess_ConcurrentDuplicatesSingleEffect(t *testing.T) {
	repo := newFakePaymentRepo(pendingPayment("abc", 500000))
	metrics := &recorderMetrics{}
	p := NewProcessor(repo, metrics, testLogger(), 0)

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Process(context.Background(), queued(successEvent("abc"))); err != nil {
				t.Errorf("並行処理でエラー: %v", err)
			}
		}()
	}
	wg.Wait()

	got := repo.get("abc")
	if got.Status != model.PaymentStatusCompleted {
		t.Errorf("Status = %s, want completed", got.Status)
	}
	if metrics.processed.Load() != 1 {
		t.Errorf("processed = %d, want 1（有効な遷移は1回だけ）", metrics.processed.Load())
	}
	if metrics.duplicates.Load() != int64(workers-1) {
		t.Errorf("duplicates = %d, want %d", metrics.duplicates.Load(), workers-1)
	}
}

// 異なる決済への並行イベントは互いに干渉しない（独立性）。
func TestProcess_IndependentPaymentsDoNotInterfere(t *testing.T) {
	repo := newFakePaymentRepo(
		pendingPayment("tx-1", 100),
		pendingPayment("tx-2", 200),
	)
	metrics := &recorderMetrics{}
	p := NewProcessor(repo, metrics, testLogger(), 0)

	var wg sync.WaitGroup
	for _, tx := range []string{"tx-1", "tx-2"} {
		wg.Add(1)
		go func(tx string) {
			defer wg.Done()
			if err := p.Process(context.Background(), queued(successEvent(tx))); err != nil {
				t.Errorf("処理でエラー: %v", err)
			}
		}(tx)
	}
	wg.Wait()

	for _, tx := range []string{"tx-1", "tx-2"} {
		if got := repo.get(tx); got.Status != model.PaymentStatusCompleted {
			t.Errorf("%s: Status = %s, want completed", tx, got.Status)
		}
	}
	if metrics.processed.Load() != 2 {
		t.Errorf("processed = %d, want 2", metrics.processed.Load())
	}
}

// 対応する決済が存在しないイベントは報告のうえ破棄する（再試行しない）。
func TestProcess_PaymentNotFoundIsDropped(t *testing.T) {
	repo := newFakePaymentRepo()
	metrics := &recorderMetrics{}
	p := NewProcessor(repo, metrics, testLogger(), 0)

	if err := p.Process(context.Background(), queued(successEvent("unknown"))); err != nil {
		t.Fatalf("対象なしはエラーにしない（破棄する）: %v", err)
	}
	if metrics.notFound.Load() != 1 {
		t.Errorf("notFound = %d, want 1", metrics.notFound.Load())
	}
}

// ストレージ障害は決済の失敗として扱わない。
// エラーを返してリトライに委ね、決済レコードは最後の正常状態のまま残す。
func TestProcess_StorageErrorNeverForcesFailed(t *testing.T) {
	repo := newFakePaymentRepo(pendingPayment("abc", 500000))
	repo.updateErr = errors.New("storage unavailable")
	metrics := &recorderMetrics{}
	p := NewProcessor(repo, metrics, testLogger(), 0)

	err := p.Process(context.Background(), queued(successEvent("abc")))
	if err == nil {
		t.Fatal("ストレージ障害はエラーとして返すべき")
	}

	got := repo.get("abc")
	if got.Status != model.PaymentStatusPending {
		t.Errorf("Status = %s, want pending（インフラ障害でFailedにしない）", got.Status)
	}
}
