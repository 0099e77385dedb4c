package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/tgmarket/internal/model"
	"github.com/hitoshi/tgmarket/internal/repository"
)

// ErrPaymentNotFound は指定された決済が存在しない場合のエラー。
var ErrPaymentNotFound = errors.New("決済が見つかりません")

// CreateIntentInput は決済インテント作成の入力。
// TxHashはウォレット側が送金時に確定させた外部相関IDで、冪等性キーとして扱う。
type CreateIntentInput struct {
	UserID       string
	OrderID      string // 紐づける注文ID（省略可）
	AmountNano   int64
	SenderWallet string
	TxHash       string
}

// Gateway は決済サブシステムへの唯一の入口となるファサード。
// インテント作成・確認イベントの投入・ステータス照会・手動返金を提供する。
// 自身は状態を持たず、永続化はリポジトリに委譲する。
type Gateway struct {
	payments repository.PaymentRepository
	queue    repository.ConfirmationQueueRepository
	logger   *slog.Logger
}

// NewGateway はGatewayを生成する。
func NewGateway(
	payments repository.PaymentRepository,
	queue repository.ConfirmationQueueRepository,
	logger *slog.Logger,
) *Gateway {
	return &Gateway{
		payments: payments,
		queue:    queue,
		logger:   logger,
	}
}

// CreateIntent は決済インテントを作成し、Pending状態の決済レコードを返す。
// 同一TxHashのインテントが既に存在する場合は新規作成せず既存レコードを返す
// （クライアントの再送に対して冪等）。
func (g *Gateway) CreateIntent(ctx context.Context, in CreateIntentInput) (*model.Payment, error) {
	if in.AmountNano <= 0 {
		return nil, model.NewInvalidAmountError(in.AmountNano)
	}
	if in.TxHash == "" {
		return nil, fmt.Errorf("トランザクションハッシュは必須です")
	}

	existing, err := g.payments.FindByTxHash(ctx, in.TxHash)
	if err != nil {
		return nil, fmt.Errorf("決済の重複確認に失敗しました: %w", err)
	}
	if existing != nil {
		g.logger.Info("既存の決済インテントを返却します",
			slog.String("payment_id", existing.ID),
			slog.String("tx_hash", in.TxHash),
		)
		return existing, nil
	}

	now := time.Now()
	payment := &model.Payment{
		ID:           uuid.New().String(),
		OrderID:      in.OrderID,
		UserID:       in.UserID,
		TxHash:       in.TxHash,
		AmountNano:   in.AmountNano,
		Status:       model.PaymentStatusPending,
		SenderWallet: in.SenderWallet,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := g.payments.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("決済インテントの作成に失敗しました: %w", err)
	}

	g.logger.Info("決済インテントを作成しました",
		slog.String("payment_id", payment.ID),
		slog.String("tx_hash", payment.TxHash),
		slog.Int64("amount_nano", payment.AmountNano),
	)

	return payment, nil
}

// EnqueueConfirmation は確認イベントを永続キューに投入する。
// 処理の完了は待たず、投入できた時点で即座に返る。
func (g *Gateway) EnqueueConfirmation(ctx context.Context, event model.ConfirmationEvent) error {
	if event.TxHash == "" {
		return fmt.Errorf("確認イベントにトランザクションハッシュがありません")
	}

	now := time.Now()
	qc := &model.QueuedConfirmation{
		ID:            uuid.New().String(),
		Event:         event,
		Status:        model.ConfirmationStatusQueued,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := g.queue.Enqueue(ctx, qc); err != nil {
		return fmt.Errorf("確認イベントの投入に失敗しました: %w", err)
	}

	g.logger.Info("確認イベントをキューに投入しました",
		slog.String("confirmation_id", qc.ID),
		slog.String("tx_hash", event.TxHash),
	)

	return nil
}

// GetStatus は決済レコードの現在の状態を返す。
// 見つからない場合はErrPaymentNotFoundを返す。
func (g *Gateway) GetStatus(ctx context.Context, paymentID string) (*model.Payment, error) {
	payment, err := g.payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("決済の取得に失敗しました: %w", err)
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	return payment, nil
}

// Refund は失敗した決済を手動で返金済みに遷移させる（Failed→Refundedの単一エッジ）。
// 対象がFailed以外の場合はErrInvalidTransitionを返す。
func (g *Gateway) Refund(ctx context.Context, paymentID string) (*model.Payment, error) {
	payment, err := g.payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("決済の取得に失敗しました: %w", err)
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}

	from := payment.Status
	if err := Transition(payment, model.PaymentStatusRefunded); err != nil {
		return nil, err
	}

	updated, err := g.payments.UpdateTransition(ctx, payment, from)
	if err != nil {
		return nil, fmt.Errorf("返金の永続化に失敗しました: %w", err)
	}
	if !updated {
		// 並行する操作が先にステータスを変更していた
		return nil, ErrInvalidTransition
	}

	g.logger.Info("決済を返金済みに遷移しました",
		slog.String("payment_id", payment.ID),
		slog.String("tx_hash", payment.TxHash),
	)

	return payment, nil
}
