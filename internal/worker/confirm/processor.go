// Package confirm は決済確認イベントのバックグラウンド処理を提供する。
// 永続キューのポーリング、並列制御、冪等な確認適用、リトライ/バックオフ戦略を含む。
package confirm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/tgmarket/internal/model"
	"github.com/hitoshi/tgmarket/internal/payment"
	"github.com/hitoshi/tgmarket/internal/repository"
)

// MetricsRecorder は確認パイプラインが記録するメトリクスのインターフェース。
// テスト時にモックに差し替え可能。
type MetricsRecorder interface {
	RecordConfirmationProcessed(result string)
	RecordConfirmationDuplicate()
	RecordPaymentNotFound()
	RecordConfirmationRetried()
	RecordConfirmationDead()
	RecordProcessingLatency(duration time.Duration)
}

// defaultStorageTimeout はストレージ呼び出し1件あたりの既定タイムアウト。
const defaultStorageTimeout = 5 * time.Second

// Processor は確認イベント1件を決済レコードへ冪等に適用する。
//
// 同一相関ID（トランザクションハッシュ）の処理はkeyedMutexで直列化され、
// さらにUpdateTransitionの楽観的排他制御により、プロセスをまたいだ
// 重複配送でも二重遷移・金額系フィールドの二重適用は起こらない。
type Processor struct {
	payments       repository.PaymentRepository
	metrics        MetricsRecorder
	logger         *slog.Logger
	locks          *keyedMutex
	storageTimeout time.Duration
}

// NewProcessor はProcessorの新しいインスタンスを生成する。
// storageTimeoutが0以下の場合は既定値（5秒）を使用する。
func NewProcessor(
	payments repository.PaymentRepository,
	metrics MetricsRecorder,
	logger *slog.Logger,
	storageTimeout time.Duration,
) *Processor {
	if storageTimeout <= 0 {
		storageTimeout = defaultStorageTimeout
	}
	return &Processor{
		payments:       payments,
		metrics:        metrics,
		logger:         logger,
		locks:          newKeyedMutex(),
		storageTimeout: storageTimeout,
	}
}

// Process は確認イベントを決済レコードへ適用する。
//
// 戻り値がnilの場合、イベントは処理完了（適用済み・重複・対象なしのいずれか）
// としてキューから取り除いてよい。エラーの場合はインフラ障害を意味し、
// 呼び出し側がバックオフつきで再試行する。決済レコードがインフラ障害を
// 理由にFailedへ遷移することはない。
func (p *Processor) Process(ctx context.Context, qc *model.QueuedConfirmation) error {
	event := qc.Event

	// 同一相関IDの処理を直列化する
	unlock := p.locks.Lock(event.TxHash)
	defer unlock()

	start := time.Now()
	defer func() {
		p.metrics.RecordProcessingLatency(time.Since(start))
	}()

	ctx, cancel := context.WithTimeout(ctx, p.storageTimeout)
	defer cancel()

	pay, err := p.payments.FindByTxHash(ctx, event.TxHash)
	if err != nil {
		return fmt.Errorf("決済の検索に失敗しました: %w", err)
	}
	if pay == nil {
		// 再試行してもレコードは現れないため、報告して破棄する
		p.logger.Warn("確認イベントに対応する決済が存在しません",
			slog.String("confirmation_id", qc.ID),
			slog.String("tx_hash", event.TxHash),
		)
		p.metrics.RecordPaymentNotFound()
		return nil
	}

	if payment.IsTerminal(pay.Status) {
		// 同一相関IDの重複配送。適用済みのため何もしない。
		p.metrics.RecordConfirmationDuplicate()
		p.logger.Info("重複した確認イベントを破棄します",
			slog.String("tx_hash", event.TxHash),
			slog.String("status", string(pay.Status)),
		)
		return nil
	}

	if pay.Status == model.PaymentStatusPending {
		pay, err = p.markProcessing(ctx, pay, event.TxHash)
		if err != nil {
			return err
		}
		if pay == nil {
			return nil
		}
	}

	return p.applyOutcome(ctx, pay, event)
}

// markProcessing はPendingの決済をProcessingへ遷移させる。
// 別プロセスが先行していた場合は最新状態を読み直して返す。
// 戻り値がnil（エラーなし）の場合、イベントは適用済みとして処理を打ち切る。
func (p *Processor) markProcessing(ctx context.Context, pay *model.Payment, txHash string) (*model.Payment, error) {
	if err := payment.Transition(pay, model.PaymentStatusProcessing); err != nil {
		return nil, err
	}

	updated, err := p.payments.UpdateTransition(ctx, pay, model.PaymentStatusPending)
	if err != nil {
		return nil, fmt.Errorf("処理中への遷移の永続化に失敗しました: %w", err)
	}
	if updated {
		return pay, nil
	}

	// 別プロセスのワーカーが先に遷移させた。最新状態で続行する。
	latest, err := p.payments.FindByTxHash(ctx, txHash)
	if err != nil {
		return nil, fmt.Errorf("決済の再読込に失敗しました: %w", err)
	}
	if latest == nil {
		p.metrics.RecordPaymentNotFound()
		return nil, nil
	}
	if payment.IsTerminal(latest.Status) {
		p.metrics.RecordConfirmationDuplicate()
		return nil, nil
	}
	return latest, nil
}

// applyOutcome はイベントの証跡を評価し、Completed/Failedへの最終遷移を行う。
// 金額系フィールド（受取ウォレット・ガス代・手数料）はステータス遷移と同一の
// 条件付きUPDATEで書き込まれるため、重複配送で二重適用されることはない。
func (p *Processor) applyOutcome(ctx context.Context, pay *model.Payment, event model.ConfirmationEvent) error {
	target := model.PaymentStatusCompleted
	if event.Failed {
		target = model.PaymentStatusFailed
	} else {
		if event.SenderWallet != "" {
			pay.SenderWallet = event.SenderWallet
		}
		pay.ReceiverWallet = event.ReceiverWallet
		pay.GasFeeNano = event.GasFeeNano
		pay.CommissionNano = event.CommissionNano
	}

	from := pay.Status
	if err := payment.Transition(pay, target); err != nil {
		if errors.Is(err, payment.ErrInvalidTransition) {
			// 並行する重複との競合。良性の無操作として扱う。
			p.metrics.RecordConfirmationDuplicate()
			return nil
		}
		return err
	}

	updated, err := p.payments.UpdateTransition(ctx, pay, from)
	if err != nil {
		return fmt.Errorf("確認結果の永続化に失敗しました: %w", err)
	}
	if !updated {
		// 別プロセスの重複が先に最終遷移を適用した
		p.metrics.RecordConfirmationDuplicate()
		return nil
	}

	p.metrics.RecordConfirmationProcessed(string(target))
	p.logger.Info("確認イベントを適用しました",
		slog.String("payment_id", pay.ID),
		slog.String("tx_hash", pay.TxHash),
		slog.String("status", string(target)),
		slog.String("failure_reason", event.FailureReason),
	)

	return nil
}
