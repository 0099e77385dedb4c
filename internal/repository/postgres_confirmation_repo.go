package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/tgmarket/internal/model"
)

// PostgresConfirmationRepo はPostgreSQLを使用した確認イベントキューのリポジトリ。
// payment_confirmationsテーブルを永続キューとして扱う。
type PostgresConfirmationRepo struct {
	db *sql.DB
}

// NewPostgresConfirmationRepo はPostgresConfirmationRepoを生成する。
func NewPostgresConfirmationRepo(db *sql.DB) *PostgresConfirmationRepo {
	return &PostgresConfirmationRepo{db: db}
}

// Enqueue は確認イベントをキューに追加する。
func (r *PostgresConfirmationRepo) Enqueue(ctx context.Context, qc *model.QueuedConfirmation) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payment_confirmations
		    (id, tx_hash, sender_wallet, receiver_wallet, amount_nano,
		     gas_fee_nano, commission_nano, failed, failure_reason,
		     status, attempts, next_attempt_at, last_error, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		qc.ID, qc.Event.TxHash,
		nullString(qc.Event.SenderWallet), nullString(qc.Event.ReceiverWallet),
		qc.Event.AmountNano, qc.Event.GasFeeNano, qc.Event.CommissionNano,
		qc.Event.Failed, nullString(qc.Event.FailureReason),
		qc.Status, qc.Attempts, qc.NextAttemptAt, nullString(qc.LastError),
		qc.CreatedAt, qc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("確認イベントのキュー追加に失敗しました: %w", err)
	}
	return nil
}

// ListDue は処理予定時刻を過ぎたqueued状態のイベントを最大limit件取得する。
// 複数ワーカーの同時取得に備えてFOR UPDATE SKIP LOCKEDで取得する。
func (r *PostgresConfirmationRepo) ListDue(ctx context.Context, limit int) ([]*model.QueuedConfirmation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, tx_hash, sender_wallet, receiver_wallet, amount_nano,
		        gas_fee_nano, commission_nano, failed, failure_reason,
		        status, attempts, next_attempt_at, last_error, created_at, updated_at
		 FROM payment_confirmations
		 WHERE status = 'queued'
		   AND next_attempt_at <= now()
		 ORDER BY next_attempt_at ASC
		 LIMIT $1
		 FOR UPDATE SKIP LOCKED`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("処理対象の確認イベント取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var items []*model.QueuedConfirmation
	for rows.Next() {
		qc := &model.QueuedConfirmation{}
		var senderWallet, receiverWallet, failureReason, lastError sql.NullString

		if err := rows.Scan(
			&qc.ID, &qc.Event.TxHash, &senderWallet, &receiverWallet,
			&qc.Event.AmountNano, &qc.Event.GasFeeNano, &qc.Event.CommissionNano,
			&qc.Event.Failed, &failureReason,
			&qc.Status, &qc.Attempts, &qc.NextAttemptAt, &lastError,
			&qc.CreatedAt, &qc.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("確認イベントの読み取りに失敗しました: %w", err)
		}

		qc.Event.SenderWallet = nullStringValue(senderWallet)
		qc.Event.ReceiverWallet = nullStringValue(receiverWallet)
		qc.Event.FailureReason = nullStringValue(failureReason)
		qc.LastError = nullStringValue(lastError)

		items = append(items, qc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("確認イベントの走査に失敗しました: %w", err)
	}

	return items, nil
}

// MarkDone はイベントを処理完了にする。
func (r *PostgresConfirmationRepo) MarkDone(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE payment_confirmations SET status = 'done', updated_at = now() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("確認イベントの完了マークに失敗しました: %w", err)
	}
	return nil
}

// Requeue はイベントを再試行待ちに戻す。試行回数と次回処理予定時刻を更新する。
func (r *PostgresConfirmationRepo) Requeue(ctx context.Context, id string, attempts int, nextAttemptAt time.Time, lastError string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE payment_confirmations SET
		    attempts = $2,
		    next_attempt_at = $3,
		    last_error = $4,
		    updated_at = now()
		 WHERE id = $1`,
		id, attempts, nextAttemptAt, nullString(lastError),
	)
	if err != nil {
		return fmt.Errorf("確認イベントの再キューに失敗しました: %w", err)
	}
	return nil
}

// MarkDead はリトライ上限に達したイベントを処理断念にする。
func (r *PostgresConfirmationRepo) MarkDead(ctx context.Context, id string, lastError string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE payment_confirmations SET
		    status = 'dead',
		    last_error = $2,
		    updated_at = now()
		 WHERE id = $1`,
		id, nullString(lastError),
	)
	if err != nil {
		return fmt.Errorf("確認イベントのdeadマークに失敗しました: %w", err)
	}
	return nil
}

// DeleteFinishedBefore は指定日時より前に完了（done）したイベントを削除する。
// deadのイベントはオペレーター確認のため残す。
func (r *PostgresConfirmationRepo) DeleteFinishedBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM payment_confirmations WHERE status = 'done' AND updated_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("完了済み確認イベントの削除に失敗しました: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ ConfirmationQueueRepository = (*PostgresConfirmationRepo)(nil)
