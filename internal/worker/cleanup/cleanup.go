// Package cleanup は処理済み確認イベントの自動削除ジョブを提供する。
// 保持期間（デフォルト30日）を超過したdoneステータスのキューエントリを
// 日次バッチで削除する。deadのエントリはオペレーター確認のため残す。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/tgmarket/internal/repository"
)

// defaultRetention は処理済みイベントのデフォルト保持期間。
const defaultRetention = 30 * 24 * time.Hour

// Job は処理済み確認イベントの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type Job struct {
	queue     repository.ConfirmationQueueRepository
	logger    *slog.Logger
	Retention time.Duration // doneエントリの保持期間
}

// NewJob は新しいJobを生成する。
func NewJob(queue repository.ConfirmationQueueRepository, logger *slog.Logger) *Job {
	return &Job{
		queue:     queue,
		logger:    logger,
		Retention: defaultRetention,
	}
}

// Run は保持期間を超過した処理済みイベントを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *Job) Run(ctx context.Context) error {
	start := time.Now()

	before := start.Add(-j.Retention)

	deletedCount, err := j.queue.DeleteFinishedBefore(ctx, before)
	if err != nil {
		j.logger.Error("確認イベントクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Duration("retention", j.Retention),
		)
		return fmt.Errorf("確認イベントクリーンアップの実行に失敗: %w", err)
	}

	j.logger.Info("確認イベントクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Duration("retention", j.Retention),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// Start はクリーンアップジョブをティッカーで定期実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("確認イベントクリーンアップジョブを開始しました",
		slog.Duration("interval", interval),
		slog.Duration("retention", j.Retention),
	)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("確認イベントクリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("確認イベントクリーンアップサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
