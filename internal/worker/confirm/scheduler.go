package confirm

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/tgmarket/internal/model"
	"github.com/hitoshi/tgmarket/internal/repository"
)

// ConfirmationProcessor は確認イベント1件の処理インターフェース。
// テスト時にモックに差し替え可能。
type ConfirmationProcessor interface {
	// Process は確認イベントを決済レコードへ適用する。
	// エラーはインフラ障害を意味し、呼び出し側が再試行を管理する。
	Process(ctx context.Context, qc *model.QueuedConfirmation) error
}

// defaultBatchLimit は1サイクルで取得するイベントの上限。
const defaultBatchLimit = 100

// Scheduler は確認イベントのポーリングと並列制御を行う。
// ティッカーで永続キューから処理対象イベントを取得し、
// semaphoreパターンで最大並列数を制御しながら処理を実行する。
// 処理失敗時は指数バックオフで再試行し、上限超過でdeadに退避する。
type Scheduler struct {
	queue          repository.ConfirmationQueueRepository
	processor      ConfirmationProcessor
	metrics        MetricsRecorder
	logger         *slog.Logger
	maxConcurrency int
	maxAttempts    int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値10、
// maxAttemptsが0以下の場合はDefaultMaxAttemptsを使用する。
func NewScheduler(
	queue repository.ConfirmationQueueRepository,
	processor ConfirmationProcessor,
	metrics MetricsRecorder,
	logger *slog.Logger,
	maxConcurrency int,
	maxAttempts int,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Scheduler{
		queue:          queue,
		processor:      processor,
		metrics:        metrics,
		logger:         logger,
		maxConcurrency: maxConcurrency,
		maxAttempts:    maxAttempts,
	}
}

// Start はティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("確認パイプラインを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
		slog.Int("max_attempts", s.maxAttempts),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("確認サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("確認パイプラインを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("確認サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は処理対象イベントを1回取得し、並列で処理を実行する。
// semaphoreパターンで最大並列数を制御する。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	events, err := s.queue.ListDue(ctx, defaultBatchLimit)
	if err != nil {
		return err
	}

	if len(events) == 0 {
		return nil
	}

	s.logger.Info("確認サイクルを開始します",
		slog.Int("event_count", len(events)),
	)

	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, qc := range events {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(qc *model.QueuedConfirmation) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			s.handle(ctx, qc)
		}(qc)
	}

	wg.Wait()
	return nil
}

// handle は1件のイベントを処理し、結果に応じてキューの状態を更新する。
// 処理エラーはインフラ障害として再試行またはdead退避の対象になる。
// 決済レコード自体はインフラ障害でFailedへ遷移することはない。
func (s *Scheduler) handle(ctx context.Context, qc *model.QueuedConfirmation) {
	err := s.processor.Process(ctx, qc)
	if err == nil {
		if markErr := s.queue.MarkDone(ctx, qc.ID); markErr != nil {
			s.logger.Error("イベントの完了記録に失敗しました",
				slog.String("confirmation_id", qc.ID),
				slog.String("error", markErr.Error()),
			)
		}
		return
	}

	attempts := qc.Attempts + 1
	if attempts >= s.maxAttempts {
		s.metrics.RecordConfirmationDead()
		s.logger.Error("リトライ上限に達したため確認イベントを退避します",
			slog.String("confirmation_id", qc.ID),
			slog.String("tx_hash", qc.Event.TxHash),
			slog.Int("attempts", attempts),
			slog.String("error", err.Error()),
		)
		if markErr := s.queue.MarkDead(ctx, qc.ID, err.Error()); markErr != nil {
			s.logger.Error("イベントのdead退避に失敗しました",
				slog.String("confirmation_id", qc.ID),
				slog.String("error", markErr.Error()),
			)
		}
		return
	}

	delay := CalculateBackoff(qc.Attempts)
	s.metrics.RecordConfirmationRetried()
	s.logger.Warn("確認イベントの処理に失敗したため再試行します",
		slog.String("confirmation_id", qc.ID),
		slog.String("tx_hash", qc.Event.TxHash),
		slog.Int("attempts", attempts),
		slog.Duration("retry_after", delay),
		slog.String("error", err.Error()),
	)
	if reqErr := s.queue.Requeue(ctx, qc.ID, attempts, time.Now().Add(delay), err.Error()); reqErr != nil {
		s.logger.Error("イベントの再投入に失敗しました",
			slog.String("confirmation_id", qc.ID),
			slog.String("error", reqErr.Error()),
		)
	}
}
