package geosync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/tgmarket/internal/model"
	"github.com/hitoshi/tgmarket/internal/repository"
)

// RegionFetcher は地域データセット取得のインターフェース。
// テスト時にモックに差し替え可能。
type RegionFetcher interface {
	FetchRegions(ctx context.Context, datasetURL string) ([]datasetRegion, error)
}

// JobConfig は同期ジョブの設定パラメータ。環境変数から設定可能。
type JobConfig struct {
	// DatasetURL は地域データセットの取得先URL。
	DatasetURL string
	// SyncInterval は同期ジョブの実行間隔（デフォルト: 24時間）。
	SyncInterval time.Duration
}

// DefaultJobConfig はデフォルトの同期ジョブ設定を返す。
func DefaultJobConfig(datasetURL string) JobConfig {
	return JobConfig{
		DatasetURL:   datasetURL,
		SyncInterval: 24 * time.Hour,
	}
}

// Job は地域マスタデータの同期ジョブ。
// 定期的にデータセットを取得してregionsテーブルにUPSERTする。
// 取得失敗時は既存データを維持する（前回値維持）。
type Job struct {
	regionRepo        repository.RegionRepository
	fetcher           RegionFetcher
	logger            *slog.Logger
	config            JobConfig
	consecutiveErrors int
	backoffUntil      time.Time
}

// NewJob はJobの新しいインスタンスを生成する。
func NewJob(
	regionRepo repository.RegionRepository,
	fetcher RegionFetcher,
	logger *slog.Logger,
	config JobConfig,
) *Job {
	return &Job{
		regionRepo: regionRepo,
		fetcher:    fetcher,
		logger:     logger,
		config:     config,
	}
}

// Start は同期ジョブをティッカーで定期実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *Job) Start(ctx context.Context) {
	ticker := time.NewTicker(j.config.SyncInterval)
	defer ticker.Stop()

	j.logger.Info("地域データ同期ジョブを開始しました",
		slog.String("dataset_url", j.config.DatasetURL),
		slog.Duration("sync_interval", j.config.SyncInterval),
	)

	// 起動直後に1回実行
	if err := j.RunOnce(ctx); err != nil {
		j.logger.Error("地域データ同期サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("地域データ同期ジョブを停止しました")
			return
		case <-ticker.C:
			if err := j.RunOnce(ctx); err != nil {
				j.logger.Error("地域データ同期サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は1回の同期サイクルを実行する。
// データセットを取得し、コードが空でないエントリをまとめてUPSERTする。
func (j *Job) RunOnce(ctx context.Context) error {
	start := time.Now()

	// バックオフ中の場合はスキップ
	if !j.backoffUntil.IsZero() && time.Now().Before(j.backoffUntil) {
		j.logger.Info("地域データ同期ジョブはバックオフ中のためスキップします",
			slog.Time("backoff_until", j.backoffUntil),
		)
		return nil
	}

	entries, err := j.fetcher.FetchRegions(ctx, j.config.DatasetURL)
	if err != nil {
		j.consecutiveErrors++
		if backoff := j.calculateErrorBackoff(j.consecutiveErrors); backoff > 0 {
			j.backoffUntil = time.Now().Add(backoff)
			j.logger.Warn("連続エラーによりバックオフを適用します",
				slog.Int("consecutive_errors", j.consecutiveErrors),
				slog.Duration("backoff_duration", backoff),
			)
		}
		return fmt.Errorf("地域データセットの取得に失敗しました: %w", err)
	}

	j.consecutiveErrors = 0
	j.backoffUntil = time.Time{}

	now := time.Now()
	regions := make([]*model.Region, 0, len(entries))
	var skipped int
	for _, e := range entries {
		if e.Code == "" || e.Country == "" {
			skipped++
			continue
		}
		regions = append(regions, &model.Region{
			Code:     e.Code,
			Country:  e.Country,
			City:     e.City,
			SyncedAt: now,
		})
	}

	if len(regions) == 0 {
		j.logger.Warn("地域データセットに有効なエントリがありません",
			slog.Int("skipped", skipped),
		)
		return nil
	}

	count, err := j.regionRepo.UpsertBatch(ctx, regions)
	if err != nil {
		return fmt.Errorf("地域データのUPSERTに失敗しました: %w", err)
	}

	j.logger.Info("地域データ同期サイクルが完了しました",
		slog.Int("upserted", count),
		slog.Int("skipped", skipped),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// calculateErrorBackoff は連続エラー回数に基づくバックオフ時間を計算する。
// 3回連続: 1時間、5回連続: 6時間。
func (j *Job) calculateErrorBackoff(consecutiveErrors int) time.Duration {
	switch {
	case consecutiveErrors >= 5:
		return 6 * time.Hour
	case consecutiveErrors >= 3:
		return 1 * time.Hour
	default:
		return 0
	}
}
