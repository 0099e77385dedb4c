package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/tgmarket/internal/model"
)

// PostgresRegionRepo はPostgreSQLを使用した地域マスタリポジトリ。
type PostgresRegionRepo struct {
	db *sql.DB
}

// NewPostgresRegionRepo はPostgresRegionRepoを生成する。
func NewPostgresRegionRepo(db *sql.DB) *PostgresRegionRepo {
	return &PostgresRegionRepo{db: db}
}

// UpsertBatch は地域データをまとめてUPSERTする。戻り値は処理件数。
// 同期ジョブの途中失敗に備えて全件を1トランザクションで処理する。
func (r *PostgresRegionRepo) UpsertBatch(ctx context.Context, regions []*model.Region) (int, error) {
	if len(regions) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("地域同期トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	count := 0
	for _, region := range regions {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO regions (code, country, city, synced_at, created_at)
			 VALUES ($1, $2, $3, $4, now())
			 ON CONFLICT (code) DO UPDATE SET
			    country = EXCLUDED.country,
			    city = EXCLUDED.city,
			    synced_at = EXCLUDED.synced_at`,
			region.Code, region.Country, nullString(region.City), region.SyncedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("地域データのUPSERTに失敗しました: %w", err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("地域同期トランザクションのコミットに失敗しました: %w", err)
	}

	return count, nil
}

// ListByCountry は指定された国の地域一覧を返す。
func (r *PostgresRegionRepo) ListByCountry(ctx context.Context, country string) ([]*model.Region, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT code, country, city, synced_at, created_at
		 FROM regions WHERE country = $1
		 ORDER BY city ASC`,
		country,
	)
	if err != nil {
		return nil, fmt.Errorf("地域一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var regions []*model.Region
	for rows.Next() {
		region := &model.Region{}
		var city sql.NullString

		if err := rows.Scan(
			&region.Code, &region.Country, &city, &region.SyncedAt, &region.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("地域データの読み取りに失敗しました: %w", err)
		}

		region.City = nullStringValue(city)

		regions = append(regions, region)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("地域一覧の走査に失敗しました: %w", err)
	}

	return regions, nil
}

// compile-time interface check
var _ RegionRepository = (*PostgresRegionRepo)(nil)
