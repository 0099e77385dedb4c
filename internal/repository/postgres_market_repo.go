package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresMarketRepo はPostgreSQLを使用したマーケット（ストアフロント集約）の読み取りリポジトリ。
// ストア・商品・レビューをJOINで集約するため、書き込み系のリポジトリとは分離している。
type PostgresMarketRepo struct {
	db *sql.DB
}

// NewPostgresMarketRepo はPostgresMarketRepoを生成する。
func NewPostgresMarketRepo(db *sql.DB) *PostgresMarketRepo {
	return &PostgresMarketRepo{db: db}
}

const storefrontQuery = `
	SELECT s.id, s.owner_id, s.name, s.description, s.region_code, s.wallet,
	       s.created_at, s.updated_at,
	       COUNT(DISTINCT p.id) AS product_count,
	       COALESCE(AVG(r.rating), 0) AS avg_rating
	FROM stores s
	LEFT JOIN products p ON p.store_id = s.id AND p.available
	LEFT JOIN reviews r ON r.product_id = p.id
	`

// ListStorefronts は全ストアのストアフロントビューを返す。
func (r *PostgresMarketRepo) ListStorefronts(ctx context.Context) ([]Storefront, error) {
	rows, err := r.db.QueryContext(ctx,
		storefrontQuery+`
		 GROUP BY s.id
		 ORDER BY s.created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("ストアフロント一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var fronts []Storefront
	for rows.Next() {
		front, err := scanStorefront(rows)
		if err != nil {
			return nil, fmt.Errorf("ストアフロントの読み取りに失敗しました: %w", err)
		}
		fronts = append(fronts, *front)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ストアフロント一覧の走査に失敗しました: %w", err)
	}

	return fronts, nil
}

// GetStorefront は指定ストアのストアフロントビューを返す。見つからない場合はnilを返す。
func (r *PostgresMarketRepo) GetStorefront(ctx context.Context, storeID string) (*Storefront, error) {
	front, err := scanStorefront(r.db.QueryRowContext(ctx,
		storefrontQuery+`
		 WHERE s.id = $1
		 GROUP BY s.id`,
		storeID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ストアフロントの取得に失敗しました: %w", err)
	}
	return front, nil
}

func scanStorefront(row rowScanner) (*Storefront, error) {
	front := &Storefront{}
	var description, regionCode sql.NullString

	if err := row.Scan(
		&front.Store.ID, &front.Store.OwnerID, &front.Store.Name, &description,
		&regionCode, &front.Store.Wallet,
		&front.Store.CreatedAt, &front.Store.UpdatedAt,
		&front.ProductCount, &front.AvgRating,
	); err != nil {
		return nil, err
	}

	front.Store.Description = nullStringValue(description)
	front.Store.RegionCode = nullStringValue(regionCode)

	return front, nil
}

// compile-time interface check
var _ MarketRepository = (*PostgresMarketRepo)(nil)
