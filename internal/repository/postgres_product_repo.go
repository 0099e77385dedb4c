package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/tgmarket/internal/model"
)

// PostgresProductRepo はPostgreSQLを使用した商品リポジトリ。
type PostgresProductRepo struct {
	db *sql.DB
}

// NewPostgresProductRepo はPostgresProductRepoを生成する。
func NewPostgresProductRepo(db *sql.DB) *PostgresProductRepo {
	return &PostgresProductRepo{db: db}
}

// FindByID は指定IDの商品を取得する。見つからない場合はnilを返す。
func (r *PostgresProductRepo) FindByID(ctx context.Context, id string) (*model.Product, error) {
	product := &model.Product{}
	var description sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, store_id, name, description, price_nano, available, created_at, updated_at
		 FROM products WHERE id = $1`,
		id,
	).Scan(
		&product.ID, &product.StoreID, &product.Name, &description,
		&product.PriceNano, &product.Available, &product.CreatedAt, &product.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("商品の取得に失敗しました: %w", err)
	}

	product.Description = nullStringValue(description)

	return product, nil
}

// ListByStoreID はストアの商品一覧を返す。
func (r *PostgresProductRepo) ListByStoreID(ctx context.Context, storeID string) ([]*model.Product, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, store_id, name, description, price_nano, available, created_at, updated_at
		 FROM products WHERE store_id = $1
		 ORDER BY created_at ASC`,
		storeID,
	)
	if err != nil {
		return nil, fmt.Errorf("商品一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var products []*model.Product
	for rows.Next() {
		product := &model.Product{}
		var description sql.NullString

		if err := rows.Scan(
			&product.ID, &product.StoreID, &product.Name, &description,
			&product.PriceNano, &product.Available, &product.CreatedAt, &product.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("商品の読み取りに失敗しました: %w", err)
		}

		product.Description = nullStringValue(description)

		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("商品一覧の走査に失敗しました: %w", err)
	}

	return products, nil
}

// Create は商品を作成する。
func (r *PostgresProductRepo) Create(ctx context.Context, product *model.Product) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO products (id, store_id, name, description, price_nano, available, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		product.ID, product.StoreID, product.Name,
		nullString(product.Description), product.PriceNano, product.Available,
		product.CreatedAt, product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("商品の作成に失敗しました: %w", err)
	}
	return nil
}

// Update は商品情報を更新する。
func (r *PostgresProductRepo) Update(ctx context.Context, product *model.Product) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE products SET
		    name = $2, description = $3, price_nano = $4, available = $5, updated_at = now()
		 WHERE id = $1`,
		product.ID, product.Name,
		nullString(product.Description), product.PriceNano, product.Available,
	)
	if err != nil {
		return fmt.Errorf("商品の更新に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定IDの商品を削除する。
func (r *PostgresProductRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM products WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("商品の削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ProductRepository = (*PostgresProductRepo)(nil)
