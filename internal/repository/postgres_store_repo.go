package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/tgmarket/internal/model"
)

// PostgresStoreRepo はPostgreSQLを使用したストアリポジトリ。
type PostgresStoreRepo struct {
	db *sql.DB
}

// NewPostgresStoreRepo はPostgresStoreRepoを生成する。
func NewPostgresStoreRepo(db *sql.DB) *PostgresStoreRepo {
	return &PostgresStoreRepo{db: db}
}

// FindByID は指定IDのストアを取得する。見つからない場合はnilを返す。
func (r *PostgresStoreRepo) FindByID(ctx context.Context, id string) (*model.Store, error) {
	store := &model.Store{}
	var description, regionCode sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, description, region_code, wallet, created_at, updated_at
		 FROM stores WHERE id = $1`,
		id,
	).Scan(
		&store.ID, &store.OwnerID, &store.Name, &description,
		&regionCode, &store.Wallet, &store.CreatedAt, &store.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ストアの取得に失敗しました: %w", err)
	}

	store.Description = nullStringValue(description)
	store.RegionCode = nullStringValue(regionCode)

	return store, nil
}

// ListByOwnerID はオーナーのストア一覧を返す。
func (r *PostgresStoreRepo) ListByOwnerID(ctx context.Context, ownerID string) ([]*model.Store, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_id, name, description, region_code, wallet, created_at, updated_at
		 FROM stores WHERE owner_id = $1
		 ORDER BY created_at ASC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("ストア一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var stores []*model.Store
	for rows.Next() {
		store := &model.Store{}
		var description, regionCode sql.NullString

		if err := rows.Scan(
			&store.ID, &store.OwnerID, &store.Name, &description,
			&regionCode, &store.Wallet, &store.CreatedAt, &store.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("ストアの読み取りに失敗しました: %w", err)
		}

		store.Description = nullStringValue(description)
		store.RegionCode = nullStringValue(regionCode)

		stores = append(stores, store)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ストア一覧の走査に失敗しました: %w", err)
	}

	return stores, nil
}

// Create はストアを作成する。
func (r *PostgresStoreRepo) Create(ctx context.Context, store *model.Store) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO stores (id, owner_id, name, description, region_code, wallet, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		store.ID, store.OwnerID, store.Name,
		nullString(store.Description), nullString(store.RegionCode), store.Wallet,
		store.CreatedAt, store.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ストアの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はストア情報を更新する。
func (r *PostgresStoreRepo) Update(ctx context.Context, store *model.Store) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE stores SET
		    name = $2, description = $3, region_code = $4, wallet = $5, updated_at = now()
		 WHERE id = $1`,
		store.ID, store.Name,
		nullString(store.Description), nullString(store.RegionCode), store.Wallet,
	)
	if err != nil {
		return fmt.Errorf("ストアの更新に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定IDのストアを削除する。
func (r *PostgresStoreRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM stores WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("ストアの削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ StoreRepository = (*PostgresStoreRepo)(nil)
