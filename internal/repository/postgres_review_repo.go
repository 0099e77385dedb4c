package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/tgmarket/internal/model"
)

// PostgresReviewRepo はPostgreSQLを使用したレビューリポジトリ。
type PostgresReviewRepo struct {
	db *sql.DB
}

// NewPostgresReviewRepo はPostgresReviewRepoを生成する。
func NewPostgresReviewRepo(db *sql.DB) *PostgresReviewRepo {
	return &PostgresReviewRepo{db: db}
}

// Create はレビューを作成する。
func (r *PostgresReviewRepo) Create(ctx context.Context, review *model.Review) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO reviews (id, product_id, user_id, rating, text, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		review.ID, review.ProductID, review.UserID,
		review.Rating, nullString(review.Text), review.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("レビューの作成に失敗しました: %w", err)
	}
	return nil
}

// ListByProductID は商品のレビュー一覧を新しい順に返す。
func (r *PostgresReviewRepo) ListByProductID(ctx context.Context, productID string) ([]*model.Review, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, product_id, user_id, rating, text, created_at
		 FROM reviews WHERE product_id = $1
		 ORDER BY created_at DESC`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("レビュー一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var reviews []*model.Review
	for rows.Next() {
		review := &model.Review{}
		var text sql.NullString

		if err := rows.Scan(
			&review.ID, &review.ProductID, &review.UserID,
			&review.Rating, &text, &review.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("レビューの読み取りに失敗しました: %w", err)
		}

		review.Text = nullStringValue(text)

		reviews = append(reviews, review)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("レビュー一覧の走査に失敗しました: %w", err)
	}

	return reviews, nil
}

// compile-time interface check
var _ ReviewRepository = (*PostgresReviewRepo)(nil)
