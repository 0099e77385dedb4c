package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/tgmarket/internal/model"
)

// PostgresOrderRepo はPostgreSQLを使用した注文リポジトリ。
type PostgresOrderRepo struct {
	db *sql.DB
}

// NewPostgresOrderRepo はPostgresOrderRepoを生成する。
func NewPostgresOrderRepo(db *sql.DB) *PostgresOrderRepo {
	return &PostgresOrderRepo{db: db}
}

// FindByID は指定IDの注文を取得する。見つからない場合はnilを返す。
func (r *PostgresOrderRepo) FindByID(ctx context.Context, id string) (*model.Order, error) {
	order := &model.Order{}
	var paymentID sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, product_id, payment_id, amount_nano, status, created_at, updated_at
		 FROM orders WHERE id = $1`,
		id,
	).Scan(
		&order.ID, &order.UserID, &order.ProductID, &paymentID,
		&order.AmountNano, &order.Status, &order.CreatedAt, &order.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("注文の取得に失敗しました: %w", err)
	}

	order.PaymentID = nullStringValue(paymentID)

	return order, nil
}

// ListByUserID はユーザーの注文一覧を新しい順に返す。
func (r *PostgresOrderRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, product_id, payment_id, amount_nano, status, created_at, updated_at
		 FROM orders WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("注文一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var orders []*model.Order
	for rows.Next() {
		order := &model.Order{}
		var paymentID sql.NullString

		if err := rows.Scan(
			&order.ID, &order.UserID, &order.ProductID, &paymentID,
			&order.AmountNano, &order.Status, &order.CreatedAt, &order.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("注文の読み取りに失敗しました: %w", err)
		}

		order.PaymentID = nullStringValue(paymentID)

		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("注文一覧の走査に失敗しました: %w", err)
	}

	return orders, nil
}

// Create は注文を作成する。
func (r *PostgresOrderRepo) Create(ctx context.Context, order *model.Order) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO orders (id, user_id, product_id, payment_id, amount_nano, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		order.ID, order.UserID, order.ProductID, nullString(order.PaymentID),
		order.AmountNano, order.Status, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("注文の作成に失敗しました: %w", err)
	}
	return nil
}

// AttachPayment は注文に決済IDを紐づける。
func (r *PostgresOrderRepo) AttachPayment(ctx context.Context, orderID, paymentID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE orders SET payment_id = $2, updated_at = now() WHERE id = $1`,
		orderID, paymentID,
	)
	if err != nil {
		return fmt.Errorf("注文への決済紐づけに失敗しました: %w", err)
	}
	return nil
}

// UpdateStatus は注文ステータスを更新する。
func (r *PostgresOrderRepo) UpdateStatus(ctx context.Context, orderID string, status model.OrderStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`,
		orderID, status,
	)
	if err != nil {
		return fmt.Errorf("注文ステータスの更新に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ OrderRepository = (*PostgresOrderRepo)(nil)
