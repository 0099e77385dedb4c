package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/tgmarket/internal/model"
)

// PostgresPaymentRepo はPostgreSQLを使用した決済リポジトリ。
type PostgresPaymentRepo struct {
	db *sql.DB
}

// NewPostgresPaymentRepo はPostgresPaymentRepoを生成する。
func NewPostgresPaymentRepo(db *sql.DB) *PostgresPaymentRepo {
	return &PostgresPaymentRepo{db: db}
}

// Create は決済レコードを作成する。
func (r *PostgresPaymentRepo) Create(ctx context.Context, payment *model.Payment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payments (id, order_id, user_id, tx_hash, amount_nano,
		                       gas_fee_nano, commission_nano, status,
		                       sender_wallet, receiver_wallet, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		payment.ID, nullString(payment.OrderID), payment.UserID, payment.TxHash,
		payment.AmountNano, payment.GasFeeNano, payment.CommissionNano,
		payment.Status, nullString(payment.SenderWallet), nullString(payment.ReceiverWallet),
		payment.CreatedAt, payment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("決済レコードの作成に失敗しました: %w", err)
	}
	return nil
}

// FindByID は指定IDの決済を取得する。見つからない場合はnilを返す。
func (r *PostgresPaymentRepo) FindByID(ctx context.Context, id string) (*model.Payment, error) {
	payment, err := r.scanPayment(r.db.QueryRowContext(ctx,
		`SELECT id, order_id, user_id, tx_hash, amount_nano,
		        gas_fee_nano, commission_nano, status,
		        sender_wallet, receiver_wallet, created_at, updated_at
		 FROM payments WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("決済の取得に失敗しました: %w", err)
	}
	return payment, nil
}

// FindByTxHash は外部相関ID（トランザクションハッシュ）で決済を検索する。
// 見つからない場合はnilを返す。
func (r *PostgresPaymentRepo) FindByTxHash(ctx context.Context, txHash string) (*model.Payment, error) {
	payment, err := r.scanPayment(r.db.QueryRowContext(ctx,
		`SELECT id, order_id, user_id, tx_hash, amount_nano,
		        gas_fee_nano, commission_nano, status,
		        sender_wallet, receiver_wallet, created_at, updated_at
		 FROM payments WHERE tx_hash = $1`,
		txHash,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("トランザクションハッシュによる決済の検索に失敗しました: %w", err)
	}
	return payment, nil
}

// UpdateTransition はステータス遷移を楽観的排他制御つきで永続化する。
// WHERE句に遷移前ステータスを含め、競合した場合はfalseを返す。
// 金額のイミュータブル性を守るため、amount_nanoとtx_hashは更新しない。
func (r *PostgresPaymentRepo) UpdateTransition(ctx context.Context, payment *model.Payment, from model.PaymentStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payments SET
		    status = $3,
		    gas_fee_nano = $4,
		    commission_nano = $5,
		    sender_wallet = $6,
		    receiver_wallet = $7,
		    updated_at = $8
		 WHERE id = $1 AND status = $2`,
		payment.ID, from,
		payment.Status, payment.GasFeeNano, payment.CommissionNano,
		nullString(payment.SenderWallet), nullString(payment.ReceiverWallet),
		payment.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("決済ステータスの更新に失敗しました: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("決済ステータス更新の結果取得に失敗しました: %w", err)
	}
	return n == 1, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresPaymentRepo) scanPayment(row rowScanner) (*model.Payment, error) {
	payment := &model.Payment{}
	var orderID, senderWallet, receiverWallet sql.NullString

	if err := row.Scan(
		&payment.ID, &orderID, &payment.UserID, &payment.TxHash,
		&payment.AmountNano, &payment.GasFeeNano, &payment.CommissionNano,
		&payment.Status, &senderWallet, &receiverWallet,
		&payment.CreatedAt, &payment.UpdatedAt,
	); err != nil {
		return nil, err
	}

	payment.OrderID = nullStringValue(orderID)
	payment.SenderWallet = nullStringValue(senderWallet)
	payment.ReceiverWallet = nullStringValue(receiverWallet)

	return payment, nil
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ PaymentRepository = (*PostgresPaymentRepo)(nil)
