package model

import "time"

// OrderStatus は注文のステータスを表す。
// 決済状態はPaymentが持つため、注文側は購入フローの粗い状態のみを持つ。
type OrderStatus string

const (
	// OrderStatusCreated は注文作成直後の状態。
	OrderStatusCreated OrderStatus = "created"
	// OrderStatusPaid は決済完了が確認された状態。
	OrderStatusPaid OrderStatus = "paid"
	// OrderStatusCancelled は決済前にキャンセルされた状態。
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order は商品の注文を表す。
type Order struct {
	ID         string      // 内部ID（UUID）
	UserID     string      // 購入ユーザーID
	ProductID  string      // 対象商品ID
	PaymentID  string      // 紐づく決済ID（インテント作成後に設定）
	AmountNano int64       // 注文金額（nanoton、作成時の商品価格）
	Status     OrderStatus // 注文状態
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
