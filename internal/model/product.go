package model

import "time"

// Product はストアに出品された商品を表す。
// 価格は最小通貨単位（nanoton）の整数で保持する。
type Product struct {
	ID          string // 内部ID（UUID）
	StoreID     string // 出品元ストアID
	Name        string
	Description string // サニタイズ済みの説明文
	PriceNano   int64  // 価格（nanoton）
	Available   bool   // 販売中フラグ
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
