package model

import "time"

// Review は商品に対するレビューを表す。
type Review struct {
	ID        string // 内部ID（UUID）
	ProductID string // 対象商品ID
	UserID    string // 投稿ユーザーID
	Rating    int    // 評価（1〜5）
	Text      string // サニタイズ済みの本文
	CreatedAt time.Time
}
