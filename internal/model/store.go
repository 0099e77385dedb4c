package model

import "time"

// Store はユーザーが開設したストアを表す。
type Store struct {
	ID          string // 内部ID（UUID）
	OwnerID     string // オーナーのユーザーID
	Name        string
	Description string // サニタイズ済みの説明文
	RegionCode  string // 所在地域コード（regionsテーブル参照、省略可）
	Wallet      string // 売上受取用TONウォレットアドレス
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
