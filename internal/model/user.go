// Package model はドメインモデルを定義する。
package model

import "time"

// User はマーケットプレイスのユーザーを表す。
// Telegramの外部IDと内部UUIDを紐づける。
type User struct {
	ID         string    // 内部ID（UUID）
	TelegramID int64     // Telegram上のユーザーID
	FirstName  string    // 表示名（Telegramのfirst_name）
	LastName   string    // 姓（省略可）
	Username   string    // Telegramのusername（省略可）
	Wallet     string    // 紐づけられたTONウォレットアドレス（省略可）
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
