// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/tgmarket/internal/model"
)

// PaymentRepository は決済レコードの永続化インターフェース。
// ステータスの変更はUpdateTransitionのみで行い、直接のフィールド更新は許可しない。
type PaymentRepository interface {
	// Create は決済レコードを作成する。
	Create(ctx context.Context, payment *model.Payment) error

	// FindByID は指定IDの決済を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Payment, error)

	// FindByTxHash は外部相関ID（トランザクションハッシュ）で決済を検索する。
	// 見つからない場合はnilを返す。
	FindByTxHash(ctx context.Context, txHash string) (*model.Payment, error)

	// UpdateTransition はステータス遷移を楽観的排他制御つきで永続化する。
	// UPDATE文は遷移前ステータス（from）を条件に含み、
	// 他のワーカーが先に遷移させていた場合はfalseを返す（エラーにはしない）。
	UpdateTransition(ctx context.Context, payment *model.Payment, from model.PaymentStatus) (bool, error)
}

// ConfirmationQueueRepository は確認イベントの永続キューのインターフェース。
// イベントはat-least-onceで配送されるため、取り出しは排他的
// （FOR UPDATE SKIP LOCKED）に行う。
type ConfirmationQueueRepository interface {
	// Enqueue は確認イベントをキューに追加する。
	Enqueue(ctx context.Context, qc *model.QueuedConfirmation) error

	// ListDue は処理予定時刻を過ぎたqueued状態のイベントを最大limit件取得する。
	// 複数ワーカーの同時取得に備えてFOR UPDATE SKIP LOCKEDで取得する。
	ListDue(ctx context.Context, limit int) ([]*model.QueuedConfirmation, error)

	// MarkDone はイベントを処理完了にする。
	MarkDone(ctx context.Context, id string) error

	// Requeue はイベントを再試行待ちに戻す。試行回数と次回処理予定時刻を更新する。
	Requeue(ctx context.Context, id string, attempts int, nextAttemptAt time.Time, lastError string) error

	// MarkDead はリトライ上限に達したイベントを処理断念にする。
	MarkDead(ctx context.Context, id string, lastError string) error

	// DeleteFinishedBefore は指定日時より前に完了（done）したイベントを削除する。
	// 戻り値は削除件数。deadのイベントはオペレーター確認のため削除しない。
	DeleteFinishedBefore(ctx context.Context, before time.Time) (int64, error)
}

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByTelegramID はTelegram IDでユーザーを検索する。見つからない場合はnilを返す。
	FindByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// UpdateProfile は表示名等のプロフィールを更新する。
	UpdateProfile(ctx context.Context, user *model.User) error

	// UpdateWallet はユーザーのウォレットアドレスを更新する。
	UpdateWallet(ctx context.Context, userID, wallet string) error
}

// StoreRepository はストアデータの永続化インターフェース。
type StoreRepository interface {
	// FindByID は指定IDのストアを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Store, error)

	// ListByOwnerID はオーナーのストア一覧を返す。
	ListByOwnerID(ctx context.Context, ownerID string) ([]*model.Store, error)

	// Create はストアを作成する。
	Create(ctx context.Context, store *model.Store) error

	// Update はストア情報を更新する。
	Update(ctx context.Context, store *model.Store) error

	// Delete は指定IDのストアを削除する。
	Delete(ctx context.Context, id string) error
}

// ProductRepository は商品データの永続化インターフェース。
type ProductRepository interface {
	// FindByID は指定IDの商品を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Product, error)

	// ListByStoreID はストアの商品一覧を返す。
	ListByStoreID(ctx context.Context, storeID string) ([]*model.Product, error)

	// Create は商品を作成する。
	Create(ctx context.Context, product *model.Product) error

	// Update は商品情報を更新する。
	Update(ctx context.Context, product *model.Product) error

	// Delete は指定IDの商品を削除する。
	Delete(ctx context.Context, id string) error
}

// OrderRepository は注文データの永続化インターフェース。
type OrderRepository interface {
	// FindByID は指定IDの注文を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Order, error)

	// ListByUserID はユーザーの注文一覧を返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Order, error)

	// Create は注文を作成する。
	Create(ctx context.Context, order *model.Order) error

	// AttachPayment は注文に決済IDを紐づける。
	AttachPayment(ctx context.Context, orderID, paymentID string) error

	// UpdateStatus は注文ステータスを更新する。
	UpdateStatus(ctx context.Context, orderID string, status model.OrderStatus) error
}

// ReviewRepository はレビューデータの永続化インターフェース。
type ReviewRepository interface {
	// Create はレビューを作成する。
	Create(ctx context.Context, review *model.Review) error

	// ListByProductID は商品のレビュー一覧を新しい順に返す。
	ListByProductID(ctx context.Context, productID string) ([]*model.Review, error)
}

// Storefront はマーケット表示用のストア集約ビュー。
type Storefront struct {
	Store        model.Store
	ProductCount int
	AvgRating    float64 // レビューがない場合は0
}

// MarketRepository はマーケット（ストアフロント集約）の読み取りインターフェース。
type MarketRepository interface {
	// ListStorefronts は全ストアのストアフロントビューを返す。
	ListStorefronts(ctx context.Context) ([]Storefront, error)

	// GetStorefront は指定ストアのストアフロントビューを返す。
	// 見つからない場合はnilを返す。
	GetStorefront(ctx context.Context, storeID string) (*Storefront, error)
}

// RegionRepository は地域マスタデータの永続化インターフェース。
type RegionRepository interface {
	// UpsertBatch は地域データをまとめてUPSERTする。戻り値は処理件数。
	UpsertBatch(ctx context.Context, regions []*model.Region) (int, error)

	// ListByCountry は指定された国の地域一覧を返す。
	ListByCountry(ctx context.Context, country string) ([]*model.Region, error)
}
