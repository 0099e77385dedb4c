// Package store はストア管理のドメインロジックを提供する。
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/tgmarket/internal/model"
	"github.com/hitoshi/tgmarket/internal/repository"
	"github.com/hitoshi/tgmarket/internal/security"
)

// CreateInput はストア作成の入力。
type CreateInput struct {
	Name        string
	Description string
	RegionCode  string
	Wallet      string
}

// UpdateInput はストア更新の入力。
type UpdateInput struct {
	Name        string
	Description string
	RegionCode  string
	Wallet      string
}

// Service はストア管理のサービス層。
// ストアのCRUDとオーナーシップ検証のビジネスロジックを提供する。
type Service struct {
	storeRepo repository.StoreRepository
	sanitizer security.TextSanitizerService
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(storeRepo repository.StoreRepository, sanitizer security.TextSanitizerService) *Service {
	return &Service{
		storeRepo: storeRepo,
		sanitizer: sanitizer,
	}
}

// Create はストアを作成する。説明文は保存前にサニタイズされる。
func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput) (*model.Store, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("ストア名は必須です")
	}
	if in.Wallet == "" {
		return nil, fmt.Errorf("受取用ウォレットアドレスは必須です")
	}

	now := time.Now()
	store := &model.Store{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Name:        in.Name,
		Description: s.sanitizer.Sanitize(in.Description),
		RegionCode:  in.RegionCode,
		Wallet:      in.Wallet,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.storeRepo.Create(ctx, store); err != nil {
		return nil, fmt.Errorf("ストアの作成に失敗しました: %w", err)
	}

	return store, nil
}

// Get は指定IDのストアを取得する。
func (s *Service) Get(ctx context.Context, id string) (*model.Store, error) {
	store, err := s.storeRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ストアの取得に失敗しました: %w", err)
	}
	if store == nil {
		return nil, model.NewStoreNotFoundError(id)
	}
	return store, nil
}

// ListMine はオーナーのストア一覧を返す。
func (s *Service) ListMine(ctx context.Context, ownerID string) ([]*model.Store, error) {
	stores, err := s.storeRepo.ListByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ストア一覧の取得に失敗しました: %w", err)
	}
	return stores, nil
}

// Update はストア情報を更新する。オーナーのみが更新できる。
func (s *Service) Update(ctx context.Context, ownerID, storeID string, in UpdateInput) (*model.Store, error) {
	store, err := s.requireOwned(ctx, ownerID, storeID)
	if err != nil {
		return nil, err
	}

	if in.Name != "" {
		store.Name = in.Name
	}
	if in.Wallet != "" {
		store.Wallet = in.Wallet
	}
	store.Description = s.sanitizer.Sanitize(in.Description)
	store.RegionCode = in.RegionCode
	store.UpdatedAt = time.Now()

	if err := s.storeRepo.Update(ctx, store); err != nil {
		return nil, fmt.Errorf("ストアの更新に失敗しました: %w", err)
	}

	return store, nil
}

// Delete はストアを削除する。オーナーのみが削除できる。
// 商品はDBのCASCADEで削除される。
func (s *Service) Delete(ctx context.Context, ownerID, storeID string) error {
	if _, err := s.requireOwned(ctx, ownerID, storeID); err != nil {
		return err
	}

	if err := s.storeRepo.Delete(ctx, storeID); err != nil {
		return fmt.Errorf("ストアの削除に失敗しました: %w", err)
	}

	return nil
}

// requireOwned はストアの存在とオーナーシップを検証する。
func (s *Service) requireOwned(ctx context.Context, ownerID, storeID string) (*model.Store, error) {
	store, err := s.storeRepo.FindByID(ctx, storeID)
	if err != nil {
		return nil, fmt.Errorf("ストアの取得に失敗しました: %w", err)
	}
	if store == nil {
		return nil, model.NewStoreNotFoundError(storeID)
	}
	if store.OwnerID != ownerID {
		return nil, model.NewNotStoreOwnerError()
	}
	return store, nil
}
