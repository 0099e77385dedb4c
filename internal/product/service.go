// Package product は商品管理のドメインロジックを提供する。
package product

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/tgmarket/internal/model"
	"github.com/hitoshi/tgmarket/internal/repository"
	"github.com/hitoshi/tgmarket/internal/security"
)

// CreateInput は商品作成の入力。
type CreateInput struct {
	Name        string
	Description string
	PriceNano   int64
	Available   bool
}

// UpdateInput は商品更新の入力。
type UpdateInput struct {
	Name        string
	Description string
	PriceNano   int64
	Available   bool
}

// Service は商品管理のサービス層。
// 出品・更新・取り下げのビジネスロジックを提供する。
// 書き込み系の操作はすべてストアのオーナーシップ検証を通る。
type Service struct {
	productRepo repository.ProductRepository
	storeRepo   repository.StoreRepository
	sanitizer   security.TextSanitizerService
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	productRepo repository.ProductRepository,
	storeRepo repository.StoreRepository,
	sanitizer security.TextSanitizerService,
) *Service {
	return &Service{
		productRepo: productRepo,
		storeRepo:   storeRepo,
		sanitizer:   sanitizer,
	}
}

// Create は商品を出品する。価格は正のnanoton整数でなければならない。
func (s *Service) Create(ctx context.Context, ownerID, storeID string, in CreateInput) (*model.Product, error) {
	if err := s.requireOwnedStore(ctx, ownerID, storeID); err != nil {
		return nil, err
	}
	if in.Name == "" {
		return nil, fmt.Errorf("商品名は必須です")
	}
	if in.PriceNano <= 0 {
		return nil, model.NewInvalidAmountError(in.PriceNano)
	}

	now := time.Now()
	product := &model.Product{
		ID:          uuid.New().String(),
		StoreID:     storeID,
		Name:        in.Name,
		Description: s.sanitizer.Sanitize(in.Description),
		PriceNano:   in.PriceNano,
		Available:   in.Available,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("商品の作成に失敗しました: %w", err)
	}

	return product, nil
}

// Get は指定IDの商品を取得する。
func (s *Service) Get(ctx context.Context, id string) (*model.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("商品の取得に失敗しました: %w", err)
	}
	if product == nil {
		return nil, model.NewProductNotFoundError(id)
	}
	return product, nil
}

// ListByStore はストアの商品一覧を返す。
func (s *Service) ListByStore(ctx context.Context, storeID string) ([]*model.Product, error) {
	products, err := s.productRepo.ListByStoreID(ctx, storeID)
	if err != nil {
		return nil, fmt.Errorf("商品一覧の取得に失敗しました: %w", err)
	}
	return products, nil
}

// Update は商品情報を更新する。出品元ストアのオーナーのみが更新できる。
func (s *Service) Update(ctx context.Context, ownerID, productID string, in UpdateInput) (*model.Product, error) {
	product, err := s.requireOwnedProduct(ctx, ownerID, productID)
	if err != nil {
		return nil, err
	}
	if in.PriceNano <= 0 {
		return nil, model.NewInvalidAmountError(in.PriceNano)
	}

	if in.Name != "" {
		product.Name = in.Name
	}
	product.Description = s.sanitizer.Sanitize(in.Description)
	product.PriceNano = in.PriceNano
	product.Available = in.Available
	product.UpdatedAt = time.Now()

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("商品の更新に失敗しました: %w", err)
	}

	return product, nil
}

// Delete は商品を削除する。出品元ストアのオーナーのみが削除できる。
func (s *Service) Delete(ctx context.Context, ownerID, productID string) error {
	if _, err := s.requireOwnedProduct(ctx, ownerID, productID); err != nil {
		return err
	}

	if err := s.productRepo.Delete(ctx, productID); err != nil {
		return fmt.Errorf("商品の削除に失敗しました: %w", err)
	}

	return nil
}

// requireOwnedStore はストアの存在とオーナーシップを検証する。
func (s *Service) requireOwnedStore(ctx context.Context, ownerID, storeID string) error {
	store, err := s.storeRepo.FindByID(ctx, storeID)
	if err != nil {
		return fmt.Errorf("ストアの取得に失敗しました: %w", err)
	}
	if store == nil {
		return model.NewStoreNotFoundError(storeID)
	}
	if store.OwnerID != ownerID {
		return model.NewNotStoreOwnerError()
	}
	return nil
}

// requireOwnedProduct は商品の存在と出品元ストアのオーナーシップを検証する。
func (s *Service) requireOwnedProduct(ctx context.Context, ownerID, productID string) (*model.Product, error) {
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("商品の取得に失敗しました: %w", err)
	}
	if product == nil {
		return nil, model.NewProductNotFoundError(productID)
	}
	if err := s.requireOwnedStore(ctx, ownerID, product.StoreID); err != nil {
		return nil, err
	}
	return product, nil
}
