// Package review は商品レビューのドメインロジックを提供する。
package review

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/tgmarket/internal/model"
	"github.com/hitoshi/tgmarket/internal/repository"
	"github.com/hitoshi/tgmarket/internal/security"
)

// Service はレビュー管理のサービス層。
type Service struct {
	reviewRepo  repository.ReviewRepository
	productRepo repository.ProductRepository
	sanitizer   security.TextSanitizerService
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	reviewRepo repository.ReviewRepository,
	productRepo repository.ProductRepository,
	sanitizer security.TextSanitizerService,
) *Service {
	return &Service{
		reviewRepo:  reviewRepo,
		productRepo: productRepo,
		sanitizer:   sanitizer,
	}
}

// Create はレビューを投稿する。評価は1から5の整数のみ許可する。
// 本文は保存前にサニタイズされる。
func (s *Service) Create(ctx context.Context, userID, productID string, rating int, text string) (*model.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, model.NewInvalidRatingError(rating)
	}

	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("商品の取得に失敗しました: %w", err)
	}
	if product == nil {
		return nil, model.NewProductNotFoundError(productID)
	}

	review := &model.Review{
		ID:        uuid.New().String(),
		ProductID: productID,
		UserID:    userID,
		Rating:    rating,
		Text:      s.sanitizer.Sanitize(text),
		CreatedAt: time.Now(),
	}

	if err := s.reviewRepo.Create(ctx, review); err != nil {
		return nil, fmt.Errorf("レビューの作成に失敗しました: %w", err)
	}

	return review, nil
}

// ListByProduct は商品のレビュー一覧を新しい順に返す。
func (s *Service) ListByProduct(ctx context.Context, productID string) ([]*model.Review, error) {
	reviews, err := s.reviewRepo.ListByProductID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("レビュー一覧の取得に失敗しました: %w", err)
	}
	return reviews, nil
}
