// Package market はマーケット（公開ストアフロント）の読み取りロジックを提供する。
package market

import (
	"context"
	"fmt"

	"github.com/hitoshi/tgmarket/internal/model"
	"github.com/hitoshi/tgmarket/internal/repository"
)

// Service はマーケット閲覧のサービス層。
// ストアフロントの集約ビューと地域マスタの参照を提供する。
type Service struct {
	marketRepo repository.MarketRepository
	regionRepo repository.RegionRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(marketRepo repository.MarketRepository, regionRepo repository.RegionRepository) *Service {
	return &Service{
		marketRepo: marketRepo,
		regionRepo: regionRepo,
	}
}

// ListStorefronts は全ストアのストアフロントビューを返す。
func (s *Service) ListStorefronts(ctx context.Context) ([]repository.Storefront, error) {
	fronts, err := s.marketRepo.ListStorefronts(ctx)
	if err != nil {
		return nil, fmt.Errorf("ストアフロント一覧の取得に失敗しました: %w", err)
	}
	return fronts, nil
}

// GetStorefront は指定ストアのストアフロントビューを返す。
func (s *Service) GetStorefront(ctx context.Context, storeID string) (*repository.Storefront, error) {
	front, err := s.marketRepo.GetStorefront(ctx, storeID)
	if err != nil {
		return nil, fmt.Errorf("ストアフロントの取得に失敗しました: %w", err)
	}
	if front == nil {
		return nil, model.NewStoreNotFoundError(storeID)
	}
	return front, nil
}

// ListRegions は指定された国の地域一覧を返す。
func (s *Service) ListRegions(ctx context.Context, country string) ([]*model.Region, error) {
	regions, err := s.regionRepo.ListByCountry(ctx, country)
	if err != nil {
		return nil, fmt.Errorf("地域一覧の取得に失敗しました: %w", err)
	}
	return regions, nil
}
