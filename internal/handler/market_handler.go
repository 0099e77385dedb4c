package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/tgmarket/internal/model"
	"github.com/hitoshi/tgmarket/internal/repository"
)

// MarketServiceInterface はマーケットハンドラーが必要とするサービスインターフェース。
type MarketServiceInterface interface {
	ListStorefronts(ctx context.Context) ([]repository.Storefront, error)
	GetStorefront(ctx context.Context, storeID string) (*repository.Storefront, error)
	ListRegions(ctx context.Context, country string) ([]*model.Region, error)
}

// MarketHandler はマーケット閲覧のHTTPハンドラー。
type MarketHandler struct {
	service MarketServiceInterface
}

// NewMarketHandler はMarketHandlerを生成する。
func NewMarketHandler(service MarketServiceInterface) *MarketHandler {
	return &MarketHandler{
		service: service,
	}
}

// storefrontResponse はストアフロント集約ビューのAPIレスポンス。
type storefrontResponse struct {
	Store        storeResponse `json:"store"`
	ProductCount int           `json:"product_count"`
	AvgRating    float64       `json:"avg_rating"`
}

// regionResponse は地域マスタのAPIレスポンス。
type regionResponse struct {
	Code     string    `json:"code"`
	Country  string    `json:"country"`
	City     string    `json:"city,omitempty"`
	SyncedAt time.Time `json:"synced_at"`
}

// ListStorefronts は全ストアのストアフロント一覧を返す。
// GET /api/market/storefronts
func (h *MarketHandler) ListStorefronts(w http.ResponseWriter, r *http.Request) {
	fronts, err := h.service.ListStorefronts(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	res := make([]storefrontResponse, 0, len(fronts))
	for _, f := range fronts {
		res = append(res, toStorefrontResponse(f))
	}
	writeJSON(w, http.StatusOK, res)
}

// GetStorefront は指定ストアのストアフロントを返す。
// GET /api/market/storefronts/:id
func (h *MarketHandler) GetStorefront(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "id")

	front, err := h.service.GetStorefront(r.Context(), storeID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toStorefrontResponse(*front))
}

// ListRegions は指定された国の地域一覧を返す。
// GET /api/market/regions?country=xx
func (h *MarketHandler) ListRegions(w http.ResponseWriter, r *http.Request) {
	country := r.URL.Query().Get("country")
	if country == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "countryクエリパラメータは必須です。",
			Category: "validation",
			Action:   "countryを指定してください。",
		})
		return
	}

	regions, err := h.service.ListRegions(r.Context(), country)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	res := make([]regionResponse, 0, len(regions))
	for _, rg := range regions {
		res = append(res, regionResponse{
			Code:     rg.Code,
			Country:  rg.Country,
			City:     rg.City,
			SyncedAt: rg.SyncedAt,
		})
	}
	writeJSON(w, http.StatusOK, res)
}

// toStorefrontResponse はrepository.StorefrontからAPIレスポンスに変換する。
func toStorefrontResponse(f repository.Storefront) storefrontResponse {
	return storefrontResponse{
		Store:        toStoreResponse(&f.Store),
		ProductCount: f.ProductCount,
		AvgRating:    f.AvgRating,
	}
}
