package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/tgmarket/internal/model"
	"github.com/hitoshi/tgmarket/internal/product"
)

// ProductServiceInterface は商品ハンドラーが必要とするサービスインターフェース。
type ProductServiceInterface interface {
	Create(ctx context.Context, ownerID, storeID string, in product.CreateInput) (*model.Product, error)
	Get(ctx context.Context, id string) (*model.Product, error)
	ListByStore(ctx context.Context, storeID string) ([]*model.Product, error)
	Update(ctx context.Context, ownerID, productID string, in product.UpdateInput) (*model.Product, error)
	Delete(ctx context.Context, ownerID, productID string) error
}

// ReviewServiceInterface はレビューハンドラーが必要とするサービスインターフェース。
type ReviewServiceInterface interface {
	Create(ctx context.Context, userID, productID string, rating int, text string) (*model.Review, error)
	ListByProduct(ctx context.Context, productID string) ([]*model.Review, error)
}

// ProductHandler は商品管理とレビューのHTTPハンドラー。
type ProductHandler struct {
	products ProductServiceInterface
	reviews  ReviewServiceInterface
}

// NewProductHandler はProductHandlerを生成する。
func NewProductHandler(products ProductServiceInterface, reviews ReviewServiceInterface) *ProductHandler {
	return &ProductHandler{
		products: products,
		reviews:  reviews,
	}
}

// productRequest は商品作成・更新リクエストのボディ。
type productRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceNano   int64  `json:"price_nano"`
	Available   bool   `json:"available"`
}

// productResponse は商品情報のAPIレスポンス。
type productResponse struct {
	ID          string    `json:"id"`
	StoreID     string    `json:"store_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PriceNano   int64     `json:"price_nano"`
	Available   bool      `json:"available"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// reviewRequest はレビュー投稿リクエストのボディ。
type reviewRequest struct {
	Rating int    `json:"rating"`
	Text   string `json:"text"`
}

// reviewResponse はレビュー情報のAPIレスポンス。
type reviewResponse struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	UserID    string    `json:"user_id"`
	Rating    int       `json:"rating"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateProduct は商品を出品する。
// POST /api/stores/:id/products
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	storeID := chi.URLParam(r, "id")

	var req productRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.products.Create(r.Context(), userID, storeID, product.CreateInput{
		Name:        req.Name,
		Description: req.Description,
		PriceNano:   req.PriceNano,
		Available:   req.Available,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toProductResponse(created))
}

// ListStoreProducts はストアの商品一覧を返す。
// GET /api/stores/:id/products
func (h *ProductHandler) ListStoreProducts(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "id")

	products, err := h.products.ListByStore(r.Context(), storeID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	res := make([]productResponse, 0, len(products))
	for _, p := range products {
		res = append(res, toProductResponse(p))
	}
	writeJSON(w, http.StatusOK, res)
}

// GetProduct は商品詳細を取得する。
// GET /api/products/:id
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")

	found, err := h.products.Get(r.Context(), productID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProductResponse(found))
}

// UpdateProduct は商品情報を更新する。
// PATCH /api/products/:id
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	productID := chi.URLParam(r, "id")

	var req productRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	updated, err := h.products.Update(r.Context(), userID, productID, product.UpdateInput{
		Name:        req.Name,
		Description: req.Description,
		PriceNano:   req.PriceNano,
		Available:   req.Available,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProductResponse(updated))
}

// DeleteProduct は商品を削除する。
// DELETE /api/products/:id
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	productID := chi.URLParam(r, "id")

	if err := h.products.Delete(r.Context(), userID, productID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CreateReview は商品にレビューを投稿する。
// POST /api/products/:id/reviews
func (h *ProductHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	productID := chi.URLParam(r, "id")

	var req reviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.reviews.Create(r.Context(), userID, productID, req.Rating, req.Text)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toReviewResponse(created))
}

// ListReviews は商品のレビュー一覧を返す。
// GET /api/products/:id/reviews
func (h *ProductHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")

	reviews, err := h.reviews.ListByProduct(r.Context(), productID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	res := make([]reviewResponse, 0, len(reviews))
	for _, rv := range reviews {
		res = append(res, toReviewResponse(rv))
	}
	writeJSON(w, http.StatusOK, res)
}

// toProductResponse はmodel.ProductからAPIレスポンスに変換する。
func toProductResponse(p *model.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		StoreID:     p.StoreID,
		Name:        p.Name,
		Description: p.Description,
		PriceNano:   p.PriceNano,
		Available:   p.Available,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// toReviewResponse はmodel.ReviewからAPIレスポンスに変換する。
func toReviewResponse(rv *model.Review) reviewResponse {
	return reviewResponse{
		ID:        rv.ID,
		ProductID: rv.ProductID,
		UserID:    rv.UserID,
		Rating:    rv.Rating,
		Text:      rv.Text,
		CreatedAt: rv.CreatedAt,
	}
}
