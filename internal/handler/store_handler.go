package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/tgmarket/internal/model"
	"github.com/hitoshi/tgmarket/internal/store"
)

// StoreServiceInterface はストアハンドラーが必要とするサービスインターフェース。
type StoreServiceInterface interface {
	Create(ctx context.Context, ownerID string, in store.CreateInput) (*model.Store, error)
	Get(ctx context.Context, id string) (*model.Store, error)
	ListMine(ctx context.Context, ownerID string) ([]*model.Store, error)
	Update(ctx context.Context, ownerID, storeID string, in store.UpdateInput) (*model.Store, error)
	Delete(ctx context.Context, ownerID, storeID string) error
}

// StoreHandler はストア管理のHTTPハンドラー。
type StoreHandler struct {
	service StoreServiceInterface
}

// NewStoreHandler はStoreHandlerを生成する。
func NewStoreHandler(service StoreServiceInterface) *StoreHandler {
	return &StoreHandler{
		service: service,
	}
}

// storeRequest はストア作成・更新リクエストのボディ。
type storeRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	RegionCode  string `json:"region_code"`
	Wallet      string `json:"wallet"`
}

// storeResponse はストア情報のAPIレスポンス。
type storeResponse struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	RegionCode  string    `json:"region_code,omitempty"`
	Wallet      string    `json:"wallet"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateStore はストアを開設する。
// POST /api/stores
func (h *StoreHandler) CreateStore(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req storeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.service.Create(r.Context(), userID, store.CreateInput{
		Name:        req.Name,
		Description: req.Description,
		RegionCode:  req.RegionCode,
		Wallet:      req.Wallet,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toStoreResponse(created))
}

// ListMyStores は自分がオーナーのストア一覧を返す。
// GET /api/stores
func (h *StoreHandler) ListMyStores(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	stores, err := h.service.ListMine(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	res := make([]storeResponse, 0, len(stores))
	for _, s := range stores {
		res = append(res, toStoreResponse(s))
	}
	writeJSON(w, http.StatusOK, res)
}

// GetStore はストア詳細を取得する。
// GET /api/stores/:id
func (h *StoreHandler) GetStore(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "id")

	found, err := h.service.Get(r.Context(), storeID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toStoreResponse(found))
}

// UpdateStore はストア情報を更新する。
// PATCH /api/stores/:id
func (h *StoreHandler) UpdateStore(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	storeID := chi.URLParam(r, "id")

	var req storeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	updated, err := h.service.Update(r.Context(), userID, storeID, store.UpdateInput{
		Name:        req.Name,
		Description: req.Description,
		RegionCode:  req.RegionCode,
		Wallet:      req.Wallet,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toStoreResponse(updated))
}

// DeleteStore はストアを削除する。
// DELETE /api/stores/:id
func (h *StoreHandler) DeleteStore(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	storeID := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), userID, storeID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toStoreResponse はmodel.StoreからAPIレスポンスに変換する。
func toStoreResponse(s *model.Store) storeResponse {
	return storeResponse{
		ID:          s.ID,
		OwnerID:     s.OwnerID,
		Name:        s.Name,
		Description: s.Description,
		RegionCode:  s.RegionCode,
		Wallet:      s.Wallet,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}
