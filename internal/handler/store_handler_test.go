package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/tgmarket/internal/model"
	"github.com/hitoshi/tgmarket/internal/store"
)

// mockStoreService はStoreServiceInterfaceのモック。
type mockStoreService struct {
	createFn   func(ctx context.Context, ownerID string, in store.CreateInput) (*model.Store, error)
	getFn      func(ctx context.Context, id string) (*model.Store, error)
	listMineFn func(ctx context.Context, ownerID string) ([]*model.Store, error)
	updateFn   func(ctx context.Context, ownerID, storeID string, in store.UpdateInput) (*model.Store, error)
	deleteFn   func(ctx context.Context, ownerID, storeID string) error
}

func (m *mockStoreService) Create(ctx context.Context, ownerID string, in store.CreateInput) (*model.Store, error) {
	return m.createFn(ctx, ownerID, in)
}

func (m *mockStoreService) Get(ctx context.Context, id string) (*model.Store, error) {
	return m.getFn(ctx, id)
}

func (m *mockStoreService) ListMine(ctx context.Context, ownerID string) ([]*model.Store, error) {
	return m.listMineFn(ctx, ownerID)
}

func (m *mockStoreService) Update(ctx context.Context, ownerID, storeID string, in store.UpdateInput) (*model.Store, error) {
	return m.updateFn(ctx, ownerID, storeID, in)
}

func (m *mockStoreService) Delete(ctx context.Context, ownerID, storeID string) error {
	return m.deleteFn(ctx, ownerID, storeID)
}

func storeTestRouter(svc StoreServiceInterface) http.Handler {
	h := NewStoreHandler(svc)
	r := chi.NewRouter()
	r.Post("/api/stores", h.CreateStore)
	r.Get("/api/stores", h.ListMyStores)
	r.Get("/api/stores/{id}", h.GetStore)
	r.Patch("/api/stores/{id}", h.UpdateStore)
	r.Delete("/api/stores/{id}", h.DeleteStore)
	return r
}

func TestStoreHandler_CreateStore(t *testing.T) {
	svc := &mockStoreService{
		createFn: func(ctx context.Context, ownerID string, in store.CreateInput) (*model.Store, error) {
			return &model.Store{
				ID:      "store-1",
				OwnerID: ownerID,
				Name:    in.Name,
				Wallet:  in.Wallet,
			}, nil
		},
	}

	req := authedRequest(http.MethodPost, "/api/stores",
		`{"name":"My Shop","wallet":"EQabc"}`, "user-1")
	rec := httptest.NewRecorder()
	storeTestRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201. body: %s", rec.Code, rec.Body.String())
	}

	var res storeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if res.OwnerID != "user-1" {
		t.Errorf("owner_id = %q, want user-1", res.OwnerID)
	}
	if res.Name != "My Shop" {
		t.Errorf("name = %q", res.Name)
	}
}

func TestStoreHandler_CreateStore_InvalidJSON(t *testing.T) {
	svc := &mockStoreService{}

	req := authedRequest(http.MethodPost, "/api/stores", `{not json`, "user-1")
	rec := httptest.NewRecorder()
	storeTestRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestStoreHandler_GetStore_NotFound(t *testing.T) {
	svc := &mockStoreService{
		getFn: func(ctx context.Context, id string) (*model.Store, error) {
			return nil, model.NewStoreNotFoundError(id)
		},
	}

	req := authedRequest(http.MethodGet, "/api/stores/missing", "", "user-1")
	rec := httptest.NewRecorder()
	storeTestRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	var res apiErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if res.Code != model.ErrCodeStoreNotFound {
		t.Errorf("code = %q, want %q", res.Code, model.ErrCodeStoreNotFound)
	}
}

func TestStoreHandler_UpdateStore_NotOwner(t *testing.T) {
	svc := &mockStoreService{
		updateFn: func(ctx context.Context, ownerID, storeID string, in store.UpdateInput) (*model.Store, error) {
			return nil, model.NewNotStoreOwnerError()
		},
	}

	req := authedRequest(http.MethodPatch, "/api/stores/store-1",
		`{"name":"Renamed"}`, "intruder")
	rec := httptest.NewRecorder()
	storeTestRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestStoreHandler_ListMyStores(t *testing.T) {
	svc := &mockStoreService{
		listMineFn: func(ctx context.Context, ownerID string) ([]*model.Store, error) {
			return []*model.Store{
				{ID: "store-1", OwnerID: ownerID},
				{ID: "store-2", OwnerID: ownerID},
			}, nil
		},
	}

	req := authedRequest(http.MethodGet, "/api/stores", "", "user-1")
	rec := httptest.NewRecorder()
	storeTestRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var res []storeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if len(res) != 2 {
		t.Errorf("len = %d, want 2", len(res))
	}
}

func TestStoreHandler_DeleteStore(t *testing.T) {
	var deletedID string
	svc := &mockStoreService{
		deleteFn: func(ctx context.Context, ownerID, storeID string) error {
			deletedID = storeID
			return nil
		},
	}

	req := authedRequest(http.MethodDelete, "/api/stores/store-1", "", "user-1")
	rec := httptest.NewRecorder()
	storeTestRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if deletedID != "store-1" {
		t.Errorf("削除対象のストアID = %q, want store-1", deletedID)
	}
}
