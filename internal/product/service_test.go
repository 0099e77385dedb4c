package product

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/tgmarket/internal/model"
)

// --- モック ---

type mockProductRepo struct {
	mu       sync.Mutex
	products map[string]*model.Product
}

func newMockProductRepo() *mockProductRepo {
	return &mockProductRepo{products: make(map[string]*model.Product)}
}

func (r *mockProductRepo) FindByID(ctx context.Context, id string) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *mockProductRepo) ListByStoreID(ctx context.Context, storeID string) ([]*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Product
	for _, p := range r.products {
		if p.StoreID == storeID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *mockProductRepo) Create(ctx context.Context, product *model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *product
	r.products[product.ID] = &cp
	return nil
}

func (r *mockProductRepo) Update(ctx context.Context, product *model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *product
	r.products[product.ID] = &cp
	return nil
}

func (r *mockProductRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.products, id)
	return nil
}

type mockStoreRepo struct {
	stores map[string]*model.Store
}

func (r *mockStoreRepo) FindByID(ctx context.Context, id string) (*model.Store, error) {
	s, ok := r.stores[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *mockStoreRepo) ListByOwnerID(ctx context.Context, ownerID string) ([]*model.Store, error) {
	return nil, nil
}
func (r *mockStoreRepo) Create(ctx context.Context, store *model.Store) error { return nil }
func (r *mockStoreRepo) Update(ctx context.Context, store *model.Store) error { return nil }
func (r *mockStoreRepo) Delete(ctx context.Context, id string) error          { return nil }

type stubSanitizer struct{}

func (stubSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	return "clean:" + raw
}

func newTestService() (*Service, *mockProductRepo) {
	products := newMockProductRepo()
	stores := &mockStoreRepo{stores: map[string]*model.Store{
		"store-1": {
			ID:        "store-1",
			OwnerID:   "owner-1",
			Name:      "革工房",
			Wallet:    "EQw",
			CreatedAt: time.Now(),
		},
	}}
	return NewService(products, stores, stubSanitizer{}), products
}

// --- テスト ---

func TestCreate_Product(t *testing.T) {
	s, _ := newTestService()

	p, err := s.Create(context.Background(), "owner-1", "store-1", CreateInput{
		Name:        "財布",
		Description: "<b>手縫い</b>",
		PriceNano:   1500000000,
		Available:   true,
	})
	if err != nil {
		t.Fatalf("作成に成功するべき: %v", err)
	}
	if p.PriceNano != 1500000000 {
		t.Errorf("PriceNano = %d, want 1500000000", p.PriceNano)
	}
	if p.Description != "clean:<b>手縫い</b>" {
		t.Errorf("説明文がサニタイズされていない: %q", p.Description)
	}
}

func TestCreate_RejectsNonPositivePrice(t *testing.T) {
	s, _ := newTestService()

	_, err := s.Create(context.Background(), "owner-1", "store-1", CreateInput{
		Name:      "財布",
		PriceNano: 0,
	})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidAmount {
		t.Errorf("err = %v, want INVALID_AMOUNT", err)
	}
}

func TestCreate_NonOwnerRejected(t *testing.T) {
	s, _ := newTestService()

	_, err := s.Create(context.Background(), "owner-2", "store-1", CreateInput{
		Name:      "財布",
		PriceNano: 100,
	})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeNotStoreOwner {
		t.Errorf("err = %v, want NOT_STORE_OWNER", err)
	}
}

func TestUpdate_TogglesAvailability(t *testing.T) {
	s, _ := newTestService()

	p, err := s.Create(context.Background(), "owner-1", "store-1", CreateInput{
		Name: "財布", PriceNano: 100, Available: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	updated, err := s.Update(context.Background(), "owner-1", p.ID, UpdateInput{
		PriceNano: 100, Available: false,
	})
	if err != nil {
		t.Fatalf("更新に成功するべき: %v", err)
	}
	if updated.Available {
		t.Error("Availableがfalseに更新されていない")
	}
}

func TestDelete_NonOwnerRejected(t *testing.T) {
	s, products := newTestService()

	p, err := s.Create(context.Background(), "owner-1", "store-1", CreateInput{
		Name: "財布", PriceNano: 100,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Delete(context.Background(), "owner-2", p.ID); err == nil {
		t.Error("非オーナーの削除は拒否するべき")
	}
	if got, _ := products.FindByID(context.Background(), p.ID); got == nil {
		t.Error("商品が削除されてしまった")
	}
}

func TestGet_NotFound(t *testing.T) {
	s, _ := newTestService()

	_, err := s.Get(context.Background(), "missing")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeProductNotFound {
		t.Errorf("err = %v, want PRODUCT_NOT_FOUND", err)
	}
}
