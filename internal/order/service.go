// Package order は注文管理のドメインロジックを提供する。
package order

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/tgmarket/internal/model"
	"github.com/hitoshi/tgmarket/internal/payment"
	"github.com/hitoshi/tgmarket/internal/repository"
)

// PaymentGateway は注文サービスが利用する決済機能のインターフェース。
type PaymentGateway interface {
	// CreateIntent は決済インテントを作成する。
	CreateIntent(ctx context.Context, in payment.CreateIntentInput) (*model.Payment, error)
	// GetStatus は決済の現在の状態を返す。
	GetStatus(ctx context.Context, paymentID string) (*model.Payment, error)
}

// SubmitPaymentInput は注文への決済送信の入力。
type SubmitPaymentInput struct {
	TxHash       string // ウォレット送金後のトランザクションハッシュ
	SenderWallet string // 送信元ウォレットアドレス
}

// Service は注文管理のサービス層。
// 注文作成、決済送信、決済状態の注文への反映を提供する。
type Service struct {
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	gateway     PaymentGateway
	logger      *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	gateway PaymentGateway,
	logger *slog.Logger,
) *Service {
	return &Service{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		gateway:     gateway,
		logger:      logger,
	}
}

// Create は商品の注文を作成する。
// 注文金額は作成時点の商品価格で確定し、以降の価格変更の影響を受けない。
func (s *Service) Create(ctx context.Context, userID, productID string) (*model.Order, error) {
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("商品の取得に失敗しました: %w", err)
	}
	if product == nil {
		return nil, model.NewProductNotFoundError(productID)
	}
	if !product.Available {
		return nil, model.NewProductUnavailableError(productID)
	}

	now := time.Now()
	order := &model.Order{
		ID:         uuid.New().String(),
		UserID:     userID,
		ProductID:  productID,
		AmountNano: product.PriceNano,
		Status:     model.OrderStatusCreated,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("注文の作成に失敗しました: %w", err)
	}

	s.logger.Info("order created",
		slog.String("order_id", order.ID),
		slog.String("product_id", productID),
		slog.Int64("amount_nano", order.AmountNano),
	)

	return order, nil
}

// Get は注文を取得する。注文者本人のみが参照できる。
// 決済が紐づいている場合は決済状態を注文ステータスに反映してから返す。
func (s *Service) Get(ctx context.Context, userID, orderID string) (*model.Order, error) {
	order, err := s.requireOwned(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}

	if err := s.syncPaymentStatus(ctx, order); err != nil {
		return nil, err
	}

	return order, nil
}

// ListMine はユーザーの注文一覧を返す。
func (s *Service) ListMine(ctx context.Context, userID string) ([]*model.Order, error) {
	orders, err := s.orderRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("注文一覧の取得に失敗しました: %w", err)
	}
	return orders, nil
}

// SubmitPayment はウォレット送金後のトランザクションハッシュで決済インテントを作成し、
// 注文に紐づける。同一ハッシュでの再送はゲートウェイ側で冪等に処理される。
func (s *Service) SubmitPayment(ctx context.Context, userID, orderID string, in SubmitPaymentInput) (*model.Payment, error) {
	order, err := s.requireOwned(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.OrderStatusCreated {
		return nil, model.NewOrderNotPayableError(order.Status)
	}

	pay, err := s.gateway.CreateIntent(ctx, payment.CreateIntentInput{
		UserID:       userID,
		OrderID:      orderID,
		AmountNano:   order.AmountNano,
		SenderWallet: in.SenderWallet,
		TxHash:       in.TxHash,
	})
	if err != nil {
		return nil, err
	}

	if order.PaymentID != pay.ID {
		if err := s.orderRepo.AttachPayment(ctx, orderID, pay.ID); err != nil {
			return nil, fmt.Errorf("注文への決済紐づけに失敗しました: %w", err)
		}
	}

	return pay, nil
}

// Cancel は決済送信前の注文をキャンセルする。
func (s *Service) Cancel(ctx context.Context, userID, orderID string) (*model.Order, error) {
	order, err := s.requireOwned(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.OrderStatusCreated || order.PaymentID != "" {
		return nil, model.NewOrderNotCancellableError(order.Status)
	}

	if err := s.orderRepo.UpdateStatus(ctx, orderID, model.OrderStatusCancelled); err != nil {
		return nil, fmt.Errorf("注文のキャンセルに失敗しました: %w", err)
	}

	order.Status = model.OrderStatusCancelled
	return order, nil
}

// syncPaymentStatus は決済完了を注文ステータスに反映する。
// 決済の状態遷移は確認パイプラインが担うため、ここでは読み取りと注文側の追従のみを行う。
func (s *Service) syncPaymentStatus(ctx context.Context, order *model.Order) error {
	if order.Status != model.OrderStatusCreated || order.PaymentID == "" {
		return nil
	}

	pay, err := s.gateway.GetStatus(ctx, order.PaymentID)
	if err != nil {
		return fmt.Errorf("決済状態の取得に失敗しました: %w", err)
	}

	if pay.Status == model.PaymentStatusCompleted {
		if err := s.orderRepo.UpdateStatus(ctx, order.ID, model.OrderStatusPaid); err != nil {
			return fmt.Errorf("注文ステータスの更新に失敗しました: %w", err)
		}
		order.Status = model.OrderStatusPaid
	}

	return nil
}

// requireOwned は注文の存在と所有者を検証する。
func (s *Service) requireOwned(ctx context.Context, userID, orderID string) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("注文の取得に失敗しました: %w", err)
	}
	if order == nil {
		return nil, model.NewOrderNotFoundError(orderID)
	}
	if order.UserID != userID {
		return nil, model.NewOrderNotFoundError(orderID)
	}
	return order, nil
}
