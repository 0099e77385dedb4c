// Package user はユーザープロフィール管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/tgmarket/internal/model"
	"github.com/hitoshi/tgmarket/internal/repository"
)

// Service はユーザー管理のサービス層。
// プロフィール取得とウォレット紐づけを提供する。
type Service struct {
	userRepo repository.UserRepository
	logger   *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository, logger *slog.Logger) *Service {
	return &Service{
		userRepo: userRepo,
		logger:   logger,
	}
}

// GetProfile は現在のユーザーのプロフィールを返す。
func (s *Service) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// LinkWallet はユーザーにTONウォレットアドレスを紐づける。
// 空文字列を渡すと紐づけを解除する。
func (s *Service) LinkWallet(ctx context.Context, userID, wallet string) (*model.User, error) {
	wallet = strings.TrimSpace(wallet)

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	if err := s.userRepo.UpdateWallet(ctx, userID, wallet); err != nil {
		return nil, fmt.Errorf("ウォレットアドレスの更新に失敗しました: %w", err)
	}

	user.Wallet = wallet

	s.logger.Info("wallet linked",
		slog.String("user_id", userID),
		slog.Bool("cleared", wallet == ""),
	)

	return user, nil
}
