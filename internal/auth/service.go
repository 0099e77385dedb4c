// Package auth はTelegram認証ペイロードの検証とアクセストークンの発行を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/tgmarket/internal/model"
	"github.com/hitoshi/tgmarket/internal/payauth"
	"github.com/hitoshi/tgmarket/internal/repository"
)

// MetricsRecorder は認証検証の失敗メトリクスを記録するインターフェース。
type MetricsRecorder interface {
	// RecordVerifyFailure は検証失敗を種別別に記録する。
	RecordVerifyFailure(reason string)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	JWTSecret   []byte        // トークン署名鍵
	TokenMaxAge time.Duration // 発行するトークンの有効期間
	AuthMaxAge  time.Duration // 認証ペイロードのauth_date許容期間
}

// LoginResult はログイン成功時の結果を表す。
type LoginResult struct {
	Token string      // 発行されたアクセストークン
	User  *model.User // ログインしたユーザー
}

// Service はTelegram認証に関するビジネスロジックを提供する。
// 検証済みペイロードのTelegram IDで内部ユーザーをupsertし、JWTを発行する。
type Service struct {
	verifier *payauth.Verifier
	userRepo repository.UserRepository
	metrics  MetricsRecorder
	config   ServiceConfig
	logger   *slog.Logger
}

// NewService はServiceを生成する。
func NewService(
	verifier *payauth.Verifier,
	userRepo repository.UserRepository,
	metrics MetricsRecorder,
	config ServiceConfig,
	logger *slog.Logger,
) *Service {
	return &Service{
		verifier: verifier,
		userRepo: userRepo,
		metrics:  metrics,
		config:   config,
		logger:   logger,
	}
}

// LoginWithWidget はログインウィジェットのペイロードを検証しログインする。
func (s *Service) LoginWithWidget(ctx context.Context, rawQuery string) (*LoginResult, error) {
	identity, err := s.verifier.VerifyLoginWidget(rawQuery, s.config.AuthMaxAge)
	if err != nil {
		return nil, s.rejectVerify("widget", err)
	}
	return s.login(ctx, identity)
}

// LoginWithInitData はミニアプリのinitDataペイロードを検証しログインする。
func (s *Service) LoginWithInitData(ctx context.Context, rawInitData string) (*LoginResult, error) {
	identity, err := s.verifier.VerifyInitData(rawInitData, s.config.AuthMaxAge)
	if err != nil {
		return nil, s.rejectVerify("initdata", err)
	}
	return s.login(ctx, identity)
}

// login は検証済みアイデンティティでユーザーをupsertし、トークンを発行する。
func (s *Service) login(ctx context.Context, identity *payauth.VerifiedIdentity) (*LoginResult, error) {
	user, err := s.upsertUser(ctx, identity)
	if err != nil {
		return nil, err
	}

	token, err := GenerateToken(user.ID, s.config.JWTSecret, s.config.TokenMaxAge)
	if err != nil {
		return nil, fmt.Errorf("アクセストークンの発行に失敗しました: %w", err)
	}

	s.logger.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.Int64("telegram_id", user.TelegramID),
	)

	return &LoginResult{Token: token, User: user}, nil
}

// upsertUser はTelegram IDで既存ユーザーを検索し、なければ作成する。
// 既存ユーザーの場合は最新のプロフィールを反映する。
func (s *Service) upsertUser(ctx context.Context, identity *payauth.VerifiedIdentity) (*model.User, error) {
	user, err := s.userRepo.FindByTelegramID(ctx, identity.TelegramID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}

	if user == nil {
		now := time.Now()
		user = &model.User{
			ID:         uuid.New().String(),
			TelegramID: identity.TelegramID,
			FirstName:  identity.FirstName,
			LastName:   identity.LastName,
			Username:   identity.Username,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
		}
		s.logger.Info("new user created",
			slog.String("user_id", user.ID),
			slog.Int64("telegram_id", user.TelegramID),
		)
		return user, nil
	}

	if user.FirstName != identity.FirstName || user.LastName != identity.LastName || user.Username != identity.Username {
		user.FirstName = identity.FirstName
		user.LastName = identity.LastName
		user.Username = identity.Username
		if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
			return nil, fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
		}
	}

	return user, nil
}

// rejectVerify は検証失敗をメトリクスとログに記録し、APIエラーに変換する。
// 失敗の詳細はクライアントに返さない。
func (s *Service) rejectVerify(profile string, err error) error {
	reason := verifyFailureReason(err)
	s.metrics.RecordVerifyFailure(reason)
	s.logger.Warn("auth payload rejected",
		slog.String("profile", profile),
		slog.String("reason", reason),
	)
	return model.NewAuthRejectedError()
}

// verifyFailureReason は検証エラーをメトリクスのラベル値に分類する。
func verifyFailureReason(err error) string {
	switch {
	case errors.Is(err, payauth.ErrMissingSignature):
		return "missing_signature"
	case errors.Is(err, payauth.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, payauth.ErrExpired):
		return "expired"
	case errors.Is(err, payauth.ErrMalformedIdentity):
		return "malformed_identity"
	case errors.Is(err, payauth.ErrBotRejected):
		return "bot_rejected"
	default:
		return "other"
	}
}
