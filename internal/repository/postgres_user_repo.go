package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/tgmarket/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	var lastName, username, wallet sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, telegram_id, first_name, last_name, username, wallet, created_at, updated_at
		 FROM users WHERE id = $1`,
		id,
	).Scan(
		&user.ID, &user.TelegramID, &user.FirstName, &lastName,
		&username, &wallet, &user.CreatedAt, &user.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}

	user.LastName = nullStringValue(lastName)
	user.Username = nullStringValue(username)
	user.Wallet = nullStringValue(wallet)

	return user, nil
}

// FindByTelegramID はTelegram IDでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	user := &model.User{}
	var lastName, username, wallet sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, telegram_id, first_name, last_name, username, wallet, created_at, updated_at
		 FROM users WHERE telegram_id = $1`,
		telegramID,
	).Scan(
		&user.ID, &user.TelegramID, &user.FirstName, &lastName,
		&username, &wallet, &user.CreatedAt, &user.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Telegram IDによるユーザーの検索に失敗しました: %w", err)
	}

	user.LastName = nullStringValue(lastName)
	user.Username = nullStringValue(username)
	user.Wallet = nullStringValue(wallet)

	return user, nil
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, telegram_id, first_name, last_name, username, wallet, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		user.ID, user.TelegramID, user.FirstName,
		nullString(user.LastName), nullString(user.Username), nullString(user.Wallet),
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateProfile は表示名等のプロフィールを更新する。
func (r *PostgresUserRepo) UpdateProfile(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET
		    first_name = $2, last_name = $3, username = $4, updated_at = now()
		 WHERE id = $1`,
		user.ID, user.FirstName, nullString(user.LastName), nullString(user.Username),
	)
	if err != nil {
		return fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}
	return nil
}

// UpdateWallet はユーザーのウォレットアドレスを更新する。
func (r *PostgresUserRepo) UpdateWallet(ctx context.Context, userID, wallet string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET wallet = $2, updated_at = now() WHERE id = $1`,
		userID, nullString(wallet),
	)
	if err != nil {
		return fmt.Errorf("ウォレットアドレスの更新に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
