package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/tgmarket/internal/model"
	"github.com/hitoshi/tgmarket/internal/payauth"
)

const testBotToken = "123456:TEST-TOKEN"

// --- モック ---

type mockUserRepo struct {
	mu           sync.Mutex
	byID         map[string]*model.User
	byTelegramID map[int64]*model.User

	createCalls  int
	profileCalls int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		byID:         make(map[string]*model.User),
		byTelegramID: make(map[int64]*model.User),
	}
}

func (r *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *mockUserRepo) FindByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byTelegramID[telegramID]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCalls++
	cp := *user
	r.byID[user.ID] = &cp
	r.byTelegramID[user.TelegramID] = &cp
	return nil
}

func (r *mockUserRepo) UpdateProfile(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profileCalls++
	cp := *user
	r.byID[user.ID] = &cp
	r.byTelegramID[user.TelegramID] = &cp
	return nil
}

func (r *mockUserRepo) UpdateWallet(ctx context.Context, userID, wallet string) error {
	return nil
}

type recordingMetrics struct {
	mu      sync.Mutex
	reasons []string
}

func (m *recordingMetrics) RecordVerifyFailure(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reasons = append(m.reasons, reason)
}

// --- ヘルパー ---

func newTestService(users *mockUserRepo, metrics *recordingMetrics) *Service {
	return NewService(
		payauth.NewVerifier(testBotToken),
		users,
		metrics,
		ServiceConfig{
			JWTSecret:   testSecret,
			TokenMaxAge: time.Hour,
			AuthMaxAge:  24 * time.Hour,
		},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

// signWidget はログインウィジェットの鍵（SHA-256(botToken)）でペイロードに署名する。
func signWidget(t *testing.T, values url.Values) string {
	t.Helper()

	key := sha256.Sum256([]byte(testBotToken))
	canonical, _ := payauth.Canonicalize(values)
	mac := hmac.New(sha256.New, key[:])
	mac.Write([]byte(canonical))
	values.Set(payauth.SignatureKey, hex.EncodeToString(mac.Sum(nil)))

	return values.Encode()
}

// signInitData はミニアプリの鍵（HMAC-SHA256(key="WebAppData", msg=botToken)）でペイロードに署名する。
func signInitData(t *testing.T, values url.Values) string {
	t.Helper()

	keyMac := hmac.New(sha256.New, []byte("WebAppData"))
	keyMac.Write([]byte(testBotToken))
	key := keyMac.Sum(nil)

	canonical, _ := payauth.Canonicalize(values)
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(canonical))
	values.Set(payauth.SignatureKey, hex.EncodeToString(mac.Sum(nil)))

	return values.Encode()
}

func widgetValues(telegramID int64, firstName string) url.Values {
	values := url.Values{}
	values.Set("id", strconv.FormatInt(telegramID, 10))
	values.Set("first_name", firstName)
	values.Set("username", "taro42")
	values.Set("auth_date", strconv.FormatInt(time.Now().Unix(), 10))
	return values
}

// --- テスト ---

func TestLoginWithWidget_CreatesUserAndIssuesToken(t *testing.T) {
	users := newMockUserRepo()
	s := newTestService(users, &recordingMetrics{})

	result, err := s.LoginWithWidget(context.Background(), signWidget(t, widgetValues(42, "Taro")))
	if err != nil {
		t.Fatalf("ログインに成功するべき: %v", err)
	}

	if result.User.TelegramID != 42 {
		t.Errorf("TelegramID = %d, want 42", result.User.TelegramID)
	}
	if users.createCalls != 1 {
		t.Errorf("createCalls = %d, want 1", users.createCalls)
	}

	userID, err := ParseToken(result.Token, testSecret)
	if err != nil {
		t.Fatalf("発行されたトークンは検証可能であるべき: %v", err)
	}
	if userID != result.User.ID {
		t.Errorf("トークンのuserID = %q, want %q", userID, result.User.ID)
	}
}

func TestLoginWithWidget_ExistingUserNotDuplicated(t *testing.T) {
	users := newMockUserRepo()
	s := newTestService(users, &recordingMetrics{})

	first, err := s.LoginWithWidget(context.Background(), signWidget(t, widgetValues(42, "Taro")))
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.LoginWithWidget(context.Background(), signWidget(t, widgetValues(42, "Taro")))
	if err != nil {
		t.Fatal(err)
	}

	if first.User.ID != second.User.ID {
		t.Errorf("同一Telegram IDで別ユーザーが作成された: %s != %s", first.User.ID, second.User.ID)
	}
	if users.createCalls != 1 {
		t.Errorf("createCalls = %d, want 1", users.createCalls)
	}
}

func TestLoginWithWidget_ProfileRefreshed(t *testing.T) {
	users := newMockUserRepo()
	s := newTestService(users, &recordingMetrics{})

	if _, err := s.LoginWithWidget(context.Background(), signWidget(t, widgetValues(42, "Taro"))); err != nil {
		t.Fatal(err)
	}
	result, err := s.LoginWithWidget(context.Background(), signWidget(t, widgetValues(42, "Jiro")))
	if err != nil {
		t.Fatal(err)
	}

	if result.User.FirstName != "Jiro" {
		t.Errorf("FirstName = %q, want %q", result.User.FirstName, "Jiro")
	}
	if users.profileCalls != 1 {
		t.Errorf("profileCalls = %d, want 1", users.profileCalls)
	}
}

func TestLoginWithWidget_TamperedPayloadRejected(t *testing.T) {
	users := newMockUserRepo()
	metrics := &recordingMetrics{}
	s := newTestService(users, metrics)

	raw := signWidget(t, widgetValues(42, "Taro"))
	tampered := raw + "&extra=1"

	_, err := s.LoginWithWidget(context.Background(), tampered)

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeAuthRejected {
		t.Fatalf("err = %v, want AUTH_REJECTED", err)
	}
	if users.createCalls != 0 {
		t.Error("検証失敗時にユーザーが作成されてはならない")
	}
	if len(metrics.reasons) != 1 || metrics.reasons[0] != "invalid_signature" {
		t.Errorf("reasons = %v, want [invalid_signature]", metrics.reasons)
	}
}

func TestLoginWithInitData_CreatesUser(t *testing.T) {
	users := newMockUserRepo()
	s := newTestService(users, &recordingMetrics{})

	values := url.Values{}
	values.Set("query_id", "AAH_test")
	values.Set("auth_date", strconv.FormatInt(time.Now().Unix(), 10))
	values.Set("user", `{"id":7,"is_bot":false,"first_name":"Hanako"}`)

	result, err := s.LoginWithInitData(context.Background(), signInitData(t, values))
	if err != nil {
		t.Fatalf("ログインに成功するべき: %v", err)
	}
	if result.User.TelegramID != 7 {
		t.Errorf("TelegramID = %d, want 7", result.User.TelegramID)
	}
}

func TestLoginWithInitData_BotRejected(t *testing.T) {
	users := newMockUserRepo()
	metrics := &recordingMetrics{}
	s := newTestService(users, metrics)

	values := url.Values{}
	values.Set("auth_date", strconv.FormatInt(time.Now().Unix(), 10))
	values.Set("user", `{"id":8,"is_bot":true,"first_name":"Bot"}`)

	_, err := s.LoginWithInitData(context.Background(), signInitData(t, values))

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeAuthRejected {
		t.Fatalf("err = %v, want AUTH_REJECTED", err)
	}
	if len(metrics.reasons) != 1 || metrics.reasons[0] != "bot_rejected" {
		t.Errorf("reasons = %v, want [bot_rejected]", metrics.reasons)
	}
}

// ウィジェット鍵で署名したペイロードはinitData側では受理されない。
func TestLoginCrossProfileRejected(t *testing.T) {
	users := newMockUserRepo()
	metrics := &recordingMetrics{}
	s := newTestService(users, metrics)

	raw := signWidget(t, widgetValues(42, "Taro"))

	if _, err := s.LoginWithInitData(context.Background(), raw); err == nil {
		t.Error("別プロファイルの署名は拒否するべき")
	}
}
