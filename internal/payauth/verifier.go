package payauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// 検証失敗の種別。いずれもリトライ不可で、呼び出し側は認証拒否として扱う。
var (
	// ErrMissingSignature は署名フィールドが存在しない場合のエラー。
	ErrMissingSignature = errors.New("署名フィールドがありません")
	// ErrInvalidSignature は再計算したHMACが受信した署名と一致しない場合のエラー。
	ErrInvalidSignature = errors.New("署名が一致しません")
	// ErrExpired は認証タイムスタンプが有効期限を超過している場合のエラー。
	ErrExpired = errors.New("認証データの有効期限が切れています")
	// ErrMalformedIdentity はユーザー情報サブペイロードのデコードに失敗した場合のエラー。
	ErrMalformedIdentity = errors.New("ユーザー情報を解析できません")
	// ErrBotRejected は検証済みペイロードがボットを示している場合のエラー。
	// ボットは認証主体として許可されない。
	ErrBotRejected = errors.New("ボットによる認証は許可されていません")
)

// DefaultMaxAge は認証タイムスタンプの既定の有効期間（24時間）。
const DefaultMaxAge = 24 * time.Hour

// webAppKeySalt はミニアプリ起動ペイロード用の鍵導出に使うHMACキー。
// ログインウィジェット用の鍵と導出方法を分けることで、
// 一方の署名が他方で再利用（リプレイ）されることを防ぐ。
const webAppKeySalt = "WebAppData"

// VerifiedIdentity は検証に成功した認証ペイロードから取り出したユーザー情報。
// IsBotがtrueのままこの構造体が返されることはない。
type VerifiedIdentity struct {
	TelegramID int64  // Telegram上のユーザーID
	IsBot      bool   // ボットフラグ（常にfalse）
	FirstName  string // 表示名
	LastName   string // 姓（省略可）
	Username   string // ユーザー名（省略可）
	AuthDate   int64  // 認証タイムスタンプ（Unix秒）
}

// Verifier は認証ペイロードの署名と鮮度を検証する。
// 導出済みのHMAC鍵を生成時に1回だけ計算して保持するため、
// 生成後は複数ゴルーチンから同時に呼び出しても安全。
type Verifier struct {
	widgetKey []byte // ログインウィジェット用: SHA-256(botToken)
	webAppKey []byte // ミニアプリ用: HMAC-SHA256(key="WebAppData", msg=botToken)

	// now はテストから差し替えるための現在時刻取得関数。
	now func() time.Time
}

// NewVerifier はボットトークンから両プロファイルのHMAC鍵を導出してVerifierを生成する。
func NewVerifier(botToken string) *Verifier {
	widgetKey := sha256.Sum256([]byte(botToken))

	mac := hmac.New(sha256.New, []byte(webAppKeySalt))
	mac.Write([]byte(botToken))

	return &Verifier{
		widgetKey: widgetKey[:],
		webAppKey: mac.Sum(nil),
		now:       time.Now,
	}
}

// VerifyLoginWidget はログインウィジェット経由の認証ペイロードを検証する。
// rawQueryはURLエンコードされたkey=value文字列。
// maxAgeが0以下の場合はDefaultMaxAge（24時間）を使用する。
func (v *Verifier) VerifyLoginWidget(rawQuery string, maxAge time.Duration) (*VerifiedIdentity, error) {
	return v.verify(rawQuery, v.widgetKey, maxAge)
}

// VerifyInitData はミニアプリ起動ペイロード（initData）を検証する。
// rawInitDataはURLエンコードされたkey=value文字列。
// maxAgeが0以下の場合はDefaultMaxAge（24時間）を使用する。
func (v *Verifier) VerifyInitData(rawInitData string, maxAge time.Duration) (*VerifiedIdentity, error) {
	return v.verify(rawInitData, v.webAppKey, maxAge)
}

// verify は両プロファイル共通の検証本体。
// 正規化 → 署名検証（定数時間比較） → 鮮度検証 → ユーザー情報デコード → ボット拒否
// の順で検証し、最初に失敗した段階の型付きエラーを返す。
func (v *Verifier) verify(raw string, key []byte, maxAge time.Duration) (*VerifiedIdentity, error) {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("認証ペイロードの解析に失敗しました: %w", err)
	}

	canonical, signature := Canonicalize(values)
	if signature == "" {
		return nil, ErrMissingSignature
	}

	received, err := hex.DecodeString(signature)
	if err != nil {
		return nil, ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(canonical))
	expected := mac.Sum(nil)

	// タイミング攻撃を防ぐため定数時間比較を使用する
	if !hmac.Equal(expected, received) {
		return nil, ErrInvalidSignature
	}

	identity := &VerifiedIdentity{}

	if authDateStr := values.Get("auth_date"); authDateStr != "" {
		authDate, err := strconv.ParseInt(authDateStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: auth_dateを解析できません", ErrExpired)
		}
		// 境界値（経過時間 == maxAge）は有効として扱う
		if v.now().Unix()-authDate > int64(maxAge/time.Second) {
			return nil, ErrExpired
		}
		identity.AuthDate = authDate
	}

	if err := v.decodeIdentity(values, identity); err != nil {
		return nil, err
	}

	if identity.IsBot {
		return nil, ErrBotRejected
	}

	return identity, nil
}

// identityPayload は埋め込みユーザー情報サブペイロード（JSON）の形。
type identityPayload struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

// decodeIdentity はペイロードからユーザー情報を取り出す。
// ミニアプリ形式では "user" キーにJSONが入っており、
// ログインウィジェット形式ではトップレベルのフラットなキーに展開されている。
func (v *Verifier) decodeIdentity(values url.Values, identity *VerifiedIdentity) error {
	if userJSON := values.Get("user"); userJSON != "" {
		var p identityPayload
		if err := json.Unmarshal([]byte(userJSON), &p); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedIdentity, err)
		}
		identity.TelegramID = p.ID
		identity.IsBot = p.IsBot
		identity.FirstName = p.FirstName
		identity.LastName = p.LastName
		identity.Username = p.Username
		return nil
	}

	if idStr := values.Get("id"); idStr != "" {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: idを解析できません", ErrMalformedIdentity)
		}
		identity.TelegramID = id
		identity.FirstName = values.Get("first_name")
		identity.LastName = values.Get("last_name")
		identity.Username = values.Get("username")
	}

	return nil
}
