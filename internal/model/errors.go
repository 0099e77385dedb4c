package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, payment, market, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAuthRejected        = "AUTH_REJECTED"
	ErrCodePaymentNotFound     = "PAYMENT_NOT_FOUND"
	ErrCodeInvalidAmount       = "INVALID_AMOUNT"
	ErrCodeInvalidTransition   = "INVALID_TRANSITION"
	ErrCodeStoreNotFound       = "STORE_NOT_FOUND"
	ErrCodeProductNotFound     = "PRODUCT_NOT_FOUND"
	ErrCodeOrderNotFound       = "ORDER_NOT_FOUND"
	ErrCodeOrderNotPayable     = "ORDER_NOT_PAYABLE"
	ErrCodeOrderNotCancellable = "ORDER_NOT_CANCELLABLE"
	ErrCodeInvalidRating       = "INVALID_RATING"
	ErrCodeNotStoreOwner       = "NOT_STORE_OWNER"
	ErrCodeProductUnavailable  = "PRODUCT_UNAVAILABLE"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
)

// NewAuthRejectedError は認証ペイロード検証失敗のエラーを生成する。
// 検証失敗の内部的な理由（署名不一致・期限切れ等）はログにのみ残し、
// クライアントには一律のメッセージを返す。
func NewAuthRejectedError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthRejected,
		Message:  "認証データの検証に失敗しました。",
		Category: "auth",
		Action:   "Telegramからアプリを開き直してください。",
	}
}

// NewPaymentNotFoundError は決済未検出エラーを生成する。
func NewPaymentNotFoundError(paymentID string) *APIError {
	return &APIError{
		Code:     ErrCodePaymentNotFound,
		Message:  fmt.Sprintf("指定された決済が見つかりません: %s", paymentID),
		Category: "payment",
		Action:   "決済IDを確認してください。",
	}
}

// NewInvalidAmountError は無効な金額エラーを生成する。
func NewInvalidAmountError(amount int64) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAmount,
		Message:  fmt.Sprintf("無効な金額です: %d", amount),
		Category: "validation",
		Action:   "金額は1以上の整数（nanoton）で指定してください。",
	}
}

// NewInvalidTransitionError はステータス遷移が許可されていない場合のエラーを生成する。
func NewInvalidTransitionError(from, to PaymentStatus) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTransition,
		Message:  fmt.Sprintf("決済ステータスを %s から %s へ変更できません。", from, to),
		Category: "payment",
		Action:   "現在の決済ステータスを確認してください。",
	}
}

// NewStoreNotFoundError はストア未検出エラーを生成する。
func NewStoreNotFoundError(storeID string) *APIError {
	return &APIError{
		Code:     ErrCodeStoreNotFound,
		Message:  fmt.Sprintf("指定されたストアが見つかりません: %s", storeID),
		Category: "market",
		Action:   "ストアIDを確認してください。",
	}
}

// NewProductNotFoundError は商品未検出エラーを生成する。
func NewProductNotFoundError(productID string) *APIError {
	return &APIError{
		Code:     ErrCodeProductNotFound,
		Message:  fmt.Sprintf("指定された商品が見つかりません: %s", productID),
		Category: "market",
		Action:   "商品IDを確認してください。",
	}
}

// NewOrderNotFoundError は注文未検出エラーを生成する。
func NewOrderNotFoundError(orderID string) *APIError {
	return &APIError{
		Code:     ErrCodeOrderNotFound,
		Message:  fmt.Sprintf("指定された注文が見つかりません: %s", orderID),
		Category: "market",
		Action:   "注文IDを確認してください。",
	}
}

// NewOrderNotPayableError は決済を送信できない状態の注文に対するエラーを生成する。
func NewOrderNotPayableError(status OrderStatus) *APIError {
	return &APIError{
		Code:     ErrCodeOrderNotPayable,
		Message:  fmt.Sprintf("この注文には決済を送信できません（現在の状態: %s）。", status),
		Category: "payment",
		Action:   "注文の状態を確認してください。",
	}
}

// NewOrderNotCancellableError はキャンセルできない状態の注文に対するエラーを生成する。
func NewOrderNotCancellableError(status OrderStatus) *APIError {
	return &APIError{
		Code:     ErrCodeOrderNotCancellable,
		Message:  fmt.Sprintf("この注文はキャンセルできません（現在の状態: %s）。", status),
		Category: "market",
		Action:   "決済送信後の注文はキャンセルできません。",
	}
}

// NewInvalidRatingError は無効な評価値エラーを生成する。
func NewInvalidRatingError(rating int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRating,
		Message:  fmt.Sprintf("無効な評価値です: %d", rating),
		Category: "validation",
		Action:   "評価は1から5の整数で指定してください。",
	}
}

// NewNotStoreOwnerError はストアの操作権限がない場合のエラーを生成する。
func NewNotStoreOwnerError() *APIError {
	return &APIError{
		Code:     ErrCodeNotStoreOwner,
		Message:  "このストアを操作する権限がありません。",
		Category: "market",
		Action:   "自分がオーナーのストアのみ操作できます。",
	}
}

// NewProductUnavailableError は販売停止中の商品を注文しようとした場合のエラーを生成する。
func NewProductUnavailableError(productID string) *APIError {
	return &APIError{
		Code:     ErrCodeProductUnavailable,
		Message:  fmt.Sprintf("商品は現在販売されていません: %s", productID),
		Category: "market",
		Action:   "他の商品を選択してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}
