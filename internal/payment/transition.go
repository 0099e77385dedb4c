// Package payment は決済レコードのステートマシンとゲートウェイを提供する。
// ステータスの変更は必ずTransitionを経由すること。
package payment

import (
	"errors"
	"time"

	"github.com/hitoshi/tgmarket/internal/model"
)

// ErrInvalidTransition は許可されていないステータス遷移を示すエラー。
// 確認パイプライン内では重複配送との競合を意味するため、
// 呼び出し側で良性の無操作として扱われる場合がある。
var ErrInvalidTransition = errors.New("許可されていないステータス遷移です")

// allowedNext はステータスごとの遷移可能先を定義する。
//
//	Pending    → Processing, Failed
//	Processing → Completed, Failed
//	Failed     → Refunded（手動返金のみ）
//	Completed, Refunded は終端
var allowedNext = map[model.PaymentStatus][]model.PaymentStatus{
	model.PaymentStatusPending:    {model.PaymentStatusProcessing, model.PaymentStatusFailed},
	model.PaymentStatusProcessing: {model.PaymentStatusCompleted, model.PaymentStatusFailed},
	model.PaymentStatusFailed:     {model.PaymentStatusRefunded},
	model.PaymentStatusCompleted:  {},
	model.PaymentStatusRefunded:   {},
}

// CanTransition はfromからtoへの遷移が許可されているかを返す。
func CanTransition(from, to model.PaymentStatus) bool {
	for _, next := range allowedNext[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal は確認イベントを適用できない終端ステータスかを返す。
// FailedはRefundedへの手動返金エッジを持つが、確認イベントの観点では終端として扱う。
func IsTerminal(status model.PaymentStatus) bool {
	switch status {
	case model.PaymentStatusCompleted, model.PaymentStatusFailed, model.PaymentStatusRefunded:
		return true
	}
	return false
}

// Transition は決済レコードのステータスをtargetへ遷移させる。
// 許可されていない遷移の場合はErrInvalidTransitionを返し、レコードは変更しない。
// 成功時はStatusとUpdatedAtを更新する。
func Transition(payment *model.Payment, target model.PaymentStatus) error {
	if !CanTransition(payment.Status, target) {
		return ErrInvalidTransition
	}
	payment.Status = target
	payment.UpdatedAt = time.Now()
	return nil
}
