package model

import "time"

// PaymentStatus は決済のステータスを表す。
// ステータス遷移はpaymentパッケージのTransitionを経由してのみ行うこと。
type PaymentStatus string

const (
	// PaymentStatusPending は決済インテント作成直後の初期状態。
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusProcessing は確認イベントの処理中であることを示す。
	PaymentStatusProcessing PaymentStatus = "processing"
	// PaymentStatusCompleted はオンチェーン決済が確認された終端状態。
	PaymentStatusCompleted PaymentStatus = "completed"
	// PaymentStatusFailed はオンチェーン決済の失敗が確認された状態。
	// 唯一の後続遷移としてRefundedへの手動返金がある。
	PaymentStatusFailed PaymentStatus = "failed"
	// PaymentStatusRefunded は失敗した決済が手動で返金された終端状態。
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Payment は決済レコードを表す。
// 金額はすべて最小通貨単位（nanoton）の整数で保持する。浮動小数点は使用しない。
// AmountNanoとTxHashは作成後に変更してはならない。
type Payment struct {
	ID              string        // 内部ID（UUID）
	OrderID         string        // 紐づく注文ID（インテント作成時に設定、空の場合もある）
	UserID          string        // 支払いユーザーの内部ID
	TxHash          string        // 外部相関ID（ブロックチェーントランザクションハッシュ）。冪等性キー。
	AmountNano      int64         // 決済金額（nanoton）
	GasFeeNano      int64         // ガス代（nanoton）。確認時に記録される。
	CommissionNano  int64         // 手数料（nanoton）。確認時に記録される。
	Status          PaymentStatus // 現在のステータス
	SenderWallet    string        // 送信元ウォレットアドレス
	ReceiverWallet  string        // 受取先ウォレットアドレス（確認まで空の場合がある）
	CreatedAt       time.Time     // 作成日時（イミュータブル）
	UpdatedAt       time.Time     // 最終遷移日時
}

// ConfirmationEvent はオンチェーン決済の確認イベントを表す。
// 外部の監視系からat-least-onceで配送されるため、TxHashを冪等性キーとして扱う。
type ConfirmationEvent struct {
	TxHash         string // 外部相関ID（トランザクションハッシュ）
	SenderWallet   string // 観測された送信元ウォレット
	ReceiverWallet string // 観測された受取先ウォレット
	AmountNano     int64  // 観測された金額（nanoton）
	GasFeeNano     int64  // 観測されたガス代（nanoton）
	CommissionNano int64  // 計算された手数料（nanoton）
	Failed         bool   // 失敗の証跡がある場合true
	FailureReason  string // 失敗理由（Failed=trueの場合のみ）
}

// ConfirmationStatus はキュー上の確認イベントの処理状態を表す。
type ConfirmationStatus string

const (
	// ConfirmationStatusQueued は処理待ちのイベント。
	ConfirmationStatusQueued ConfirmationStatus = "queued"
	// ConfirmationStatusDone は処理完了したイベント。
	ConfirmationStatusDone ConfirmationStatus = "done"
	// ConfirmationStatusDead はリトライ上限に達し処理を断念したイベント。
	// オペレーター対応が必要。決済レコードは最後の正常状態のまま残る。
	ConfirmationStatusDead ConfirmationStatus = "dead"
)

// QueuedConfirmation は永続キューに積まれた確認イベントを表す。
type QueuedConfirmation struct {
	ID            string             // キューエントリID（UUID）
	Event         ConfirmationEvent  // 確認イベント本体
	Status        ConfirmationStatus // 処理状態
	Attempts      int                // 処理試行回数
	NextAttemptAt time.Time          // 次回処理予定時刻
	LastError     string             // 直近の処理エラー（リトライ時に記録）
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
