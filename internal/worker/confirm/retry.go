package confirm

import "time"

const (
	// initialBackoff は指数バックオフの初回遅延（10秒）。
	initialBackoff = 10 * time.Second
	// maxBackoff は指数バックオフの最大遅延（10分）。
	maxBackoff = 10 * time.Minute
	// DefaultMaxAttempts は既定の最大処理試行回数。
	// 超過したイベントはdeadとして退避され、決済レコードは最後の正常状態のまま残る。
	DefaultMaxAttempts = 8
)

// CalculateBackoff は試行回数に基づいて指数バックオフ遅延を計算する。
// 初回10秒、2倍ずつ増加、最大10分。
func CalculateBackoff(attempts int) time.Duration {
	delay := initialBackoff
	for i := 0; i < attempts; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}
