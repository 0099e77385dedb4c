package model

import "time"

// Region は地域マスタデータ（国・都市）を表す。
// 外部データセットから同期ジョブで定期的に更新される。
type Region struct {
	Code      string // 地域コード（例: "RU-MOW"）
	Country   string // 国名
	City      string // 都市名（国レベルのエントリでは空）
	SyncedAt  time.Time // 最終同期日時
	CreatedAt time.Time
}
