// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// 確認パイプラインと認証検証の両方のメトリクスを保持する。
type Collector struct {
	confirmProcessed *prometheus.CounterVec
	confirmDuplicate prometheus.Counter
	confirmRetried   prometheus.Counter
	confirmDead      prometheus.Counter
	paymentNotFound  prometheus.Counter
	confirmLatency   prometheus.Histogram
	verifyFailure    *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		confirmProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tgmarket_confirmation_processed_total",
			Help: "適用された確認イベントの合計数（最終ステータス別）",
		}, []string{"result"}),
		confirmDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tgmarket_confirmation_duplicate_total",
			Help: "冪等に破棄された重複確認イベントの合計数",
		}),
		confirmRetried: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tgmarket_confirmation_retried_total",
			Help: "インフラ障害により再試行された確認イベントの合計数",
		}),
		confirmDead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tgmarket_confirmation_dead_total",
			Help: "リトライ上限に達して退避された確認イベントの合計数",
		}),
		paymentNotFound: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tgmarket_confirmation_payment_not_found_total",
			Help: "対応する決済が存在しなかった確認イベントの合計数",
		}),
		confirmLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tgmarket_confirmation_latency_seconds",
			Help:    "確認イベント処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		verifyFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tgmarket_auth_verify_failure_total",
			Help: "認証ペイロード検証失敗の合計数（失敗種別別）",
		}, []string{"reason"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tgmarket_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.confirmProcessed,
		c.confirmDuplicate,
		c.confirmRetried,
		c.confirmDead,
		c.paymentNotFound,
		c.confirmLatency,
		c.verifyFailure,
		c.httpStatus,
	)

	return c
}

// RecordConfirmationProcessed は確認イベントの適用を最終ステータス別に記録する。
func (c *Collector) RecordConfirmationProcessed(result string) {
	c.confirmProcessed.WithLabelValues(result).Inc()
}

// RecordConfirmationDuplicate は重複確認イベントの破棄を記録する。
func (c *Collector) RecordConfirmationDuplicate() {
	c.confirmDuplicate.Inc()
}

// RecordConfirmationRetried は確認イベントの再試行を記録する。
func (c *Collector) RecordConfirmationRetried() {
	c.confirmRetried.Inc()
}

// RecordConfirmationDead は確認イベントのdead退避を記録する。
func (c *Collector) RecordConfirmationDead() {
	c.confirmDead.Inc()
}

// RecordPaymentNotFound は対応する決済が存在しなかったイベントを記録する。
// データ整合性のシグナルとしてオペレーターが監視する。
func (c *Collector) RecordPaymentNotFound() {
	c.paymentNotFound.Inc()
}

// RecordProcessingLatency は確認イベント処理のレイテンシを記録する。
func (c *Collector) RecordProcessingLatency(duration time.Duration) {
	c.confirmLatency.Observe(duration.Seconds())
}

// RecordVerifyFailure は認証ペイロード検証の失敗を種別別に記録する。
func (c *Collector) RecordVerifyFailure(reason string) {
	c.verifyFailure.WithLabelValues(reason).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
