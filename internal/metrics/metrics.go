// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラー層とサービス層から利用する。
type MetricsCollector interface {
	RecordLoginSuccess(provider string)
	RecordLoginFailure(provider string, reason string)
	RecordCommentCreated()
	RecordCommentDeleted()
	RecordCommentRejected(reason string)
	RecordHTTPStatus(statusCode int)
	RecordProviderLatency(provider string, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginSuccess    *prometheus.CounterVec
	loginFail       *prometheus.CounterVec
	commentCreated  prometheus.Counter
	commentDeleted  prometheus.Counter
	commentRejected *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "homeboard_login_success_total",
			Help: "OAuthログイン成功のプロバイダー別合計数",
		}, []string{"provider"}),
		loginFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "homeboard_login_fail_total",
			Help: "OAuthログイン失敗のプロバイダーおよび理由別合計数",
		}, []string{"provider", "reason"}),
		commentCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "homeboard_comment_created_total",
			Help: "投稿されたコメントの合計数",
		}),
		commentDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "homeboard_comment_deleted_total",
			Help: "削除されたコメントの合計数",
		}),
		commentRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "homeboard_comment_rejected_total",
			Help: "バリデーションで拒否されたコメントの理由別合計数",
		}, []string{"reason"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "homeboard_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "homeboard_provider_latency_seconds",
			Help:    "OAuthプロバイダーとの通信レイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
	}

	reg.MustRegister(
		c.loginSuccess,
		c.loginFail,
		c.commentCreated,
		c.commentDeleted,
		c.commentRejected,
		c.httpStatus,
		c.providerLatency,
	)

	return c
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess(provider string) {
	c.loginSuccess.WithLabelValues(provider).Inc()
}

// RecordLoginFailure はログイン失敗を記録する。
func (c *Collector) RecordLoginFailure(provider string, reason string) {
	c.loginFail.WithLabelValues(provider, reason).Inc()
}

// RecordCommentCreated はコメント投稿を記録する。
func (c *Collector) RecordCommentCreated() {
	c.commentCreated.Inc()
}

// RecordCommentDeleted はコメント削除を記録する。
func (c *Collector) RecordCommentDeleted() {
	c.commentDeleted.Inc()
}

// RecordCommentRejected はコメント拒否を記録する。
func (c *Collector) RecordCommentRejected(reason string) {
	c.commentRejected.WithLabelValues(reason).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordProviderLatency はプロバイダー通信のレイテンシを記録する。
func (c *Collector) RecordProviderLatency(provider string, duration time.Duration) {
	c.providerLatency.WithLabelValues(provider).Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
