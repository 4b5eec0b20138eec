// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 結果ラベルの値
const (
	OutcomeSuccess      = "success"
	OutcomeUnauthorized = "unauthorized"
	OutcomeNotFound     = "not_found"
	OutcomeError        = "error"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェアやサービス層から利用する。
type MetricsCollector interface {
	RecordHTTPRequest(method, route string, statusCode int, duration time.Duration)
	RecordIdentityResolution(outcome string)
	RecordNoteOperation(op, outcome string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpRequests        *prometheus.CounterVec
	httpLatency         *prometheus.HistogramVec
	identityResolutions *prometheus.CounterVec
	noteOperations      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notesapp_http_requests_total",
			Help: "HTTPリクエストの合計数",
		}, []string{"method", "route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "notesapp_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		identityResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notesapp_identity_resolutions_total",
			Help: "トークンからのユーザー解決の結果別合計数",
		}, []string{"outcome"}),
		noteOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notesapp_note_operations_total",
			Help: "メモ操作の種類・結果別合計数",
		}, []string{"op", "outcome"}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpLatency,
		c.identityResolutions,
		c.noteOperations,
	)

	return c
}

// RecordHTTPRequest はHTTPリクエストの件数と処理時間を記録する。
// routeにはパスではなくルートパターンを渡す（ラベルの濃度を抑えるため）。
func (c *Collector) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordIdentityResolution はトークン解決の結果を記録する。
func (c *Collector) RecordIdentityResolution(outcome string) {
	c.identityResolutions.WithLabelValues(outcome).Inc()
}

// RecordNoteOperation はメモ操作の結果を記録する。
func (c *Collector) RecordNoteOperation(op, outcome string) {
	c.noteOperations.WithLabelValues(op, outcome).Inc()
}

// NopCollector は何も記録しないMetricsCollector。テストやメトリクス無効時に使用する。
type NopCollector struct{}

func (NopCollector) RecordHTTPRequest(string, string, int, time.Duration) {}
func (NopCollector) RecordIdentityResolution(string)                     {}
func (NopCollector) RecordNoteOperation(string, string)                   {}

// Handler はPrometheusメトリクスを公開するHTTPハンドラーを返す。
// ルーターの/metricsに登録する。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)
