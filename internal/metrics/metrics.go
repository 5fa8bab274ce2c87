// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// auth.MetricsRecorder、billing.MetricsRecorder、cleanup.MetricsRecorderを満たす。
type Collector struct {
	signUps         *prometheus.CounterVec
	signIns         *prometheus.CounterVec
	sessionsIssued  prometheus.Counter
	sessionsPurged  prometheus.Counter
	webhookEvents   *prometheus.CounterVec
	planTransitions *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signUps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planauth_sign_ups_total",
			Help: "認証方式別のユーザー作成数",
		}, []string{"method"}),
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planauth_sign_ins_total",
			Help: "認証方式・結果別のサインイン数",
		}, []string{"method", "result"}),
		sessionsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planauth_sessions_issued_total",
			Help: "発行したセッションの合計数",
		}),
		sessionsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planauth_sessions_purged_total",
			Help: "期限切れで削除したセッションの合計数",
		}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planauth_webhook_events_total",
			Help: "イベント種別・処理結果別の課金Webhook数",
		}, []string{"type", "outcome"}),
		planTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planauth_plan_transitions_total",
			Help: "遷移先プラン別のプラン状態更新数",
		}, []string{"plan"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planauth_http_responses_total",
			Help: "メソッド・ステータスコード別のHTTPレスポンス数",
		}, []string{"method", "status_code"}),
	}

	reg.MustRegister(
		c.signUps,
		c.signIns,
		c.sessionsIssued,
		c.sessionsPurged,
		c.webhookEvents,
		c.planTransitions,
		c.httpStatus,
	)

	return c
}

// RecordSignUp はユーザー作成を記録する。
func (c *Collector) RecordSignUp(method string) {
	c.signUps.WithLabelValues(method).Inc()
}

// RecordSignIn はサインインの結果を記録する。
func (c *Collector) RecordSignIn(method, result string) {
	c.signIns.WithLabelValues(method, result).Inc()
}

// RecordSessionIssued はセッション発行を記録する。
func (c *Collector) RecordSessionIssued() {
	c.sessionsIssued.Inc()
}

// RecordSessionsPurged は期限切れセッションの削除件数を記録する。
func (c *Collector) RecordSessionsPurged(count int64) {
	c.sessionsPurged.Add(float64(count))
}

// RecordWebhookEvent は課金Webhookの処理結果を記録する。
func (c *Collector) RecordWebhookEvent(eventType, outcome string) {
	c.webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

// RecordPlanTransition はプラン状態の更新を記録する。
func (c *Collector) RecordPlanTransition(plan string) {
	c.planTransitions.WithLabelValues(plan).Inc()
}

// RecordHTTPStatus はHTTPレスポンスのステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(method string, statusCode int) {
	c.httpStatus.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
