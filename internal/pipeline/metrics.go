package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics は要約パイプラインの Prometheus コレクターをまとめたものです。
type Metrics struct {
	Registry           *prometheus.Registry
	URLsTotal          *prometheus.CounterVec
	StageErrorsTotal   *prometheus.CounterVec
	StageDuration      *prometheus.HistogramVec
	CredentialResets   prometheus.Counter
	RecordsStoredTotal prometheus.Counter
}

// NewMetrics はすべてのメトリクスを専用のレジストリに登録して生成します。
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	urls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawl_pilot_urls_total",
			Help: "Total URLs handled by the pipeline, by outcome.",
		},
		[]string{"outcome"},
	)
	stageErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawl_pilot_stage_errors_total",
			Help: "Total pipeline errors by stage.",
		},
		[]string{"stage"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crawl_pilot_stage_duration_seconds",
			Help:    "Latency of each pipeline stage.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)
	resets := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crawl_pilot_credential_resets_total",
			Help: "Total API key resets triggered by backend failures.",
		},
	)
	stored := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crawl_pilot_records_stored_total",
			Help: "Total records appended to the record file.",
		},
	)

	registry.MustRegister(urls, stageErrors, stageDuration, resets, stored)

	return &Metrics{
		Registry:           registry,
		URLsTotal:          urls,
		StageErrorsTotal:   stageErrors,
		StageDuration:      stageDuration,
		CredentialResets:   resets,
		RecordsStoredTotal: stored,
	}
}

// IncURL は処理結果ラベルごとのURLカウンターを加算します。
func (m *Metrics) IncURL(outcome string) {
	if m == nil {
		return
	}
	m.URLsTotal.WithLabelValues(outcome).Inc()
}

// IncStageError はステージごとのエラーカウンターを加算します。
func (m *Metrics) IncStageError(stage Stage) {
	if m == nil {
		return
	}
	m.StageErrorsTotal.WithLabelValues(string(stage)).Inc()
}

// ObserveStage はステージの所要時間を記録します。
func (m *Metrics) ObserveStage(stage Stage, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(string(stage)).Observe(d.Seconds())
}

// IncCredentialReset はAPIキー再設定のカウンターを加算します。
func (m *Metrics) IncCredentialReset() {
	if m == nil {
		return
	}
	m.CredentialResets.Inc()
}

// IncStored は保存済みレコードのカウンターを加算します。
func (m *Metrics) IncStored() {
	if m == nil {
		return
	}
	m.RecordsStoredTotal.Inc()
}
