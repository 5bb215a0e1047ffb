// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// キャッシュ層のラベル値
const (
	TierMemory    = "memory"
	TierSecondary = "secondary"
	TierDurable   = "durable"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ユーザーデータ管理層やスキル層から利用する。
type MetricsCollector interface {
	RecordCacheHit(tier string)
	RecordCacheMiss(tier string)
	RecordCacheError(tier string)
	RecordPersistenceFailure()
	RecordStoreLatency(operation string, duration time.Duration)
	RecordIntent(intent string, outcome string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	cacheErrors     *prometheus.CounterVec
	persistFailures prometheus.Counter
	storeLatency    *prometheus.HistogramVec
	intents         *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voicelibrary_cache_hits_total",
			Help: "キャッシュ層ごとのヒット数",
		}, []string{"tier"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voicelibrary_cache_misses_total",
			Help: "キャッシュ層ごとのミス数",
		}, []string{"tier"}),
		cacheErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voicelibrary_cache_errors_total",
			Help: "ミス扱いにしたキャッシュ層のエラー数",
		}, []string{"tier"}),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voicelibrary_persistence_failures_total",
			Help: "永続ストアへの書き込み失敗の合計数",
		}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voicelibrary_store_latency_seconds",
			Help:    "永続ストア操作のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		intents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voicelibrary_intents_total",
			Help: "インテント別・結果別の処理数",
		}, []string{"intent", "outcome"}),
	}

	reg.MustRegister(
		c.cacheHits,
		c.cacheMisses,
		c.cacheErrors,
		c.persistFailures,
		c.storeLatency,
		c.intents,
	)

	return c
}

// RecordCacheHit はキャッシュヒットを記録する。
func (c *Collector) RecordCacheHit(tier string) {
	c.cacheHits.WithLabelValues(tier).Inc()
}

// RecordCacheMiss はキャッシュミスを記録する。
func (c *Collector) RecordCacheMiss(tier string) {
	c.cacheMisses.WithLabelValues(tier).Inc()
}

// RecordCacheError はミスとして扱ったキャッシュエラーを記録する。
func (c *Collector) RecordCacheError(tier string) {
	c.cacheErrors.WithLabelValues(tier).Inc()
}

// RecordPersistenceFailure は永続ストアへの書き込み失敗を記録する。
func (c *Collector) RecordPersistenceFailure() {
	c.persistFailures.Inc()
}

// RecordStoreLatency は永続ストア操作のレイテンシを記録する。
func (c *Collector) RecordStoreLatency(operation string, duration time.Duration) {
	c.storeLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordIntent はインテントの処理結果を記録する。
func (c *Collector) RecordIntent(intent string, outcome string) {
	c.intents.WithLabelValues(intent, outcome).Inc()
}

// NopCollector は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type NopCollector struct{}

func (NopCollector) RecordCacheHit(string)                    {}
func (NopCollector) RecordCacheMiss(string)                   {}
func (NopCollector) RecordCacheError(string)                  {}
func (NopCollector) RecordPersistenceFailure()                {}
func (NopCollector) RecordStoreLatency(string, time.Duration) {}
func (NopCollector) RecordIntent(string, string)              {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
