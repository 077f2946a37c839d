// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラーやサービス層から利用する。
type MetricsCollector interface {
	RecordWebhookMessage(outcome string)
	RecordImportSuccess()
	RecordImportFailure(reason string)
	RecordTracksUpserted(count int)
	RecordRequestStored()
	RecordBroadcast(event string)
	RecordSpotifyLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	webhookMessages *prometheus.CounterVec
	importSuccess   prometheus.Counter
	importFail      *prometheus.CounterVec
	tracksUpserted  prometheus.Counter
	requestsStored  prometheus.Counter
	broadcasts      *prometheus.CounterVec
	spotifyLatency  prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		webhookMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ravist_webhook_messages_total",
			Help: "受信したWhatsAppメッセージの結果別合計数",
		}, []string{"outcome"}),
		importSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ravist_import_success_total",
			Help: "ライブラリ取り込み成功の合計数",
		}),
		importFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ravist_import_fail_total",
			Help: "ライブラリ取り込み失敗の理由別合計数",
		}, []string{"reason"}),
		tracksUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ravist_tracks_upserted_total",
			Help: "アップサートされた楽曲の合計数",
		}),
		requestsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ravist_requests_stored_total",
			Help: "保存された楽曲リクエストの合計数",
		}),
		broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ravist_broadcasts_total",
			Help: "配信されたダッシュボードイベントのイベント別合計数",
		}, []string{"event"}),
		spotifyLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ravist_spotify_latency_seconds",
			Help:    "Spotify API呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.webhookMessages,
		c.importSuccess,
		c.importFail,
		c.tracksUpserted,
		c.requestsStored,
		c.broadcasts,
		c.spotifyLatency,
	)

	return c
}

// RecordWebhookMessage は受信メッセージの処理結果を記録する。
func (c *Collector) RecordWebhookMessage(outcome string) {
	c.webhookMessages.WithLabelValues(outcome).Inc()
}

// RecordImportSuccess は取り込み成功を記録する。
func (c *Collector) RecordImportSuccess() {
	c.importSuccess.Inc()
}

// RecordImportFailure は取り込み失敗を記録する。
func (c *Collector) RecordImportFailure(reason string) {
	c.importFail.WithLabelValues(reason).Inc()
}

// RecordTracksUpserted はアップサートされた楽曲数を記録する。
func (c *Collector) RecordTracksUpserted(count int) {
	c.tracksUpserted.Add(float64(count))
}

// RecordRequestStored はリクエスト保存を記録する。
func (c *Collector) RecordRequestStored() {
	c.requestsStored.Inc()
}

// RecordBroadcast はダッシュボードイベントの配信を記録する。
func (c *Collector) RecordBroadcast(event string) {
	c.broadcasts.WithLabelValues(event).Inc()
}

// RecordSpotifyLatency はSpotify API呼び出しのレイテンシを記録する。
func (c *Collector) RecordSpotifyLatency(duration time.Duration) {
	c.spotifyLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
