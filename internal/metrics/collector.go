// Package metrics は Prometheus 形式の内部メトリクスを集めます。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shouni/gemini-style-fusion/pkg/domain"
	"github.com/shouni/gemini-style-fusion/pkg/imgutil"
)

// Collector は生成・アップロード・HTTP のメトリクスを保持します。
// controller.Observer を満たすので、そのまま Controller に渡せます。
type Collector struct {
	registry *prometheus.Registry

	generationsTotal   *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	generationsActive  prometheus.Gauge

	uploadsTotal    *prometheus.CounterVec
	selectionsTotal *prometheus.CounterVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewCollector は専用のレジストリにメトリクスを登録して Collector を作ります。
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	c := &Collector{registry: reg}

	c.generationsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "generations_total",
		Help:      "Total number of finished style generations",
	}, []string{"outcome"})

	c.generationDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "generation_duration_seconds",
		Help:      "Style generation duration in seconds",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"outcome"})

	c.generationsActive = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "generations_in_flight",
		Help:      "Number of style generations currently in flight",
	})

	c.uploadsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "uploads_total",
		Help:      "Upload decisions by slot and result",
	}, []string{"slot", "result"})

	c.selectionsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "image_selections_total",
		Help:      "Accepted image selections by slot and source",
	}, []string{"slot", "source"})

	c.httpRequestsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	c.httpRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// GenerationStarted は生成開始を記録します。
func (c *Collector) GenerationStarted() {
	c.generationsActive.Inc()
}

// GenerationFinished は生成の結果と所要時間を記録します。
func (c *Collector) GenerationFinished(outcome string, elapsed time.Duration) {
	c.generationsActive.Dec()
	c.generationsTotal.WithLabelValues(outcome).Inc()
	c.generationDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// ImageSelected は受け付けた画像選択を記録します。
func (c *Collector) ImageSelected(slot domain.Slot, source domain.Source) {
	c.selectionsTotal.WithLabelValues(string(slot), string(source)).Inc()
}

// RecordUpload はアップロードの受け付け判定を記録します。
func (c *Collector) RecordUpload(slot domain.Slot, d imgutil.Decision) {
	result := "accepted"
	if !d.Accepted {
		result = string(d.Reason)
	}
	c.uploadsTotal.WithLabelValues(string(slot), result).Inc()
}

// RecordHTTPRequest は HTTP リクエストを記録します。route はパターン（/images/{slot} など）を渡すのだ。
func (c *Collector) RecordHTTPRequest(method, route string, status int, elapsed time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler は /metrics 用のハンドラーです。
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
