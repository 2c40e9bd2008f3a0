// Package metrics экспортирует Prometheus-метрики карты. Все методы
// Collector безопасны для nil-получателя: карта без метрик просто их не пишет.
package metrics

import (
	"net/http"
	"time"

	"github.com/annel0/sparse-tilemap/internal/logging"
	"github.com/annel0/sparse-tilemap/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector держит метрики на собственном регистре, чтобы несколько карт
// в одном процессе (и тесты) не конфликтовали в глобальном.
type Collector struct {
	registry *prometheus.Registry

	chunks      *prometheus.GaugeVec
	entities    prometheus.Gauge
	tileOps     *prometheus.CounterVec
	errors      *prometheus.CounterVec
	maintenance *prometheus.HistogramVec
}

// NewCollector создаёт и регистрирует метрики с префиксом namespace
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "tilemap"
	}
	c := &Collector{
		registry: prometheus.NewRegistry(),
		chunks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "materialized_chunks",
			Help:      "Количество чанков слоя, находящихся в памяти.",
		}, []string{"layer"}),
		entities: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "entities",
			Help:      "Количество клеток со связанной сущностью.",
		}),
		tileOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tile_ops_total",
			Help:      "Общее число операций с клетками по слоям.",
		}, []string{"layer", "op"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Ошибки операций карты по видам.",
		}, []string{"kind"}),
		maintenance: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "maintenance_seconds",
			Help:      "Длительность смены размера чанков и способа хранения.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"op"}),
	}

	c.registry.MustRegister(c.chunks, c.entities, c.tileOps, c.errors, c.maintenance)
	return c
}

func (c *Collector) SetMaterializedChunks(layer string, n int) {
	if c == nil {
		return
	}
	c.chunks.WithLabelValues(layer).Set(float64(n))
}

func (c *Collector) SetEntities(n int) {
	if c == nil {
		return
	}
	c.entities.Set(float64(n))
}

// TileOp учитывает операцию с клеткой: get, set, update, clear
func (c *Collector) TileOp(layer, op string) {
	if c == nil {
		return
	}
	c.tileOps.WithLabelValues(layer, op).Inc()
}

func (c *Collector) Error(kind string) {
	if c == nil {
		return
	}
	c.errors.WithLabelValues(kind).Inc()
}

// ObserveMaintenance записывает длительность обслуживающей операции
func (c *Collector) ObserveMaintenance(op string, d time.Duration) {
	if c == nil {
		return
	}
	c.maintenance.WithLabelValues(op).Observe(d.Seconds())
}

func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler HTTP-обработчик /metrics для регистра коллектора
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Router gin-роутер с /metrics за логированием запросов
func (c *Collector) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.NewRequestLogger(nil).Handler())
	r.GET("/metrics", gin.WrapH(c.Handler()))
	return r
}

// StartHTTP запускает HTTP-эндпоинт Prometheus на указанном адресе (например, ":2112").
// Метод неблокирующий: сервер работает, пока его не закроют через возвращённый *http.Server.
func (c *Collector) StartHTTP(addr string) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{Addr: addr, Handler: c.Router(), ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logging.Info("📈 Prometheus /metrics доступен по адресу %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("Ошибка Prometheus HTTP сервера: %v", err)
		}
	}()
	return srv
}
