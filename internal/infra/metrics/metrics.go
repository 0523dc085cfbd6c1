package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	UpdatesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_updates_total",
		Help: "Количество обработанных апдейтов по типам",
	}, []string{"type"})

	CommandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_commands_total",
		Help: "Количество распознанных команд",
	}, []string{"command"})

	BotSendErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bot_send_errors_total",
		Help: "Ошибки отправки сообщений ботом",
	})

	CacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "price_cache_hits_total",
		Help: "Попадания в кэш цен",
	})

	CacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "price_cache_misses_total",
		Help: "Промахи кэша цен",
	})

	CacheEvictions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "price_cache_evictions_total",
		Help: "Вытеснения записей кэша цен по причинам",
	}, []string{"reason"})

	PromosSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "promo_notifications_total",
		Help: "Отправленные уведомления о скидках",
	})

	SnapshotErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "state_snapshot_errors_total",
		Help: "Ошибки сохранения снапшота состояния",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: prometheus.DefBuckets,
	}, []string{"component", "operation", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		UpdatesTotal,
		CommandsTotal,
		BotSendErrors,
		CacheHits,
		CacheMisses,
		CacheEvictions,
		PromosSent,
		SnapshotErrors,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// ObserveNetworkRequest записывает метрики сетевого запроса.
func ObserveNetworkRequest(component, operation string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, status).Inc()
}
