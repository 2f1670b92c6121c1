// Package metrics собирает метрики Prometheus сервиса очистки.
//
// Метрики необязательны: пока InitRegistry не вызван, конструкторы
// возвращают no-op реализации.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cleaner"

var (
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry создает глобальный реестр; повторные вызовы игнорируются
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
}

// GetRegistry возвращает реестр или nil, если метрики выключены
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled сообщает, включен ли сбор метрик
func IsEnabled() bool {
	return GetRegistry() != nil
}

// Handler отдает метрики реестра; при выключенных метриках отвечает 404
func Handler() http.Handler {
	if !IsEnabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}
