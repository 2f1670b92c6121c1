package metrics

import (
	"sync"

	"remoteworks-cleaner/internal/models/entities"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CleanupMetrics получает события прогресса задач удаления
type CleanupMetrics interface {
	OnProgress(event entities.ProgressEvent)
}

type noopCleanupMetrics struct{}

func (noopCleanupMetrics) OnProgress(entities.ProgressEvent) {}

// NewNoopCleanupMetrics возвращает реализацию без сбора метрик
func NewNoopCleanupMetrics() CleanupMetrics {
	return noopCleanupMetrics{}
}

type jobCollection struct {
	jobID      string
	collection string
}

// cleanupMetrics переводит накопленные счетчики событий в приращения counter-ов
type cleanupMetrics struct {
	mu   sync.Mutex
	last map[jobCollection]entities.CollectionCounters

	found    *prometheus.CounterVec
	deleted  *prometheus.CounterVec
	finished *prometheus.CounterVec
	lastRun  *prometheus.GaugeVec
}

// NewCleanupMetrics создает метрики очистки в глобальном реестре
func NewCleanupMetrics() CleanupMetrics {
	if !IsEnabled() {
		return NewNoopCleanupMetrics()
	}
	return newCleanupMetrics(GetRegistry())
}

func newCleanupMetrics(reg prometheus.Registerer) *cleanupMetrics {
	return &cleanupMetrics{
		last: make(map[jobCollection]entities.CollectionCounters),
		found: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_found_total",
				Help:      "Documents matched for deletion, including cascaded children",
			},
			[]string{"collection"},
		),
		deleted: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_deleted_total",
				Help:      "Documents deleted by committed batches",
			},
			[]string{"collection"},
		),
		finished: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "collection_runs_total",
				Help:      "Finished deletion runs per collection by outcome",
			},
			[]string{"collection", "outcome"},
		),
		lastRun: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_completed_timestamp_seconds",
				Help:      "Unix time of the last completed run per collection",
			},
			[]string{"collection"},
		),
	}
}

func (m *cleanupMetrics) OnProgress(event entities.ProgressEvent) {
	key := jobCollection{jobID: event.JobID, collection: event.Collection}

	m.mu.Lock()
	prev := m.last[key]
	if event.Phase == entities.PhaseCompleted || event.Phase == entities.PhaseFailed || event.Phase == entities.PhaseDryRun {
		delete(m.last, key)
	} else {
		m.last[key] = entities.CollectionCounters{Found: event.Found, Deleted: event.Deleted}
	}
	m.mu.Unlock()

	if d := event.Found - prev.Found; d > 0 {
		m.found.WithLabelValues(event.Collection).Add(float64(d))
	}
	if d := event.Deleted - prev.Deleted; d > 0 {
		m.deleted.WithLabelValues(event.Collection).Add(float64(d))
	}

	switch event.Phase {
	case entities.PhaseCompleted:
		m.finished.WithLabelValues(event.Collection, "completed").Inc()
		m.lastRun.WithLabelValues(event.Collection).Set(float64(event.At.Unix()))
	case entities.PhaseFailed:
		m.finished.WithLabelValues(event.Collection, "failed").Inc()
	case entities.PhaseDryRun:
		m.finished.WithLabelValues(event.Collection, "dry_run").Inc()
	}
}
