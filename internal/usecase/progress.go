package usecase

import (
	"fmt"
	"sync"
	"time"

	"remoteworks-cleaner/internal/models/entities"
	"remoteworks-cleaner/internal/models/ports"
)

// ProgressReporter ведет счетчики found/deleted по коллекциям и рассылает события подписчикам.
// Счетчики только растут; deleted никогда не превышает found.
type ProgressReporter struct {
	mu          sync.RWMutex
	jobID       string
	counters    map[string]*entities.CollectionCounters
	order       []string
	subscribers []ports.ProgressSubscriber
	now         func() time.Time
}

// NewProgressReporter создает репортер для задачи
func NewProgressReporter(jobID string, subscribers ...ports.ProgressSubscriber) *ProgressReporter {
	return &ProgressReporter{
		jobID:       jobID,
		counters:    make(map[string]*entities.CollectionCounters),
		subscribers: subscribers,
		now:         time.Now,
	}
}

// Subscribe добавляет подписчика
func (p *ProgressReporter) Subscribe(sub ports.ProgressSubscriber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, sub)
}

// Track регистрирует коллекцию с нулевыми счетчиками
func (p *ProgressReporter) Track(collection string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counter(collection)
}

// AddFound увеличивает found для коллекции
func (p *ProgressReporter) AddFound(collection string, n int) {
	if n < 0 {
		return
	}

	p.mu.Lock()
	c := p.counter(collection)
	c.Found += n
	event := p.event(collection, entities.PhaseFound, *c)
	subs := p.subscribers
	p.mu.Unlock()

	notify(subs, event)
}

// AddDeleted увеличивает deleted после успешного коммита
func (p *ProgressReporter) AddDeleted(collection string, n int) error {
	if n < 0 {
		return fmt.Errorf("negative deleted count %d for %s", n, collection)
	}

	p.mu.Lock()
	c := p.counter(collection)
	if c.Deleted+n > c.Found {
		p.mu.Unlock()
		return fmt.Errorf("deleted count for %s would exceed found (%d + %d > %d)", collection, c.Deleted, n, c.Found)
	}
	c.Deleted += n
	event := p.event(collection, entities.PhaseCommitted, *c)
	subs := p.subscribers
	p.mu.Unlock()

	notify(subs, event)
	return nil
}

// Finish рассылает итоговые события по каждой коллекции
func (p *ProgressReporter) Finish(state entities.JobState) {
	phase := entities.PhaseCompleted
	switch state {
	case entities.JobFailed:
		phase = entities.PhaseFailed
	case entities.JobDryRun:
		phase = entities.PhaseDryRun
	}

	p.mu.RLock()
	events := make([]entities.ProgressEvent, 0, len(p.order))
	for _, collection := range p.order {
		events = append(events, p.event(collection, phase, *p.counters[collection]))
	}
	subs := p.subscribers
	p.mu.RUnlock()

	for _, event := range events {
		notify(subs, event)
	}
}

// Snapshot возвращает копию счетчиков
func (p *ProgressReporter) Snapshot() map[string]entities.CollectionCounters {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[string]entities.CollectionCounters, len(p.counters))
	for name, c := range p.counters {
		out[name] = *c
	}
	return out
}

// Collections возвращает коллекции в порядке регистрации
func (p *ProgressReporter) Collections() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.order...)
}

func (p *ProgressReporter) counter(collection string) *entities.CollectionCounters {
	c, ok := p.counters[collection]
	if !ok {
		c = &entities.CollectionCounters{}
		p.counters[collection] = c
		p.order = append(p.order, collection)
	}
	return c
}

func (p *ProgressReporter) event(collection string, phase entities.Phase, c entities.CollectionCounters) entities.ProgressEvent {
	return entities.ProgressEvent{
		JobID:      p.jobID,
		Collection: collection,
		Phase:      phase,
		Found:      c.Found,
		Deleted:    c.Deleted,
		At:         p.now(),
	}
}

func notify(subs []ports.ProgressSubscriber, event entities.ProgressEvent) {
	for _, sub := range subs {
		sub.OnProgress(event)
	}
}
