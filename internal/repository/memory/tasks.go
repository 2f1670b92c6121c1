package memory

import (
	"context"
	"sync"
	"time"

	"remoteworks-cleaner/internal/models/entities"
	"remoteworks-cleaner/internal/models/ports"
)

type taskEntry struct {
	result    *entities.CleanupResult
	expiresAt time.Time
}

// TaskStore хранит состояние асинхронных задач в памяти процесса
type TaskStore struct {
	mu    sync.RWMutex
	ttl   time.Duration
	tasks map[string]taskEntry
	now   func() time.Time
}

// NewTaskStore создает хранилище задач; запись живет ttl после последнего обновления
func NewTaskStore(ttl time.Duration) *TaskStore {
	return &TaskStore{
		ttl:   ttl,
		tasks: make(map[string]taskEntry),
		now:   time.Now,
	}
}

// Save сохраняет копию результата
func (s *TaskStore) Save(ctx context.Context, result *entities.CleanupResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.tasks[result.TaskID] = taskEntry{
		result:    result.Clone(),
		expiresAt: now.Add(s.ttl),
	}

	// Заодно удаляем просроченные записи
	for id, entry := range s.tasks {
		if now.After(entry.expiresAt) {
			delete(s.tasks, id)
		}
	}
	return nil
}

// Get возвращает копию результата или ports.ErrTaskNotFound
func (s *TaskStore) Get(ctx context.Context, taskID string) (*entities.CleanupResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.tasks[taskID]
	if !ok || s.now().After(entry.expiresAt) {
		return nil, ports.ErrTaskNotFound
	}
	return entry.result.Clone(), nil
}
