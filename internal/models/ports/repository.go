package ports

import (
	"context"
	"errors"

	"remoteworks-cleaner/internal/models/entities"
)

// Ошибки хранилища, общие для всех реализаций
var (
	ErrRecordNotFound = errors.New("record not found")
	ErrBatchTooLarge  = errors.New("batch exceeds datastore write limit")
	ErrMissingIndex   = errors.New("query requires an index")
)

// Datastore определяет интерфейс документного хранилища
type Datastore interface {
	// Query возвращает все документы коллекции, удовлетворяющие предикату
	Query(ctx context.Context, collection string, pred entities.Predicate) ([]entities.Record, error)

	// Get возвращает документ или ErrRecordNotFound
	Get(ctx context.Context, ref entities.RecordRef) (*entities.Record, error)

	// Update сливает поля в существующий документ
	Update(ctx context.Context, ref entities.RecordRef, fields map[string]any) error

	// Commit атомарно применяет пакет операций (не более entities.MaxBatchCapacity).
	// Удаление отсутствующего документа не является ошибкой.
	Commit(ctx context.Context, ops []entities.WriteOp) error
}

// TaskStore хранит состояние асинхронных задач очистки
type TaskStore interface {
	Save(ctx context.Context, result *entities.CleanupResult) error
	Get(ctx context.Context, taskID string) (*entities.CleanupResult, error)
}

// ErrTaskNotFound возвращается TaskStore для неизвестного идентификатора
var ErrTaskNotFound = errors.New("task not found")
