package usecase

import (
	"context"

	"remoteworks-cleaner/internal/models/entities"
	"remoteworks-cleaner/internal/models/ports"

	"go.uber.org/zap"
)

// CommitFunc вызывается после каждого успешного коммита с номером пакета и его операциями
type CommitFunc func(batch int, ops []entities.WriteOp) error

// BatchWriter накапливает операции и фиксирует их пакетами не больше capacity.
// Пакеты фиксируются строго в порядке заполнения.
type BatchWriter struct {
	store    ports.Datastore
	capacity int
	buf      []entities.WriteOp
	commits  int
	onCommit CommitFunc
	logger   *zap.Logger
}

// NewBatchWriter создает новый буфер записи.
// capacity <= 0 означает предел хранилища entities.MaxBatchCapacity.
func NewBatchWriter(store ports.Datastore, capacity int, onCommit CommitFunc, logger *zap.Logger) (*BatchWriter, error) {
	if capacity <= 0 {
		capacity = entities.MaxBatchCapacity
	}
	if capacity > entities.MaxBatchCapacity {
		return nil, entities.ErrBatchSizeTooLarge
	}

	return &BatchWriter{
		store:    store,
		capacity: capacity,
		buf:      make([]entities.WriteOp, 0, capacity),
		onCommit: onCommit,
		logger:   logger,
	}, nil
}

// Add добавляет операцию; заполненный буфер фиксируется сразу
func (w *BatchWriter) Add(ctx context.Context, op entities.WriteOp) error {
	w.buf = append(w.buf, op)
	if len(w.buf) >= w.capacity {
		return w.Flush(ctx)
	}
	return nil
}

// Flush фиксирует текущий буфер, если он не пуст
func (w *BatchWriter) Flush(ctx context.Context) error {
	if len(w.buf) == 0 {
		return nil
	}

	batch := w.commits + 1
	if err := w.store.Commit(ctx, w.buf); err != nil {
		return &entities.CommitError{Batch: batch, Size: len(w.buf), Err: err}
	}
	w.commits = batch

	committed := w.buf
	w.buf = make([]entities.WriteOp, 0, w.capacity)

	w.logger.Debug("Batch committed",
		zap.Int("batch", batch),
		zap.Int("ops", len(committed)))

	if w.onCommit != nil {
		return w.onCommit(batch, committed)
	}
	return nil
}

// Pending возвращает число операций, ожидающих коммита
func (w *BatchWriter) Pending() int {
	return len(w.buf)
}

// Commits возвращает число успешных коммитов
func (w *BatchWriter) Commits() int {
	return w.commits
}

// Capacity возвращает размер пакета
func (w *BatchWriter) Capacity() int {
	return w.capacity
}
