package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"remoteworks-cleaner/internal/models/entities"
	"remoteworks-cleaner/internal/models/ports"
)

// Store - документное хранилище в памяти.
// Коммит пакета применяется целиком под одной блокировкой.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]any
	unindexed   map[string]map[string]bool
	commits     []int
}

// NewStore создает пустое хранилище
func NewStore() *Store {
	return &Store{
		collections: make(map[string]map[string]map[string]any),
		unindexed:   make(map[string]map[string]bool),
	}
}

// Put создает или перезаписывает документ
func (s *Store) Put(rec entities.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, ok := s.collections[rec.Collection]
	if !ok {
		docs = make(map[string]map[string]any)
		s.collections[rec.Collection] = docs
	}
	docs[rec.ID] = copyFields(rec.Fields)
}

// RequireIndex помечает поле коллекции как неиндексированное:
// запросы с оператором сравнения по нему завершаются ошибкой ports.ErrMissingIndex.
func (s *Store) RequireIndex(collection, field string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields, ok := s.unindexed[collection]
	if !ok {
		fields = make(map[string]bool)
		s.unindexed[collection] = fields
	}
	fields[field] = true
}

// Count возвращает число документов коллекции
func (s *Store) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

// CommitSizes возвращает размеры всех зафиксированных пакетов по порядку
func (s *Store) CommitSizes() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]int(nil), s.commits...)
}

// Query возвращает документы, удовлетворяющие предикату, упорядоченные по id
func (s *Store) Query(ctx context.Context, collection string, pred entities.Predicate) ([]entities.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if pred.Operator != entities.OpEqual && s.unindexed[collection][pred.Field] {
		return nil, fmt.Errorf("%s.%s: %w", collection, pred.Field, ports.ErrMissingIndex)
	}

	var out []entities.Record
	for id, fields := range s.collections[collection] {
		if pred.Matches(fields) {
			out = append(out, entities.Record{Collection: collection, ID: id, Fields: copyFields(fields)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Get возвращает документ по ссылке
func (s *Store) Get(ctx context.Context, ref entities.RecordRef) (*entities.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	fields, ok := s.collections[ref.Collection][ref.ID]
	if !ok {
		return nil, ports.ErrRecordNotFound
	}
	return &entities.Record{Collection: ref.Collection, ID: ref.ID, Fields: copyFields(fields)}, nil
}

// Update сливает поля в существующий документ
func (s *Store) Update(ctx context.Context, ref entities.RecordRef, fields map[string]any) error {
	return s.Commit(ctx, []entities.WriteOp{entities.UpdateOp(ref, fields)})
}

// Commit применяет операции атомарно: при любой ошибке хранилище не меняется
func (s *Store) Commit(ctx context.Context, ops []entities.WriteOp) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(ops) > entities.MaxBatchCapacity {
		return fmt.Errorf("%d ops: %w", len(ops), ports.ErrBatchTooLarge)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Сначала проверяем все операции, затем применяем
	deleted := map[entities.RecordRef]bool{}
	for _, op := range ops {
		switch op.Kind {
		case entities.OpDelete:
			deleted[op.Ref] = true
		case entities.OpUpdate:
			if _, ok := s.collections[op.Ref.Collection][op.Ref.ID]; !ok || deleted[op.Ref] {
				return fmt.Errorf("update %s: %w", op.Ref, ports.ErrRecordNotFound)
			}
		default:
			return fmt.Errorf("unsupported operation %q", op.Kind)
		}
	}

	for _, op := range ops {
		switch op.Kind {
		case entities.OpDelete:
			delete(s.collections[op.Ref.Collection], op.Ref.ID)
		case entities.OpUpdate:
			doc := s.collections[op.Ref.Collection][op.Ref.ID]
			for k, v := range op.Fields {
				doc[k] = v
			}
		}
	}

	s.commits = append(s.commits, len(ops))
	return nil
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
