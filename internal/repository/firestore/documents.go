package firestore

import (
	"context"
	"fmt"

	"remoteworks-cleaner/internal/models/entities"
	"remoteworks-cleaner/internal/models/ports"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
)

// Repository работает с коллекциями Cloud Firestore напрямую
type Repository struct {
	client *firestore.Client
	logger *zap.Logger
}

// NewClient подключается к проекту; при заданном FIRESTORE_EMULATOR_HOST клиент идет в эмулятор
func NewClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return client, nil
}

// NewRepository создает хранилище поверх клиента Firestore
func NewRepository(client *firestore.Client, logger *zap.Logger) *Repository {
	return &Repository{
		client: client,
		logger: logger,
	}
}

// Put создает или перезаписывает документ
func (r *Repository) Put(ctx context.Context, rec entities.Record) error {
	if _, err := r.client.Collection(rec.Collection).Doc(rec.ID).Set(ctx, rec.Fields); err != nil {
		return fmt.Errorf("put %s: %w", rec.Ref(), err)
	}
	return nil
}

// Query выполняет запрос Where; для операторов сравнения Firestore требует индекс по полю
func (r *Repository) Query(ctx context.Context, collection string, pred entities.Predicate) ([]entities.Record, error) {
	if !pred.Operator.Valid() {
		return nil, fmt.Errorf("unsupported operator %q", pred.Operator)
	}

	snaps, err := r.client.Collection(collection).
		Where(pred.Field, string(pred.Operator), pred.Value).
		Documents(ctx).
		GetAll()
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}

	records := make([]entities.Record, 0, len(snaps))
	for _, snap := range snaps {
		records = append(records, entities.Record{
			Collection: collection,
			ID:         snap.Ref.ID,
			Fields:     snap.Data(),
		})
	}
	return records, nil
}

// Get возвращает документ по ссылке
func (r *Repository) Get(ctx context.Context, ref entities.RecordRef) (*entities.Record, error) {
	snap, err := r.client.Collection(ref.Collection).Doc(ref.ID).Get(ctx)
	if snap != nil && !snap.Exists() {
		return nil, ports.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", ref, err)
	}
	return &entities.Record{Collection: ref.Collection, ID: ref.ID, Fields: snap.Data()}, nil
}

// Update сливает поля в существующий документ
func (r *Repository) Update(ctx context.Context, ref entities.RecordRef, fields map[string]any) error {
	return r.Commit(ctx, []entities.WriteOp{entities.UpdateOp(ref, fields)})
}

// Commit применяет пакет в транзакции Firestore (не более 500 записей)
func (r *Repository) Commit(ctx context.Context, ops []entities.WriteOp) error {
	if len(ops) > entities.MaxBatchCapacity {
		return fmt.Errorf("%d ops: %w", len(ops), ports.ErrBatchTooLarge)
	}

	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		// В транзакции Firestore все чтения идут до записей
		deleted := map[entities.RecordRef]bool{}
		for _, op := range ops {
			switch op.Kind {
			case entities.OpDelete:
				deleted[op.Ref] = true
			case entities.OpUpdate:
				snap, err := tx.Get(r.docRef(op.Ref))
				if (snap != nil && !snap.Exists()) || deleted[op.Ref] {
					return fmt.Errorf("update %s: %w", op.Ref, ports.ErrRecordNotFound)
				}
				if err != nil {
					return fmt.Errorf("read %s: %w", op.Ref, err)
				}
			default:
				return fmt.Errorf("unsupported operation %q", op.Kind)
			}
		}

		for _, op := range ops {
			var err error
			if op.Kind == entities.OpDelete {
				err = tx.Delete(r.docRef(op.Ref))
			} else {
				err = tx.Update(r.docRef(op.Ref), fieldUpdates(op.Fields))
			}
			if err != nil {
				return fmt.Errorf("%s %s: %w", op.Kind, op.Ref, err)
			}
		}
		return nil
	}, transactionOptions()...)
}

// transactionOptions запрещает клиенту перезапускать транзакцию при конфликте;
// повтор пакета остается за вызывающим
func transactionOptions() []firestore.TransactionOption {
	return []firestore.TransactionOption{firestore.MaxAttempts(1)}
}

func (r *Repository) docRef(ref entities.RecordRef) *firestore.DocumentRef {
	return r.client.Collection(ref.Collection).Doc(ref.ID)
}

// fieldUpdates использует FieldPath, чтобы точка в имени поля не считалась вложенностью
func fieldUpdates(fields map[string]any) []firestore.Update {
	updates := make([]firestore.Update, 0, len(fields))
	for k, v := range fields {
		updates = append(updates, firestore.Update{FieldPath: firestore.FieldPath{k}, Value: v})
	}
	return updates
}
