package usecase

import (
	"context"

	"remoteworks-cleaner/internal/models/entities"
	"remoteworks-cleaner/internal/models/ports"

	"go.uber.org/zap"
)

// QueryResolver превращает предикат в набор документов
type QueryResolver struct {
	store  ports.Datastore
	logger *zap.Logger
}

// NewQueryResolver создает новый резолвер выборок
func NewQueryResolver(store ports.Datastore, logger *zap.Logger) *QueryResolver {
	return &QueryResolver{
		store:  store,
		logger: logger,
	}
}

// Resolve возвращает все документы коллекции, удовлетворяющие предикату.
// Пустой результат не является ошибкой. Ошибка хранилища оборачивается в QueryError.
func (r *QueryResolver) Resolve(ctx context.Context, collection string, pred entities.Predicate) ([]entities.Record, error) {
	if collection == "" {
		return nil, entities.ErrEmptyCollection
	}
	if err := pred.Validate(); err != nil {
		return nil, err
	}

	records, err := r.store.Query(ctx, collection, pred)
	if err != nil {
		return nil, &entities.QueryError{Collection: collection, Predicate: pred, Err: err}
	}

	r.logger.Debug("Query resolved",
		zap.String("collection", collection),
		zap.Stringer("predicate", pred),
		zap.Int("matched", len(records)))

	return records, nil
}
