package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"remoteworks-cleaner/internal/models/entities"
	"remoteworks-cleaner/internal/models/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Repository хранит каждую коллекцию в одноименной коллекции MongoDB, id документа лежит в _id
type Repository struct {
	db           *mongo.Database
	transactions bool
	logger       *zap.Logger

	startSession func() (mongo.Session, error)
}

// NewRepository создает хранилище поверх базы MongoDB.
// transactions включает атомарный коммит пакета; он требует replica set.
// Без транзакций пакет проверяется до первой записи, но сбой сервера посреди
// пакета может оставить часть удалений примененной.
func NewRepository(db *mongo.Database, transactions bool, logger *zap.Logger) *Repository {
	if !transactions {
		logger.Warn("mongodb transactions disabled, batch commits are not atomic")
	}
	return &Repository{
		db:           db,
		transactions: transactions,
		logger:       logger,
		startSession: func() (mongo.Session, error) {
			return db.Client().StartSession()
		},
	}
}

// Put создает или перезаписывает документ
func (r *Repository) Put(ctx context.Context, rec entities.Record) error {
	doc := bson.M{}
	for k, v := range rec.Fields {
		doc[k] = v
	}
	doc["_id"] = rec.ID

	_, err := r.db.Collection(rec.Collection).ReplaceOne(ctx, bson.M{"_id": rec.ID}, doc, replaceUpsert())
	if err != nil {
		return fmt.Errorf("put %s: %w", rec.Ref(), err)
	}
	return nil
}

// Query возвращает документы коллекции, удовлетворяющие предикату
func (r *Repository) Query(ctx context.Context, collection string, pred entities.Predicate) ([]entities.Record, error) {
	filter, err := predicateFilter(pred)
	if err != nil {
		return nil, err
	}

	cursor, err := r.db.Collection(collection).Find(ctx, filter, findSortedByID())
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", collection, err)
	}

	records := make([]entities.Record, 0, len(docs))
	for _, doc := range docs {
		records = append(records, toRecord(collection, doc))
	}
	return records, nil
}

// Get возвращает документ по ссылке
func (r *Repository) Get(ctx context.Context, ref entities.RecordRef) (*entities.Record, error) {
	var doc bson.M
	err := r.db.Collection(ref.Collection).FindOne(ctx, idFilter(ref.ID)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ports.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", ref, err)
	}

	rec := toRecord(ref.Collection, doc)
	return &rec, nil
}

// Update сливает поля в существующий документ
func (r *Repository) Update(ctx context.Context, ref entities.RecordRef, fields map[string]any) error {
	return r.Commit(ctx, []entities.WriteOp{entities.UpdateOp(ref, fields)})
}

// Commit применяет пакет операций; в режиме транзакций пакет атомарен.
// Транзакция выполняется один раз, повтор остается за вызывающим.
func (r *Repository) Commit(ctx context.Context, ops []entities.WriteOp) error {
	if len(ops) > entities.MaxBatchCapacity {
		return fmt.Errorf("%d ops: %w", len(ops), ports.ErrBatchTooLarge)
	}
	if !r.transactions {
		if err := r.checkUpdateTargets(ctx, ops); err != nil {
			return err
		}
		return r.apply(ctx, ops)
	}

	session, err := r.startSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	if err := session.StartTransaction(); err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}

	sc := mongo.NewSessionContext(ctx, session)
	if err := r.apply(sc, ops); err != nil {
		if abortErr := session.AbortTransaction(context.Background()); abortErr != nil {
			r.logger.Warn("abort transaction", zap.Error(abortErr))
		}
		return fmt.Errorf("transaction failed: %w", err)
	}

	if err := session.CommitTransaction(sc); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// checkUpdateTargets убеждается, что все обновляемые документы существуют,
// до того как пакет начнет писать
func (r *Repository) checkUpdateTargets(ctx context.Context, ops []entities.WriteOp) error {
	for _, op := range ops {
		if op.Kind != entities.OpUpdate {
			continue
		}
		err := r.db.Collection(op.Ref.Collection).FindOne(ctx, idFilter(op.Ref.ID), projectIDOnly()).Err()
		if errors.Is(err, mongo.ErrNoDocuments) {
			return fmt.Errorf("update %s: %w", op.Ref, ports.ErrRecordNotFound)
		}
		if err != nil {
			return fmt.Errorf("check %s: %w", op.Ref, err)
		}
	}
	return nil
}

func (r *Repository) apply(ctx context.Context, ops []entities.WriteOp) error {
	for _, op := range ops {
		coll := r.db.Collection(op.Ref.Collection)

		switch op.Kind {
		case entities.OpDelete:
			if _, err := coll.DeleteOne(ctx, idFilter(op.Ref.ID)); err != nil {
				return fmt.Errorf("delete %s: %w", op.Ref, err)
			}
		case entities.OpUpdate:
			res, err := coll.UpdateOne(ctx, idFilter(op.Ref.ID), bson.M{"$set": op.Fields})
			if err != nil {
				return fmt.Errorf("update %s: %w", op.Ref, err)
			}
			if res.MatchedCount == 0 {
				return fmt.Errorf("update %s: %w", op.Ref, ports.ErrRecordNotFound)
			}
		default:
			return fmt.Errorf("unsupported operation %q", op.Kind)
		}
	}
	return nil
}

func predicateFilter(pred entities.Predicate) (bson.M, error) {
	var op string
	switch pred.Operator {
	case entities.OpEqual:
		if s, ok := pred.Value.(string); ok {
			return bson.M{pred.Field: matchID(s)}, nil
		}
		return bson.M{pred.Field: pred.Value}, nil
	case entities.OpLess:
		op = "$lt"
	case entities.OpLessEqual:
		op = "$lte"
	case entities.OpGreater:
		op = "$gt"
	case entities.OpGreaterEqual:
		op = "$gte"
	default:
		return nil, fmt.Errorf("unsupported operator %q", pred.Operator)
	}
	return bson.M{pred.Field: bson.M{op: pred.Value}}, nil
}

// idFilter ищет документ по id. Record.ID хранит ObjectID в hex-виде,
// поэтому такой id сопоставляется и как ObjectID, и как строка.
func idFilter(id string) bson.M {
	return bson.M{"_id": matchID(id)}
}

// matchID возвращает условие равенства для значения, которое может быть ObjectID в hex-виде
func matchID(v string) any {
	if oid, err := primitive.ObjectIDFromHex(v); err == nil {
		return bson.M{"$in": bson.A{oid, v}}
	}
	return v
}

func toRecord(collection string, doc bson.M) entities.Record {
	id := fmt.Sprint(doc["_id"])
	if oid, ok := doc["_id"].(primitive.ObjectID); ok {
		id = oid.Hex()
	}

	fields := make(map[string]any, len(doc))
	for k, v := range doc {
		if k == "_id" {
			continue
		}
		fields[k] = fromBSON(v)
	}
	return entities.Record{Collection: collection, ID: id, Fields: fields}
}

// fromBSON приводит типы драйвера к типам, с которыми работает предикат
func fromBSON(v any) any {
	switch x := v.(type) {
	case primitive.DateTime:
		return x.Time().UTC()
	case primitive.Timestamp:
		return time.Unix(int64(x.T), 0).UTC()
	case int32:
		return int64(x)
	}
	return v
}
