// Package badgerdb хранит документы во встроенной базе BadgerDB.
//
// Ключ документа: "d:<collection>\x00<id>", значение - поля в JSON (fieldcodec).
// Вторичных индексов нет, запрос сканирует префикс коллекции.
package badgerdb

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"remoteworks-cleaner/internal/models/entities"
	"remoteworks-cleaner/internal/models/ports"
	"remoteworks-cleaner/internal/pkg/fieldcodec"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"go.uber.org/zap"
)

const keySeparator = 0x00

// Config - параметры открытия базы
type Config struct {
	// Path - каталог базы; пустой путь открывает базу в памяти
	Path string
}

// Repository - документное хранилище на BadgerDB
type Repository struct {
	db     *badger.DB
	logger *zap.Logger
}

// Open открывает базу по конфигурации
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Repository, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.Path == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLoggingLevel(badger.WARNING)
	opts = opts.WithCompression(options.None)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %q: %w", cfg.Path, err)
	}

	logger.Info("BadgerDB opened", zap.String("path", cfg.Path), zap.Bool("in_memory", cfg.Path == ""))
	return &Repository{db: db, logger: logger}, nil
}

// Close закрывает базу
func (r *Repository) Close() error {
	return r.db.Close()
}

func collectionPrefix(collection string) []byte {
	key := make([]byte, 0, len(collection)+3)
	key = append(key, "d:"...)
	key = append(key, collection...)
	return append(key, keySeparator)
}

func documentKey(ref entities.RecordRef) []byte {
	return append(collectionPrefix(ref.Collection), ref.ID...)
}

// Put создает или перезаписывает документ
func (r *Repository) Put(ctx context.Context, rec entities.Record) error {
	data, err := fieldcodec.Encode(rec.Fields)
	if err != nil {
		return fmt.Errorf("encode %s: %w", rec.Ref(), err)
	}

	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(documentKey(rec.Ref()), data)
	})
}

// Query сканирует коллекцию и возвращает документы, удовлетворяющие предикату
func (r *Repository) Query(ctx context.Context, collection string, pred entities.Predicate) ([]entities.Record, error) {
	prefix := collectionPrefix(collection)
	var records []entities.Record

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		scanned := 0
		for it.Rewind(); it.Valid(); it.Next() {
			scanned++
			if scanned%1000 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}

			item := it.Item()
			id := string(bytes.TrimPrefix(item.Key(), prefix))

			err := item.Value(func(val []byte) error {
				fields, err := fieldcodec.Decode(val)
				if err != nil {
					return fmt.Errorf("decode %s/%s: %w", collection, id, err)
				}
				if pred.Matches(fields) {
					records = append(records, entities.Record{Collection: collection, ID: id, Fields: fields})
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Get возвращает документ по ссылке
func (r *Repository) Get(ctx context.Context, ref entities.RecordRef) (*entities.Record, error) {
	var fields map[string]any

	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(documentKey(ref))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			fields, err = fieldcodec.Decode(val)
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ports.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", ref, err)
	}
	return &entities.Record{Collection: ref.Collection, ID: ref.ID, Fields: fields}, nil
}

// Update сливает поля в существующий документ
func (r *Repository) Update(ctx context.Context, ref entities.RecordRef, fields map[string]any) error {
	return r.Commit(ctx, []entities.WriteOp{entities.UpdateOp(ref, fields)})
}

// Commit применяет пакет в одной транзакции Badger
func (r *Repository) Commit(ctx context.Context, ops []entities.WriteOp) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(ops) > entities.MaxBatchCapacity {
		return fmt.Errorf("%d ops: %w", len(ops), ports.ErrBatchTooLarge)
	}

	return r.db.Update(func(txn *badger.Txn) error {
		for _, op := range ops {
			key := documentKey(op.Ref)

			switch op.Kind {
			case entities.OpDelete:
				if err := txn.Delete(key); err != nil {
					return fmt.Errorf("delete %s: %w", op.Ref, err)
				}
			case entities.OpUpdate:
				if err := mergeFields(txn, key, op); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unsupported operation %q", op.Kind)
			}
		}
		return nil
	})
}

func mergeFields(txn *badger.Txn, key []byte, op entities.WriteOp) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("update %s: %w", op.Ref, ports.ErrRecordNotFound)
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", op.Ref, err)
	}

	var fields map[string]any
	if err := item.Value(func(val []byte) error {
		fields, err = fieldcodec.Decode(val)
		return err
	}); err != nil {
		return fmt.Errorf("decode %s: %w", op.Ref, err)
	}

	for k, v := range op.Fields {
		fields[k] = v
	}

	data, err := fieldcodec.Encode(fields)
	if err != nil {
		return fmt.Errorf("encode %s: %w", op.Ref, err)
	}
	return txn.Set(key, data)
}
