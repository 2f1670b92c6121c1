// Package datastore открывает хранилище документов и хранилище задач по конфигурации.
package datastore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"remoteworks-cleaner/internal/models/ports"
	"remoteworks-cleaner/internal/pkg/config"
	"remoteworks-cleaner/internal/repository/badgerdb"
	"remoteworks-cleaner/internal/repository/firestore"
	"remoteworks-cleaner/internal/repository/memory"
	"remoteworks-cleaner/internal/repository/mongodb"
	"remoteworks-cleaner/internal/repository/redistasks"
	"remoteworks-cleaner/internal/repository/sqldb"
)

// CloseFunc освобождает ресурсы хранилища
type CloseFunc func()

// Open подключается к хранилищу документов, выбранному в DATASTORE_BACKEND
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.Datastore, CloseFunc, error) {
	switch cfg.DatastoreBackend {
	case config.BackendMemory:
		logger.Warn("Using in-memory datastore, data is lost on exit")
		return memory.NewStore(), func() {}, nil

	case config.BackendPostgres:
		db, err := NewPostgresDB(ctx, cfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		repo, err := openSQL(ctx, db, sqldb.Postgres, cfg, logger)
		if err != nil {
			CloseDB(db, logger)
			return nil, nil, err
		}
		return repo, func() { CloseDB(db, logger) }, nil

	case config.BackendSQLite:
		db, err := NewSQLiteDB(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		repo, err := openSQL(ctx, db, sqldb.SQLite, cfg, logger)
		if err != nil {
			CloseDB(db, logger)
			return nil, nil, err
		}
		return repo, func() { CloseDB(db, logger) }, nil

	case config.BackendMongoDB:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
		}
		logger.Info("Connected to MongoDB",
			zap.String("database", cfg.Mongo.Database),
			zap.Bool("transactions", cfg.Mongo.Transactions))

		repo := mongodb.NewRepository(client.Database(cfg.Mongo.Database), cfg.Mongo.Transactions, logger)
		return repo, func() {
			if err := client.Disconnect(context.Background()); err != nil {
				logger.Error("Error disconnecting from MongoDB", zap.Error(err))
			}
		}, nil

	case config.BackendBadger:
		repo, err := badgerdb.Open(ctx, badgerdb.Config{Path: cfg.BadgerDir}, logger)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() {
			if err := repo.Close(); err != nil {
				logger.Error("Error closing BadgerDB", zap.Error(err))
			}
		}, nil

	case config.BackendFirestore:
		client, err := firestore.NewClient(ctx, cfg.Firestore.ProjectID)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Connected to Firestore", zap.String("project_id", cfg.Firestore.ProjectID))

		return firestore.NewRepository(client, logger), func() {
			if err := client.Close(); err != nil {
				logger.Error("Error closing Firestore client", zap.Error(err))
			}
		}, nil
	}

	return nil, nil, fmt.Errorf("unsupported datastore backend %q", cfg.DatastoreBackend)
}

// OpenTaskStore создает хранилище состояний асинхронных задач
func OpenTaskStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.TaskStore, CloseFunc, error) {
	if cfg.TaskStore != "redis" {
		return memory.NewTaskStore(cfg.TaskTTL), func() {}, nil
	}

	client := redistasks.NewClient(redistasks.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))

	return redistasks.NewTaskStore(client, cfg.TaskTTL, logger), func() {
		if err := client.Close(); err != nil {
			logger.Error("Error closing Redis client", zap.Error(err))
		}
	}, nil
}
