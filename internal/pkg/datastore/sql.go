package datastore

import (
	"context"
	"fmt"

	_ "github.com/jackc/pgx/v4/stdlib" // Драйвер PostgreSQL
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // Драйвер SQLite

	"remoteworks-cleaner/internal/pkg/config"
	"remoteworks-cleaner/internal/repository/sqldb"
)

// NewPostgresDB создает новое подключение к PostgreSQL
func NewPostgresDB(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*sqlx.DB, error) {
	// Создаем подключение
	db, err := sqlx.ConnectContext(ctx, sqldb.Postgres.Name, cfg.GetDBConnString())
	if err != nil {
		return nil, err
	}

	// Настраиваем пул соединений
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)

	// Проверяем соединение
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	logger.Info("Connected to PostgreSQL",
		zap.String("host", cfg.DBHost),
		zap.Int("port", cfg.DBPort),
		zap.String("database", cfg.DBName))

	return db, nil
}

// NewSQLiteDB открывает файл SQLite; ":memory:" дает базу в памяти
func NewSQLiteDB(ctx context.Context, path string, logger *zap.Logger) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, sqldb.SQLite.Name, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	// SQLite допускает одного писателя
	db.SetMaxOpenConns(1)

	logger.Info("Opened SQLite database", zap.String("path", path))
	return db, nil
}

// CloseDB закрывает соединение с базой данных
func CloseDB(db *sqlx.DB, logger *zap.Logger) {
	if err := db.Close(); err != nil {
		logger.Error("Error closing database connection", zap.Error(err))
	} else {
		logger.Info("Database connection closed")
	}
}

func openSQL(ctx context.Context, db *sqlx.DB, dialect sqldb.Dialect, cfg *config.Config, logger *zap.Logger) (*sqldb.Repository, error) {
	repo := sqldb.NewRepository(db, dialect, logger)

	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	// Индекс по полю даты, иначе выборка старых документов сканирует всю таблицу
	if err := repo.EnsureIndex(ctx, cfg.Cleanup.TimestampField); err != nil {
		logger.Warn("Failed to create timestamp index",
			zap.String("field", cfg.Cleanup.TimestampField),
			zap.Error(err))
	}
	return repo, nil
}
