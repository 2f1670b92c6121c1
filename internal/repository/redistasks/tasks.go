package redistasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"remoteworks-cleaner/internal/models/entities"
	"remoteworks-cleaner/internal/models/ports"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "cleaner:task:"

// Config - параметры подключения к Redis
type Config struct {
	Addr     string
	Password string
	DB       int
}

// NewClient создает клиента Redis с таймаутами по умолчанию
func NewClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	})
}

// TaskStore хранит состояние асинхронных задач в Redis, переживая рестарт процесса
type TaskStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewTaskStore создает хранилище задач; запись живет ttl после последнего обновления
func NewTaskStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *TaskStore {
	return &TaskStore{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Save сериализует результат и обновляет срок жизни записи
func (s *TaskStore) Save(ctx context.Context, result *entities.CleanupResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", result.TaskID, err)
	}

	if err := s.client.Set(ctx, keyPrefix+result.TaskID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save task %s: %w", result.TaskID, err)
	}

	s.logger.Debug("Task state saved",
		zap.String("task_id", result.TaskID),
		zap.String("status", result.Status))
	return nil
}

// Get возвращает результат задачи или ports.ErrTaskNotFound
func (s *TaskStore) Get(ctx context.Context, taskID string) (*entities.CleanupResult, error) {
	data, err := s.client.Get(ctx, keyPrefix+taskID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ports.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load task %s: %w", taskID, err)
	}

	var result entities.CleanupResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode task %s: %w", taskID, err)
	}
	return &result, nil
}
