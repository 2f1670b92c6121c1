// Package app собирает слои сервиса по конфигурации; используется HTTP-сервером и CLI.
package app

import (
	"context"
	"fmt"

	"remoteworks-cleaner/internal/models/ports"
	"remoteworks-cleaner/internal/pkg/config"
	"remoteworks-cleaner/internal/pkg/datastore"
	"remoteworks-cleaner/internal/pkg/metrics"
	"remoteworks-cleaner/internal/usecase"

	"go.uber.org/zap"
)

// App - собранные зависимости сервиса
type App struct {
	Store   ports.Datastore
	Cleaner usecase.Cleaner
	Roles   ports.RoleUseCase

	closers []datastore.CloseFunc
}

// New подключается к хранилищам и создает сервисы очистки и смены ролей
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, subs ...ports.ProgressSubscriber) (*App, error) {
	store, closeStore, err := datastore.Open(ctx, cfg, logger.Named("datastore"))
	if err != nil {
		return nil, fmt.Errorf("open datastore: %w", err)
	}

	tasks, closeTasks, err := datastore.OpenTaskStore(ctx, cfg, logger.Named("tasks"))
	if err != nil {
		closeStore()
		return nil, fmt.Errorf("open task store: %w", err)
	}

	return NewWithStore(store, tasks, cfg, logger, subs...).withClosers(closeTasks, closeStore), nil
}

// NewWithStore собирает сервисы поверх готовых хранилищ
func NewWithStore(store ports.Datastore, tasks ports.TaskStore, cfg *config.Config, logger *zap.Logger, subs ...ports.ProgressSubscriber) *App {
	subscribers := append([]ports.ProgressSubscriber{
		usecase.LogProgress(logger.Named("progress")),
		metrics.NewCleanupMetrics(),
	}, subs...)

	cleaner := usecase.NewCleanerUseCase(store, tasks, logger.Named("usecase"),
		usecase.WithPlans(PlansFromConfig(cfg)),
		usecase.WithSubscribers(subscribers...),
		usecase.WithAsyncTimeout(cfg.Cleanup.AsyncTimeout))

	roles := usecase.NewRoleUseCase(store, usecase.UserFields{
		Collection: cfg.Users.Collection,
		EmailField: cfg.Users.EmailField,
		RoleField:  cfg.Users.RoleField,
	}, logger.Named("roles"))

	return &App{Store: store, Cleaner: cleaner, Roles: roles}
}

// PlansFromConfig переносит имена коллекций из конфигурации
func PlansFromConfig(cfg *config.Config) usecase.Plans {
	return usecase.Plans{
		TimestampField:    cfg.Cleanup.TimestampField,
		Notifications:     cfg.Cleanup.NotificationsCollection,
		Projects:          cfg.Cleanup.ProjectsCollection,
		ProjectUpdates:    cfg.Cleanup.ProjectUpdatesCollection,
		ProjectActions:    cfg.Cleanup.ProjectActionsCollection,
		ProjectForeignKey: cfg.Cleanup.ProjectForeignKey,
		StrictCascade:     cfg.Cleanup.StrictCascade,
	}
}

func (a *App) withClosers(closers ...datastore.CloseFunc) *App {
	a.closers = append(a.closers, closers...)
	return a
}

// Close дожидается фоновых задач и закрывает хранилища
func (a *App) Close() {
	a.Cleaner.Wait()
	for _, c := range a.closers {
		c()
	}
}
