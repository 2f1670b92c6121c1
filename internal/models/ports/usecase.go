package ports

import (
	"context"

	"remoteworks-cleaner/internal/models/entities"
)

// CleanerUseCase определяет бизнес-логику очистки данных
type CleanerUseCase interface {
	// CleanCollection удаляет старые документы из указанной коллекции
	CleanCollection(ctx context.Context, req entities.CleanupRequest) (*entities.CleanupResult, error)

	// CleanNotifications удаляет старые уведомления и, по запросу, старые проекты с зависимыми документами
	CleanNotifications(ctx context.Context, req entities.NotificationsCleanupRequest) (*entities.CleanupResult, error)

	// StartAsyncCleanup запускает асинхронную очистку и возвращает идентификатор задачи
	StartAsyncCleanup(ctx context.Context, req entities.CleanupRequest) (string, error)

	// StartAsyncNotificationsCleanup запускает асинхронную очистку уведомлений
	StartAsyncNotificationsCleanup(ctx context.Context, req entities.NotificationsCleanupRequest) (string, error)

	// GetCleanupStatus возвращает статус операции очистки по идентификатору
	GetCleanupStatus(ctx context.Context, taskID string) (*entities.CleanupResult, error)
}

// RoleUseCase определяет смену роли пользователя
type RoleUseCase interface {
	SetUserRole(ctx context.Context, req entities.RoleUpdateRequest) (*entities.RoleUpdateResult, error)
}

// ProgressSubscriber получает события прогресса.
// Вызывается синхронно из задачи удаления, поэтому не должен блокироваться.
type ProgressSubscriber interface {
	OnProgress(event entities.ProgressEvent)
}

// ProgressFunc адаптирует функцию к ProgressSubscriber
type ProgressFunc func(event entities.ProgressEvent)

func (f ProgressFunc) OnProgress(event entities.ProgressEvent) { f(event) }
