package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"remoteworks-cleaner/internal/models/entities"
	"remoteworks-cleaner/internal/models/ports"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type cleanerUseCase struct {
	store        ports.Datastore
	tasks        ports.TaskStore
	plans        Plans
	subscribers  []ports.ProgressSubscriber
	asyncTimeout time.Duration
	logger       *zap.Logger
	wg           sync.WaitGroup
}

// CleanerOption настраивает сервис очистки
type CleanerOption func(*cleanerUseCase)

// WithSubscribers подписывает получателей прогресса на все задачи сервиса
func WithSubscribers(subs ...ports.ProgressSubscriber) CleanerOption {
	return func(uc *cleanerUseCase) { uc.subscribers = append(uc.subscribers, subs...) }
}

// WithPlans задает имена коллекций
func WithPlans(plans Plans) CleanerOption {
	return func(uc *cleanerUseCase) { uc.plans = plans }
}

// WithAsyncTimeout ограничивает время асинхронной задачи
func WithAsyncTimeout(d time.Duration) CleanerOption {
	return func(uc *cleanerUseCase) { uc.asyncTimeout = d }
}

// Cleaner - сервис очистки с ожиданием фоновых задач
type Cleaner interface {
	ports.CleanerUseCase

	// Wait блокирует до завершения всех асинхронных задач
	Wait()
}

// NewCleanerUseCase создает новый экземпляр сервиса очистки данных
func NewCleanerUseCase(store ports.Datastore, tasks ports.TaskStore, logger *zap.Logger, opts ...CleanerOption) Cleaner {
	uc := &cleanerUseCase{
		store:        store,
		tasks:        tasks,
		plans:        DefaultPlans(),
		asyncTimeout: time.Hour,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// CleanCollection удаляет старые документы из указанной коллекции
func (uc *cleanerUseCase) CleanCollection(ctx context.Context, req entities.CleanupRequest) (*entities.CleanupResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return uc.runPlan(ctx, []entities.JobSpec{uc.plans.CollectionJob(req)})
}

// CleanNotifications удаляет старые уведомления и, по запросу, проекты с зависимыми документами
func (uc *cleanerUseCase) CleanNotifications(ctx context.Context, req entities.NotificationsCleanupRequest) (*entities.CleanupResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return uc.runPlan(ctx, uc.notificationSpecs(req))
}

func (uc *cleanerUseCase) notificationSpecs(req entities.NotificationsCleanupRequest) []entities.JobSpec {
	specs := []entities.JobSpec{uc.plans.NotificationsJob(req.BeforeDate, req.BatchSize, req.DryRun)}
	if req.IncludeProjects {
		specs = append(specs, uc.plans.ProjectsJob(req.BeforeDate, req.BatchSize, req.DryRun))
	}
	return specs
}

// runPlan выполняет задачи последовательно; первая ошибка останавливает план
func (uc *cleanerUseCase) runPlan(ctx context.Context, specs []entities.JobSpec, subs ...ports.ProgressSubscriber) (*entities.CleanupResult, error) {
	startTime := time.Now()
	result := &entities.CleanupResult{
		Status:   entities.StatusInProgress,
		Counters: make(map[string]entities.CollectionCounters),
	}

	// Проверяем все задачи до начала удаления
	jobs := make([]*DeletionJob, 0, len(specs))
	for _, spec := range specs {
		job, err := NewDeletionJob(uc.store, spec,
			WithJobLogger(uc.logger),
			WithProgress(uc.subscribers...),
			WithProgress(subs...))
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	for _, job := range jobs {
		report, err := job.Run(ctx)
		if report != nil {
			result.Jobs = append(result.Jobs, *report)
			mergeCounters(result, report.Counters)
		}

		if err != nil {
			result.Status = entities.StatusFailed
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				result.Status = entities.StatusCanceled
			}
			result.ErrorMessage = err.Error()
			result.ElapsedTime = time.Since(startTime)
			return result, fmt.Errorf("batch deletion failed: %w", err)
		}
	}

	result.Status = entities.StatusCompleted
	if planIsDryRun(specs) {
		result.Status = entities.StatusDryRun
	}
	result.ElapsedTime = time.Since(startTime)

	uc.logger.Info("Cleanup completed",
		zap.Int("jobs", len(result.Jobs)),
		zap.Int("total_deleted", result.RecordsDeleted),
		zap.Duration("duration", result.ElapsedTime))

	return result, nil
}

func planIsDryRun(specs []entities.JobSpec) bool {
	for _, spec := range specs {
		if !spec.DryRun {
			return false
		}
	}
	return len(specs) > 0
}

func mergeCounters(result *entities.CleanupResult, counters map[string]entities.CollectionCounters) {
	for collection, c := range counters {
		total := result.Counters[collection]
		total.Found += c.Found
		total.Deleted += c.Deleted
		result.Counters[collection] = total
		result.RecordsDeleted += c.Deleted
	}
}

// StartAsyncCleanup запускает асинхронную очистку и возвращает идентификатор задачи
func (uc *cleanerUseCase) StartAsyncCleanup(ctx context.Context, req entities.CleanupRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	return uc.startAsync(ctx, []entities.JobSpec{uc.plans.CollectionJob(req)})
}

// StartAsyncNotificationsCleanup запускает асинхронную очистку уведомлений
func (uc *cleanerUseCase) StartAsyncNotificationsCleanup(ctx context.Context, req entities.NotificationsCleanupRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	return uc.startAsync(ctx, uc.notificationSpecs(req))
}

func (uc *cleanerUseCase) startAsync(ctx context.Context, specs []entities.JobSpec) (string, error) {
	// Проверяем описание задач синхронно, чтобы вернуть ошибку клиенту сразу
	for _, spec := range specs {
		if _, err := NewDeletionJob(uc.store, spec); err != nil {
			return "", err
		}
	}

	// Генерируем уникальный ID для задачи
	taskID := uuid.New().String()

	live := newLiveResult(taskID)
	if err := uc.tasks.Save(ctx, live.snapshot()); err != nil {
		return "", fmt.Errorf("save task: %w", err)
	}

	// Новый контекст: задача переживает HTTP-запрос
	cleanupCtx, cancel := context.WithTimeout(context.Background(), uc.asyncTimeout)

	uc.wg.Add(1)
	go func() {
		defer uc.wg.Done()
		defer cancel()

		// Снимки пишет отдельная горутина: медленное хранилище задач не тормозит удаление.
		// dirty с буфером 1 схлопывает события, пришедшие во время записи.
		dirty := make(chan struct{}, 1)
		markDirty := func() {
			select {
			case dirty <- struct{}{}:
			default:
			}
		}

		done := make(chan struct{})
		persisted := make(chan struct{})
		go func() {
			defer close(persisted)
			uc.persistProgress(cleanupCtx, live, dirty, done)
		}()

		live.setStatus(entities.StatusInProgress)
		markDirty()

		publisher := ports.ProgressFunc(func(event entities.ProgressEvent) {
			live.apply(event)
			markDirty()
		})

		result, err := uc.runPlan(cleanupCtx, specs, publisher)

		// Итог не должен перезаписаться промежуточным снимком
		close(done)
		<-persisted

		if err != nil {
			uc.logger.Error("Async cleanup failed",
				zap.String("task_id", taskID),
				zap.Error(err))
		}

		if result == nil {
			result = live.snapshot()
			result.Status = entities.StatusFailed
			result.ErrorMessage = err.Error()
		}
		result.TaskID = taskID

		// Итог сохраняем с отдельным контекстом: cleanupCtx может быть уже отменен
		saveCtx, saveCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer saveCancel()
		uc.saveTask(saveCtx, result)
	}()

	return taskID, nil
}

// persistProgress сохраняет текущий снимок задачи после каждой отметки dirty до закрытия done
func (uc *cleanerUseCase) persistProgress(ctx context.Context, live *liveResult, dirty <-chan struct{}, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-dirty:
			uc.saveTask(ctx, live.snapshot())
		}
	}
}

func (uc *cleanerUseCase) saveTask(ctx context.Context, result *entities.CleanupResult) {
	if err := uc.tasks.Save(ctx, result); err != nil {
		uc.logger.Warn("Failed to save task state",
			zap.String("task_id", result.TaskID),
			zap.Error(err))
	}
}

// GetCleanupStatus возвращает статус операции очистки по идентификатору
func (uc *cleanerUseCase) GetCleanupStatus(ctx context.Context, taskID string) (*entities.CleanupResult, error) {
	result, err := uc.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("task with ID %s: %w", taskID, err)
	}
	return result, nil
}

// Wait блокирует до завершения всех асинхронных задач
func (uc *cleanerUseCase) Wait() {
	uc.wg.Wait()
}

// liveResult собирает счетчики асинхронной задачи из событий прогресса
type liveResult struct {
	mu     sync.Mutex
	taskID string
	status string
	start  time.Time
	jobs   map[string]map[string]entities.CollectionCounters
}

func newLiveResult(taskID string) *liveResult {
	return &liveResult{
		taskID: taskID,
		status: entities.StatusPending,
		start:  time.Now(),
		jobs:   make(map[string]map[string]entities.CollectionCounters),
	}
}

func (l *liveResult) setStatus(status string) {
	l.mu.Lock()
	l.status = status
	l.mu.Unlock()
}

func (l *liveResult) apply(event entities.ProgressEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	counters, ok := l.jobs[event.JobID]
	if !ok {
		counters = make(map[string]entities.CollectionCounters)
		l.jobs[event.JobID] = counters
	}
	counters[event.Collection] = entities.CollectionCounters{Found: event.Found, Deleted: event.Deleted}
}

func (l *liveResult) snapshot() *entities.CleanupResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	result := &entities.CleanupResult{
		TaskID:      l.taskID,
		Status:      l.status,
		Counters:    make(map[string]entities.CollectionCounters),
		ElapsedTime: time.Since(l.start),
	}
	for _, counters := range l.jobs {
		mergeCounters(result, counters)
	}
	return result
}
