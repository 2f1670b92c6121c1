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

// ErrJobAlreadyStarted возвращается при повторном запуске задачи
var ErrJobAlreadyStarted = errors.New("deletion job already started")

// DeletionJob - однократный запуск массового удаления по предикату.
// Состояния: idle -> querying -> deleting -> completed | failed; пробный прогон завершается в dry_run.
type DeletionJob struct {
	id       string
	spec     entities.JobSpec
	store    ports.Datastore
	query    *QueryResolver
	cascades *CascadeResolver
	reporter *ProgressReporter
	logger   *zap.Logger

	mu       sync.RWMutex
	state    entities.JobState
	commits  int
	failures []entities.CascadeFailure
}

// JobOption настраивает задачу удаления
type JobOption func(*DeletionJob)

// WithJobID задает идентификатор задачи
func WithJobID(id string) JobOption {
	return func(j *DeletionJob) { j.id = id }
}

// WithJobLogger задает логгер задачи
func WithJobLogger(logger *zap.Logger) JobOption {
	return func(j *DeletionJob) { j.logger = logger }
}

// WithProgress подписывает получателей событий прогресса
func WithProgress(subs ...ports.ProgressSubscriber) JobOption {
	return func(j *DeletionJob) {
		for _, sub := range subs {
			j.reporter.Subscribe(sub)
		}
	}
}

// NewDeletionJob проверяет описание задачи и правила каскада и создает задачу
func NewDeletionJob(store ports.Datastore, spec entities.JobSpec, opts ...JobOption) (*DeletionJob, error) {
	if store == nil {
		return nil, errors.New("datastore is required")
	}
	if spec.Collection == "" {
		return nil, entities.ErrEmptyCollection
	}
	if err := spec.Predicate.Validate(); err != nil {
		return nil, err
	}
	if spec.BatchCapacity <= 0 {
		spec.BatchCapacity = entities.MaxBatchCapacity
	}
	if spec.BatchCapacity > entities.MaxBatchCapacity {
		return nil, entities.ErrBatchSizeTooLarge
	}

	j := &DeletionJob{
		id:       uuid.New().String(),
		spec:     spec,
		store:    store,
		logger:   zap.NewNop(),
		reporter: NewProgressReporter(""),
		state:    entities.JobIdle,
	}
	for _, opt := range opts {
		opt(j)
	}
	j.reporter.jobID = j.id
	j.logger = j.logger.With(zap.String("job_id", j.id), zap.String("collection", spec.Collection))

	cascades, err := NewCascadeResolver(store, spec.Collection, spec.Cascades, j.logger)
	if err != nil {
		return nil, err
	}
	j.cascades = cascades
	j.query = NewQueryResolver(store, j.logger)

	return j, nil
}

// ID возвращает идентификатор задачи
func (j *DeletionJob) ID() string {
	return j.id
}

// State возвращает текущее состояние
func (j *DeletionJob) State() entities.JobState {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state
}

// Progress возвращает репортер прогресса задачи
func (j *DeletionJob) Progress() *ProgressReporter {
	return j.reporter
}

// Run выполняет задачу до завершения. Отчет возвращается и при ошибке.
func (j *DeletionJob) Run(ctx context.Context) (*entities.JobReport, error) {
	j.mu.Lock()
	if j.state != entities.JobIdle {
		j.mu.Unlock()
		return nil, ErrJobAlreadyStarted
	}
	j.state = entities.JobQuerying
	j.mu.Unlock()

	startTime := time.Now()
	j.logger.Info("Starting deletion job",
		zap.Stringer("predicate", j.spec.Predicate),
		zap.Int("batch_size", j.spec.BatchCapacity),
		zap.Int("cascade_rules", len(j.spec.Cascades)),
		zap.Bool("dry_run", j.spec.DryRun))

	j.reporter.Track(j.spec.Collection)
	for _, collection := range j.cascades.Collections() {
		j.reporter.Track(collection)
	}

	records, err := j.query.Resolve(ctx, j.spec.Collection, j.spec.Predicate)
	if err != nil {
		return j.fail(startTime, err)
	}
	j.reporter.AddFound(j.spec.Collection, len(records))

	if len(records) == 0 {
		j.logger.Info("Nothing to delete")
		return j.complete(startTime)
	}

	j.setState(entities.JobDeleting)

	writer, err := NewBatchWriter(j.store, j.spec.BatchCapacity, j.onCommit, j.logger)
	if err != nil {
		return j.fail(startTime, err)
	}

	seen := make(map[entities.RecordRef]struct{}, len(records))
	for _, rec := range records {
		seen[rec.Ref()] = struct{}{}
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return j.fail(startTime, err)
		}

		children, failures := j.cascades.Children(ctx, rec)
		if len(failures) > 0 {
			j.recordFailures(failures)
			if j.spec.StrictCascade {
				return j.fail(startTime, failures[0])
			}
		}

		found := map[string]int{}
		var queue []entities.Record
		for _, child := range children {
			if _, dup := seen[child.Ref()]; dup {
				continue
			}
			seen[child.Ref()] = struct{}{}
			found[child.Collection]++
			queue = append(queue, child)
		}
		for collection, n := range found {
			j.reporter.AddFound(collection, n)
		}

		if j.spec.DryRun {
			continue
		}

		queue = append(queue, rec)
		for _, r := range queue {
			if err := writer.Add(ctx, entities.DeleteOp(r.Ref())); err != nil {
				return j.fail(startTime, err)
			}
		}
	}

	if err := writer.Flush(ctx); err != nil {
		return j.fail(startTime, err)
	}

	return j.complete(startTime)
}

func (j *DeletionJob) onCommit(batch int, ops []entities.WriteOp) error {
	perCollection := map[string]int{}
	for _, op := range ops {
		perCollection[op.Ref.Collection]++
	}
	for collection, n := range perCollection {
		if err := j.reporter.AddDeleted(collection, n); err != nil {
			return err
		}
	}

	j.mu.Lock()
	j.commits = batch
	j.mu.Unlock()

	j.logger.Info("Batch deleted",
		zap.Int("batch", batch),
		zap.Int("deleted_count", len(ops)))
	return nil
}

func (j *DeletionJob) recordFailures(failures []*entities.CascadeError) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, f := range failures {
		j.failures = append(j.failures, entities.CascadeFailure{
			Parent:  f.Parent,
			Rule:    f.Rule,
			Message: f.Err.Error(),
		})
	}
}

func (j *DeletionJob) setState(state entities.JobState) {
	j.mu.Lock()
	j.state = state
	j.mu.Unlock()
}

func (j *DeletionJob) complete(startTime time.Time) (*entities.JobReport, error) {
	state := entities.JobCompleted
	if j.spec.DryRun {
		state = entities.JobDryRun
	}
	j.setState(state)
	j.reporter.Finish(state)

	report := j.report(startTime, nil)
	j.logger.Info("Deletion job completed",
		zap.Any("counters", report.Counters),
		zap.Int("commits", report.Commits),
		zap.Int("cascade_failures", len(report.CascadeFailures)),
		zap.Duration("duration", report.ElapsedTime))
	return report, nil
}

func (j *DeletionJob) fail(startTime time.Time, err error) (*entities.JobReport, error) {
	j.setState(entities.JobFailed)
	j.reporter.Finish(entities.JobFailed)

	report := j.report(startTime, err)
	j.logger.Error("Deletion job failed",
		zap.Any("counters", report.Counters),
		zap.Int("commits", report.Commits),
		zap.Error(err))
	return report, fmt.Errorf("deletion job %s: %w", j.id, err)
}

func (j *DeletionJob) report(startTime time.Time, err error) *entities.JobReport {
	j.mu.RLock()
	defer j.mu.RUnlock()

	report := &entities.JobReport{
		JobID:           j.id,
		Collection:      j.spec.Collection,
		Predicate:       j.spec.Predicate.String(),
		State:           j.state,
		DryRun:          j.spec.DryRun,
		Counters:        j.reporter.Snapshot(),
		Commits:         j.commits,
		CascadeFailures: append([]entities.CascadeFailure(nil), j.failures...),
		StartedAt:       startTime,
		ElapsedTime:     time.Since(startTime),
	}
	if err != nil {
		report.ErrorMessage = err.Error()
	}
	return report
}
