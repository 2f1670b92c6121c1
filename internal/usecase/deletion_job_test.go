package usecase

import (
	"context"
	"testing"
	"time"

	"remoteworks-cleaner/internal/models/entities"
	"remoteworks-cleaner/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func notificationsSpec() entities.JobSpec {
	return DefaultPlans().NotificationsJob(cutoff, entities.MaxBatchCapacity, false)
}

func projectsSpec() entities.JobSpec {
	return DefaultPlans().ProjectsJob(cutoff, entities.MaxBatchCapacity, false)
}

func TestDeletionJob_NotificationsInBatches(t *testing.T) {
	store := memory.NewStore()
	seed(store, "notifications", "old", 1200, cutoff.Add(-24*time.Hour), nil)
	seed(store, "notifications", "new", 50, cutoff.Add(time.Hour), nil)

	job, err := NewDeletionJob(store, notificationsSpec(), WithJobLogger(zap.NewNop()))
	require.NoError(t, err)

	report, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, entities.JobCompleted, report.State)
	assert.Equal(t, []int{500, 500, 200}, store.CommitSizes())
	assert.Equal(t, 3, report.Commits)
	assert.Equal(t, entities.CollectionCounters{Found: 1200, Deleted: 1200}, report.Counters["notifications"])
	assert.Equal(t, 50, store.Count("notifications"))
}

func TestDeletionJob_PredicateBoundary(t *testing.T) {
	store := memory.NewStore()
	store.Put(entities.Record{Collection: "notifications", ID: "before", Fields: map[string]any{"createdAt": cutoff.Add(-time.Nanosecond)}})
	store.Put(entities.Record{Collection: "notifications", ID: "equal", Fields: map[string]any{"createdAt": cutoff}})
	store.Put(entities.Record{Collection: "notifications", ID: "after", Fields: map[string]any{"createdAt": cutoff.Add(time.Nanosecond)}})
	store.Put(entities.Record{Collection: "notifications", ID: "no-date", Fields: map[string]any{"title": "x"}})

	job, err := NewDeletionJob(store, notificationsSpec())
	require.NoError(t, err)

	report, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Counters["notifications"].Deleted)

	for _, id := range []string{"equal", "after", "no-date"} {
		_, err := store.Get(context.Background(), entities.RecordRef{Collection: "notifications", ID: id})
		assert.NoError(t, err, id)
	}
}

func TestDeletionJob_CascadesProjectDependents(t *testing.T) {
	store := memory.NewStore()
	store.Put(entities.Record{Collection: "candidate_projects", ID: "old", Fields: map[string]any{"createdAt": cutoff.Add(-time.Hour)}})
	store.Put(entities.Record{Collection: "candidate_projects", ID: "fresh", Fields: map[string]any{"createdAt": cutoff.Add(time.Hour)}})
	seed(store, "project_updates", "old-upd", 3, cutoff, map[string]any{"projectId": "old"})
	seed(store, "project_actions", "old-act", 2, cutoff, map[string]any{"projectId": "old"})
	seed(store, "project_updates", "fresh-upd", 4, cutoff, map[string]any{"projectId": "fresh"})
	seed(store, "project_actions", "fresh-act", 1, cutoff, map[string]any{"projectId": "fresh"})

	job, err := NewDeletionJob(store, projectsSpec())
	require.NoError(t, err)

	report, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, entities.CollectionCounters{Found: 1, Deleted: 1}, report.Counters["candidate_projects"])
	assert.Equal(t, entities.CollectionCounters{Found: 3, Deleted: 3}, report.Counters["project_updates"])
	assert.Equal(t, entities.CollectionCounters{Found: 2, Deleted: 2}, report.Counters["project_actions"])

	assert.Equal(t, 1, store.Count("candidate_projects"))
	assert.Equal(t, 4, store.Count("project_updates"))
	assert.Equal(t, 1, store.Count("project_actions"))
	assert.Equal(t, []int{6}, store.CommitSizes())
}

func TestDeletionJob_CascadeCountsTowardBatchCapacity(t *testing.T) {
	store := memory.NewStore()
	// 100 проектов по 4 потомка: всего 500 операций удаления
	for _, id := range seed(store, "candidate_projects", "p", 100, cutoff.Add(-time.Hour), nil) {
		seed(store, "project_updates", id+"-u", 2, cutoff, map[string]any{"projectId": id})
		seed(store, "project_actions", id+"-a", 2, cutoff, map[string]any{"projectId": id})
	}

	spec := projectsSpec()
	spec.BatchCapacity = 200

	job, err := NewDeletionJob(store, spec)
	require.NoError(t, err)

	report, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{200, 200, 100}, store.CommitSizes())
	for _, c := range report.Counters {
		assert.Equal(t, c.Found, c.Deleted)
	}
	assert.Zero(t, store.Count("project_updates"))
}

func TestDeletionJob_Idempotent(t *testing.T) {
	store := memory.NewStore()
	seed(store, "notifications", "old", 10, cutoff.Add(-time.Hour), nil)

	first, err := NewDeletionJob(store, notificationsSpec())
	require.NoError(t, err)
	_, err = first.Run(context.Background())
	require.NoError(t, err)

	second, err := NewDeletionJob(store, notificationsSpec())
	require.NoError(t, err)
	report, err := second.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, entities.JobCompleted, report.State)
	assert.Equal(t, entities.CollectionCounters{}, report.Counters["notifications"])
	assert.Zero(t, report.Commits)
}

func TestDeletionJob_EmptyResultCompletes(t *testing.T) {
	recorder := &eventRecorder{}
	job, err := NewDeletionJob(memory.NewStore(), projectsSpec(), WithProgress(recorder))
	require.NoError(t, err)

	report, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, entities.JobCompleted, job.State())

	// все затронутые коллекции присутствуют в отчете с нулями
	assert.Len(t, report.Counters, 3)

	events := recorder.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, entities.PhaseCompleted, events[len(events)-1].Phase)
}

func TestDeletionJob_QueryErrorAbortsBeforeDeleting(t *testing.T) {
	store := memory.NewStore()
	store.RequireIndex("notifications", "createdAt")
	seed(store, "notifications", "old", 3, cutoff.Add(-time.Hour), nil)

	job, err := NewDeletionJob(store, notificationsSpec())
	require.NoError(t, err)

	report, err := job.Run(context.Background())
	require.Error(t, err)

	var queryErr *entities.QueryError
	assert.ErrorAs(t, err, &queryErr)
	assert.Equal(t, entities.JobFailed, report.State)
	assert.Equal(t, 3, store.Count("notifications"))
	assert.Empty(t, store.CommitSizes())
}

func TestDeletionJob_CommitFailureKeepsPartialCounters(t *testing.T) {
	store := newFaultyStore()
	store.failCommitAt = 2
	seed(store.Store, "notifications", "old", 1200, cutoff.Add(-time.Hour), nil)

	job, err := NewDeletionJob(store, notificationsSpec())
	require.NoError(t, err)

	report, err := job.Run(context.Background())
	require.Error(t, err)

	var commitErr *entities.CommitError
	require.ErrorAs(t, err, &commitErr)
	assert.Equal(t, 2, commitErr.Batch)

	assert.Equal(t, entities.JobFailed, report.State)
	assert.Equal(t, entities.CollectionCounters{Found: 1200, Deleted: 500}, report.Counters["notifications"])
	assert.Equal(t, 700, store.Count("notifications"))
	assert.NotEmpty(t, report.ErrorMessage)

	// повторный запуск дочищает остаток
	store.failCommitAt = 0
	retry, err := NewDeletionJob(store, notificationsSpec())
	require.NoError(t, err)
	report, err = retry.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, entities.CollectionCounters{Found: 700, Deleted: 700}, report.Counters["notifications"])
}

func TestDeletionJob_CascadeFailureSkipsAndContinues(t *testing.T) {
	store := newFaultyStore()
	store.failQueryFor = "project_updates"
	store.failQueryOnly = "p1"
	store.Put(entities.Record{Collection: "candidate_projects", ID: "p1", Fields: map[string]any{"createdAt": cutoff.Add(-time.Hour)}})
	store.Put(entities.Record{Collection: "candidate_projects", ID: "p2", Fields: map[string]any{"createdAt": cutoff.Add(-time.Hour)}})
	store.Put(entities.Record{Collection: "project_updates", ID: "u1", Fields: map[string]any{"projectId": "p1"}})
	store.Put(entities.Record{Collection: "project_updates", ID: "u2", Fields: map[string]any{"projectId": "p2"}})

	job, err := NewDeletionJob(store, projectsSpec())
	require.NoError(t, err)

	report, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, entities.JobCompleted, report.State)
	require.Len(t, report.CascadeFailures, 1)
	assert.Equal(t, entities.RecordRef{Collection: "candidate_projects", ID: "p1"}, report.CascadeFailures[0].Parent)

	// родитель удален, его потомок осиротел, потомок p2 удален
	assert.Zero(t, store.Count("candidate_projects"))
	_, err = store.Get(context.Background(), entities.RecordRef{Collection: "project_updates", ID: "u1"})
	assert.NoError(t, err)
	assert.Equal(t, 1, store.Count("project_updates"))
}

func TestDeletionJob_StrictCascadeFails(t *testing.T) {
	store := newFaultyStore()
	store.failQueryFor = "project_actions"
	store.Put(entities.Record{Collection: "candidate_projects", ID: "p1", Fields: map[string]any{"createdAt": cutoff.Add(-time.Hour)}})

	spec := projectsSpec()
	spec.StrictCascade = true

	job, err := NewDeletionJob(store, spec)
	require.NoError(t, err)

	report, err := job.Run(context.Background())
	require.Error(t, err)

	var cascadeErr *entities.CascadeError
	assert.ErrorAs(t, err, &cascadeErr)
	assert.Equal(t, entities.JobFailed, report.State)
	assert.Equal(t, 1, store.Count("candidate_projects"))
}

func TestDeletionJob_DryRun(t *testing.T) {
	store := memory.NewStore()
	store.Put(entities.Record{Collection: "candidate_projects", ID: "p1", Fields: map[string]any{"createdAt": cutoff.Add(-time.Hour)}})
	seed(store, "project_updates", "u", 2, cutoff, map[string]any{"projectId": "p1"})

	spec := projectsSpec()
	spec.DryRun = true

	recorder := &eventRecorder{}
	job, err := NewDeletionJob(store, spec, WithProgress(recorder))
	require.NoError(t, err)

	report, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, entities.JobDryRun, report.State)
	assert.True(t, report.State.Terminal())
	events := recorder.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, entities.PhaseDryRun, events[len(events)-1].Phase)
	assert.Equal(t, entities.CollectionCounters{Found: 1}, report.Counters["candidate_projects"])
	assert.Equal(t, entities.CollectionCounters{Found: 2}, report.Counters["project_updates"])
	assert.Empty(t, store.CommitSizes())
	assert.Equal(t, 2, store.Count("project_updates"))
}

func TestDeletionJob_RunOnce(t *testing.T) {
	job, err := NewDeletionJob(memory.NewStore(), notificationsSpec())
	require.NoError(t, err)

	_, err = job.Run(context.Background())
	require.NoError(t, err)

	_, err = job.Run(context.Background())
	assert.ErrorIs(t, err, ErrJobAlreadyStarted)
}

func TestDeletionJob_Canceled(t *testing.T) {
	store := memory.NewStore()
	seed(store, "notifications", "old", 5, cutoff.Add(-time.Hour), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job, err := NewDeletionJob(store, notificationsSpec())
	require.NoError(t, err)

	report, err := job.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, entities.JobFailed, report.State)
	assert.Equal(t, 5, store.Count("notifications"))
}

func TestNewDeletionJob_Validation(t *testing.T) {
	store := memory.NewStore()

	_, err := NewDeletionJob(store, entities.JobSpec{Predicate: entities.Before("createdAt", cutoff)})
	assert.ErrorIs(t, err, entities.ErrEmptyCollection)

	_, err = NewDeletionJob(store, entities.JobSpec{Collection: "c", Predicate: entities.Predicate{Operator: entities.OpLess, Value: cutoff}})
	assert.ErrorIs(t, err, entities.ErrEmptyField)

	spec := notificationsSpec()
	spec.BatchCapacity = 501
	_, err = NewDeletionJob(store, spec)
	assert.ErrorIs(t, err, entities.ErrBatchSizeTooLarge)

	spec = notificationsSpec()
	spec.Cascades = []entities.CascadeRule{{ParentCollection: "users", ChildCollection: "x", ForeignKeyField: "y"}}
	_, err = NewDeletionJob(store, spec)
	assert.Error(t, err)
}

func TestDeletionJob_ProgressMonotonic(t *testing.T) {
	store := memory.NewStore()
	seed(store, "notifications", "old", 1100, cutoff.Add(-time.Hour), nil)
	recorder := &eventRecorder{}

	job, err := NewDeletionJob(store, notificationsSpec(), WithProgress(recorder))
	require.NoError(t, err)
	_, err = job.Run(context.Background())
	require.NoError(t, err)

	var deleted []int
	prev := entities.ProgressEvent{}
	for _, event := range recorder.Events() {
		assert.GreaterOrEqual(t, event.Found, prev.Found)
		assert.GreaterOrEqual(t, event.Deleted, prev.Deleted)
		assert.LessOrEqual(t, event.Deleted, event.Found)
		assert.Equal(t, job.ID(), event.JobID)
		if event.Phase == entities.PhaseCommitted {
			deleted = append(deleted, event.Deleted)
		}
		prev = event
	}
	assert.Equal(t, []int{500, 1000, 1100}, deleted)
}
