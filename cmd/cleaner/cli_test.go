package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"remoteworks-cleaner/internal/app"
	"remoteworks-cleaner/internal/models/entities"
	"remoteworks-cleaner/internal/models/ports"
	"remoteworks-cleaner/internal/pkg/config"
	"remoteworks-cleaner/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var cutoff = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func testDeps(t *testing.T, store *memory.Store) deps {
	t.Helper()
	t.Setenv("DATASTORE_BACKEND", config.BackendMemory)

	return deps{
		loadConfig: config.LoadConfig,
		newLogger:  func(bool) (*zap.Logger, error) { return zap.NewNop(), nil },
		openApp: func(_ context.Context, cfg *config.Config, logger *zap.Logger, subs ...ports.ProgressSubscriber) (*app.App, error) {
			return app.NewWithStore(store, memory.NewTaskStore(time.Hour), cfg, logger, subs...), nil
		},
	}
}

func execute(t *testing.T, d deps, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd(d)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func seedMarketplace(store *memory.Store) {
	old := map[string]any{"createdAt": cutoff.Add(-time.Hour)}
	fresh := map[string]any{"createdAt": cutoff.Add(time.Hour)}

	store.Put(entities.Record{Collection: "notifications", ID: "n1", Fields: old})
	store.Put(entities.Record{Collection: "notifications", ID: "n2", Fields: old})
	store.Put(entities.Record{Collection: "notifications", ID: "n3", Fields: fresh})
	store.Put(entities.Record{Collection: "candidate_projects", ID: "p1", Fields: old})
	store.Put(entities.Record{Collection: "project_updates", ID: "u1", Fields: map[string]any{"projectId": "p1"}})
	store.Put(entities.Record{Collection: "project_actions", ID: "a1", Fields: map[string]any{"projectId": "p1"}})
	store.Put(entities.Record{Collection: "users", ID: "user-1", Fields: map[string]any{"email": "ops@remote.works", "role": "member"}})
}

func TestNotificationsCmd(t *testing.T) {
	store := memory.NewStore()
	seedMarketplace(store)

	out, err := execute(t, testDeps(t, store), "notifications", "--before", "2024-01-01")
	require.NoError(t, err)

	assert.Contains(t, out, "Deleting notifications created before 2024-01-01T00:00:00Z")
	assert.Contains(t, out, "[notifications] found 2")
	assert.Contains(t, out, "[notifications] done: 2 deleted")
	assert.Contains(t, out, "Status: completed")
	assert.Equal(t, 1, store.Count("notifications"))
	assert.Equal(t, 1, store.Count("candidate_projects"))
}

func TestNotificationsCmd_WithProjects(t *testing.T) {
	store := memory.NewStore()
	seedMarketplace(store)

	out, err := execute(t, testDeps(t, store), "notifications", "--before", "2024-01-01T00:00:00Z", "--with-projects")
	require.NoError(t, err)

	assert.Contains(t, out, "[candidate_projects] done: 1 deleted")
	assert.Contains(t, out, "[project_updates] done: 1 deleted")
	assert.Contains(t, out, "Deleted 5 documents")
	assert.Equal(t, 0, store.Count("candidate_projects"))
	assert.Equal(t, 0, store.Count("project_actions"))
}

func TestNotificationsCmd_DryRun(t *testing.T) {
	store := memory.NewStore()
	seedMarketplace(store)

	out, err := execute(t, testDeps(t, store), "notifications", "--before", "2024-01-01", "--dry-run")
	require.NoError(t, err)

	assert.Contains(t, out, "[notifications] dry run: 2 would be deleted")
	assert.Contains(t, out, "Status: dry_run")
	assert.Contains(t, out, "Dry run: nothing was deleted")
	assert.NotContains(t, out, "Status: completed")
	assert.Equal(t, 3, store.Count("notifications"))
}

func TestNotificationsCmd_CutoffFromEnvironment(t *testing.T) {
	store := memory.NewStore()
	seedMarketplace(store)
	d := testDeps(t, store)

	_, err := execute(t, d, "notifications")
	assert.ErrorIs(t, err, errNoCutoff)
	assert.Equal(t, 3, store.Count("notifications"))

	t.Setenv("CLEANUP_CUTOFF", "2024-01-01")
	_, err = execute(t, d, "notifications")
	require.NoError(t, err)
	assert.Equal(t, 1, store.Count("notifications"))
}

func TestNotificationsCmd_InvalidFlags(t *testing.T) {
	store := memory.NewStore()
	seedMarketplace(store)

	_, err := execute(t, testDeps(t, store), "notifications", "--before", "yesterday")
	assert.ErrorContains(t, err, "invalid --before")

	_, err = execute(t, testDeps(t, store), "notifications", "--before", "2024-01-01", "--batch-size", "501")
	assert.ErrorIs(t, err, entities.ErrBatchSizeTooLarge)
	assert.Equal(t, 3, store.Count("notifications"))
}

func TestCollectionCmd_WithCascade(t *testing.T) {
	store := memory.NewStore()
	seedMarketplace(store)

	out, err := execute(t, testDeps(t, store), "collection", "candidate_projects",
		"--before", "2024-01-01",
		"--cascade", "project_updates:projectId",
		"--batch-size", "1")
	require.NoError(t, err)

	assert.Contains(t, out, "Deleted 2 documents")
	assert.Equal(t, 0, store.Count("project_updates"))
	assert.Equal(t, 1, store.Count("project_actions"))
	assert.Equal(t, []int{1, 1}, store.CommitSizes())
}

func TestCollectionCmd_Args(t *testing.T) {
	store := memory.NewStore()

	_, err := execute(t, testDeps(t, store), "collection", "--before", "2024-01-01")
	assert.Error(t, err)

	_, err = execute(t, testDeps(t, store), "collection", "candidate_projects", "--before", "2024-01-01", "--cascade", "project_updates")
	assert.ErrorContains(t, err, "invalid --cascade")
}

func TestSetAdminRoleCmd(t *testing.T) {
	store := memory.NewStore()
	seedMarketplace(store)

	out, err := execute(t, testDeps(t, store), "set-admin-role", "ops@remote.works")
	require.NoError(t, err)
	assert.Contains(t, out, `Role before:   "member"`)
	assert.Contains(t, out, `Role after:    "admin"`)

	rec, err := store.Get(context.Background(), entities.RecordRef{Collection: "users", ID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, "admin", rec.Fields["role"])
	assert.Equal(t, "ops@remote.works", rec.Fields["email"])
}

func TestSetAdminRoleCmd_NoUser(t *testing.T) {
	store := memory.NewStore()
	seedMarketplace(store)

	_, err := execute(t, testDeps(t, store), "set-admin-role", "nobody@remote.works")
	assert.EqualError(t, err, "No user found")

	rec, err := store.Get(context.Background(), entities.RecordRef{Collection: "users", ID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, "member", rec.Fields["role"])
}

func TestParseCascades(t *testing.T) {
	rules, err := parseCascades("candidate_projects", []string{"project_updates:projectId", "comments:updateId:project_updates"})
	require.NoError(t, err)
	assert.Equal(t, []entities.CascadeRule{
		{ParentCollection: "candidate_projects", ChildCollection: "project_updates", ForeignKeyField: "projectId"},
		{ParentCollection: "project_updates", ChildCollection: "comments", ForeignKeyField: "updateId"},
	}, rules)

	for _, bad := range []string{"", "child", ":fk", "a:b:c:d"} {
		_, err := parseCascades("c", []string{bad})
		assert.Error(t, err, bad)
	}
}
