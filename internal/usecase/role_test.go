package usecase

import (
	"context"
	"testing"

	"remoteworks-cleaner/internal/models/entities"
	"remoteworks-cleaner/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRoleUseCase_PromotesSingleUser(t *testing.T) {
	store := memory.NewStore()
	store.Put(entities.Record{Collection: "users", ID: "u1", Fields: map[string]any{
		"email": "dev@remote.works",
		"role":  "candidate",
		"name":  "Dev",
	}})
	store.Put(entities.Record{Collection: "users", ID: "u2", Fields: map[string]any{
		"email": "other@remote.works",
		"role":  "candidate",
	}})
	uc := NewRoleUseCase(store, DefaultUserFields(), zap.NewNop())

	result, err := uc.SetUserRole(context.Background(), entities.RoleUpdateRequest{Email: "dev@remote.works"})
	require.NoError(t, err)

	assert.Equal(t, &entities.RoleUpdateResult{
		UserID:       "u1",
		Email:        "dev@remote.works",
		PreviousRole: "candidate",
		CurrentRole:  "admin",
	}, result)

	u1, err := store.Get(context.Background(), entities.RecordRef{Collection: "users", ID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"email": "dev@remote.works", "role": "admin", "name": "Dev"}, u1.Fields)

	u2, err := store.Get(context.Background(), entities.RecordRef{Collection: "users", ID: "u2"})
	require.NoError(t, err)
	assert.Equal(t, "candidate", u2.Fields["role"])
}

func TestRoleUseCase_NoUserLeavesStoreUnchanged(t *testing.T) {
	store := memory.NewStore()
	store.Put(entities.Record{Collection: "users", ID: "u1", Fields: map[string]any{"email": "dev@remote.works", "role": "candidate"}})
	uc := NewRoleUseCase(store, DefaultUserFields(), zap.NewNop())

	_, err := uc.SetUserRole(context.Background(), entities.RoleUpdateRequest{Email: "nobody@remote.works"})
	require.ErrorIs(t, err, entities.ErrUserNotFound)
	assert.Equal(t, "No user found", err.Error())
	assert.Empty(t, store.CommitSizes())
}

func TestRoleUseCase_AmbiguousEmail(t *testing.T) {
	store := memory.NewStore()
	store.Put(entities.Record{Collection: "users", ID: "u1", Fields: map[string]any{"email": "dup@remote.works"}})
	store.Put(entities.Record{Collection: "users", ID: "u2", Fields: map[string]any{"email": "dup@remote.works"}})
	uc := NewRoleUseCase(store, DefaultUserFields(), zap.NewNop())

	_, err := uc.SetUserRole(context.Background(), entities.RoleUpdateRequest{Email: "dup@remote.works"})
	assert.ErrorIs(t, err, entities.ErrAmbiguousUser)
	assert.Empty(t, store.CommitSizes())
}

func TestRoleUseCase_CustomRoleAndValidation(t *testing.T) {
	store := memory.NewStore()
	store.Put(entities.Record{Collection: "accounts", ID: "a1", Fields: map[string]any{"mail": "ops@remote.works"}})
	uc := NewRoleUseCase(store, UserFields{Collection: "accounts", EmailField: "mail", RoleField: "level"}, zap.NewNop())

	result, err := uc.SetUserRole(context.Background(), entities.RoleUpdateRequest{Email: "ops@remote.works", Role: "moderator"})
	require.NoError(t, err)
	assert.Equal(t, "", result.PreviousRole)
	assert.Equal(t, "moderator", result.CurrentRole)

	_, err = uc.SetUserRole(context.Background(), entities.RoleUpdateRequest{Email: "not-an-email"})
	var domainErr entities.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Contains(t, domainErr.Message, "Email")
}
