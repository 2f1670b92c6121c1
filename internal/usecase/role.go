package usecase

import (
	"context"
	"fmt"

	"remoteworks-cleaner/internal/models/entities"
	"remoteworks-cleaner/internal/models/ports"

	"go.uber.org/zap"
)

// UserFields - имена коллекции и полей пользователей
type UserFields struct {
	Collection string
	EmailField string
	RoleField  string
}

// DefaultUserFields возвращает схему коллекции users
func DefaultUserFields() UserFields {
	return UserFields{
		Collection: "users",
		EmailField: "email",
		RoleField:  "role",
	}
}

type roleUseCase struct {
	store  ports.Datastore
	query  *QueryResolver
	users  UserFields
	logger *zap.Logger
}

// NewRoleUseCase создает сервис смены ролей
func NewRoleUseCase(store ports.Datastore, users UserFields, logger *zap.Logger) ports.RoleUseCase {
	return &roleUseCase{
		store:  store,
		query:  NewQueryResolver(store, logger),
		users:  users,
		logger: logger,
	}
}

// SetUserRole находит единственного пользователя по email и меняет только поле роли
func (uc *roleUseCase) SetUserRole(ctx context.Context, req entities.RoleUpdateRequest) (*entities.RoleUpdateResult, error) {
	if req.Role == "" {
		req.Role = entities.DefaultAdminRole
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	users, err := uc.query.Resolve(ctx, uc.users.Collection, entities.Equals(uc.users.EmailField, req.Email))
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	switch len(users) {
	case 0:
		return nil, entities.ErrUserNotFound
	case 1:
	default:
		uc.logger.Warn("Email matches several users",
			zap.String("email", req.Email),
			zap.Int("matches", len(users)))
		return nil, entities.ErrAmbiguousUser
	}

	user := users[0]
	result := &entities.RoleUpdateResult{
		UserID:       user.ID,
		Email:        req.Email,
		PreviousRole: stringField(user.Fields, uc.users.RoleField),
	}

	if err := uc.store.Update(ctx, user.Ref(), map[string]any{uc.users.RoleField: req.Role}); err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}

	// Перечитываем документ, чтобы показать фактическое значение
	updated, err := uc.store.Get(ctx, user.Ref())
	if err != nil {
		return nil, fmt.Errorf("verify role: %w", err)
	}
	result.CurrentRole = stringField(updated.Fields, uc.users.RoleField)

	uc.logger.Info("User role updated",
		zap.String("user_id", result.UserID),
		zap.String("previous_role", result.PreviousRole),
		zap.String("current_role", result.CurrentRole))

	return result, nil
}

func stringField(fields map[string]any, name string) string {
	v, ok := fields[name]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
