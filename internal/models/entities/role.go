package entities

import (
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Роль, которую по умолчанию выдает скрипт администратора
const DefaultAdminRole = "admin"

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// roleName допускает имена вида super_admin, agent-lead, ops.viewer
var roleName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("role", func(fl validator.FieldLevel) bool {
			return roleName.MatchString(fl.Field().String())
		})
	})
	return validate
}

// RoleUpdateRequest - запрос на смену роли пользователя по email
type RoleUpdateRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,max=32,role"`
}

// Validate проверяет корректность запроса
func (r *RoleUpdateRequest) Validate() error {
	if err := getValidator().Struct(r); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			return NewDomainError("invalid " + errs[0].Field() + ": failed on '" + errs[0].Tag() + "'")
		}
		return NewDomainError(err.Error())
	}
	return nil
}

// RoleUpdateResult содержит роль до и после обновления
type RoleUpdateResult struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	PreviousRole string `json:"previous_role"`
	CurrentRole  string `json:"current_role"`
}
