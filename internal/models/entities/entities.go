package entities

import (
	"time"
)

// DefaultTimestampField - поле с датой создания документа
const DefaultTimestampField = "createdAt"

// Статусы операции очистки
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCanceled   = "canceled"
	// StatusDryRun - пробный прогон: найденное посчитано, ничего не удалено
	StatusDryRun = "dry_run"
)

// CleanupRequest представляет запрос на удаление документов одной коллекции
type CleanupRequest struct {
	Collection     string        `json:"collection"`
	TimestampField string        `json:"timestamp_field"`
	BeforeDate     time.Time     `json:"before_date"`
	BatchSize      int           `json:"batch_size"`
	Cascades       []CascadeRule `json:"cascades"`
	DryRun         bool          `json:"dry_run"`
	StrictCascade  bool          `json:"strict_cascade"`
}

// NotificationsCleanupRequest - запрос на очистку уведомлений и, опционально, проектов
type NotificationsCleanupRequest struct {
	BeforeDate      time.Time `json:"before_date"`
	IncludeProjects bool      `json:"include_projects"`
	BatchSize       int       `json:"batch_size"`
	DryRun          bool      `json:"dry_run"`
}

// CleanupResult представляет результат операции удаления
type CleanupResult struct {
	TaskID         string                        `json:"task_id,omitempty"`
	Status         string                        `json:"status"`
	Counters       map[string]CollectionCounters `json:"counters"`
	RecordsDeleted int                           `json:"records_deleted"`
	Jobs           []JobReport                   `json:"jobs"`
	ElapsedTime    time.Duration                 `json:"elapsed_time"`
	ErrorMessage   string                        `json:"error_message,omitempty"`
}

// Clone возвращает независимую копию результата
func (r *CleanupResult) Clone() *CleanupResult {
	c := *r
	c.Counters = make(map[string]CollectionCounters, len(r.Counters))
	for k, v := range r.Counters {
		c.Counters[k] = v
	}
	c.Jobs = append([]JobReport(nil), r.Jobs...)
	return &c
}

// Validate проверяет корректность запроса
func (r *CleanupRequest) Validate() error {
	if r.Collection == "" {
		return ErrEmptyCollection
	}

	if r.BeforeDate.IsZero() {
		return ErrInvalidDate
	}

	if r.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if r.BatchSize > MaxBatchCapacity {
		return ErrBatchSizeTooLarge
	}

	for _, rule := range r.Cascades {
		if rule.ChildCollection == "" || rule.ForeignKeyField == "" {
			return ErrInvalidCascade
		}
	}

	return nil
}

// Validate проверяет корректность запроса
func (r *NotificationsCleanupRequest) Validate() error {
	if r.BeforeDate.IsZero() {
		return ErrInvalidDate
	}

	if r.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if r.BatchSize > MaxBatchCapacity {
		return ErrBatchSizeTooLarge
	}

	return nil
}

// Domain errors
var (
	ErrEmptyCollection   = NewDomainError("collection name cannot be empty")
	ErrEmptyField        = NewDomainError("field name cannot be empty")
	ErrInvalidDate       = NewDomainError("invalid date specified")
	ErrInvalidBatchSize  = NewDomainError("batch size must be positive")
	ErrBatchSizeTooLarge = NewDomainError("batch size exceeds datastore limit of 500")
	ErrInvalidCascade    = NewDomainError("cascade rule requires child collection and foreign key field")
	ErrUserNotFound      = NewDomainError("No user found")
	ErrAmbiguousUser     = NewDomainError("more than one user matches the email")
)

// DomainError представляет ошибку предметной области
type DomainError struct {
	Message string
}

func (e DomainError) Error() string {
	return e.Message
}

func NewDomainError(message string) DomainError {
	return DomainError{Message: message}
}
