package entities

import (
	"fmt"
	"time"
)

// MaxBatchCapacity - предел хранилища на число операций в одной атомарной записи
const MaxBatchCapacity = 500

// OpKind - тип операции записи
type OpKind string

const (
	OpDelete OpKind = "delete"
	OpUpdate OpKind = "update"
)

// WriteOp - одна операция в пакете записи
type WriteOp struct {
	Kind   OpKind         `json:"kind"`
	Ref    RecordRef      `json:"ref"`
	Fields map[string]any `json:"fields,omitempty"`
}

// DeleteOp создает операцию удаления
func DeleteOp(ref RecordRef) WriteOp {
	return WriteOp{Kind: OpDelete, Ref: ref}
}

// UpdateOp создает операцию слияния полей
func UpdateOp(ref RecordRef, fields map[string]any) WriteOp {
	return WriteOp{Kind: OpUpdate, Ref: ref, Fields: fields}
}

// CascadeRule объявляет связь родитель -> потомок:
// каждый документ ChildCollection, у которого ForeignKeyField равен id родителя,
// удаляется вместе с родителем.
type CascadeRule struct {
	ParentCollection string `json:"parent_collection"`
	ChildCollection  string `json:"child_collection"`
	ForeignKeyField  string `json:"foreign_key_field"`
}

func (r CascadeRule) String() string {
	return fmt.Sprintf("%s -> %s.%s", r.ParentCollection, r.ChildCollection, r.ForeignKeyField)
}

// JobSpec описывает один запуск массового удаления
type JobSpec struct {
	Collection    string
	Predicate     Predicate
	Cascades      []CascadeRule
	BatchCapacity int
	DryRun        bool
	// StrictCascade прерывает задачу при первой ошибке поиска потомков
	StrictCascade bool
}

// JobState - состояние задачи удаления
type JobState string

const (
	JobIdle      JobState = "idle"
	JobQuerying  JobState = "querying"
	JobDeleting  JobState = "deleting"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
	// JobDryRun завершает пробный прогон: Found посчитан, Deleted остается 0
	JobDryRun JobState = "dry_run"
)

// Terminal возвращает true для конечных состояний
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobDryRun
}

// CollectionCounters - счетчики по одной коллекции
type CollectionCounters struct {
	Found   int `json:"found"`
	Deleted int `json:"deleted"`
}

// CascadeFailure фиксирует неудачный поиск потомков для родителя
type CascadeFailure struct {
	Parent  RecordRef   `json:"parent"`
	Rule    CascadeRule `json:"rule"`
	Message string      `json:"message"`
}

// JobReport - итоговый отчет задачи удаления.
// В состоянии completed Deleted равен Found по каждой коллекции;
// пробный прогон завершается состоянием dry_run, где Deleted всегда 0.
type JobReport struct {
	JobID           string                        `json:"job_id"`
	Collection      string                        `json:"collection"`
	Predicate       string                        `json:"predicate"`
	State           JobState                      `json:"state"`
	DryRun          bool                          `json:"dry_run,omitempty"`
	Counters        map[string]CollectionCounters `json:"counters"`
	Commits         int                           `json:"commits"`
	CascadeFailures []CascadeFailure              `json:"cascade_failures,omitempty"`
	ErrorMessage    string                        `json:"error_message,omitempty"`
	StartedAt       time.Time                     `json:"started_at"`
	ElapsedTime     time.Duration                 `json:"elapsed_time"`
}

// Phase - фаза, о которой сообщает событие прогресса
type Phase string

const (
	PhaseFound     Phase = "found"
	PhaseCommitted Phase = "committed"
	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
	PhaseDryRun    Phase = "dry_run"
)

// ProgressEvent - структурированное событие прогресса задачи
type ProgressEvent struct {
	JobID      string    `json:"job_id"`
	Collection string    `json:"collection"`
	Phase      Phase     `json:"phase"`
	Found      int       `json:"found"`
	Deleted    int       `json:"deleted"`
	At         time.Time `json:"at"`
}
