package entities

import "fmt"

// QueryError - выборка по предикату не выполнена, задача прерывается до удаления
type QueryError struct {
	Collection string
	Predicate  Predicate
	Err        error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s where %s: %v", e.Collection, e.Predicate, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// CommitError - пакет отклонен хранилищем; ранее зафиксированные пакеты остаются примененными
type CommitError struct {
	Batch int
	Size  int
	Err   error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit batch #%d (%d ops): %v", e.Batch, e.Size, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// CascadeError - ошибка поиска потомков для родительского документа
type CascadeError struct {
	Parent RecordRef
	Rule   CascadeRule
	Err    error
}

func (e *CascadeError) Error() string {
	return fmt.Sprintf("cascade %s for %s: %v", e.Rule, e.Parent, e.Err)
}

func (e *CascadeError) Unwrap() error { return e.Err }
