package entities

import (
	"fmt"
	"time"
)

// RecordRef однозначно указывает на документ в коллекции
type RecordRef struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

func (r RecordRef) String() string {
	return r.Collection + "/" + r.ID
}

// Record представляет документ хранилища
type Record struct {
	Collection string         `json:"collection"`
	ID         string         `json:"id"`
	Fields     map[string]any `json:"fields"`
}

// Ref возвращает ссылку на документ
func (r Record) Ref() RecordRef {
	return RecordRef{Collection: r.Collection, ID: r.ID}
}

// Operator - оператор сравнения в предикате
type Operator string

const (
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpEqual        Operator = "=="
	OpGreaterEqual Operator = ">="
	OpGreater      Operator = ">"
)

// Valid проверяет, поддерживается ли оператор
func (o Operator) Valid() bool {
	switch o {
	case OpLess, OpLessEqual, OpEqual, OpGreaterEqual, OpGreater:
		return true
	}
	return false
}

// Predicate описывает условие выборки документов (field, operator, value)
type Predicate struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

// Before строит предикат "поле меньше отсечки"
func Before(field string, cutoff time.Time) Predicate {
	return Predicate{Field: field, Operator: OpLess, Value: cutoff}
}

// Equals строит предикат на равенство
func Equals(field string, value any) Predicate {
	return Predicate{Field: field, Operator: OpEqual, Value: value}
}

func (p Predicate) String() string {
	return fmt.Sprintf("%s %s %v", p.Field, p.Operator, p.Value)
}

// Validate проверяет корректность предиката
func (p Predicate) Validate() error {
	if p.Field == "" {
		return ErrEmptyField
	}
	if !p.Operator.Valid() {
		return NewDomainError(fmt.Sprintf("unsupported operator %q", p.Operator))
	}
	if !isScalar(p.Value) {
		return NewDomainError(fmt.Sprintf("unsupported predicate value type %T", p.Value))
	}
	return nil
}

// Matches вычисляет предикат над полями документа.
// Документ без поля или с полем несравнимого типа не подходит.
func (p Predicate) Matches(fields map[string]any) bool {
	v, ok := fields[p.Field]
	if !ok {
		return false
	}

	c, ok := Compare(v, p.Value)
	if !ok {
		return false
	}

	switch p.Operator {
	case OpEqual:
		return c == 0
	case OpLess:
		return c < 0
	case OpLessEqual:
		return c <= 0
	case OpGreaterEqual:
		return c >= 0
	case OpGreater:
		return c > 0
	}
	return false
}

// Compare сравнивает два скалярных значения одного семейства типов.
// Второй результат false, если значения несравнимы.
func Compare(a, b any) (int, bool) {
	switch av := a.(type) {
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		switch {
		case av.Before(bv):
			return -1, true
		case av.After(bv):
			return 1, true
		}
		return 0, true
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		}
		return 1, true
	}

	af, ok := toFloat(a)
	if !ok {
		return 0, false
	}
	bf, ok := toFloat(b)
	if !ok {
		return 0, false
	}
	switch {
	case af < bf:
		return -1, true
	case af > bf:
		return 1, true
	}
	return 0, true
}

func isScalar(v any) bool {
	switch v.(type) {
	case time.Time, string, bool:
		return true
	}
	_, ok := toFloat(v)
	return ok
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
