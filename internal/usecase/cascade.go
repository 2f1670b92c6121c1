package usecase

import (
	"context"
	"fmt"

	"remoteworks-cleaner/internal/models/entities"
	"remoteworks-cleaner/internal/models/ports"

	"go.uber.org/zap"
)

// CascadeResolver находит зависимые документы по объявленным правилам каскада
type CascadeResolver struct {
	store    ports.Datastore
	root     string
	byParent map[string][]entities.CascadeRule
	rules    []entities.CascadeRule
	logger   *zap.Logger
}

// NewCascadeResolver проверяет правила и создает резолвер.
// Каждое правило должно быть достижимо из корневой коллекции, циклы запрещены.
func NewCascadeResolver(store ports.Datastore, root string, rules []entities.CascadeRule, logger *zap.Logger) (*CascadeResolver, error) {
	byParent := make(map[string][]entities.CascadeRule)
	for _, rule := range rules {
		if rule.ParentCollection == "" || rule.ChildCollection == "" || rule.ForeignKeyField == "" {
			return nil, entities.ErrInvalidCascade
		}
		byParent[rule.ParentCollection] = append(byParent[rule.ParentCollection], rule)
	}

	if err := checkCascadeGraph(root, byParent, len(rules)); err != nil {
		return nil, err
	}

	return &CascadeResolver{
		store:    store,
		root:     root,
		byParent: byParent,
		rules:    rules,
		logger:   logger,
	}, nil
}

// checkCascadeGraph обходит граф правил от корня: ищет циклы и недостижимые правила
func checkCascadeGraph(root string, byParent map[string][]entities.CascadeRule, total int) error {
	onPath := map[string]bool{}
	visited := map[string]bool{}
	reached := 0

	var walk func(collection string) error
	walk = func(collection string) error {
		onPath[collection] = true
		defer delete(onPath, collection)

		if visited[collection] {
			return nil
		}
		visited[collection] = true

		for _, rule := range byParent[collection] {
			reached++
			if onPath[rule.ChildCollection] {
				return entities.NewDomainError(fmt.Sprintf("cascade cycle detected at rule %s", rule))
			}
			if err := walk(rule.ChildCollection); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(root); err != nil {
		return err
	}

	if reached != total {
		for parent, rules := range byParent {
			if !visited[parent] {
				return entities.NewDomainError(fmt.Sprintf("cascade rule %s is not reachable from %s", rules[0], root))
			}
		}
	}
	return nil
}

// Rules возвращает правила в порядке объявления
func (c *CascadeResolver) Rules() []entities.CascadeRule {
	return c.rules
}

// Collections возвращает все дочерние коллекции
func (c *CascadeResolver) Collections() []string {
	seen := map[string]bool{}
	var out []string
	for _, rule := range c.rules {
		if !seen[rule.ChildCollection] {
			seen[rule.ChildCollection] = true
			out = append(out, rule.ChildCollection)
		}
	}
	return out
}

// Children возвращает всех потомков документа (рекурсивно), потомки идут раньше своих родителей.
// Ошибка поиска по одному правилу не прерывает остальные и возвращается во втором результате.
func (c *CascadeResolver) Children(ctx context.Context, parent entities.Record) ([]entities.Record, []*entities.CascadeError) {
	var (
		out      []entities.Record
		failures []*entities.CascadeError
	)

	for _, rule := range c.byParent[parent.Collection] {
		children, err := c.store.Query(ctx, rule.ChildCollection, entities.Equals(rule.ForeignKeyField, parent.ID))
		if err != nil {
			c.logger.Warn("Cascade lookup failed",
				zap.String("parent", parent.Ref().String()),
				zap.Stringer("rule", rule),
				zap.Error(err))
			failures = append(failures, &entities.CascadeError{Parent: parent.Ref(), Rule: rule, Err: err})
			continue
		}

		for _, child := range children {
			nested, nestedFailures := c.Children(ctx, child)
			out = append(out, nested...)
			failures = append(failures, nestedFailures...)
			out = append(out, child)
		}
	}

	return out, failures
}
