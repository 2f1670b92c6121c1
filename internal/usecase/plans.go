package usecase

import (
	"time"

	"remoteworks-cleaner/internal/models/entities"
)

// Plans описывает коллекции маркетплейса, которые чистит сервис
type Plans struct {
	TimestampField    string
	Notifications     string
	Projects          string
	ProjectUpdates    string
	ProjectActions    string
	ProjectForeignKey string
	StrictCascade     bool
}

// DefaultPlans возвращает имена коллекций по умолчанию
func DefaultPlans() Plans {
	return Plans{
		TimestampField:    entities.DefaultTimestampField,
		Notifications:     "notifications",
		Projects:          "candidate_projects",
		ProjectUpdates:    "project_updates",
		ProjectActions:    "project_actions",
		ProjectForeignKey: "projectId",
	}
}

// NotificationsJob - удаление уведомлений старше отсечки
func (p Plans) NotificationsJob(before time.Time, batchSize int, dryRun bool) entities.JobSpec {
	return entities.JobSpec{
		Collection:    p.Notifications,
		Predicate:     entities.Before(p.TimestampField, before),
		BatchCapacity: batchSize,
		DryRun:        dryRun,
	}
}

// ProjectsJob - удаление проектов старше отсечки вместе с обновлениями и действиями
func (p Plans) ProjectsJob(before time.Time, batchSize int, dryRun bool) entities.JobSpec {
	return entities.JobSpec{
		Collection: p.Projects,
		Predicate:  entities.Before(p.TimestampField, before),
		Cascades: []entities.CascadeRule{
			{ParentCollection: p.Projects, ChildCollection: p.ProjectUpdates, ForeignKeyField: p.ProjectForeignKey},
			{ParentCollection: p.Projects, ChildCollection: p.ProjectActions, ForeignKeyField: p.ProjectForeignKey},
		},
		BatchCapacity: batchSize,
		DryRun:        dryRun,
		StrictCascade: p.StrictCascade,
	}
}

// CollectionJob строит задачу по произвольному запросу очистки
func (p Plans) CollectionJob(req entities.CleanupRequest) entities.JobSpec {
	field := req.TimestampField
	if field == "" {
		field = p.TimestampField
	}

	cascades := make([]entities.CascadeRule, 0, len(req.Cascades))
	for _, rule := range req.Cascades {
		if rule.ParentCollection == "" {
			rule.ParentCollection = req.Collection
		}
		cascades = append(cascades, rule)
	}

	return entities.JobSpec{
		Collection:    req.Collection,
		Predicate:     entities.Before(field, req.BeforeDate),
		Cascades:      cascades,
		BatchCapacity: req.BatchSize,
		DryRun:        req.DryRun,
		StrictCascade: req.StrictCascade || p.StrictCascade,
	}
}
