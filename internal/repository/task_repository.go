package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"recurring-planner/internal/model"
)

// taskRepo handles tasks: templates, one-off tasks and materialized instances.
type taskRepo struct {
	db *gorm.DB
}

var _ TaskStore = (*taskRepo)(nil)

func (r *taskRepo) FindByID(ctx context.Context, id string) (model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Unscoped().Where("id = ?", id).First(&task).Error; err != nil {
		return model.Task{}, fmt.Errorf("find task %s: %w", id, translate(err))
	}
	return task, nil
}

func (r *taskRepo) FindTemplateByID(ctx context.Context, id string) (model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&task).Error; err != nil {
		return model.Task{}, fmt.Errorf("find template %s: %w", id, translate(err))
	}
	if !task.IsTemplate() {
		return model.Task{}, fmt.Errorf("find template %s: not a template: %w", id, ErrNotFound)
	}
	return task, nil
}

func (r *taskRepo) FindInstanceByParentAndDate(ctx context.Context, templateID string, date model.Date) (model.Task, error) {
	return r.findInstance(r.db.WithContext(ctx), templateID, date)
}

func (r *taskRepo) FindAnyInstanceByParentAndDate(ctx context.Context, templateID string, date model.Date) (model.Task, error) {
	return r.findInstance(r.db.WithContext(ctx).Unscoped(), templateID, date)
}

func (r *taskRepo) findInstance(db *gorm.DB, templateID string, date model.Date) (model.Task, error) {
	var task model.Task
	err := db.Where("parent_template_id = ? AND date = ?", templateID, date).First(&task).Error
	if err != nil {
		return model.Task{}, fmt.Errorf("find instance %s@%s: %w", templateID, date, translate(err))
	}
	return task, nil
}

func (r *taskRepo) ListByOwnerAndDate(ctx context.Context, userID uint, date model.Date) ([]model.Task, error) {
	return r.ListByOwnerAndDateRange(ctx, userID, date, date)
}

func (r *taskRepo) ListByOwnerAndDateRange(ctx context.Context, userID uint, start, end model.Date) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where(
			"((parent_template_id IS NULL AND repeat_rule <> '' AND date <= ? AND (repeat_end_date IS NULL OR repeat_end_date >= ?))"+
				" OR ((parent_template_id IS NOT NULL OR repeat_rule = '') AND date >= ? AND date <= ?))",
			end, start, start, end,
		).
		Order("date ASC, priority DESC, title ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("list tasks %s..%s: %w", start, end, err)
	}
	return tasks, nil
}

func (r *taskRepo) ListOccurrenceKeys(ctx context.Context, userID uint, start, end model.Date) (map[OccurrenceKey]bool, error) {
	var rows []struct {
		ParentTemplateID string
		Date             model.Date
	}
	err := r.db.WithContext(ctx).Unscoped().
		Model(&model.Task{}).
		Select("parent_template_id", "date").
		Where("user_id = ? AND parent_template_id IS NOT NULL AND date >= ? AND date <= ?", userID, start, end).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list occurrence keys %s..%s: %w", start, end, err)
	}
	keys := make(map[OccurrenceKey]bool, len(rows))
	for _, row := range rows {
		keys[OccurrenceKey{TemplateID: row.ParentTemplateID, Date: row.Date}] = true
	}
	return keys, nil
}

func (r *taskRepo) ListInstancesFrom(ctx context.Context, templateID string, from model.Date) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("parent_template_id = ? AND date >= ?", templateID, from).
		Order("date ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("list instances of %s from %s: %w", templateID, from, err)
	}
	return tasks, nil
}

func (r *taskRepo) Insert(ctx context.Context, task model.Task) error {
	if err := r.db.WithContext(ctx).Create(&task).Error; err != nil {
		return fmt.Errorf("create task: %w", translate(err))
	}
	return nil
}

// Update writes every mutable column of task, including its soft-delete marker.
func (r *taskRepo) Update(ctx context.Context, task model.Task) error {
	res := r.db.WithContext(ctx).Unscoped().
		Model(&model.Task{}).
		Where("id = ?", task.ID).
		Updates(map[string]any{
			"title":              task.Title,
			"priority":           task.Priority,
			"date":               task.Date,
			"is_completed":       task.IsCompleted,
			"completed_at":       task.CompletedAt,
			"repeat_rule":        task.RepeatRule,
			"repeat_end_date":    task.RepeatEndDate,
			"is_occurrence":      task.IsOccurrence,
			"parent_template_id": task.ParentTemplateID,
			"updated_at":         task.UpdatedAt,
			"deleted_at":         task.DeletedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("update task %s: %w", task.ID, translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update task %s: %w", task.ID, ErrNotFound)
	}
	return nil
}
