package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"recurring-planner/internal/model"
)

type subTaskRepo struct {
	db *gorm.DB
}

var _ SubTaskStore = (*subTaskRepo)(nil)

func (r *subTaskRepo) FindByID(ctx context.Context, id string) (model.SubTask, error) {
	var st model.SubTask
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&st).Error; err != nil {
		return model.SubTask{}, fmt.Errorf("find subtask %s: %w", id, translate(err))
	}
	return st, nil
}

func (r *subTaskRepo) ListByTask(ctx context.Context, taskID string) ([]model.SubTask, error) {
	var subtasks []model.SubTask
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("position ASC, created_at ASC").
		Find(&subtasks).Error
	if err != nil {
		return nil, fmt.Errorf("list subtasks of %s: %w", taskID, err)
	}
	return subtasks, nil
}

func (r *subTaskRepo) ListByTasks(ctx context.Context, taskIDs []string) (map[string][]model.SubTask, error) {
	out := make(map[string][]model.SubTask)
	if len(taskIDs) == 0 {
		return out, nil
	}
	var subtasks []model.SubTask
	err := r.db.WithContext(ctx).
		Where("task_id IN ?", taskIDs).
		Order("position ASC, created_at ASC").
		Find(&subtasks).Error
	if err != nil {
		return nil, fmt.Errorf("list subtasks: %w", err)
	}
	for _, st := range subtasks {
		out[st.TaskID] = append(out[st.TaskID], st)
	}
	return out, nil
}

func (r *subTaskRepo) FindByRepeatParent(ctx context.Context, taskID, repeatParentID string) (model.SubTask, error) {
	var st model.SubTask
	err := r.db.WithContext(ctx).
		Where("task_id = ? AND repeat_parent_id = ?", taskID, repeatParentID).
		First(&st).Error
	if err != nil {
		return model.SubTask{}, fmt.Errorf("find subtask copy of %s in %s: %w", repeatParentID, taskID, translate(err))
	}
	return st, nil
}

func (r *subTaskRepo) Insert(ctx context.Context, subtasks ...model.SubTask) error {
	if len(subtasks) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&subtasks).Error; err != nil {
		return fmt.Errorf("create subtasks: %w", translate(err))
	}
	return nil
}

func (r *subTaskRepo) Update(ctx context.Context, st model.SubTask) error {
	res := r.db.WithContext(ctx).Unscoped().
		Model(&model.SubTask{}).
		Where("id = ?", st.ID).
		Updates(map[string]any{
			"title":        st.Title,
			"repeat_rule":  st.RepeatRule,
			"is_completed": st.IsCompleted,
			"completed_at": st.CompletedAt,
			"position":     st.Position,
			"updated_at":   st.UpdatedAt,
			"deleted_at":   st.DeletedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("update subtask %s: %w", st.ID, translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update subtask %s: %w", st.ID, ErrNotFound)
	}
	return nil
}
