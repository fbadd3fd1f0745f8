package model

import (
	"time"

	"gorm.io/gorm"
)

// SubTask belongs to one Task. Sub-tasks of a template are themselves templates and are
// copied into each materialized instance.
type SubTask struct {
	ID             string `gorm:"primaryKey;size:36"`
	TaskID         string `gorm:"size:36;index"`
	Title          string
	RepeatRule     Rule `gorm:"type:varchar(64)"`
	IsCompleted    bool `gorm:"default:false"`
	CompletedAt    *time.Time
	IsOccurrence   bool    `gorm:"default:false"`
	RepeatParentID *string `gorm:"size:36;index"`
	Position       int
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      gorm.DeletedAt `gorm:"index"`
}

func (s SubTask) Complete(at time.Time) SubTask {
	s.IsCompleted = true
	s.CompletedAt = &at
	return s
}

func (s SubTask) Uncomplete() SubTask {
	s.IsCompleted = false
	s.CompletedAt = nil
	return s
}

func (s SubTask) Rename(title string) SubTask {
	s.Title = title
	return s
}

// CopyForOccurrence deep-copies a sub-task template into a fresh instance owned by taskID.
func (s SubTask) CopyForOccurrence(taskID, id string, now time.Time) SubTask {
	parent := s.ID
	return SubTask{
		ID:             id,
		TaskID:         taskID,
		Title:          s.Title,
		RepeatRule:     s.RepeatRule,
		IsOccurrence:   true,
		RepeatParentID: &parent,
		Position:       s.Position,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
