package model

import (
	"time"

	"gorm.io/gorm"
)

// Priority orders tasks inside a day.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityUrgent
)

func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityUrgent
}

func (p Priority) String() string {
	switch p {
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	default:
		return "low"
	}
}

// Task is either a template (a repeating definition anchored at Date), a one-off task,
// or an instance materialized from a template for one Date.
// Values are treated as immutable: the transform methods return an updated copy.
type Task struct {
	ID               string `gorm:"primaryKey;size:36"`
	UserID           uint   `gorm:"index:idx_task_user_date,priority:1"`
	Title            string
	Priority         Priority  `gorm:"default:0"`
	Date             Date      `gorm:"type:varchar(10);index:idx_task_user_date,priority:2;uniqueIndex:idx_task_occurrence,priority:2"`
	IsCompleted      bool      `gorm:"default:false"`
	CompletedAt      *time.Time
	RepeatRule       Rule    `gorm:"type:varchar(64)"`
	RepeatEndDate    Date    `gorm:"type:varchar(10)"`
	IsOccurrence     bool    `gorm:"default:false"`
	ParentTemplateID *string `gorm:"size:36;uniqueIndex:idx_task_occurrence,priority:1"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeletedAt        gorm.DeletedAt `gorm:"index"`
}

// IsTemplate reports a repeating definition. Malformed rules still count so that a
// corrupt template is never shown as a one-off task.
func (t Task) IsTemplate() bool {
	return t.ParentTemplateID == nil && t.RepeatRule.Repeats()
}

func (t Task) IsDeleted() bool {
	return t.DeletedAt.Valid
}

func (t Task) TemplateID() string {
	if t.ParentTemplateID == nil {
		return ""
	}
	return *t.ParentTemplateID
}

func (t Task) Complete(at time.Time) Task {
	t.IsCompleted = true
	t.CompletedAt = &at
	return t
}

func (t Task) Uncomplete() Task {
	t.IsCompleted = false
	t.CompletedAt = nil
	return t
}

func (t Task) Rename(title string) Task {
	t.Title = title
	return t
}

func (t Task) WithPriority(p Priority) Task {
	t.Priority = p
	return t
}

func (t Task) WithRule(r Rule) Task {
	t.RepeatRule = r
	return t
}

func (t Task) WithRepeatEnd(d Date) Task {
	t.RepeatEndDate = d
	return t
}

func (t Task) SoftDelete(at time.Time) Task {
	t.DeletedAt = gorm.DeletedAt{Time: at, Valid: true}
	return t
}
