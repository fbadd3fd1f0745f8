package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"recurring-planner/internal/model"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict reports a unique constraint violation, such as a second instance
	// for the same template and date.
	ErrConflict = errors.New("conflict")
)

// OccurrenceKey identifies the instance row of one template occurrence.
type OccurrenceKey struct {
	TemplateID string
	Date       model.Date
}

// TaskStore persists tasks. Lookups skip soft-deleted rows unless stated otherwise.
type TaskStore interface {
	// FindByID returns the task including a soft-deleted one, so callers can tell
	// "deleted" from "unknown".
	FindByID(ctx context.Context, id string) (model.Task, error)
	FindTemplateByID(ctx context.Context, id string) (model.Task, error)
	// FindInstanceByParentAndDate returns the non-deleted instance of an occurrence.
	FindInstanceByParentAndDate(ctx context.Context, templateID string, date model.Date) (model.Task, error)
	// FindAnyInstanceByParentAndDate also returns a soft-deleted instance.
	FindAnyInstanceByParentAndDate(ctx context.Context, templateID string, date model.Date) (model.Task, error)
	ListByOwnerAndDate(ctx context.Context, userID uint, date model.Date) ([]model.Task, error)
	// ListByOwnerAndDateRange returns templates active in [start, end] and instances dated in it.
	ListByOwnerAndDateRange(ctx context.Context, userID uint, start, end model.Date) ([]model.Task, error)
	// ListOccurrenceKeys returns the keys of every instance row in the range, soft-deleted ones included.
	ListOccurrenceKeys(ctx context.Context, userID uint, start, end model.Date) (map[OccurrenceKey]bool, error)
	ListInstancesFrom(ctx context.Context, templateID string, from model.Date) ([]model.Task, error)
	Insert(ctx context.Context, task model.Task) error
	Update(ctx context.Context, task model.Task) error
}

// SubTaskStore persists sub-tasks.
type SubTaskStore interface {
	FindByID(ctx context.Context, id string) (model.SubTask, error)
	ListByTask(ctx context.Context, taskID string) ([]model.SubTask, error)
	ListByTasks(ctx context.Context, taskIDs []string) (map[string][]model.SubTask, error)
	FindByRepeatParent(ctx context.Context, taskID, repeatParentID string) (model.SubTask, error)
	Insert(ctx context.Context, subtasks ...model.SubTask) error
	Update(ctx context.Context, subtask model.SubTask) error
}

// Store groups the stores and runs work atomically.
type Store interface {
	Tasks() TaskStore
	SubTasks() SubTaskStore
	// Atomic runs fn in one transaction. The Store passed to fn operates inside it;
	// fn returning an error rolls everything back.
	Atomic(ctx context.Context, fn func(Store) error) error
}

// GormStore is the gorm implementation of Store.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

func NewStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Tasks() TaskStore {
	return &taskRepo{db: s.db}
}

func (s *GormStore) SubTasks() SubTaskStore {
	return &subTaskRepo{db: s.db}
}

func (s *GormStore) Atomic(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}
