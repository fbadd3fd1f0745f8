package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"recurring-planner/internal/model"
	"recurring-planner/internal/recurrence"
	"recurring-planner/internal/repository"
)

// maxMaterializeAttempts bounds retries after losing an insert race on the occurrence index.
const maxMaterializeAttempts = 3

// Materializer turns a virtual occurrence into a stored instance, at most once per
// template and date.
type Materializer struct {
	store  repository.Store
	logger *log.Logger
	now    func() time.Time
	newID  func() string
}

func NewMaterializer(store repository.Store, logger *log.Logger) *Materializer {
	return &Materializer{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// Materialize returns the instance of templateID on date, creating it together with copies
// of the template's sub-tasks when none exists yet. Repeated and concurrent calls return the
// same row. A deleted occurrence is not recreated.
func (m *Materializer) Materialize(ctx context.Context, userID uint, templateID string, date model.Date) (model.Task, error) {
	var (
		out     model.Task
		created bool
	)
	err := m.retry(templateID, date, func() error {
		return m.store.Atomic(ctx, func(tx repository.Store) error {
			var err error
			out, created, err = m.materializeIn(ctx, tx, userID, templateID, date)
			return err
		})
	})
	if err != nil {
		return model.Task{}, err
	}
	if created {
		m.logger.Info("materialized occurrence", "template", templateID, "date", date, "instance", out.ID)
	}
	return out, nil
}

// retry runs fn again when it lost an insert race on the occurrence index.
func (m *Materializer) retry(templateID string, date model.Date, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if !errors.Is(err, repository.ErrConflict) {
			return err
		}
		if attempt == maxMaterializeAttempts {
			return fmt.Errorf("materialize %s@%s: gave up after %d attempts: %v", templateID, date, attempt, err)
		}
		// The winner's row is visible once its transaction committed; the next lookup picks it up.
		m.logger.Debug("lost materialize race", "template", templateID, "date", date, "attempt", attempt)
	}
}

// materializeIn finds or creates the instance inside tx. The caller owns the transaction, so
// a later failure in the same transaction rolls the new instance back.
func (m *Materializer) materializeIn(ctx context.Context, tx repository.Store, userID uint, templateID string, date model.Date) (model.Task, bool, error) {
	existing, err := tx.Tasks().FindAnyInstanceByParentAndDate(ctx, templateID, date)
	switch {
	case err == nil:
		if existing.UserID != userID {
			return model.Task{}, false, fmt.Errorf("occurrence %s@%s: %w", templateID, date, ErrForbidden)
		}
		if existing.IsDeleted() {
			return model.Task{}, false, fmt.Errorf("occurrence %s@%s was deleted: %w", templateID, date, ErrInvalidState)
		}
		return existing, false, nil
	case !errors.Is(err, repository.ErrNotFound):
		return model.Task{}, false, fmt.Errorf("materialize %s@%s: %w", templateID, date, err)
	}

	tpl, err := tx.Tasks().FindTemplateByID(ctx, templateID)
	if err != nil {
		return model.Task{}, false, notFound(err, "materialize %s@%s", templateID, date)
	}
	if tpl.UserID != userID {
		return model.Task{}, false, fmt.Errorf("template %s: %w", templateID, ErrForbidden)
	}
	if !recurrence.Matches(tpl, date) {
		return model.Task{}, false, fmt.Errorf("template %s does not occur on %s: %w", templateID, date, ErrInvalidState)
	}

	now := m.now()
	inst := recurrence.NewInstance(tpl, date, m.newID(), now)
	if err := tx.Tasks().Insert(ctx, inst); err != nil {
		return model.Task{}, false, err
	}

	subTemplates, err := tx.SubTasks().ListByTask(ctx, tpl.ID)
	if err != nil {
		return model.Task{}, false, err
	}
	copies := make([]model.SubTask, 0, len(subTemplates))
	for _, st := range subTemplates {
		copies = append(copies, st.CopyForOccurrence(inst.ID, m.newID(), now))
	}
	if err := tx.SubTasks().Insert(ctx, copies...); err != nil {
		return model.Task{}, false, fmt.Errorf("copy subtasks of %s: %w", tpl.ID, err)
	}
	return inst, true, nil
}
