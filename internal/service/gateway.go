package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"recurring-planner/internal/model"
	"recurring-planner/internal/repository"
)

type mutationKind int

const (
	mutateComplete mutationKind = iota
	mutateUncomplete
	mutateEdit
	mutateDelete
)

func (k mutationKind) String() string {
	switch k {
	case mutateComplete:
		return "complete"
	case mutateUncomplete:
		return "uncomplete"
	case mutateEdit:
		return "edit"
	default:
		return "delete"
	}
}

// Edit lists the fields to change; nil fields are kept. Rule changes the recurrence of a
// whole series and is only accepted on a template.
type Edit struct {
	Title    *string
	Priority *model.Priority
	Rule     *model.Rule
}

// Mutation is a change to one occurrence or task.
type Mutation struct {
	kind mutationKind
	edit Edit
}

func CompleteOccurrence() Mutation   { return Mutation{kind: mutateComplete} }
func UncompleteOccurrence() Mutation { return Mutation{kind: mutateUncomplete} }
func DeleteOccurrence() Mutation     { return Mutation{kind: mutateDelete} }

func EditOccurrence(e Edit) Mutation { return Mutation{kind: mutateEdit, edit: e} }

// validate rejects values that no target could accept.
func (m Mutation) validate() error {
	if m.kind != mutateEdit {
		return nil
	}
	if m.edit.Title != nil && strings.TrimSpace(*m.edit.Title) == "" {
		return fmt.Errorf("empty title: %w", ErrInvalidInput)
	}
	if m.edit.Priority != nil && !m.edit.Priority.Valid() {
		return fmt.Errorf("priority %d: %w", *m.edit.Priority, ErrInvalidInput)
	}
	if m.edit.Rule != nil {
		if m.edit.Rule.Malformed() {
			return fmt.Errorf("repeat rule %q: %w", m.edit.Rule.Raw(), ErrInvalidInput)
		}
		if m.edit.Rule.IsNone() {
			return fmt.Errorf("a series needs a rule: %w", ErrInvalidInput)
		}
	}
	return nil
}

func (m Mutation) apply(task model.Task, now time.Time) (model.Task, error) {
	if err := m.validate(); err != nil {
		return model.Task{}, err
	}
	switch m.kind {
	case mutateComplete:
		task = task.Complete(now)
	case mutateUncomplete:
		task = task.Uncomplete()
	case mutateDelete:
		task = task.SoftDelete(now)
	case mutateEdit:
		if m.edit.Rule != nil {
			if !task.IsTemplate() {
				return model.Task{}, fmt.Errorf("task %s is not a series: %w", task.ID, ErrInvalidInput)
			}
			task = task.WithRule(*m.edit.Rule)
		}
		if m.edit.Title != nil {
			task = task.Rename(strings.TrimSpace(*m.edit.Title))
		}
		if m.edit.Priority != nil {
			task = task.WithPriority(*m.edit.Priority)
		}
	}
	task.UpdatedAt = now
	return task, nil
}

type subTaskMutationKind int

const (
	subTaskComplete subTaskMutationKind = iota
	subTaskUncomplete
	subTaskRename
)

// SubTaskMutation is a change to one sub-task.
type SubTaskMutation struct {
	kind  subTaskMutationKind
	title string
}

func CompleteSubTask() SubTaskMutation   { return SubTaskMutation{kind: subTaskComplete} }
func UncompleteSubTask() SubTaskMutation { return SubTaskMutation{kind: subTaskUncomplete} }

func RenameSubTask(title string) SubTaskMutation {
	return SubTaskMutation{kind: subTaskRename, title: title}
}

func (m SubTaskMutation) validate() error {
	if m.kind == subTaskRename && strings.TrimSpace(m.title) == "" {
		return fmt.Errorf("empty title: %w", ErrInvalidInput)
	}
	return nil
}

func (m SubTaskMutation) apply(st model.SubTask, now time.Time) (model.SubTask, error) {
	if err := m.validate(); err != nil {
		return model.SubTask{}, err
	}
	switch m.kind {
	case subTaskComplete:
		st = st.Complete(now)
	case subTaskUncomplete:
		st = st.Uncomplete()
	case subTaskRename:
		st = st.Rename(strings.TrimSpace(m.title))
	}
	st.UpdatedAt = now
	return st, nil
}

// Gateway is the single entry point for changing occurrences. Virtual occurrences are
// materialized first; stored rows are changed in place.
type Gateway struct {
	store        repository.Store
	materializer *Materializer
	logger       *log.Logger
	now          func() time.Time
}

func NewGateway(store repository.Store, materializer *Materializer, logger *log.Logger) *Gateway {
	return &Gateway{
		store:        store,
		materializer: materializer,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// ResolveAndMutate applies m to the occurrence addressed by ref. A real ref to a template
// together with a non-zero date addresses that template's occurrence on date; a template
// without a date can only be edited, which changes the whole series.
// Materializing and mutating share one transaction: a rejected change leaves no instance.
func (g *Gateway) ResolveAndMutate(ctx context.Context, userID uint, ref model.Ref, date model.Date, m Mutation) (model.Task, error) {
	if err := m.validate(); err != nil {
		return model.Task{}, err
	}

	var (
		out     model.Task
		created bool
	)
	err := g.materializer.retry(ref.ID(), occurrenceDate(ref, date), func() error {
		return g.store.Atomic(ctx, func(tx repository.Store) error {
			target, fresh, err := g.resolve(ctx, tx, userID, ref, date, m.kind == mutateEdit)
			if err != nil {
				return err
			}
			if target.IsDeleted() {
				return fmt.Errorf("%s %s: task is deleted: %w", m.kind, target.ID, ErrInvalidState)
			}
			updated, err := m.apply(target, g.now())
			if err != nil {
				return err
			}
			if err := tx.Tasks().Update(ctx, updated); err != nil {
				return err
			}
			out, created = updated, fresh
			return nil
		})
	})
	if err != nil {
		return model.Task{}, err
	}

	if created {
		g.logger.Info("materialized occurrence", "template", out.TemplateID(), "date", out.Date, "instance", out.ID)
	}
	g.logger.Info("task mutated", "mutation", m.kind, "ref", ref, "task", out.ID)
	return out, nil
}

// MutateSubTask applies m to a sub-task of the occurrence addressed by parent. For a virtual
// parent, subTaskID is the sub-task template id shown in the projection; it is mapped to the
// copy created on materialization.
func (g *Gateway) MutateSubTask(ctx context.Context, userID uint, parent model.Ref, date model.Date, subTaskID string, m SubTaskMutation) (model.SubTask, error) {
	if err := m.validate(); err != nil {
		return model.SubTask{}, err
	}

	var (
		out     model.SubTask
		created bool
		owner   model.Task
	)
	err := g.materializer.retry(parent.ID(), occurrenceDate(parent, date), func() error {
		return g.store.Atomic(ctx, func(tx repository.Store) error {
			current, fresh, err := g.resolve(ctx, tx, userID, parent, date, m.kind == subTaskRename)
			if err != nil {
				return err
			}
			if current.IsDeleted() {
				return fmt.Errorf("subtask parent %s is deleted: %w", current.ID, ErrInvalidState)
			}

			st, err := tx.SubTasks().FindByID(ctx, subTaskID)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			if err != nil || st.TaskID != current.ID {
				st, err = tx.SubTasks().FindByRepeatParent(ctx, current.ID, subTaskID)
				if err != nil {
					return notFound(err, "subtask %s of %s", subTaskID, current.ID)
				}
			}

			updated, err := m.apply(st, g.now())
			if err != nil {
				return err
			}
			if err := tx.SubTasks().Update(ctx, updated); err != nil {
				return err
			}
			out, created, owner = updated, fresh, current
			return nil
		})
	})
	if err != nil {
		return model.SubTask{}, err
	}

	if created {
		g.logger.Info("materialized occurrence", "template", owner.TemplateID(), "date", owner.Date, "instance", owner.ID)
	}
	return out, nil
}

// resolve finds the stored task a mutation targets inside tx, materializing virtual
// occurrences. The flag reports whether an instance was created.
func (g *Gateway) resolve(ctx context.Context, tx repository.Store, userID uint, ref model.Ref, date model.Date, allowTemplate bool) (model.Task, bool, error) {
	if ref.IsVirtual() {
		return g.materializer.materializeIn(ctx, tx, userID, ref.ID(), ref.Date())
	}

	task, err := tx.Tasks().FindByID(ctx, ref.ID())
	if err != nil {
		return model.Task{}, false, notFound(err, "resolve %s", ref)
	}
	if task.UserID != userID {
		return model.Task{}, false, fmt.Errorf("resolve %s: %w", ref, ErrForbidden)
	}

	if task.IsTemplate() {
		if task.IsDeleted() {
			return model.Task{}, false, fmt.Errorf("template %s is deleted: %w", task.ID, ErrNotFound)
		}
		if !date.IsZero() {
			return g.materializer.materializeIn(ctx, tx, userID, task.ID, date)
		}
		if !allowTemplate {
			return model.Task{}, false, fmt.Errorf("template %s needs an occurrence date: %w", task.ID, ErrInvalidState)
		}
		return task, false, nil
	}

	if !date.IsZero() && date != task.Date {
		return model.Task{}, false, fmt.Errorf("task %s is dated %s, not %s: %w", task.ID, task.Date, date, ErrInvalidInput)
	}
	return task, false, nil
}

func occurrenceDate(ref model.Ref, date model.Date) model.Date {
	if ref.IsVirtual() {
		return ref.Date()
	}
	return date
}

// DeleteFuture ends the series at the occurrence addressed by ref: the template stops the day
// before, and instances on or after that day are deleted. Earlier instances are kept.
// When the cutoff is on or before the anchor date the template itself is deleted.
func (g *Gateway) DeleteFuture(ctx context.Context, userID uint, ref model.Ref, date model.Date) (model.Task, error) {
	templateID, cutoff, err := g.seriesCutoff(ctx, userID, ref, date)
	if err != nil {
		return model.Task{}, err
	}
	if cutoff.IsZero() {
		return model.Task{}, fmt.Errorf("delete future of %s: no cutoff date: %w", ref, ErrInvalidInput)
	}

	var (
		out     model.Task
		removed int
	)
	err = g.store.Atomic(ctx, func(tx repository.Store) error {
		tpl, err := tx.Tasks().FindTemplateByID(ctx, templateID)
		if err != nil {
			return notFound(err, "delete future of %s", templateID)
		}
		if tpl.UserID != userID {
			return fmt.Errorf("template %s: %w", templateID, ErrForbidden)
		}

		now := g.now()
		if cutoff.After(tpl.Date) {
			end := cutoff.AddDays(-1)
			if tpl.RepeatEndDate.IsZero() || end.Before(tpl.RepeatEndDate) {
				tpl = tpl.WithRepeatEnd(end)
			}
		} else {
			tpl = tpl.SoftDelete(now)
		}
		tpl.UpdatedAt = now
		if err := tx.Tasks().Update(ctx, tpl); err != nil {
			return err
		}

		future, err := tx.Tasks().ListInstancesFrom(ctx, templateID, cutoff)
		if err != nil {
			return err
		}
		for _, inst := range future {
			inst = inst.SoftDelete(now)
			inst.UpdatedAt = now
			if err := tx.Tasks().Update(ctx, inst); err != nil {
				return err
			}
		}
		removed = len(future)
		out = tpl
		return nil
	})
	if err != nil {
		return model.Task{}, err
	}

	g.logger.Info("series cut", "template", templateID, "cutoff", cutoff, "deleted_instances", removed, "template_deleted", out.IsDeleted())
	return out, nil
}

// DeleteSeries deletes the template. Materialized instances stay as ordinary tasks.
func (g *Gateway) DeleteSeries(ctx context.Context, userID uint, ref model.Ref) (model.Task, error) {
	templateID, _, err := g.seriesCutoff(ctx, userID, ref, model.Date{})
	if err != nil {
		return model.Task{}, err
	}

	var out model.Task
	err = g.store.Atomic(ctx, func(tx repository.Store) error {
		tpl, err := tx.Tasks().FindTemplateByID(ctx, templateID)
		if err != nil {
			return notFound(err, "delete series %s", templateID)
		}
		if tpl.UserID != userID {
			return fmt.Errorf("template %s: %w", templateID, ErrForbidden)
		}
		now := g.now()
		tpl = tpl.SoftDelete(now)
		tpl.UpdatedAt = now
		if err := tx.Tasks().Update(ctx, tpl); err != nil {
			return err
		}
		out = tpl
		return nil
	})
	if err != nil {
		return model.Task{}, err
	}

	g.logger.Info("series deleted", "template", templateID)
	return out, nil
}

// seriesCutoff maps ref onto its template and the occurrence date it names.
func (g *Gateway) seriesCutoff(ctx context.Context, userID uint, ref model.Ref, date model.Date) (string, model.Date, error) {
	if ref.IsVirtual() {
		return ref.ID(), ref.Date(), nil
	}

	task, err := g.store.Tasks().FindByID(ctx, ref.ID())
	if err != nil {
		return "", model.Date{}, notFound(err, "resolve %s", ref)
	}
	if task.UserID != userID {
		return "", model.Date{}, fmt.Errorf("resolve %s: %w", ref, ErrForbidden)
	}
	if task.IsTemplate() {
		return task.ID, date, nil
	}
	if task.ParentTemplateID == nil {
		return "", model.Date{}, fmt.Errorf("task %s is not part of a series: %w", task.ID, ErrInvalidState)
	}
	return *task.ParentTemplateID, task.Date, nil
}
