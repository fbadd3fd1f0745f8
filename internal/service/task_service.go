package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"recurring-planner/internal/model"
	"recurring-planner/internal/recurrence"
	"recurring-planner/internal/repository"
)

// maxRangeDays caps how many days one listing may expand.
const maxRangeDays = 366

// TaskInput represents data required to create a task.
type TaskInput struct {
	Title     string
	Priority  model.Priority
	Date      model.Date
	Rule      model.Rule
	RepeatEnd model.Date
	SubTasks  []string
}

// Occurrence is one entry of a day's list: a stored task or the projection of a template.
type Occurrence struct {
	Task     model.Task
	SubTasks []model.SubTask
	Virtual  bool
}

// Ref is the address clients use to act on the occurrence.
func (o Occurrence) Ref() model.Ref {
	if o.Virtual {
		return model.VirtualRef(o.Task.TemplateID(), o.Task.Date)
	}
	return model.RealRef(o.Task.ID)
}

// TaskService creates tasks and lists the occurrences of a day or range.
type TaskService struct {
	store  repository.Store
	logger *log.Logger
	now    func() time.Time
	newID  func() string
}

func NewTaskService(store repository.Store, logger *log.Logger) *TaskService {
	return &TaskService{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// CreateTask stores a one-off task or, when a rule is given, a template anchored at input.Date.
func (s *TaskService) CreateTask(ctx context.Context, userID uint, input TaskInput) (model.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return model.Task{}, fmt.Errorf("title is required: %w", ErrInvalidInput)
	}
	if input.Date.IsZero() {
		return model.Task{}, fmt.Errorf("date is required: %w", ErrInvalidInput)
	}
	if !input.Priority.Valid() {
		return model.Task{}, fmt.Errorf("priority %d: %w", input.Priority, ErrInvalidInput)
	}
	if input.Rule.Malformed() {
		return model.Task{}, fmt.Errorf("repeat rule %q: %w", input.Rule.Raw(), ErrInvalidInput)
	}
	if !input.RepeatEnd.IsZero() {
		if input.Rule.IsNone() {
			return model.Task{}, fmt.Errorf("repeat end without a rule: %w", ErrInvalidInput)
		}
		if input.RepeatEnd.Before(input.Date) {
			return model.Task{}, fmt.Errorf("repeat end %s before %s: %w", input.RepeatEnd, input.Date, ErrInvalidInput)
		}
	}

	now := s.now()
	task := model.Task{
		ID:            s.newID(),
		UserID:        userID,
		Title:         title,
		Priority:      input.Priority,
		Date:          input.Date,
		RepeatRule:    input.Rule,
		RepeatEndDate: input.RepeatEnd,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var subtasks []model.SubTask
	for i, raw := range input.SubTasks {
		st := strings.TrimSpace(raw)
		if st == "" {
			continue
		}
		subtasks = append(subtasks, model.SubTask{
			ID:         s.newID(),
			TaskID:     task.ID,
			Title:      st,
			RepeatRule: input.Rule,
			Position:   i,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	err := s.store.Atomic(ctx, func(tx repository.Store) error {
		if err := tx.Tasks().Insert(ctx, task); err != nil {
			return err
		}
		return tx.SubTasks().Insert(ctx, subtasks...)
	})
	if err != nil {
		return model.Task{}, fmt.Errorf("create task: %w", err)
	}

	s.logger.Info("task created", "id", task.ID, "user", userID, "rule", task.RepeatRule, "subtasks", len(subtasks))
	return task, nil
}

func (s *TaskService) ListDay(ctx context.Context, userID uint, date model.Date) ([]Occurrence, error) {
	if date.IsZero() {
		return nil, fmt.Errorf("list day: no date: %w", ErrInvalidRange)
	}
	rows, err := s.store.Tasks().ListByOwnerAndDate(ctx, userID, date)
	if err != nil {
		return nil, err
	}
	return s.expand(ctx, userID, date, date, rows)
}

// ListRange merges stored tasks dated in [start, end] with projections of matching templates.
// An occurrence that has a stored row, even a deleted one, is never projected.
func (s *TaskService) ListRange(ctx context.Context, userID uint, start, end model.Date) ([]Occurrence, error) {
	if start.IsZero() || end.IsZero() || end.Before(start) || start.DaysUntil(end) >= maxRangeDays {
		return nil, fmt.Errorf("%s..%s: %w", start, end, ErrInvalidRange)
	}

	rows, err := s.store.Tasks().ListByOwnerAndDateRange(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	return s.expand(ctx, userID, start, end, rows)
}

// expand turns the rows read for [start, end] into occurrences with their sub-tasks.
func (s *TaskService) expand(ctx context.Context, userID uint, start, end model.Date, rows []model.Task) ([]Occurrence, error) {
	stored, err := s.store.Tasks().ListOccurrenceKeys(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}

	var (
		out         []Occurrence
		templates   []model.Task
		subtaskOwns []string
	)
	for _, row := range rows {
		if !row.IsTemplate() {
			out = append(out, Occurrence{Task: row})
			subtaskOwns = append(subtaskOwns, row.ID)
			continue
		}
		if row.RepeatRule.Malformed() {
			s.logger.Warn("skipping template with malformed rule", "template", row.ID, "rule", row.RepeatRule.Raw())
			continue
		}
		templates = append(templates, row)
		subtaskOwns = append(subtaskOwns, row.ID)
	}

	for _, tpl := range templates {
		for _, d := range recurrence.Occurrences(tpl, start, end) {
			if stored[repository.OccurrenceKey{TemplateID: tpl.ID, Date: d}] {
				continue
			}
			out = append(out, Occurrence{Task: recurrence.Project(tpl, d), Virtual: true})
		}
	}

	subtasks, err := s.store.SubTasks().ListByTasks(ctx, subtaskOwns)
	if err != nil {
		return nil, err
	}
	for i := range out {
		occ := &out[i]
		if occ.Virtual {
			occ.SubTasks = recurrence.ProjectSubTasks(subtasks[occ.Task.TemplateID()], occ.Task)
			continue
		}
		occ.SubTasks = subtasks[occ.Task.ID]
	}

	sortOccurrences(out)
	return out, nil
}

// Show returns a single occurrence by ref, projecting it when it is not stored.
func (s *TaskService) Show(ctx context.Context, userID uint, ref model.Ref) (Occurrence, error) {
	if !ref.IsVirtual() {
		task, err := s.store.Tasks().FindByID(ctx, ref.ID())
		if err != nil {
			return Occurrence{}, notFound(err, "show %s", ref)
		}
		if task.UserID != userID {
			return Occurrence{}, fmt.Errorf("show %s: %w", ref, ErrForbidden)
		}
		if task.IsDeleted() {
			return Occurrence{}, fmt.Errorf("show %s: %w", ref, ErrNotFound)
		}
		subs, err := s.store.SubTasks().ListByTask(ctx, task.ID)
		if err != nil {
			return Occurrence{}, err
		}
		return Occurrence{Task: task, SubTasks: subs}, nil
	}

	inst, err := s.store.Tasks().FindAnyInstanceByParentAndDate(ctx, ref.ID(), ref.Date())
	if err == nil {
		return s.Show(ctx, userID, model.RealRef(inst.ID))
	}
	tpl, err := s.store.Tasks().FindTemplateByID(ctx, ref.ID())
	if err != nil {
		return Occurrence{}, notFound(err, "show %s", ref)
	}
	if tpl.UserID != userID {
		return Occurrence{}, fmt.Errorf("show %s: %w", ref, ErrForbidden)
	}
	if !recurrence.Matches(tpl, ref.Date()) {
		return Occurrence{}, fmt.Errorf("show %s: no occurrence on that day: %w", ref, ErrNotFound)
	}
	occ := Occurrence{Task: recurrence.Project(tpl, ref.Date()), Virtual: true}
	subs, err := s.store.SubTasks().ListByTask(ctx, tpl.ID)
	if err != nil {
		return Occurrence{}, err
	}
	occ.SubTasks = recurrence.ProjectSubTasks(subs, occ.Task)
	return occ, nil
}

func sortOccurrences(items []Occurrence) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].Task, items[j].Task
		if a.Date != b.Date {
			return a.Date.Before(b.Date)
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.Title < b.Title
	})
}

// DaySummary counts the occurrences of one day.
type DaySummary struct {
	Date      model.Date
	Total     int
	Completed int
}

// Summary aggregates ListRange output for statistics.
type Summary struct {
	Start      model.Date
	End        model.Date
	Days       []DaySummary
	ByPriority map[model.Priority]int
	Total      int
	Completed  int
}

// Summarize counts occurrences per day and per priority. Days without occurrences are
// included with zero counts.
func (s *TaskService) Summarize(ctx context.Context, userID uint, start, end model.Date) (Summary, error) {
	items, err := s.ListRange(ctx, userID, start, end)
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{Start: start, End: end, ByPriority: make(map[model.Priority]int)}
	index := make(map[model.Date]int)
	for d := start; !d.After(end); d = d.AddDays(1) {
		index[d] = len(sum.Days)
		sum.Days = append(sum.Days, DaySummary{Date: d})
	}
	for _, occ := range items {
		day := &sum.Days[index[occ.Task.Date]]
		day.Total++
		sum.Total++
		sum.ByPriority[occ.Task.Priority]++
		if occ.Task.IsCompleted {
			day.Completed++
			sum.Completed++
		}
	}
	return sum, nil
}
