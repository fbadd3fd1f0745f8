package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"recurring-planner/internal/model"
	"recurring-planner/internal/recurrence"
	"recurring-planner/internal/repository"
)

func TestMaterialize_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tpl := f.template(t, "stretch", model.Daily(), day(2024, time.January, 1), "neck", "back")
	d := day(2024, time.January, 3)

	first, err := f.mat.Materialize(ctx, owner, tpl.ID, d)
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	second, err := f.mat.Materialize(ctx, owner, tpl.ID, d)
	if err != nil {
		t.Fatalf("materialize again: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same instance, got %s and %s", first.ID, second.ID)
	}
	if first.TemplateID() != tpl.ID || first.Date != d || !first.IsOccurrence || first.Title != "stretch" {
		t.Fatalf("unexpected instance %+v", first)
	}

	subs, err := f.store.SubTasks().ListByTask(ctx, first.ID)
	if err != nil {
		t.Fatalf("list subtasks: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("expected 2 copied subtasks, got %d", len(subs))
	}
	for _, st := range subs {
		if !st.IsOccurrence || st.RepeatParentID == nil {
			t.Errorf("expected copy linked to its template, got %+v", st)
		}
	}
}

func TestMaterialize_CopiesEverySubTaskTemplateOpen(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tpl := f.template(t, "morning", model.Daily(), day(2024, time.January, 1), "water", "stretch", "plan")

	templates, err := f.store.SubTasks().ListByTask(ctx, tpl.ID)
	if err != nil {
		t.Fatalf("list template subtasks: %v", err)
	}
	if err := f.store.SubTasks().Update(ctx, templates[1].Complete(time.Now())); err != nil {
		t.Fatalf("complete template subtask: %v", err)
	}

	inst, err := f.mat.Materialize(ctx, owner, tpl.ID, day(2024, time.January, 4))
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	copies, err := f.store.SubTasks().ListByTask(ctx, inst.ID)
	if err != nil {
		t.Fatalf("list copies: %v", err)
	}
	if len(copies) != len(templates) {
		t.Fatalf("expected %d copies, got %d", len(templates), len(copies))
	}

	want := make(map[string]bool, len(templates))
	for _, st := range templates {
		want[st.ID] = true
	}
	for _, st := range copies {
		if st.RepeatParentID == nil || !want[*st.RepeatParentID] {
			t.Fatalf("expected copy of a template subtask, got %+v", st)
		}
		delete(want, *st.RepeatParentID)
		if st.IsCompleted || st.CompletedAt != nil {
			t.Errorf("expected copy %q to start open, got %+v", st.Title, st)
		}
	}
	if len(want) != 0 {
		t.Fatalf("expected one copy per template subtask, missing %v", want)
	}
}

// failingSubTasksStore fails every sub-task insert made inside a transaction.
type failingSubTasksStore struct {
	repository.Store
}

var errSubTaskInsert = errors.New("subtask insert failed")

func (s failingSubTasksStore) SubTasks() repository.SubTaskStore {
	return failingSubTasks{SubTaskStore: s.Store.SubTasks()}
}

func (s failingSubTasksStore) Atomic(ctx context.Context, fn func(repository.Store) error) error {
	return s.Store.Atomic(ctx, func(tx repository.Store) error {
		return fn(failingSubTasksStore{Store: tx})
	})
}

type failingSubTasks struct {
	repository.SubTaskStore
}

func (failingSubTasks) Insert(context.Context, ...model.SubTask) error {
	return errSubTaskInsert
}

func TestMaterialize_RollsBackWhenSubTaskCopyFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tpl := f.template(t, "laundry", model.Daily(), day(2024, time.January, 1), "sort", "wash")
	d := day(2024, time.January, 6)

	mat := NewMaterializer(failingSubTasksStore{Store: f.store}, f.mat.logger)
	if _, err := mat.Materialize(ctx, owner, tpl.ID, d); !errors.Is(err, errSubTaskInsert) {
		t.Fatalf("expected the insert error, got %v", err)
	}

	keys, err := f.store.Tasks().ListOccurrenceKeys(ctx, owner, d, d)
	if err != nil {
		t.Fatalf("list keys: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("expected the instance to be rolled back, got %v", keys)
	}
	items := f.list(t, d)
	if len(items) != 1 || !items[0].Virtual || len(items[0].SubTasks) != 2 {
		t.Fatalf("expected the projection back, got %+v", items)
	}

	// The same failure through the gateway leaves nothing behind either.
	gw := NewGateway(failingSubTasksStore{Store: f.store}, mat, f.mat.logger)
	if _, err := gw.ResolveAndMutate(ctx, owner, model.VirtualRef(tpl.ID, d), model.Date{}, CompleteOccurrence()); !errors.Is(err, errSubTaskInsert) {
		t.Fatalf("expected the insert error from the gateway, got %v", err)
	}
	if items := f.list(t, d); len(items) != 1 || !items[0].Virtual || items[0].Task.IsCompleted {
		t.Fatalf("expected an open projection, got %+v", items)
	}
}

func TestMaterialize_ConcurrentCallsShareOneInstance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tpl := f.template(t, "water plants", model.Daily(), day(2024, time.January, 1), "balcony", "kitchen", "office")
	d := day(2024, time.January, 9)

	const workers = 8
	ids := make([]string, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			task, err := f.mat.Materialize(ctx, owner, tpl.ID, d)
			ids[i], errs[i] = task.ID, err
		}(i)
	}
	wg.Wait()

	for i := range ids {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Fatalf("expected one instance id, got %v", ids)
		}
	}

	keys, err := f.store.Tasks().ListOccurrenceKeys(ctx, owner, d, d)
	if err != nil {
		t.Fatalf("list keys: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("expected exactly one instance row, got %d", len(keys))
	}
	subs, err := f.store.SubTasks().ListByTask(ctx, ids[0])
	if err != nil {
		t.Fatalf("list subtasks: %v", err)
	}
	if len(subs) != 3 {
		t.Fatalf("expected 3 subtasks, got %d", len(subs))
	}
}

// racingStore hides existing instances from the first lookups, as if another writer
// committed between the lookup and the insert.
type racingStore struct {
	repository.Store
	blind *atomic.Int32
}

func (s racingStore) Tasks() repository.TaskStore {
	return racingTasks{TaskStore: s.Store.Tasks(), blind: s.blind}
}

func (s racingStore) Atomic(ctx context.Context, fn func(repository.Store) error) error {
	return s.Store.Atomic(ctx, func(tx repository.Store) error {
		return fn(racingStore{Store: tx, blind: s.blind})
	})
}

type racingTasks struct {
	repository.TaskStore
	blind *atomic.Int32
}

func (r racingTasks) FindAnyInstanceByParentAndDate(ctx context.Context, templateID string, date model.Date) (model.Task, error) {
	if r.blind.Add(-1) >= 0 {
		return model.Task{}, repository.ErrNotFound
	}
	return r.TaskStore.FindAnyInstanceByParentAndDate(ctx, templateID, date)
}

func TestMaterialize_LosingRaceReturnsWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tpl := f.template(t, "standup", model.Weekly(1, 2, 3, 4, 5), day(2024, time.January, 1), "notes")
	d := day(2024, time.January, 2)

	winner := recurrence.NewInstance(tpl, d, uuid.NewString(), time.Now())
	if err := f.store.Tasks().Insert(ctx, winner); err != nil {
		t.Fatalf("insert winner: %v", err)
	}

	blind := new(atomic.Int32)
	blind.Store(1)
	mat := NewMaterializer(racingStore{Store: f.store, blind: blind}, f.mat.logger)

	got, err := mat.Materialize(ctx, owner, tpl.ID, d)
	if err != nil {
		t.Fatalf("expected the conflict to be absorbed, got %v", err)
	}
	if got.ID != winner.ID {
		t.Fatalf("expected winner %s, got %s", winner.ID, got.ID)
	}

	// The loser's sub-task copies were rolled back with its insert.
	subs, err := f.store.SubTasks().ListByTask(ctx, winner.ID)
	if err != nil {
		t.Fatalf("list subtasks: %v", err)
	}
	if len(subs) != 0 {
		t.Fatalf("expected no subtasks on the hand-made winner, got %d", len(subs))
	}
}

func TestMaterialize_GivesUpAfterRepeatedConflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tpl := f.template(t, "standup", model.Daily(), day(2024, time.January, 1))
	d := day(2024, time.January, 2)
	if _, err := f.mat.Materialize(ctx, owner, tpl.ID, d); err != nil {
		t.Fatalf("materialize: %v", err)
	}

	blind := new(atomic.Int32)
	blind.Store(maxMaterializeAttempts)
	mat := NewMaterializer(racingStore{Store: f.store, blind: blind}, f.mat.logger)

	_, err := mat.Materialize(ctx, owner, tpl.ID, d)
	if err == nil || errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected a plain failure after %d attempts, got %v", maxMaterializeAttempts, err)
	}
}

func TestMaterialize_Rejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tpl := f.template(t, "gym", model.Weekly(1, 3, 5), day(2024, time.January, 1))

	if _, err := f.gateway.ResolveAndMutate(ctx, owner, model.VirtualRef(tpl.ID, day(2024, time.January, 5)), model.Date{}, DeleteOccurrence()); err != nil {
		t.Fatalf("delete occurrence: %v", err)
	}

	cases := []struct {
		name       string
		userID     uint
		templateID string
		date       model.Date
		want       error
	}{
		{"other owner", 2, tpl.ID, day(2024, time.January, 3), ErrForbidden},
		{"unknown template", owner, uuid.NewString(), day(2024, time.January, 3), ErrNotFound},
		{"day off the rule", owner, tpl.ID, day(2024, time.January, 2), ErrInvalidState},
		{"before anchor", owner, tpl.ID, day(2023, time.December, 29), ErrInvalidState},
		{"deleted occurrence", owner, tpl.ID, day(2024, time.January, 5), ErrInvalidState},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.mat.Materialize(ctx, tc.userID, tc.templateID, tc.date)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}
