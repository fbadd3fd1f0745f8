package recurrence

import (
	"testing"
	"time"

	"recurring-planner/internal/model"
)

func TestProject_CopiesTemplateAndMarksVirtual(t *testing.T) {
	tpl := template(model.Weekly(1, 3, 5), date(2024, time.January, 1))
	day := date(2024, time.January, 8)

	occ := Project(tpl, day)

	if occ.Title != tpl.Title || occ.Priority != tpl.Priority || !occ.RepeatRule.Equal(tpl.RepeatRule) {
		t.Fatalf("expected template fields to be copied, got %+v", occ)
	}
	if occ.Date != day || occ.IsCompleted || occ.CompletedAt != nil {
		t.Fatalf("expected open occurrence on %s, got %+v", day, occ)
	}
	if !occ.IsOccurrence || occ.TemplateID() != tpl.ID || occ.IsTemplate() {
		t.Fatalf("expected occurrence of %s, got %+v", tpl.ID, occ)
	}

	ref, err := model.ParseRef(occ.ID)
	if err != nil {
		t.Fatalf("parse projected id: %v", err)
	}
	if !ref.IsVirtual() || ref.ID() != tpl.ID || ref.Date() != day {
		t.Fatalf("expected virtual ref back, got %+v", ref)
	}
}

func TestProject_IsIndependentOfTemplateCompletion(t *testing.T) {
	tpl := template(model.Daily(), date(2024, time.January, 1)).Complete(time.Now())
	occ := Project(tpl, date(2024, time.January, 2))
	if occ.IsCompleted {
		t.Fatalf("expected projection to start open")
	}
}

func TestNewInstance_MatchesProjectionWithRealID(t *testing.T) {
	tpl := template(model.Daily(), date(2024, time.January, 1))
	day := date(2024, time.January, 5)
	now := time.Date(2024, time.January, 5, 9, 0, 0, 0, time.UTC)

	inst := NewInstance(tpl, day, "c0f4bc6a-1df3-4f0a-9b8e-3a1a4d2f7e01", now)
	virtual := Project(tpl, day)

	if inst.ID == virtual.ID {
		t.Fatalf("expected a real id, got the virtual one")
	}
	inst.ID, virtual.ID = "", ""
	inst.CreatedAt, inst.UpdatedAt = time.Time{}, time.Time{}
	if inst.Title != virtual.Title || inst.Date != virtual.Date || inst.TemplateID() != virtual.TemplateID() ||
		inst.IsOccurrence != virtual.IsOccurrence || inst.Priority != virtual.Priority {
		t.Fatalf("expected instance %+v to equal projection %+v", inst, virtual)
	}
}

func TestProjectSubTasks_ResetCompletion(t *testing.T) {
	tpl := template(model.Daily(), date(2024, time.January, 1))
	occ := Project(tpl, date(2024, time.January, 3))
	done := time.Now()
	subs := []model.SubTask{
		{ID: "s1", TaskID: tpl.ID, Title: "warm up", IsCompleted: true, CompletedAt: &done},
		{ID: "s2", TaskID: tpl.ID, Title: "cool down", Position: 1},
	}

	got := ProjectSubTasks(subs, occ)
	if len(got) != 2 {
		t.Fatalf("expected 2 sub-tasks, got %d", len(got))
	}
	for i, st := range got {
		if st.IsCompleted || st.CompletedAt != nil {
			t.Fatalf("expected open sub-task, got %+v", st)
		}
		if st.TaskID != occ.ID || st.RepeatParentID == nil || *st.RepeatParentID != subs[i].ID {
			t.Fatalf("expected sub-task linked to %s and %s, got %+v", occ.ID, subs[i].ID, st)
		}
	}
}
