package recurrence

import (
	"time"

	"recurring-planner/internal/model"
)

// Project builds the unsaved occurrence of template on date. Callers check Matches first.
// The id is the virtual ref string, which never collides with a stored uuid.
func Project(template model.Task, date model.Date) model.Task {
	occ := occurrenceOf(template, date)
	occ.ID = model.VirtualRef(template.ID, date).String()
	return occ
}

// NewInstance is the stored form of Project: same field values with a real id and timestamps.
func NewInstance(template model.Task, date model.Date, id string, now time.Time) model.Task {
	occ := occurrenceOf(template, date)
	occ.ID = id
	occ.CreatedAt = now
	occ.UpdatedAt = now
	return occ
}

func occurrenceOf(template model.Task, date model.Date) model.Task {
	parent := template.ID
	return model.Task{
		UserID:           template.UserID,
		Title:            template.Title,
		Priority:         template.Priority,
		Date:             date,
		RepeatRule:       template.RepeatRule,
		IsOccurrence:     true,
		ParentTemplateID: &parent,
	}
}

// ProjectSubTasks shows the sub-task templates of a virtual occurrence. Each keeps the
// template's id, which the gateway maps to the copied instance once materialized.
func ProjectSubTasks(templates []model.SubTask, occurrence model.Task) []model.SubTask {
	out := make([]model.SubTask, 0, len(templates))
	for _, st := range templates {
		parent := st.ID
		out = append(out, model.SubTask{
			ID:             st.ID,
			TaskID:         occurrence.ID,
			Title:          st.Title,
			RepeatRule:     st.RepeatRule,
			IsOccurrence:   true,
			RepeatParentID: &parent,
			Position:       st.Position,
		})
	}
	return out
}
