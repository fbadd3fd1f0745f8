package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"recurring-planner/internal/model"
)

// ReminderService builds human-readable summaries for daily notifications.
type ReminderService struct {
	tasks *TaskService
	loc   *time.Location
}

func NewReminderService(tasks *TaskService, loc *time.Location) *ReminderService {
	if loc == nil {
		loc = time.Local
	}
	return &ReminderService{tasks: tasks, loc: loc}
}

// DailySummary renders the user's occurrences for the day now falls on in the user's zone.
func (s *ReminderService) DailySummary(ctx context.Context, user model.User, now time.Time) (string, error) {
	now = now.In(user.Location(s.loc))
	today := model.DateOf(now)

	items, err := s.tasks.ListDay(ctx, user.ID, today)
	if err != nil {
		return "", err
	}

	var pending, done []Occurrence
	for _, occ := range items {
		if occ.Task.IsCompleted {
			done = append(done, occ)
			continue
		}
		pending = append(pending, occ)
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>Ежедневный отчёт</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", now.Format("02.01.2006")))

	builder.WriteString("🔥 <b>На сегодня</b>\n")
	if len(pending) == 0 {
		builder.WriteString("— нет открытых задач\n")
	} else {
		for _, occ := range pending {
			builder.WriteString(FormatOccurrence(occ))
		}
	}

	if len(done) > 0 {
		builder.WriteString("\n✅ <b>Выполнено</b>\n")
		for _, occ := range done {
			builder.WriteString(FormatOccurrence(occ))
		}
	}

	return strings.TrimSpace(builder.String()), nil
}

// FormatOccurrence renders one list entry with its ref and sub-tasks.
func FormatOccurrence(occ Occurrence) string {
	var sb strings.Builder

	icon := priorityIcon(occ.Task.Priority)
	switch {
	case occ.Task.IsCompleted:
		icon = "✅"
	case occ.Virtual || occ.Task.IsOccurrence:
		icon = "♻️"
	}

	sb.WriteString(fmt.Sprintf("%s %s", icon, html.EscapeString(strings.TrimSpace(occ.Task.Title))))
	if occ.Task.RepeatRule.Repeats() {
		sb.WriteString(fmt.Sprintf(" <i>(%s)</i>", html.EscapeString(describeRule(occ.Task.RepeatRule))))
	}
	sb.WriteString(fmt.Sprintf("\n   <code>%s</code>", html.EscapeString(occ.Ref().String())))

	for _, st := range occ.SubTasks {
		mark := "▫️"
		if st.IsCompleted {
			mark = "☑️"
		}
		sb.WriteString(fmt.Sprintf("\n   %s %s <code>%s</code>", mark, html.EscapeString(st.Title), st.ID))
	}

	sb.WriteByte('\n')
	return sb.String()
}

func priorityIcon(p model.Priority) string {
	switch p {
	case model.PriorityUrgent:
		return "🔴"
	case model.PriorityHigh:
		return "🟠"
	case model.PriorityMedium:
		return "🟡"
	default:
		return "🟢"
	}
}

var weekdayShort = [...]string{"", "пн", "вт", "ср", "чт", "пт", "сб", "вс"}

func describeRule(r model.Rule) string {
	switch r.Kind() {
	case model.RuleDaily:
		return "каждый день"
	case model.RuleWeekly:
		names := make([]string, 0, 7)
		for _, wd := range r.Weekdays() {
			names = append(names, weekdayShort[wd])
		}
		return "по " + strings.Join(names, ", ")
	case model.RuleMonthly:
		return fmt.Sprintf("%d числа", r.DayOfMonth())
	default:
		return "ошибка правила"
	}
}
