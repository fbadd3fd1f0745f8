// Package recurrence decides on which days a template occurs and builds the
// unsaved view of such an occurrence. Nothing here touches storage.
package recurrence

import "recurring-planner/internal/model"

// Matches reports whether template occurs on date. Malformed rules never match.
func Matches(template model.Task, date model.Date) bool {
	rule := template.RepeatRule
	if rule.IsNone() || date.IsZero() {
		return false
	}
	if date.Before(template.Date) {
		return false
	}
	if !template.RepeatEndDate.IsZero() && date.After(template.RepeatEndDate) {
		return false
	}

	switch rule.Kind() {
	case model.RuleDaily:
		return true
	case model.RuleWeekly:
		return rule.HasWeekday(date.ISOWeekday())
	case model.RuleMonthly:
		return matchesDayOfMonth(rule.DayOfMonth(), date)
	default:
		return false
	}
}

// matchesDayOfMonth clamps days past the month's end to its last day.
func matchesDayOfMonth(day int, date model.Date) bool {
	if day < 1 || day > 31 {
		return false
	}
	last := date.DaysInMonth()
	if day > last {
		return date.Day == last
	}
	return date.Day == day
}

// Occurrences lists the days in [start, end] on which template occurs.
func Occurrences(template model.Task, start, end model.Date) []model.Date {
	if template.RepeatRule.IsNone() || end.Before(start) {
		return nil
	}
	if start.Before(template.Date) {
		start = template.Date
	}
	if !template.RepeatEndDate.IsZero() && end.After(template.RepeatEndDate) {
		end = template.RepeatEndDate
	}

	var out []model.Date
	for d := start; !d.After(end); d = d.AddDays(1) {
		if Matches(template, d) {
			out = append(out, d)
		}
	}
	return out
}
