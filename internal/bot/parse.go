package bot

import (
	"errors"
	"fmt"
	"html"
	"strings"

	"recurring-planner/internal/model"
	"recurring-planner/internal/service"
)

const (
	cbDonePrefix   = "done:"
	cbDeletePrefix = "del:"
)

var errUsage = errors.New("usage")

// parseNewTask reads "/new" arguments: "title[; sub; sub] [| rule-or-date [| end]]".
// The task is anchored at today unless the second part is a plain date.
func parseNewTask(args string, today model.Date) (service.TaskInput, error) {
	parts := strings.Split(args, "|")
	if len(parts) > 3 {
		return service.TaskInput{}, errUsage
	}

	head := strings.Split(parts[0], ";")
	input := service.TaskInput{
		Title: strings.TrimSpace(head[0]),
		Date:  today,
	}
	if input.Title == "" {
		return service.TaskInput{}, errUsage
	}
	for _, st := range head[1:] {
		if st = strings.TrimSpace(st); st != "" {
			input.SubTasks = append(input.SubTasks, st)
		}
	}
	input.Title, input.Priority = splitPriority(input.Title)

	if len(parts) > 1 {
		second := strings.TrimSpace(parts[1])
		if d, err := model.ParseDate(second); err == nil {
			if len(parts) > 2 {
				return service.TaskInput{}, errUsage
			}
			input.Date = d
			return input, nil
		}
		rule, err := model.ParseRule(second)
		if err != nil {
			return service.TaskInput{}, fmt.Errorf("rule %q: %w", second, err)
		}
		input.Rule = rule
	}

	if len(parts) > 2 {
		end, err := model.ParseDate(strings.TrimSpace(parts[2]))
		if err != nil {
			return service.TaskInput{}, err
		}
		input.RepeatEnd = end
	}
	return input, nil
}

// splitPriority strips trailing "!" marks: one for medium up to three for urgent.
func splitPriority(title string) (string, model.Priority) {
	trimmed := strings.TrimRight(title, "!")
	marks := len(title) - len(trimmed)
	if marks > int(model.PriorityUrgent) {
		marks = int(model.PriorityUrgent)
	}
	return strings.TrimSpace(trimmed), model.Priority(marks)
}

// parseRefArgs splits "<ref> rest" and parses the ref.
func parseRefArgs(args string) (model.Ref, string, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return model.Ref{}, "", errUsage
	}
	ref, err := model.ParseRef(fields[0])
	if err != nil {
		return model.Ref{}, "", err
	}
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(args), fields[0]))
	return ref, rest, nil
}

func parseCallback(data, prefix string) (model.Ref, error) {
	return model.ParseRef(strings.TrimPrefix(data, prefix))
}

// errorText maps service errors to messages for the user.
func errorText(err error) string {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return "Задача не найдена."
	case errors.Is(err, service.ErrForbidden):
		return "Это не твоя задача."
	case errors.Is(err, service.ErrInvalidState):
		return "С этой задачей так нельзя: она удалена или не приходится на этот день."
	case errors.Is(err, service.ErrInvalidRange):
		return "Слишком большой период."
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, model.ErrMalformedRule):
		return fmt.Sprintf("Неверные данные: %s", escape(err.Error()))
	default:
		return fmt.Sprintf("Ошибка: %s", escape(err.Error()))
	}
}

func shortTitle(title string, maxLen int) string {
	clean := strings.Join(strings.Fields(title), " ")
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func escape(s string) string {
	return html.EscapeString(s)
}
