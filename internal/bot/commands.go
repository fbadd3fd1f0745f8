package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"recurring-planner/internal/model"
	"recurring-planner/internal/service"
)

const helpText = "ℹ️ <b>Подсказки</b>\n" +
	"• /today [ГГГГ-ММ-ДД] — задачи на день\n" +
	"• /week — задачи на неделю\n" +
	"• /new название[!] [; подзадача] [| правило или дата [| конец]] — новая задача\n" +
	"   правила: <code>daily</code>, <code>weekly:1,3,5</code>, <code>monthly:31</code>\n" +
	"• /done &lt;ref&gt; — отметить выполненной\n" +
	"• /undo &lt;ref&gt; — снять отметку\n" +
	"• /rename &lt;ref&gt; &lt;название&gt; — переименовать\n" +
	"• /rule &lt;id серии&gt; &lt;правило&gt; — сменить правило повторения серии\n" +
	"• /delete &lt;ref&gt; — удалить одно повторение\n" +
	"• /deletefuture &lt;ref&gt; — удалить это и все следующие повторения\n" +
	"• /deleteseries &lt;ref&gt; — удалить всю серию\n" +
	"• /sub &lt;ref&gt; &lt;id подзадачи&gt; — отметить подзадачу\n" +
	"• /report — ежедневный отчёт\n" +
	"• /tz &lt;зона&gt; — часовой пояс, например /tz Europe/Moscow"

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "друг"
	}
	text := fmt.Sprintf("👋 Привет, %s!\n<b>Я планировщик с повторяющимися задачами.</b>\n\n%s", escape(name), helpText)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	return b.sendText(msg.Chat.ID, helpText)
}

func (b *Bot) handleReport(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	text, err := b.reminderSvc.DailySummary(ctx, user, time.Now())
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось сформировать отчёт: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleTimezone(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	tz := strings.TrimSpace(msg.CommandArguments())
	if tz == "" {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Текущий часовой пояс: %s. Укажи новый, например /tz Europe/Moscow", user.Location(b.loc)))
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return b.sendText(msg.Chat.ID, "Не знаю такой часовой пояс.")
	}
	if err := b.userRepo.SetTimezone(ctx, user.ID, tz); err != nil {
		return b.sendText(msg.Chat.ID, errorText(err))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🕰 Часовой пояс обновлён: %s.", escape(tz)))
}

func (b *Bot) handleToday(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	date := b.today(user)
	if arg := strings.TrimSpace(msg.CommandArguments()); arg != "" {
		if date, err = model.ParseDate(arg); err != nil {
			return b.sendText(msg.Chat.ID, "Дата в формате ГГГГ-ММ-ДД, например /today 2024-01-31")
		}
	}
	return b.sendDay(ctx, msg.Chat.ID, user, date)
}

func (b *Bot) handleWeek(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	start, end := b.today(user).WeekBounds()
	items, err := b.taskSvc.ListRange(ctx, user.ID, start, end)
	if err != nil {
		return b.sendText(msg.Chat.ID, errorText(err))
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("🗓 <b>Неделя %s — %s</b>\n", start.Time().Format("02.01"), end.Time().Format("02.01")))
	if len(items) == 0 {
		builder.WriteString("\n— задач нет")
	}
	var current model.Date
	for _, occ := range items {
		if occ.Task.Date != current {
			current = occ.Task.Date
			builder.WriteString(fmt.Sprintf("\n<b>%s</b>\n", weekdayTitle(current)))
		}
		builder.WriteString(service.FormatOccurrence(occ))
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace(builder.String()))
}

func (b *Bot) handleNew(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	input, err := parseNewTask(msg.CommandArguments(), b.today(user))
	if err != nil {
		return b.sendText(msg.Chat.ID, "Формат: /new название [| daily | 2024-12-31]\n"+escape(err.Error()))
	}

	task, err := b.taskSvc.CreateTask(ctx, user.ID, input)
	if err != nil {
		return b.sendText(msg.Chat.ID, errorText(err))
	}

	text := fmt.Sprintf("✨ Задача \"%s\" добавлена на %s.", escape(task.Title), task.Date)
	if task.IsTemplate() {
		text = fmt.Sprintf("♻️ Серия \"%s\" (%s) начинается %s.", escape(task.Title), task.RepeatRule, task.Date)
		if !task.RepeatEndDate.IsZero() {
			text += fmt.Sprintf(" Последний день: %s.", task.RepeatEndDate)
		}
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleMutation(ctx context.Context, msg *tgbotapi.Message, m service.Mutation, done string) error {
	ref, _, err := parseRefArgs(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Укажи ref задачи из списка: /%s &lt;ref&gt;", msg.Command()))
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	task, err := b.gateway.ResolveAndMutate(ctx, user.ID, ref, model.Date{}, m)
	if err != nil {
		return b.sendText(msg.Chat.ID, errorText(err))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("%s: %s", done, escape(task.Title)))
}

func (b *Bot) handleRename(ctx context.Context, msg *tgbotapi.Message) error {
	ref, title, err := parseRefArgs(msg.CommandArguments())
	if err != nil || title == "" {
		return b.sendText(msg.Chat.ID, "Формат: /rename &lt;ref&gt; новое название")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	task, err := b.gateway.ResolveAndMutate(ctx, user.ID, ref, model.Date{}, service.EditOccurrence(service.Edit{Title: &title}))
	if err != nil {
		return b.sendText(msg.Chat.ID, errorText(err))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("✏️ Теперь задача называется \"%s\".", escape(task.Title)))
}

func (b *Bot) handleRule(ctx context.Context, msg *tgbotapi.Message) error {
	ref, raw, err := parseRefArgs(msg.CommandArguments())
	if err != nil || raw == "" || ref.IsVirtual() {
		return b.sendText(msg.Chat.ID, "Формат: /rule &lt;id серии&gt; weekly:1,3")
	}
	rule, err := model.ParseRule(raw)
	if err != nil {
		return b.sendText(msg.Chat.ID, errorText(err))
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	tpl, err := b.gateway.ResolveAndMutate(ctx, user.ID, ref, model.Date{}, service.EditOccurrence(service.Edit{Rule: &rule}))
	if err != nil {
		return b.sendText(msg.Chat.ID, errorText(err))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("♻️ Серия \"%s\" теперь повторяется: %s.", escape(tpl.Title), tpl.RepeatRule))
}

func (b *Bot) handleDeleteFuture(ctx context.Context, msg *tgbotapi.Message) error {
	ref, _, err := parseRefArgs(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Формат: /deletefuture &lt;ref&gt;")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	tpl, err := b.gateway.DeleteFuture(ctx, user.ID, ref, model.Date{})
	if err != nil {
		return b.sendText(msg.Chat.ID, errorText(err))
	}
	if tpl.IsDeleted() {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("🗑 Серия \"%s\" удалена целиком.", escape(tpl.Title)))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("✂️ Серия \"%s\" теперь заканчивается %s.", escape(tpl.Title), tpl.RepeatEndDate))
}

func (b *Bot) handleDeleteSeries(ctx context.Context, msg *tgbotapi.Message) error {
	ref, _, err := parseRefArgs(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Формат: /deleteseries &lt;ref&gt;")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	tpl, err := b.gateway.DeleteSeries(ctx, user.ID, ref)
	if err != nil {
		return b.sendText(msg.Chat.ID, errorText(err))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🗑 Серия \"%s\" удалена. Уже созданные задачи остались.", escape(tpl.Title)))
}

func (b *Bot) handleSubTask(ctx context.Context, msg *tgbotapi.Message) error {
	ref, subID, err := parseRefArgs(msg.CommandArguments())
	if err != nil || subID == "" {
		return b.sendText(msg.Chat.ID, "Формат: /sub &lt;ref&gt; &lt;id подзадачи&gt;")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	st, err := b.gateway.MutateSubTask(ctx, user.ID, ref, model.Date{}, subID, service.CompleteSubTask())
	if err != nil {
		return b.sendText(msg.Chat.ID, errorText(err))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("☑️ Подзадача \"%s\" выполнена.", escape(st.Title)))
}

// sendDay lists one day with a complete/delete button row per open occurrence.
func (b *Bot) sendDay(ctx context.Context, chatID int64, user model.User, date model.Date) error {
	items, err := b.taskSvc.ListDay(ctx, user.ID, date)
	if err != nil {
		return b.sendText(chatID, errorText(err))
	}
	if len(items) == 0 {
		return b.sendText(chatID, fmt.Sprintf("На %s задач нет. Добавь новую через /new.", weekdayTitle(date)))
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("📋 <b>%s</b>\n\n", weekdayTitle(date)))

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, occ := range items {
		builder.WriteString(service.FormatOccurrence(occ))
		if occ.Task.IsCompleted {
			continue
		}
		ref := occ.Ref().String()
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ "+shortTitle(occ.Task.Title, 24), cbDonePrefix+ref),
			tgbotapi.NewInlineKeyboardButtonData("🗑", cbDeletePrefix+ref),
		))
	}

	text := strings.TrimSpace(builder.String())
	if len(buttons) == 0 {
		return b.sendText(chatID, text)
	}
	return b.sendWithReplyMarkup(chatID, text, tgbotapi.NewInlineKeyboardMarkup(buttons...))
}

var weekdayNames = [...]string{"", "Понедельник", "Вторник", "Среда", "Четверг", "Пятница", "Суббота", "Воскресенье"}

func weekdayTitle(d model.Date) string {
	return fmt.Sprintf("%s, %s", weekdayNames[d.ISOWeekday()], d.Time().Format("02.01.2006"))
}
