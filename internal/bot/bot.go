package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"recurring-planner/internal/model"
	"recurring-planner/internal/repository"
	"recurring-planner/internal/service"
)

const (
	menuLabelToday = "📅 Сегодня"
	menuLabelWeek  = "🗓 Неделя"
	menuLabelHelp  = "ℹ️ Помощь"
)

// Bot aggregates Telegram API with services.
type Bot struct {
	api         *tgbotapi.BotAPI
	userRepo    *repository.UserRepository
	taskSvc     *service.TaskService
	gateway     *service.Gateway
	reminderSvc *service.ReminderService
	loc         *time.Location
	logger      *log.Logger
}

func New(token string, userRepo *repository.UserRepository, taskSvc *service.TaskService, gateway *service.Gateway, reminderSvc *service.ReminderService, loc *time.Location, logger *log.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	logger.Info("bot authorized", "account", api.Self.UserName)

	return &Bot{
		api:         api,
		userRepo:    userRepo,
		taskSvc:     taskSvc,
		gateway:     gateway,
		reminderSvc: reminderSvc,
		loc:         loc,
		logger:      logger,
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.logger.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				b.logger.Error("handle callback", "err", err)
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				b.logger.Error("handle message", "err", err)
			}
		}
	}

	return ctx.Err()
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if msg.IsCommand() {
		b.logger.Debug("command", "from", msg.From.ID, "command", msg.Command(), "args", msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	switch strings.TrimSpace(msg.Text) {
	case menuLabelToday:
		return b.handleToday(ctx, msg)
	case menuLabelWeek:
		return b.handleWeek(ctx, msg)
	case menuLabelHelp:
		return b.handleHelp(msg)
	}

	return b.sendText(msg.Chat.ID, "Я пока не понял сообщение. Набери /new, чтобы добавить задачу, или /help для списка команд.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "today":
		return b.handleToday(ctx, msg)
	case "week":
		return b.handleWeek(ctx, msg)
	case "new":
		return b.handleNew(ctx, msg)
	case "done":
		return b.handleMutation(ctx, msg, service.CompleteOccurrence(), "✅ Отмечено выполненным")
	case "undo":
		return b.handleMutation(ctx, msg, service.UncompleteOccurrence(), "↩️ Отметка снята")
	case "delete":
		return b.handleMutation(ctx, msg, service.DeleteOccurrence(), "🗑 Удалено")
	case "rename":
		return b.handleRename(ctx, msg)
	case "rule":
		return b.handleRule(ctx, msg)
	case "deletefuture":
		return b.handleDeleteFuture(ctx, msg)
	case "deleteseries":
		return b.handleDeleteSeries(ctx, msg)
	case "sub":
		return b.handleSubTask(ctx, msg)
	case "report":
		return b.handleReport(ctx, msg)
	case "tz":
		return b.handleTimezone(ctx, msg)
	default:
		return b.sendText(msg.Chat.ID, "Команда не поддерживается. Загляни в /help.")
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.logger.Warn("callback ack", "err", err)
	}

	var (
		m      service.Mutation
		prefix string
		done   string
	)
	switch {
	case strings.HasPrefix(cb.Data, cbDonePrefix):
		m, prefix, done = service.CompleteOccurrence(), cbDonePrefix, "✅ Отмечено выполненным"
	case strings.HasPrefix(cb.Data, cbDeletePrefix):
		m, prefix, done = service.DeleteOccurrence(), cbDeletePrefix, "🗑 Удалено"
	default:
		return nil
	}

	ref, err := parseCallback(cb.Data, prefix)
	if err != nil {
		return nil
	}
	user, err := b.ensureUser(ctx, cb.From)
	if err != nil {
		return err
	}

	b.logger.Debug("callback", "from", cb.From.ID, "data", cb.Data)
	task, err := b.gateway.ResolveAndMutate(ctx, user.ID, ref, model.Date{}, m)
	if err != nil {
		return b.sendText(cb.Message.Chat.ID, errorText(err))
	}
	if err := b.sendText(cb.Message.Chat.ID, fmt.Sprintf("%s: %s", done, escape(task.Title))); err != nil {
		return err
	}
	return b.sendDay(ctx, cb.Message.Chat.ID, user, task.Date)
}

// SendDailyReports sends a summary to every known user.
func (b *Bot) SendDailyReports(ctx context.Context) error {
	users, err := b.userRepo.ListAll(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		text, err := b.reminderSvc.DailySummary(ctx, user, now)
		if err != nil {
			b.logger.Error("build summary", "user", user.TelegramID, "err", err)
			continue
		}
		if err := b.sendText(user.TelegramID, text); err != nil {
			b.logger.Error("send summary", "user", user.TelegramID, "err", err)
		}
	}
	return nil
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (model.User, error) {
	return b.userRepo.UpsertFromTelegram(ctx, from.ID, from.FirstName, from.UserName)
}

func (b *Bot) today(user model.User) model.Date {
	return model.Today(user.Location(b.loc))
}

func (b *Bot) sendText(chatID int64, text string) error {
	return b.sendWithReplyMarkup(chatID, text, mainMenuKeyboard())
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelToday),
			tgbotapi.NewKeyboardButton(menuLabelWeek),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}
