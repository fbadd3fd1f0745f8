package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"recurring-planner/internal/bot"
	"recurring-planner/internal/config"
	"recurring-planner/internal/logging"
	"recurring-planner/internal/repository"
	"recurring-planner/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.New(logging.Options{Level: os.Getenv("LOG_LEVEL")})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", "err", err)
	}
	if err := cfg.RequireToken(); err != nil {
		logger.Fatal("config", "err", err)
	}
	logger = logging.New(logging.Options{Level: cfg.LogLevel})

	db, err := repository.NewDB(cfg.DatabaseDriver, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("db", "err", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	store := repository.NewStore(db)
	userRepo := repository.NewUserRepository(db)

	taskSvc := service.NewTaskService(store, logger)
	materializer := service.NewMaterializer(store, logger)
	gateway := service.NewGateway(store, materializer, logger)
	reminderSvc := service.NewReminderService(taskSvc, cfg.Location)

	telegramBot, err := bot.New(cfg.TelegramToken, userRepo, taskSvc, gateway, reminderSvc, cfg.Location, logger)
	if err != nil {
		logger.Fatal("bot", "err", err)
	}

	sendReports := func() {
		jobCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := telegramBot.SendDailyReports(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("daily report", "err", err)
		}
	}

	scheduler := service.NewSchedulerService(cfg.Location, logger)
	if _, err := scheduler.ScheduleDaily(cfg.ReportTime, sendReports); err != nil {
		logger.Fatal("schedule reports", "err", err)
	}
	if cfg.ReportInterval > 0 {
		if _, err := scheduler.ScheduleInterval(cfg.ReportInterval, sendReports); err != nil {
			logger.Fatal("schedule interval reports", "err", err)
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	logger.Info("recurring planner bot started", "driver", cfg.DatabaseDriver, "report_time", cfg.ReportTime, "report_interval", cfg.ReportInterval, "tz", cfg.Location)
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("bot stopped with error", "err", err)
		return
	}
	logger.Info("shutdown complete")
}
