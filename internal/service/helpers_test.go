package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/gorm"

	"recurring-planner/internal/config"
	"recurring-planner/internal/logging"
	"recurring-planner/internal/model"
	"recurring-planner/internal/repository"
)

const owner uint = 1

type fixture struct {
	db       *gorm.DB
	store    *repository.GormStore
	tasks    *TaskService
	mat      *Materializer
	gateway  *Gateway
	reminder *ReminderService
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db, err := repository.NewDB(config.DriverSQLite, filepath.Join(t.TempDir(), "planner.db"), logging.Discard())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	store := repository.NewStore(db)
	logger := logging.Discard()
	tasks := NewTaskService(store, logger)
	mat := NewMaterializer(store, logger)
	return fixture{
		db:       db,
		store:    store,
		tasks:    tasks,
		mat:      mat,
		gateway:  NewGateway(store, mat, logger),
		reminder: NewReminderService(tasks, time.UTC),
	}
}

func day(y int, m time.Month, d int) model.Date {
	return model.NewDate(y, m, d)
}

func (f fixture) template(t *testing.T, title string, rule model.Rule, anchor model.Date, subtasks ...string) model.Task {
	t.Helper()
	tpl, err := f.tasks.CreateTask(context.Background(), owner, TaskInput{
		Title:    title,
		Date:     anchor,
		Rule:     rule,
		SubTasks: subtasks,
	})
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	return tpl
}

func (f fixture) list(t *testing.T, d model.Date) []Occurrence {
	t.Helper()
	items, err := f.tasks.ListDay(context.Background(), owner, d)
	if err != nil {
		t.Fatalf("list %s: %v", d, err)
	}
	return items
}

func titles(items []Occurrence) []string {
	out := make([]string, 0, len(items))
	for _, occ := range items {
		out = append(out, occ.Task.Title)
	}
	return out
}
