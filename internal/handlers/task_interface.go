package handlers

import (
	"context"

	"todoList/internal/models/task"
	"todoList/internal/service"
)

type Service interface {
	Tasks(includeDone bool) []task.Task
	CompletedCount() int
	IsDirty() bool
	GetTask(id string) (task.Task, error)
	AddTask(ctx context.Context, text string, options ...task.Option) (service.Outcome, error)
	EditTask(ctx context.Context, id string, options ...task.Option) (service.Outcome, error)
	ToggleDone(ctx context.Context, id string) (service.Outcome, error)
	DeleteTask(ctx context.Context, id string) (service.Outcome, error)
	Synchronize(ctx context.Context) error
}

// HealthChecker проверяет хранилище; у файлового бэкенда проверки нет.
type HealthChecker func(ctx context.Context) error
