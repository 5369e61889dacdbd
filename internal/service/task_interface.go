package service

import (
	"context"

	"todoList/internal/codec"
	"todoList/internal/models/task"
)

type LocalStore interface {
	Upsert(task.Task) (task.Task, bool)
	Remove(id string) (task.Task, bool)
	Get(id string) (task.Task, bool)
	All() []task.Task
	Len() int
	Replace([]task.Task)
	Save(ctx context.Context, name string, format codec.Format) error
	Load(ctx context.Context, name string, format codec.Format) error
}

type RemoteClient interface {
	FetchList(ctx context.Context) ([]task.Task, error)
	Add(ctx context.Context, t task.Task) (task.Task, error)
	Edit(ctx context.Context, t task.Task) (task.Task, error)
	Delete(ctx context.Context, id string) (task.Task, error)
	BulkReplace(ctx context.Context, tasks []task.Task) ([]task.Task, error)
}
