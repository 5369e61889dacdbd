package cache

import (
	"context"
	"fmt"
	"time"

	"todoList/internal/codec"
	"todoList/internal/logger"
	"todoList/internal/models/task"
	"todoList/internal/repository/task/inmemory"
	"todoList/internal/worker"

	"go.uber.org/zap"
)

// Backend долговременно хранит списки задач под именем name.
type Backend interface {
	Write(ctx context.Context, name string, format codec.Format, tasks []task.Task) error
	Read(ctx context.Context, name string, format codec.Format) ([]task.Task, error)
}

// Cache держит задачи в памяти и сохраняет их в Backend. Все обращения к Backend идут через одну
// очередь, поэтому сохранения и загрузки одного кэша никогда не пересекаются.
type Cache struct {
	tasks   *inmemory.TaskStorage
	backend Backend
	queue   *worker.Queue
}

func New(backend Backend) *Cache {
	return &Cache{
		tasks:   inmemory.NewTaskStorage(),
		backend: backend,
		queue:   worker.NewQueue(16),
	}
}

func (c *Cache) Upsert(t task.Task) (task.Task, bool) {
	return c.tasks.Upsert(t)
}

func (c *Cache) Remove(id string) (task.Task, bool) {
	return c.tasks.Remove(id)
}

func (c *Cache) Get(id string) (task.Task, bool) {
	return c.tasks.Get(id)
}

func (c *Cache) All() []task.Task {
	return c.tasks.All()
}

func (c *Cache) Len() int {
	return c.tasks.Len()
}

func (c *Cache) Replace(tasks []task.Task) {
	c.tasks.Replace(tasks)
}

// Save сохраняет задачи в том виде, в каком они лежат в памяти к моменту выполнения записи
// в очереди, и ждёт результата. Отмена ctx прекращает ожидание, но поставленная запись
// доводится до конца.
func (c *Cache) Save(ctx context.Context, name string, format codec.Format) error {
	return wait(ctx, c.save(ctx, name, format))
}

func (c *Cache) SaveAsync(name string, format codec.Format) <-chan error {
	return c.save(context.Background(), name, format)
}

// Load заменяет содержимое кэша списком из Backend. При ошибке состояние в памяти не меняется.
func (c *Cache) Load(ctx context.Context, name string, format codec.Format) error {
	return wait(ctx, c.load(ctx, name, format))
}

func (c *Cache) LoadAsync(name string, format codec.Format) <-chan error {
	return c.load(context.Background(), name, format)
}

// Close дожидается завершения поставленных операций.
func (c *Cache) Close() {
	c.queue.Close()
}

func (c *Cache) save(ctx context.Context, name string, format codec.Format) <-chan error {
	result := make(chan error, 1)
	ctx = context.WithoutCancel(ctx)

	err := c.queue.Submit(func() {
		start := time.Now()
		// снимок берётся в очереди, чтобы запись видела результат предыдущей загрузки
		err := c.backend.Write(ctx, name, format, c.tasks.All())
		if err != nil {
			logger.Error("Cache: Не удалось сохранить список", err,
				zap.String("list", name),
				zap.String("format", string(format)))
			result <- fmt.Errorf("сохранение кэша: %w", err)
			return
		}
		if time.Since(start) > time.Millisecond*100 {
			logger.Warn("Cache: Медленное сохранение", zap.Duration("ms", time.Since(start)))
		}
		result <- nil
	})
	if err != nil {
		result <- fmt.Errorf("сохранение кэша: %w", err)
	}
	return result
}

func (c *Cache) load(ctx context.Context, name string, format codec.Format) <-chan error {
	result := make(chan error, 1)
	ctx = context.WithoutCancel(ctx)

	err := c.queue.Submit(func() {
		tasks, err := c.backend.Read(ctx, name, format)
		if err != nil {
			logger.Warn("Cache: Не удалось загрузить список",
				zap.String("list", name),
				zap.String("format", string(format)),
				zap.Error(err))
			result <- fmt.Errorf("загрузка кэша: %w", err)
			return
		}
		c.tasks.Replace(tasks)
		logger.Info("Cache: Список загружен", zap.String("list", name), zap.Int("tasks", len(tasks)))
		result <- nil
	})
	if err != nil {
		result <- fmt.Errorf("загрузка кэша: %w", err)
	}
	return result
}

func wait(ctx context.Context, result <-chan error) error {
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
