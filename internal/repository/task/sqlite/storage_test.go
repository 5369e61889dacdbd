package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"todoList/internal/codec"
	"todoList/internal/models/task"
	"todoList/internal/repository"
	"todoList/internal/repository/task/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStorage(t *testing.T) *sqlite.Storage {
	t.Helper()
	storage, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "db", "todo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })
	return storage
}

// TestStorage_WriteRead тестирует сохранение и загрузку списка
func TestStorage_WriteRead(t *testing.T) {
	ctx := context.Background()
	storage := openStorage(t)

	tasks := []task.Task{
		{ID: "b", Text: "second", CreatedAt: time.Unix(20, 0), ChangedAt: task.UnixPtr(25), Importance: task.ImportanceLow, IsDone: true},
		{ID: "a", Text: "first", CreatedAt: time.Unix(10, 0), Deadline: task.UnixPtr(100)},
	}
	require.NoError(t, storage.Write(ctx, "tasks", codec.FormatJSON, tasks))

	loaded, err := storage.Read(ctx, "tasks", codec.FormatCSV)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	assert.Equal(t, "a", loaded[0].ID)
	assert.Equal(t, task.ImportanceNormal, loaded[0].Importance)
	assert.Equal(t, int64(100), loaded[0].Deadline.Unix())
	assert.Nil(t, loaded[0].ChangedAt)
	assert.True(t, tasks[0].Equal(loaded[1]))
}

// TestStorage_WriteReplaces тестирует полную замену списка
func TestStorage_WriteReplaces(t *testing.T) {
	ctx := context.Background()
	storage := openStorage(t)

	require.NoError(t, storage.Write(ctx, "tasks", codec.FormatJSON, []task.Task{
		{ID: "a", Text: "a", CreatedAt: time.Unix(1, 0)},
		{ID: "b", Text: "b", CreatedAt: time.Unix(2, 0)},
	}))
	require.NoError(t, storage.Write(ctx, "tasks", codec.FormatJSON, []task.Task{
		{ID: "c", Text: "c", CreatedAt: time.Unix(3, 0)},
	}))

	loaded, err := storage.Read(ctx, "tasks", codec.FormatJSON)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "c", loaded[0].ID)
}

// TestStorage_ListsIsolated тестирует независимость списков
func TestStorage_ListsIsolated(t *testing.T) {
	ctx := context.Background()
	storage := openStorage(t)

	require.NoError(t, storage.Write(ctx, "home", codec.FormatJSON, []task.Task{{ID: "1", CreatedAt: time.Unix(1, 0)}}))
	require.NoError(t, storage.Write(ctx, "work", codec.FormatJSON, []task.Task{{ID: "1", CreatedAt: time.Unix(2, 0)}, {ID: "2", CreatedAt: time.Unix(3, 0)}}))

	home, err := storage.Read(ctx, "home", codec.FormatJSON)
	require.NoError(t, err)
	assert.Len(t, home, 1)

	work, err := storage.Read(ctx, "work", codec.FormatJSON)
	require.NoError(t, err)
	assert.Len(t, work, 2)
}

// TestStorage_EmptyAndMissing тестирует пустой и несохранённый список
func TestStorage_EmptyAndMissing(t *testing.T) {
	ctx := context.Background()
	storage := openStorage(t)

	_, err := storage.Read(ctx, "absent", codec.FormatJSON)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, storage.Write(ctx, "empty", codec.FormatJSON, nil))
	loaded, err := storage.Read(ctx, "empty", codec.FormatJSON)
	require.NoError(t, err)
	assert.Empty(t, loaded)

	assert.NoError(t, storage.HealthCheck(ctx))
}
