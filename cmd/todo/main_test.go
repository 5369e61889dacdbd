package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"todoList/internal/config"
	"todoList/internal/models/task"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.Dir = filepath.Join(dir, "data")
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, config.Write(path, cfg, false))
	return path
}

// TestCLI_TaskLifecycle тестирует добавление, изменение и удаление через команды
func TestCLI_TaskLifecycle(t *testing.T) {
	cfgPath := writeConfig(t)

	out, err := run(t, "-c", cfgPath, "add", "Купить молоко", "--importance", "important", "--deadline", "2030-01-02 10:00")
	require.NoError(t, err)
	assert.Contains(t, out, "добавлена")

	data, err := os.ReadFile(filepath.Join(filepath.Dir(cfgPath), "data", "tasks.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"importance":"important"`)

	out, err = run(t, "-c", cfgPath, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Купить молоко")
	assert.Contains(t, out, "02.01.2030")

	id := firstID(t, out)

	_, err = run(t, "-c", cfgPath, "edit", id, "--text", "Купить кефир", "--clear-deadline")
	require.NoError(t, err)

	out, err = run(t, "-c", cfgPath, "done", id)
	require.NoError(t, err)
	assert.Contains(t, out, "выполнена")

	out, err = run(t, "-c", cfgPath, "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "Купить кефир")
	assert.Contains(t, out, "Выполнено: 1")

	out, err = run(t, "-c", cfgPath, "list", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "Купить кефир")

	_, err = run(t, "-c", cfgPath, "rm", id)
	require.NoError(t, err)

	_, err = run(t, "-c", cfgPath, "rm", id)
	assert.Error(t, err)
}

// TestCLI_ExportImport тестирует экспорт в CSV и обратный импорт
func TestCLI_ExportImport(t *testing.T) {
	cfgPath := writeConfig(t)

	_, err := run(t, "-c", cfgPath, "add", "Первая")
	require.NoError(t, err)
	_, err = run(t, "-c", cfgPath, "add", "Вторая")
	require.NoError(t, err)

	out, err := run(t, "-c", cfgPath, "export", "--name", "backup", "--format", "csv")
	require.NoError(t, err)
	assert.Contains(t, out, "Экспортировано задач: 2")

	raw, err := os.ReadFile(filepath.Join(filepath.Dir(cfgPath), "data", "backup.csv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "id;text;createdAt;deadline;changedAt;importance;isDone"))

	out, err = run(t, "-c", cfgPath, "import", "--name", "backup", "--format", "csv")
	require.NoError(t, err)
	assert.Contains(t, out, "Импортировано задач: 2")

	_, err = run(t, "-c", cfgPath, "import", "--name", "backup", "--format", "xml")
	assert.Error(t, err)
}

// TestCLI_Validation тестирует ошибки ввода
func TestCLI_Validation(t *testing.T) {
	cfgPath := writeConfig(t)

	_, err := run(t, "-c", cfgPath, "add", "x", "--importance", "urgent")
	assert.Error(t, err)

	_, err = run(t, "-c", cfgPath, "add", "x", "--deadline", "когда-нибудь потом")
	assert.Error(t, err)

	_, err = run(t, "-c", cfgPath, "edit", "1")
	assert.Error(t, err)

	_, err = run(t, "-c", cfgPath, "add")
	assert.Error(t, err)
}

// TestCLI_SyncLocalOnly тестирует sync без сервера
func TestCLI_SyncLocalOnly(t *testing.T) {
	cfgPath := writeConfig(t)
	out, err := run(t, "-c", cfgPath, "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "совпадает")
}

// TestCLI_ConfigInit тестирует создание конфигурации
func TestCLI_ConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")

	out, err := run(t, "-c", path, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, path)

	_, err = run(t, "-c", path, "config", "init")
	assert.Error(t, err)

	_, err = run(t, "-c", path, "config", "init", "--force")
	assert.NoError(t, err)
}

// TestRenderTask тестирует отображение задачи
func TestRenderTask(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.Local)
	overdue := now.Add(-time.Hour)

	line := renderTask(task.Task{ID: "1", Text: "Позвонить", Deadline: &overdue, Importance: task.ImportanceImportant}, now)
	assert.Contains(t, line, "[ ]")
	assert.Contains(t, line, "Позвонить")
	assert.Contains(t, line, "просрочено")

	line = renderTask(task.Task{ID: "2", Text: "Готово", Deadline: &overdue, IsDone: true}, now)
	assert.Contains(t, line, "[x]")
	assert.NotContains(t, line, "просрочено")
}

func firstID(t *testing.T, listing string) string {
	t.Helper()
	for _, line := range strings.Split(listing, "\n") {
		if strings.HasPrefix(line, "[ ] ") || strings.HasPrefix(line, "[x] ") {
			fields := strings.Fields(line[4:])
			require.NotEmpty(t, fields)
			return fields[0]
		}
	}
	t.Fatalf("в выводе нет задач: %q", listing)
	return ""
}
