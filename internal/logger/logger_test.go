package logger_test

import (
	"os"
	"path/filepath"
	"testing"

	"todoList/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// TestInit_FileSink тестирует запись в файл с ротацией
func TestInit_FileSink(t *testing.T) {
	previous := logger.Logger
	t.Cleanup(func() { logger.Logger = previous })

	path := filepath.Join(t.TempDir(), "todo.log")
	require.NoError(t, logger.Init(logger.Options{File: path, MaxSizeMB: 1}))

	logger.Warn("Test: предупреждение", zap.String("task_id", "42"))
	logger.Sync()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Test: предупреждение")
	assert.Contains(t, string(raw), `"task_id":"42"`)
}

// TestDefaultLogger тестирует логгер по умолчанию
func TestDefaultLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		logger.Info("Test: без инициализации")
		logger.Error("Test: ошибка", nil)
	})
}
