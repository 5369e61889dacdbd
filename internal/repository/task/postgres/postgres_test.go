package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"todoList/internal/codec"
	"todoList/internal/models/task"
	"todoList/internal/repository"
	"todoList/internal/repository/task/postgres"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresTestSuite для интеграционных тестов с PostgreSQL
type PostgresTestSuite struct {
	suite.Suite
	container  testcontainers.Container
	storage    *postgres.Storage
	ctx        context.Context
	connString string
}

// SetupSuite запускается один раз перед всеми тестами
func (s *PostgresTestSuite) SetupSuite() {
	s.ctx = context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(s.ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(s.T(), err)
	s.container = container

	host, err := container.Host(s.ctx)
	require.NoError(s.T(), err)

	port, err := container.MappedPort(s.ctx, "5432")
	require.NoError(s.T(), err)

	s.connString = fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	s.storage, err = postgres.New(s.ctx, s.connString)
	require.NoError(s.T(), err)

	require.NoError(s.T(), s.storage.Migrate(s.ctx))
}

// TearDownSuite очищает после всех тестов
func (s *PostgresTestSuite) TearDownSuite() {
	if s.storage != nil {
		s.storage.Close()
	}
	if s.container != nil {
		s.container.Terminate(s.ctx)
	}
}

// SetupTest очищает таблицы перед каждым тестом
func (s *PostgresTestSuite) SetupTest() {
	conn, err := pgx.Connect(s.ctx, s.connString)
	if err != nil {
		s.T().Logf("Не удалось подключиться для очистки: %v", err)
		return
	}
	defer conn.Close(s.ctx)

	if _, err := conn.Exec(s.ctx, "DELETE FROM task_lists"); err != nil {
		s.T().Logf("Не удалось очистить таблицу: %v", err)
	}
}

// TestPostgresTestSuite запускает suite
func TestPostgresTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционные тесты в коротком режиме")
	}
	suite.Run(t, new(PostgresTestSuite))
}

// TestStorage_WriteRead тестирует сохранение и загрузку списка
func (s *PostgresTestSuite) TestStorage_WriteRead() {
	tasks := []task.Task{
		{ID: "2", Text: "second", CreatedAt: time.Unix(20, 0), Deadline: task.UnixPtr(40), Importance: task.ImportanceImportant},
		{ID: "1", Text: "first", CreatedAt: time.Unix(10, 0), ChangedAt: task.UnixPtr(15), IsDone: true},
	}

	err := s.storage.Write(s.ctx, "tasks", codec.FormatJSON, tasks)
	require.NoError(s.T(), err)

	loaded, err := s.storage.Read(s.ctx, "tasks", codec.FormatJSON)
	require.NoError(s.T(), err)
	require.Len(s.T(), loaded, 2)
	assert.True(s.T(), tasks[1].Equal(loaded[0]))
	assert.True(s.T(), tasks[0].Equal(loaded[1]))
}

// TestStorage_WriteReplaces тестирует замену списка и дубликаты id
func (s *PostgresTestSuite) TestStorage_WriteReplaces() {
	require.NoError(s.T(), s.storage.Write(s.ctx, "tasks", codec.FormatJSON, []task.Task{
		{ID: "1", Text: "old", CreatedAt: time.Unix(1, 0)},
	}))
	require.NoError(s.T(), s.storage.Write(s.ctx, "tasks", codec.FormatJSON, []task.Task{
		{ID: "2", Text: "first copy", CreatedAt: time.Unix(2, 0)},
		{ID: "2", Text: "second copy", CreatedAt: time.Unix(2, 0)},
	}))

	loaded, err := s.storage.Read(s.ctx, "tasks", codec.FormatJSON)
	require.NoError(s.T(), err)
	require.Len(s.T(), loaded, 1)
	assert.Equal(s.T(), "second copy", loaded[0].Text)
}

// TestStorage_NotFound тестирует загрузку несохранённого списка
func (s *PostgresTestSuite) TestStorage_NotFound() {
	_, err := s.storage.Read(s.ctx, "absent", codec.FormatJSON)
	assert.ErrorIs(s.T(), err, repository.ErrNotFound)

	require.NoError(s.T(), s.storage.Write(s.ctx, "empty", codec.FormatJSON, nil))
	loaded, err := s.storage.Read(s.ctx, "empty", codec.FormatJSON)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), loaded)
}

// TestStorage_HealthCheck тестирует проверку соединения
func (s *PostgresTestSuite) TestStorage_HealthCheck() {
	assert.NoError(s.T(), s.storage.HealthCheck(s.ctx))
}

// TestStorage_MigrateIdempotent тестирует повторное применение миграций
func (s *PostgresTestSuite) TestStorage_MigrateIdempotent() {
	assert.NoError(s.T(), s.storage.Migrate(s.ctx))
}

// TestStorage_DownUp тестирует откат миграций и повторное применение
func (s *PostgresTestSuite) TestStorage_DownUp() {
	require.NoError(s.T(), s.storage.Write(s.ctx, "tasks", codec.FormatJSON, []task.Task{
		{ID: "1", Text: "before", CreatedAt: time.Unix(1, 0)},
	}))

	require.NoError(s.T(), s.storage.Down(s.ctx))
	defer func() {
		require.NoError(s.T(), s.storage.Migrate(s.ctx))
	}()

	_, err := s.storage.Read(s.ctx, "tasks", codec.FormatJSON)
	require.Error(s.T(), err)
	assert.NotErrorIs(s.T(), err, repository.ErrNotFound)

	require.NoError(s.T(), s.storage.Migrate(s.ctx))

	_, err = s.storage.Read(s.ctx, "tasks", codec.FormatJSON)
	assert.ErrorIs(s.T(), err, repository.ErrNotFound)

	require.NoError(s.T(), s.storage.Write(s.ctx, "tasks", codec.FormatJSON, []task.Task{
		{ID: "2", Text: "after", CreatedAt: time.Unix(2, 0)},
	}))
	loaded, err := s.storage.Read(s.ctx, "tasks", codec.FormatJSON)
	require.NoError(s.T(), err)
	require.Len(s.T(), loaded, 1)
	assert.Equal(s.T(), "after", loaded[0].Text)
}
