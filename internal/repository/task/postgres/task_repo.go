package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"todoList/internal/codec"
	"todoList/internal/logger"
	"todoList/internal/models/task"
	repo "todoList/internal/repository"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Storage struct {
	pool       *pgxpool.Pool
	connString string
}

func New(ctx context.Context, connString string) (*Storage, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		logger.Error("Repository: Ошибка загрузки конфига", err)
		return nil, fmt.Errorf("загрузка конфига: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnIdleTime = time.Minute * 5

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		logger.Error("Repository: Ошибка создания пула", err)
		return nil, fmt.Errorf("создание пула: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		logger.Error("Repository: Неудачная проверка ping", err)
		return nil, fmt.Errorf("проверка соединения ping: %w", err)
	}

	logger.Info("Repository: Успешное создание подключения к PostgreSQL")
	return &Storage{pool: pool, connString: connString}, nil
}

func (s *Storage) Close() error {
	s.pool.Close()
	logger.Info("Repository: Закрытие всех соединений PostgreSQL")
	return nil
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	err := s.pool.Ping(ctx)
	if err != nil {
		logger.Error("Repository: Неудачная проверка ping", err)
		return fmt.Errorf("проверка соединения ping: %w", err)
	}
	return nil
}

// Migrate применяет встроенные миграции. Повторный запуск без новых миграций не считается ошибкой.
func (s *Storage) Migrate(ctx context.Context) error {
	m, err := s.migrator()
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error("Repository: Не удалось применить миграции", err)
		return fmt.Errorf("применение миграций: %w", err)
	}
	logger.Info("Repository: Миграции применены")
	return nil
}

// Down откатывает все миграции, таблицы списков удаляются вместе с данными.
func (s *Storage) Down(ctx context.Context) error {
	m, err := s.migrator()
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error("Repository: Не удалось откатить миграции", err)
		return fmt.Errorf("откат миграций: %w", err)
	}
	logger.Info("Repository: Миграции откачены")
	return nil
}

func (s *Storage) migrator() (*migrate.Migrate, error) {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("чтение миграций: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(s.connString))
	if err != nil {
		return nil, fmt.Errorf("инициализация миграций: %w", err)
	}
	return m, nil
}

// драйвер pgx/v5 для migrate регистрируется под схемой pgx5
func migrateURL(connString string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(connString, prefix) {
			return "pgx5://" + strings.TrimPrefix(connString, prefix)
		}
	}
	return connString
}

// Write заменяет содержимое списка одной транзакцией, задачи загружаются через COPY.
func (s *Storage) Write(ctx context.Context, name string, _ codec.Format, tasks []task.Task) error {
	start := time.Now()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("начало транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO task_lists (name, saved_at) VALUES ($1, NOW())
		ON CONFLICT (name) DO UPDATE SET saved_at = NOW()`, name)
	if err != nil {
		logger.Error("Repository: Не удалось обновить список", err, zap.String("list", name))
		return fmt.Errorf("обновление списка %s: %w", name, err)
	}

	if _, err = tx.Exec(ctx, `DELETE FROM tasks WHERE list = $1`, name); err != nil {
		return fmt.Errorf("очистка списка %s: %w", name, err)
	}

	rows := make([][]any, 0, len(tasks))
	seen := make(map[string]int, len(tasks))
	for _, t := range tasks {
		row := []any{name, t.ID, t.Text, t.CreatedAt.Unix(), unixOrNil(t.Deadline), unixOrNil(t.ChangedAt), string(importanceOf(t)), t.IsDone}
		// COPY не допускает дубликатов ключа, последняя задача с тем же id побеждает
		if i, ok := seen[t.ID]; ok {
			rows[i] = row
			continue
		}
		seen[t.ID] = len(rows)
		rows = append(rows, row)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"tasks"},
		[]string{"list", "id", "text", "created_at", "deadline", "changed_at", "importance", "is_done"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		logger.Error("Repository: Не удалось добавить задачи", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("добавление задач: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("фиксация транзакции: %w", err)
	}

	if time.Since(start) > time.Millisecond*50+time.Millisecond*time.Duration(len(tasks)) {
		logger.Warn("Repository: Медленная операция", zap.Duration("ms", time.Since(start)), zap.Int("tasks", len(tasks)))
	}
	return nil
}

func (s *Storage) Read(ctx context.Context, name string, _ codec.Format) ([]task.Task, error) {
	start := time.Now()

	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM task_lists WHERE name = $1)`, name).Scan(&exists)
	if err != nil {
		logger.Error("Repository: Не удалось получить список", err, zap.String("list", name))
		return nil, fmt.Errorf("получение списка %s: %w", name, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", repo.ErrNotFound, name)
	}

	query := `SELECT
				id,
				text,
				created_at,
				deadline,
				changed_at,
				importance,
				is_done
				FROM tasks
				WHERE list = $1
				ORDER BY created_at, id`

	rows, err := s.pool.Query(ctx, query, name)
	if err != nil {
		logger.Error("Repository: Не удалось получить задачи", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение задач: %w", err)
	}
	defer rows.Close()

	tasks := []task.Task{}
	for rows.Next() {
		var (
			t                   task.Task
			createdAt           int64
			deadline, changedAt *int64
			importance          string
		)

		err := rows.Scan(&t.ID, &t.Text, &createdAt, &deadline, &changedAt, &importance, &t.IsDone)
		if err != nil {
			logger.Warn("Repository: Ошибка сканирования задачи", zap.Error(err))
			return nil, fmt.Errorf("сканирование задачи: %w", err)
		}

		t.CreatedAt = task.FromUnix(createdAt)
		if deadline != nil {
			t.Deadline = task.UnixPtr(*deadline)
		}
		if changedAt != nil {
			t.ChangedAt = task.UnixPtr(*changedAt)
		}
		t.Importance, err = task.ParseImportance(importance)
		if err != nil {
			return nil, fmt.Errorf("%w: задача %s: %w", repo.ErrInvalidData, t.ID, err)
		}
		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		logger.Error("Repository: Ошибка итерации по строкам", err)
		return nil, fmt.Errorf("итерация по строкам: %w", err)
	}

	if time.Since(start) > time.Millisecond*100 {
		logger.Warn("Repository: Медленный запрос", zap.Duration("ms", time.Since(start)))
	}
	return tasks, nil
}

func unixOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func importanceOf(t task.Task) task.Importance {
	if t.Importance == "" {
		return task.ImportanceNormal
	}
	return t.Importance
}
