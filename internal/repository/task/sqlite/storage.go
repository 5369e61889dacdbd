package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"todoList/internal/codec"
	"todoList/internal/logger"
	"todoList/internal/models/task"
	repo "todoList/internal/repository"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS task_lists (
	name     TEXT PRIMARY KEY,
	saved_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
	list       TEXT NOT NULL REFERENCES task_lists(name) ON DELETE CASCADE,
	id         TEXT NOT NULL,
	text       TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	deadline   INTEGER,
	changed_at INTEGER,
	importance TEXT NOT NULL DEFAULT 'normal',
	is_done    INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (list, id)
);

CREATE INDEX IF NOT EXISTS idx_tasks_list_created ON tasks(list, created_at);
`

// Storage хранит списки задач во встроенной базе SQLite. Формат файла не используется:
// поля задачи лежат в типизированных колонках.
type Storage struct {
	db   *sql.DB
	path string
}

func Open(ctx context.Context, path string) (*Storage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("создание каталога базы: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		logger.Error("Repository: Ошибка открытия SQLite", err, zap.String("path", path))
		return nil, fmt.Errorf("открытие базы: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		logger.Error("Repository: Неудачная проверка ping", err)
		return nil, fmt.Errorf("проверка соединения ping: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		logger.Error("Repository: Не удалось создать схему", err)
		return nil, fmt.Errorf("создание схемы: %w", err)
	}

	logger.Info("Repository: Успешное подключение к SQLite", zap.String("path", path))
	return &Storage{db: db, path: path}, nil
}

func (s *Storage) Close() error {
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		logger.Warn("Repository: Не удалось выполнить checkpoint WAL", zap.Error(err))
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("закрытие базы: %w", err)
	}
	logger.Info("Repository: Соединение с SQLite закрыто")
	return nil
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		logger.Error("Repository: Неудачная проверка ping", err)
		return fmt.Errorf("проверка соединения ping: %w", err)
	}
	return nil
}

// Write заменяет содержимое списка name одной транзакцией.
func (s *Storage) Write(ctx context.Context, name string, _ codec.Format, tasks []task.Task) (err error) {
	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("начало транзакции: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO task_lists (name, saved_at) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET saved_at = excluded.saved_at`,
		name, time.Now().Unix())
	if err != nil {
		logger.Error("Repository: Не удалось обновить список", err, zap.String("list", name))
		return fmt.Errorf("обновление списка %s: %w", name, err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM tasks WHERE list = ?`, name); err != nil {
		return fmt.Errorf("очистка списка %s: %w", name, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO tasks (list, id, text, created_at, deadline, changed_at, importance, is_done)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("подготовка вставки: %w", err)
	}
	defer stmt.Close()

	for _, t := range tasks {
		_, err = stmt.ExecContext(ctx,
			name,
			t.ID,
			t.Text,
			t.CreatedAt.Unix(),
			unixOrNil(t.Deadline),
			unixOrNil(t.ChangedAt),
			string(importanceOf(t)),
			t.IsDone,
		)
		if err != nil {
			logger.Error("Repository: Не удалось добавить задачу", err, zap.String("task_id", t.ID))
			return fmt.Errorf("добавление задачи %s: %w", t.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("фиксация транзакции: %w", err)
	}

	if time.Since(start) > time.Millisecond*100 {
		logger.Warn("Repository: Медленная операция", zap.Duration("ms", time.Since(start)), zap.Int("tasks", len(tasks)))
	}
	return nil
}

func (s *Storage) Read(ctx context.Context, name string, _ codec.Format) ([]task.Task, error) {
	start := time.Now()

	var savedAt int64
	err := s.db.QueryRowContext(ctx, `SELECT saved_at FROM task_lists WHERE name = ?`, name).Scan(&savedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", repo.ErrNotFound, name)
		}
		return nil, fmt.Errorf("получение списка %s: %w", name, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, created_at, deadline, changed_at, importance, is_done
		FROM tasks
		WHERE list = ?
		ORDER BY created_at, id`, name)
	if err != nil {
		logger.Error("Repository: Не удалось получить задачи", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение задач: %w", err)
	}
	defer rows.Close()

	tasks := make([]task.Task, 0)
	for rows.Next() {
		var (
			t                   task.Task
			createdAt           int64
			deadline, changedAt sql.NullInt64
			importance          string
		)
		if err := rows.Scan(&t.ID, &t.Text, &createdAt, &deadline, &changedAt, &importance, &t.IsDone); err != nil {
			return nil, fmt.Errorf("сканирование задачи: %w", err)
		}

		t.CreatedAt = task.FromUnix(createdAt)
		if deadline.Valid {
			t.Deadline = task.UnixPtr(deadline.Int64)
		}
		if changedAt.Valid {
			t.ChangedAt = task.UnixPtr(changedAt.Int64)
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
