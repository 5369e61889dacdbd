package filecache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"todoList/internal/codec"
	"todoList/internal/logger"
	"todoList/internal/models/task"
	repo "todoList/internal/repository"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Storage хранит списки задач файлами <dir>/<name>.<json|csv>.
type Storage struct {
	fs  afero.Fs
	dir string
}

func New(fsys afero.Fs, dir string) *Storage {
	return &Storage{fs: fsys, dir: dir}
}

// NewOS создаёт хранилище поверх файловой системы ОС.
func NewOS(dir string) *Storage {
	return New(afero.NewOsFs(), dir)
}

func (s *Storage) Path(name string, format codec.Format) string {
	return filepath.Join(s.dir, name+format.Ext())
}

// Write атомарно перезаписывает файл списка: данные пишутся во временный файл рядом с целевым,
// затем он переименовывается.
func (s *Storage) Write(ctx context.Context, name string, format codec.Format, tasks []task.Task) error {
	start := time.Now()
	path := s.Path(name, format)

	if err := s.checkDirs(path); err != nil {
		logger.Error("Repository: Каталог для сохранения недоступен", err, zap.String("path", path))
		return err
	}

	data, err := codec.Marshal(format, tasks)
	if err != nil {
		return fmt.Errorf("сериализация списка %s: %w", name, err)
	}

	if err := s.writeAtomic(path, data); err != nil {
		logger.Error("Repository: Не удалось сохранить список", err, zap.String("path", path))
		return fmt.Errorf("сохранение списка %s: %w", name, err)
	}

	if time.Since(start) > time.Millisecond*100 {
		logger.Warn("Repository: Медленная операция", zap.Duration("ms", time.Since(start)), zap.String("path", path))
	}
	logger.Info("Repository: Список сохранён",
		zap.String("path", path),
		zap.Int("tasks", len(tasks)))
	return nil
}

func (s *Storage) Read(ctx context.Context, name string, format codec.Format) ([]task.Task, error) {
	start := time.Now()
	path := s.Path(name, format)

	if err := s.checkDirs(path); err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", repo.ErrFileNotFound, path)
		}
		logger.Error("Repository: Не удалось прочитать список", err, zap.String("path", path))
		return nil, fmt.Errorf("чтение списка %s: %w", name, err)
	}

	tasks, skipped, err := codec.Unmarshal(format, data)
	if err != nil {
		logger.Warn("Repository: Некорректные данные в файле", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %w", repo.ErrInvalidData, path, err)
	}
	for _, skipErr := range skipped {
		logger.Warn("Repository: Задача пропущена при загрузке", zap.String("path", path), zap.Error(skipErr))
	}

	if time.Since(start) > time.Millisecond*100 {
		logger.Warn("Repository: Медленная операция", zap.Duration("ms", time.Since(start)), zap.String("path", path))
	}
	return tasks, nil
}

// checkDirs различает отсутствие корневого каталога хранилища и отсутствие промежуточного
// каталога, если имя списка содержит путь.
func (s *Storage) checkDirs(path string) error {
	ok, err := afero.DirExists(s.fs, s.dir)
	if err != nil {
		return fmt.Errorf("проверка каталога %s: %w", s.dir, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", repo.ErrDirectoryNotFound, s.dir)
	}

	parent := filepath.Dir(path)
	if parent == filepath.Clean(s.dir) {
		return nil
	}
	ok, err = afero.DirExists(s.fs, parent)
	if err != nil {
		return fmt.Errorf("проверка каталога %s: %w", parent, err)
	}
	if !ok {
		return &os.PathError{Op: "open", Path: parent, Err: os.ErrNotExist}
	}
	return nil
}

func (s *Storage) writeAtomic(path string, data []byte) error {
	tmp, err := afero.TempFile(s.fs, filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("создание временного файла: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return fmt.Errorf("запись временного файла: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return fmt.Errorf("синхронизация временного файла: %w", err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("закрытие временного файла: %w", err)
	}
	if err := s.fs.Rename(tmpName, path); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("переименование временного файла: %w", err)
	}
	return nil
}
