package inmemory

import (
	"sync"

	"todoList/internal/models/task"
)

// TaskStorage хранит задачи по id. Значения копируются на входе и выходе,
// поэтому вызывающий код не может изменить состояние хранилища в обход методов.
type TaskStorage struct {
	storage map[string]task.Task
	mtx     *sync.RWMutex
}

func NewTaskStorage() *TaskStorage {
	return &TaskStorage{
		storage: make(map[string]task.Task),
		mtx:     &sync.RWMutex{},
	}
}

// Upsert добавляет задачу или заменяет существующую с тем же id.
func (s *TaskStorage) Upsert(t task.Task) (task.Task, bool) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	prev, ok := s.storage[t.ID]
	s.storage[t.ID] = t.Clone()
	return prev, ok
}

func (s *TaskStorage) Remove(id string) (task.Task, bool) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	removed, ok := s.storage[id]
	if !ok {
		return task.Task{}, false
	}
	delete(s.storage, id)
	return removed, true
}

func (s *TaskStorage) Get(id string) (task.Task, bool) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	t, ok := s.storage[id]
	if !ok {
		return task.Task{}, false
	}
	return t.Clone(), true
}

// All возвращает снимок задач, отсортированный по времени создания.
func (s *TaskStorage) All() []task.Task {
	s.mtx.RLock()
	res := make([]task.Task, 0, len(s.storage))
	for _, t := range s.storage {
		res = append(res, t.Clone())
	}
	s.mtx.RUnlock()

	task.SortByCreatedAt(res, true)
	return res
}

func (s *TaskStorage) Len() int {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return len(s.storage)
}

// Replace целиком заменяет содержимое. При повторяющихся id побеждает последняя задача.
func (s *TaskStorage) Replace(tasks []task.Task) {
	next := make(map[string]task.Task, len(tasks))
	for _, t := range tasks {
		next[t.ID] = t.Clone()
	}

	s.mtx.Lock()
	s.storage = next
	s.mtx.Unlock()
}
