package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"todoList/internal/codec"
	"todoList/internal/logger"
	"todoList/internal/models/task"
	rep "todoList/internal/repository"

	"go.uber.org/zap"
)

// здесь локальные изменения применяются к кэшу и отправляются на сервер

// Outcome описывает результат изменения: Synced=false означает, что задача сохранена локально,
// но сервер её ещё не получил.
type Outcome struct {
	Task   task.Task
	Synced bool
}

// SyncService применяет изменения сначала локально, затем на сервере. Неудачный запрос к серверу
// не откатывает локальное изменение, а помечает список грязным; при следующей возможности весь
// локальный список отправляется на сервер целиком.
type SyncService struct {
	store    LocalStore
	remote   RemoteClient
	listName string
	format   codec.Format
	merge    bool
	now      func() time.Time

	mtx   sync.Mutex
	dirty atomic.Bool
}

type Option func(*SyncService)

func WithListName(name string) Option {
	if name == "" {
		return nil
	}
	return func(s *SyncService) {
		s.listName = name
	}
}

func WithFormat(format codec.Format) Option {
	if format == "" {
		return nil
	}
	return func(s *SyncService) {
		s.format = format
	}
}

// WithMerge включает перенос каноничных полей из ответов сервера в локальный кэш.
func WithMerge(merge bool) Option {
	return func(s *SyncService) {
		s.merge = merge
	}
}

func WithClock(now func() time.Time) Option {
	if now == nil {
		return nil
	}
	return func(s *SyncService) {
		s.now = now
	}
}

// NewSyncService создаёт сервис. remote == nil означает работу только с локальным списком.
func NewSyncService(store LocalStore, remote RemoteClient, options ...Option) *SyncService {
	s := &SyncService{
		store:    store,
		remote:   remote,
		listName: "tasks",
		format:   codec.FormatJSON,
		merge:    true,
		now:      time.Now,
	}
	for _, opt := range options {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *SyncService) IsDirty() bool {
	return s.dirty.Load()
}

// Bootstrap загружает локальный список, затем, если есть сервер, заменяет его серверным.
// Недоступность сервера не является ошибкой: остаётся локальный список.
func (s *SyncService) Bootstrap(ctx context.Context) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	err := s.store.Load(ctx, s.listName, s.format)
	switch {
	case err == nil:
	case errors.Is(err, rep.ErrFileNotFound), errors.Is(err, rep.ErrNotFound):
		logger.Info("Service: Локальный список ещё не сохранялся", zap.String("list", s.listName))
	case s.remote == nil:
		return NewBusinessError(CodePersistFailed, "не удалось загрузить локальный список", err, ToDetail("list", s.listName))
	default:
		logger.Warn("Service: Локальный список не загружен, используем сервер", zap.Error(err))
	}

	if s.remote == nil {
		return nil
	}

	tasks, err := s.remote.FetchList(ctx)
	if err != nil {
		if s.store.Len() > 0 {
			s.dirty.Store(true)
		}
		logger.Warn("Service: Сервер недоступен, работаем с локальным списком",
			zap.Error(err),
			zap.Bool("dirty", s.dirty.Load()))
		return nil
	}

	s.store.Replace(tasks)
	s.dirty.Store(false)
	logger.Info("Service: Список получен с сервера", zap.Int("tasks", len(tasks)))
	return s.persist(ctx)
}

func (s *SyncService) AddTask(ctx context.Context, text string, options ...task.Option) (Outcome, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if strings.TrimSpace(text) == "" {
		return Outcome{}, NewValidationError("text", "текст задачи не может быть пустым")
	}

	t := task.New(text, options...)
	if err := validate(t); err != nil {
		return Outcome{}, err
	}
	if _, exists := s.store.Get(t.ID); exists {
		return Outcome{}, NewValidationError("id", "задача с таким id уже существует")
	}

	s.store.Upsert(t)
	if err := s.persist(ctx); err != nil {
		return Outcome{Task: t}, err
	}

	synced := s.push(ctx, "add", t.ID, func(ctx context.Context) (task.Task, error) {
		return s.remote.Add(ctx, t)
	})
	return s.outcome(t, synced), nil
}

// EditTask применяет опции к существующей задаче и проставляет время изменения. id задачи не меняется.
func (s *SyncService) EditTask(ctx context.Context, id string, options ...task.Option) (Outcome, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.edit(ctx, id, options...)
}

func (s *SyncService) ToggleDone(ctx context.Context, id string) (Outcome, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	current, ok := s.store.Get(id)
	if !ok {
		return Outcome{}, NewNotFound(id)
	}
	return s.edit(ctx, id, task.WithDone(!current.IsDone))
}

func (s *SyncService) DeleteTask(ctx context.Context, id string) (Outcome, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	removed, ok := s.store.Remove(id)
	if !ok {
		logger.Info("Service: Задача не найдена", zap.String("target_id", id))
		return Outcome{}, NewNotFound(id)
	}
	if err := s.persist(ctx); err != nil {
		return Outcome{Task: removed}, err
	}

	synced := s.push(ctx, "delete", id, func(ctx context.Context) (task.Task, error) {
		return s.remote.Delete(ctx, id)
	})
	return Outcome{Task: removed, Synced: synced}, nil
}

// Synchronize отправляет весь локальный список на сервер, если он помечен грязным.
func (s *SyncService) Synchronize(ctx context.Context) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.synchronize(ctx)
}

// Export сохраняет текущий список под другим именем и в другом формате. Основной список не меняется.
func (s *SyncService) Export(ctx context.Context, name string, format codec.Format) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if err := s.store.Save(ctx, name, format); err != nil {
		return NewPersistError(name, err)
	}
	logger.Info("Service: Список экспортирован",
		zap.String("list", name),
		zap.String("format", string(format)),
		zap.Int("tasks", s.store.Len()))
	return nil
}

// Import заменяет текущий список сохранённым списком name и отправляет результат на сервер.
// Если сервер недоступен, список остаётся грязным.
func (s *SyncService) Import(ctx context.Context, name string, format codec.Format) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if err := s.store.Load(ctx, name, format); err != nil {
		return NewBusinessError(CodeValidation, "не удалось прочитать список для импорта", err,
			ToDetail("list", name),
			ToDetail("format", string(format)))
	}
	if err := s.persist(ctx); err != nil {
		return err
	}

	if s.remote == nil {
		return nil
	}
	s.dirty.Store(true)
	if err := s.synchronize(ctx); err != nil {
		logger.Warn("Service: Импортированный список будет отправлен позже", zap.Error(err))
	}
	return nil
}

func (s *SyncService) Tasks(includeDone bool) []task.Task {
	all := s.store.All()
	if includeDone {
		return all
	}
	res := make([]task.Task, 0, len(all))
	for _, t := range all {
		if !t.IsDone {
			res = append(res, t)
		}
	}
	return res
}

func (s *SyncService) GetTask(id string) (task.Task, error) {
	t, ok := s.store.Get(id)
	if !ok {
		return task.Task{}, NewNotFound(id)
	}
	return t, nil
}

func (s *SyncService) CompletedCount() int {
	count := 0
	for _, t := range s.store.All() {
		if t.IsDone {
			count++
		}
	}
	return count
}

func (s *SyncService) edit(ctx context.Context, id string, options ...task.Option) (Outcome, error) {
	current, ok := s.store.Get(id)
	if !ok {
		logger.Info("Service: Задача не найдена", zap.String("target_id", id))
		return Outcome{}, NewNotFound(id)
	}

	updated := current.Clone()
	for _, opt := range options {
		if opt != nil {
			opt(&updated)
		}
	}
	updated.ID = current.ID
	updated.CreatedAt = current.CreatedAt
	changedAt := s.now().Truncate(time.Second)
	updated.ChangedAt = &changedAt

	if err := validate(updated); err != nil {
		return Outcome{}, err
	}

	s.store.Upsert(updated)
	if err := s.persist(ctx); err != nil {
		return Outcome{Task: updated}, err
	}

	synced := s.push(ctx, "edit", id, func(ctx context.Context) (task.Task, error) {
		return s.remote.Edit(ctx, updated)
	})
	return s.outcome(updated, synced), nil
}

// push отправляет изменение на сервер. Если список уже грязный, вместо отдельного запроса
// выполняется полная синхронизация: она уже содержит это изменение.
func (s *SyncService) push(ctx context.Context, op, id string, call func(ctx context.Context) (task.Task, error)) bool {
	if s.remote == nil {
		return false
	}

	if s.dirty.Load() {
		return s.synchronize(ctx) == nil
	}

	canonical, err := call(ctx)
	if err != nil {
		s.dirty.Store(true)
		logger.Warn("Service: Сервер не принял изменение, список помечен грязным",
			zap.String("op", op),
			zap.String("task_id", id),
			zap.Error(err))
		return false
	}

	if s.merge && op != "delete" {
		s.store.Upsert(canonical)
		if err := s.persist(ctx); err != nil {
			logger.Warn("Service: Ответ сервера не сохранён локально", zap.String("task_id", id), zap.Error(err))
		}
	}
	return true
}

func (s *SyncService) synchronize(ctx context.Context) error {
	if s.remote == nil || !s.dirty.Load() {
		return nil
	}

	start := time.Now()
	local := s.store.All()
	server, err := s.remote.BulkReplace(ctx, local)
	if err != nil {
		logger.Warn("Service: Синхронизация не удалась", zap.Error(err), zap.Int("tasks", len(local)))
		return NewSyncError(err)
	}
	s.dirty.Store(false)

	logger.Info("Service: Список синхронизирован",
		zap.Int("tasks", len(local)),
		zap.Duration("ms", time.Since(start)))

	if s.merge {
		s.store.Replace(server)
		return s.persist(ctx)
	}
	return nil
}

// persist сохраняет список. При ошибке состояние в памяти опережает хранилище, это логируется.
func (s *SyncService) persist(ctx context.Context) error {
	if err := s.store.Save(ctx, s.listName, s.format); err != nil {
		logger.Error("Service: Список в памяти расходится с сохранённым", err,
			zap.String("list", s.listName),
			zap.String("format", string(s.format)))
		return NewPersistError(s.listName, err)
	}
	return nil
}

func (s *SyncService) outcome(t task.Task, synced bool) Outcome {
	if current, ok := s.store.Get(t.ID); ok {
		t = current
	}
	return Outcome{Task: t, Synced: synced}
}

func validate(t task.Task) error {
	if t.ID == "" {
		return NewValidationError("id", "пустой id")
	}
	// JSON-кодек заменяет битые байты на U+FFFD, такую задачу не прочитать обратно без потерь
	if !utf8.ValidString(t.Text) {
		return NewValidationError("text", "текст должен быть в UTF-8")
	}
	if t.Importance != "" {
		if _, err := task.ParseImportance(string(t.Importance)); err != nil {
			return NewValidationError("importance", err.Error())
		}
	}
	return nil
}
