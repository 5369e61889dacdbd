package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"todoList/internal/deadline"
	"todoList/internal/handlers/dto"
	"todoList/internal/logger"
	"todoList/internal/models/task"
	"todoList/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const warningNotSynced = "изменение сохранено локально, сервер недоступен"

type TaskHandler struct {
	TaskService Service
	health      HealthChecker
	deadlines   *deadline.Parser
	now         func() time.Time
}

type Option func(*TaskHandler)

func WithHealthCheck(check HealthChecker) Option {
	if check == nil {
		return nil
	}
	return func(h *TaskHandler) {
		h.health = check
	}
}

func WithClock(now func() time.Time) Option {
	if now == nil {
		return nil
	}
	return func(h *TaskHandler) {
		h.now = now
	}
}

func NewTaskHandler(taskService Service, options ...Option) *TaskHandler {
	h := &TaskHandler{
		TaskService: taskService,
		deadlines:   deadline.NewParser(),
		now:         time.Now,
	}
	for _, opt := range options {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes монтирует обработчики на роутер.
func (s *TaskHandler) Routes(r chi.Router) {
	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", s.GetTasks)  // GET /tasks?include_done=true
		r.Post("/", s.PostTask) // POST /tasks

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetTaskByID)           // GET /tasks/{id}
			r.Put("/", s.UpdateTaskByID)        // PUT /tasks/{id}
			r.Delete("/", s.DeleteTaskByID)     // DELETE /tasks/{id}
			r.Post("/toggle", s.ToggleTaskByID) // POST /tasks/{id}/toggle
		})
	})

	r.Post("/sync", s.Synchronize)
	r.Get("/health", s.HealthCheck)
}

func (s *TaskHandler) GetTasks(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	includeDone := false
	if raw := r.URL.Query().Get("include_done"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			logger.Warn("HTTP: Неверное значение параметра",
				zap.String("query", "include_done"),
				zap.String("value", raw),
				zap.String("client_ip", r.RemoteAddr))
			responseWithError(w, http.StatusBadRequest, "include_done должен быть true или false")
			return
		}
		includeDone = v
	}

	tasks := s.TaskService.Tasks(includeDone)

	logger.Info("HTTP_OUT: Задачи получены",
		zap.Int("count", len(tasks)),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK,
		toPayload("tasks", dto.FromTaskList(tasks, s.now())),
		toPayload("completed", s.TaskService.CompletedCount()),
		toPayload("dirty", s.TaskService.IsDirty()),
	)
}

func (s *TaskHandler) PostTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if !checkContentType(r, "application/json") {
		logger.Warn("HTTP: Неверный тип контента",
			zap.String("expected", "application/json"),
			zap.String("received", r.Header.Get("Content-Type")),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusUnsupportedMediaType, "Content-Type должен быть application/json")
		return
	}

	var request dto.CreateTaskRequest
	if !decodeBody(w, r, &request) {
		return
	}

	if strings.TrimSpace(request.Text) == "" {
		logger.Warn("HTTP: Ошибка валидации",
			zap.String("field", "text"),
			zap.String("error", "empty_field"),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "текст задачи не может быть пустым")
		return
	}

	options := []task.Option{task.WithID(request.ID), task.WithDone(request.IsDone)}
	extra, ok := s.commonOptions(w, r, request.Deadline, request.Importance)
	if !ok {
		return
	}
	options = append(options, extra...)

	outcome, err := s.TaskService.AddTask(r.Context(), request.Text, options...)
	if err != nil {
		respondError(w, err, "create_task")
		return
	}

	logger.Info("HTTP_OUT: Задача создана",
		zap.String("task_id", outcome.Task.ID),
		zap.Bool("synced", outcome.Synced),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusCreated))

	s.respondOutcome(w, http.StatusCreated, outcome)
}

func (s *TaskHandler) GetTaskByID(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	t, err := s.TaskService.GetTask(id)
	if err != nil {
		respondError(w, err, "get_task")
		return
	}
	responseWithJSON(w, http.StatusOK, toPayload("task", dto.FromTask(t, s.now())))
}

func (s *TaskHandler) UpdateTaskByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, ok := taskID(w, r)
	if !ok {
		return
	}
	if !checkContentType(r, "application/json") {
		responseWithError(w, http.StatusUnsupportedMediaType, "Content-Type должен быть application/json")
		return
	}

	var request dto.UpdateTaskRequest
	if !decodeBody(w, r, &request) {
		return
	}

	var options []task.Option
	if request.Text != nil {
		if strings.TrimSpace(*request.Text) == "" {
			responseWithError(w, http.StatusBadRequest, "текст задачи не может быть пустым")
			return
		}
		options = append(options, task.WithText(*request.Text))
	}
	if request.IsDone != nil {
		options = append(options, task.WithDone(*request.IsDone))
	}
	extra, ok := s.commonOptions(w, r, request.Deadline, request.Importance)
	if !ok {
		return
	}
	options = append(options, extra...)

	outcome, err := s.TaskService.EditTask(r.Context(), id, options...)
	if err != nil {
		respondError(w, err, "update_task")
		return
	}

	logger.Info("HTTP_OUT: Задача обновлена",
		zap.String("task_id", id),
		zap.Bool("synced", outcome.Synced),
		zap.Duration("ms", time.Since(start)))

	s.respondOutcome(w, http.StatusOK, outcome)
}

func (s *TaskHandler) ToggleTaskByID(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	outcome, err := s.TaskService.ToggleDone(r.Context(), id)
	if err != nil {
		respondError(w, err, "toggle_task")
		return
	}
	s.respondOutcome(w, http.StatusOK, outcome)
}

func (s *TaskHandler) DeleteTaskByID(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	outcome, err := s.TaskService.DeleteTask(r.Context(), id)
	if err != nil {
		respondError(w, err, "delete_task")
		return
	}

	logger.Info("HTTP_OUT: Задача удалена", zap.String("task_id", id), zap.Bool("synced", outcome.Synced))
	s.respondOutcome(w, http.StatusOK, outcome)
}

func (s *TaskHandler) Synchronize(w http.ResponseWriter, r *http.Request) {
	if err := s.TaskService.Synchronize(r.Context()); err != nil {
		respondError(w, err, "synchronize")
		return
	}
	responseWithJSON(w, http.StatusOK, toPayload("dirty", s.TaskService.IsDirty()))
}

func (s *TaskHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			logger.Error("HTTP: Хранилище недоступно", err)
			responseWithJSON(w, http.StatusServiceUnavailable,
				toPayload("status", "unhealthy"),
				toPayload("error", err.Error()))
			return
		}
	}
	responseWithJSON(w, http.StatusOK,
		toPayload("status", "ok"),
		toPayload("dirty", s.TaskService.IsDirty()))
}

func (s *TaskHandler) commonOptions(w http.ResponseWriter, r *http.Request, rawDeadline, rawImportance *string) ([]task.Option, bool) {
	var options []task.Option

	if rawDeadline != nil {
		if strings.TrimSpace(*rawDeadline) == "" {
			options = append(options, task.WithoutDeadline())
		} else {
			d, err := s.deadlines.Parse(*rawDeadline, s.now())
			if err != nil {
				logger.Warn("HTTP: Ошибка валидации",
					zap.String("field", "deadline"),
					zap.Error(err),
					zap.String("client_ip", r.RemoteAddr))
				responseWithError(w, http.StatusBadRequest, err.Error())
				return nil, false
			}
			options = append(options, task.WithDeadline(d))
		}
	}

	if rawImportance != nil {
		importance, err := task.ParseImportance(*rawImportance)
		if err != nil {
			logger.Warn("HTTP: Ошибка валидации",
				zap.String("field", "importance"),
				zap.Error(err),
				zap.String("client_ip", r.RemoteAddr))
			responseWithError(w, http.StatusBadRequest, err.Error())
			return nil, false
		}
		options = append(options, task.WithImportance(importance))
	}

	return options, true
}

func (s *TaskHandler) respondOutcome(w http.ResponseWriter, code int, outcome service.Outcome) {
	payload := []Payload{
		toPayload("task", dto.FromTask(outcome.Task, s.now())),
		toPayload("synced", outcome.Synced),
	}
	if !outcome.Synced && s.TaskService.IsDirty() {
		payload = append(payload, toPayload("warning", warningNotSynced))
	}
	responseWithJSON(w, code, payload...)
}

func taskID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		logger.Warn("HTTP: Неверное значение id",
			zap.String("error", "empty id"),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "id не может быть пустым")
		return "", false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		logger.Warn("HTTP: Ошибка чтения JSON",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "неверное тело запроса: "+err.Error())
		return false
	}
	return true
}
