package dto

import (
	"time"

	"todoList/internal/models/task"
)

// CreateTaskRequest: deadline принимает unix-секунды, дату или фразу вроде "tomorrow 18:00".
type CreateTaskRequest struct {
	ID         string  `json:"id,omitempty"`
	Text       string  `json:"text"`
	Deadline   *string `json:"deadline,omitempty"`
	Importance *string `json:"importance,omitempty"`
	IsDone     bool    `json:"is_done,omitempty"`
}

// UpdateTaskRequest: пустая строка в deadline снимает дедлайн.
type UpdateTaskRequest struct {
	Text       *string `json:"text,omitempty"`
	Deadline   *string `json:"deadline,omitempty"`
	Importance *string `json:"importance,omitempty"`
	IsDone     *bool   `json:"is_done,omitempty"`
}

type TaskResponse struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	CreatedAt  int64  `json:"created_at"`
	Deadline   *int64 `json:"deadline,omitempty"`
	ChangedAt  *int64 `json:"changed_at,omitempty"`
	Importance string `json:"importance"`
	IsDone     bool   `json:"is_done"`
	IsOverdue  bool   `json:"is_overdue"`
}

func FromTask(t task.Task, now time.Time) TaskResponse {
	importance := t.Importance
	if importance == "" {
		importance = task.ImportanceNormal
	}
	return TaskResponse{
		ID:         t.ID,
		Text:       t.Text,
		CreatedAt:  t.CreatedAt.Unix(),
		Deadline:   unix(t.Deadline),
		ChangedAt:  unix(t.ChangedAt),
		Importance: string(importance),
		IsDone:     t.IsDone,
		IsOverdue:  !t.IsDone && t.Deadline != nil && t.Deadline.Before(now),
	}
}

func FromTaskList(tasks []task.Task, now time.Time) []TaskResponse {
	result := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		result[i] = FromTask(t, now)
	}
	return result
}

func unix(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	v := t.Unix()
	return &v
}
