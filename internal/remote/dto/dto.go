package dto

import (
	"fmt"

	"todoList/internal/models/task"
)

// важность normal на сервере называется basic
const (
	ImportanceLow       = "low"
	ImportanceBasic     = "basic"
	ImportanceImportant = "important"
)

type RemoteTask struct {
	ID            string  `json:"id"`
	Text          string  `json:"text"`
	Importance    string  `json:"importance"`
	Deadline      *int64  `json:"deadline,omitempty"`
	Done          bool    `json:"done"`
	Color         *string `json:"color,omitempty"`
	CreatedAt     int64   `json:"created_at"`
	ChangedAt     *int64  `json:"changed_at,omitempty"`
	LastUpdatedBy string  `json:"last_updated_by"`
}

type ElementRequest struct {
	Element RemoteTask `json:"element"`
}

type ListRequest struct {
	List []RemoteTask `json:"list"`
}

type ElementResponse struct {
	Status   string     `json:"status"`
	Element  RemoteTask `json:"element"`
	Revision *int64     `json:"revision,omitempty"`
}

type ListResponse struct {
	Status   string       `json:"status"`
	List     []RemoteTask `json:"list"`
	Revision *int64       `json:"revision,omitempty"`
}

func FromTask(t task.Task, deviceID string) RemoteTask {
	r := RemoteTask{
		ID:            t.ID,
		Text:          t.Text,
		Importance:    wireImportance(t.Importance),
		Done:          t.IsDone,
		CreatedAt:     t.CreatedAt.Unix(),
		LastUpdatedBy: deviceID,
	}
	if t.Deadline != nil {
		d := t.Deadline.Unix()
		r.Deadline = &d
	}
	if t.ChangedAt != nil {
		ch := t.ChangedAt.Unix()
		r.ChangedAt = &ch
	}
	return r
}

// ToTask отклоняет неизвестный тег важности. Цвет в модель задачи не переносится.
func ToTask(r RemoteTask) (task.Task, error) {
	importance, err := modelImportance(r.Importance)
	if err != nil {
		return task.Task{}, fmt.Errorf("задача %s: %w", r.ID, err)
	}

	t := task.Task{
		ID:         r.ID,
		Text:       r.Text,
		CreatedAt:  task.FromUnix(r.CreatedAt),
		Importance: importance,
		IsDone:     r.Done,
	}
	if r.Deadline != nil {
		t.Deadline = task.UnixPtr(*r.Deadline)
	}
	if r.ChangedAt != nil {
		t.ChangedAt = task.UnixPtr(*r.ChangedAt)
	}
	return t, nil
}

func wireImportance(i task.Importance) string {
	switch i {
	case task.ImportanceLow:
		return ImportanceLow
	case task.ImportanceImportant:
		return ImportanceImportant
	}
	return ImportanceBasic
}

func modelImportance(raw string) (task.Importance, error) {
	switch raw {
	case ImportanceLow:
		return task.ImportanceLow, nil
	case ImportanceBasic:
		return task.ImportanceNormal, nil
	case ImportanceImportant:
		return task.ImportanceImportant, nil
	}
	return "", fmt.Errorf("%w: %q", task.ErrUnknownImportance, raw)
}
