package task

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

type Task struct {
	ID         string     `json:"id" db:"id"`
	Text       string     `json:"text" db:"text"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	Deadline   *time.Time `json:"deadline,omitempty" db:"deadline"`
	ChangedAt  *time.Time `json:"changed_at,omitempty" db:"changed_at"`
	Importance Importance `json:"importance" db:"importance"`
	IsDone     bool       `json:"is_done" db:"is_done"`
}

type Importance string

const ImportanceLow Importance = "low"
const ImportanceNormal Importance = "normal"
const ImportanceImportant Importance = "important"

var ErrUnknownImportance = errors.New("неизвестная важность")

func ParseImportance(raw string) (Importance, error) {
	switch Importance(raw) {
	case ImportanceLow, ImportanceNormal, ImportanceImportant:
		return Importance(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownImportance, raw)
}

// New создаёт задачу с текущим временем создания и новым UUID, если id не передан через WithID.
func New(text string, options ...Option) Task {
	t := Task{
		ID:         uuid.NewString(),
		Text:       text,
		CreatedAt:  time.Now().Truncate(time.Second),
		Importance: ImportanceNormal,
	}
	for _, opt := range options {
		if opt != nil {
			opt(&t)
		}
	}
	return t
}

func (t Task) Clone() Task {
	c := t
	if t.Deadline != nil {
		d := *t.Deadline
		c.Deadline = &d
	}
	if t.ChangedAt != nil {
		ch := *t.ChangedAt
		c.ChangedAt = &ch
	}
	return c
}

// Equal сравнивает задачи с точностью до секунды: форматы хранения не сохраняют доли секунды.
func (t Task) Equal(other Task) bool {
	return t.ID == other.ID &&
		t.Text == other.Text &&
		t.CreatedAt.Unix() == other.CreatedAt.Unix() &&
		sameSecond(t.Deadline, other.Deadline) &&
		sameSecond(t.ChangedAt, other.ChangedAt) &&
		t.importance() == other.importance() &&
		t.IsDone == other.IsDone
}

func (t Task) importance() Importance {
	if t.Importance == "" {
		return ImportanceNormal
	}
	return t.Importance
}

func sameSecond(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Unix() == b.Unix()
}

func SortByCreatedAt(tasks []Task, ascending bool) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i].CreatedAt.Unix(), tasks[j].CreatedAt.Unix()
		if a == b {
			return tasks[i].ID < tasks[j].ID
		}
		if ascending {
			return a < b
		}
		return a > b
	})
}

func FromUnix(sec int64) time.Time {
	return time.Unix(sec, 0)
}

func UnixPtr(sec int64) *time.Time {
	t := time.Unix(sec, 0)
	return &t
}
