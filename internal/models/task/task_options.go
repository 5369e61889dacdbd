package task

import (
	"time"
)

type Option func(*Task)

func WithID(id string) Option {
	if id == "" {
		return nil
	}
	return func(task *Task) {
		task.ID = id
	}
}

func WithText(text string) Option {
	return func(task *Task) {
		task.Text = text
	}
}

func WithCreatedAt(createdAt time.Time) Option {
	if createdAt.IsZero() {
		return nil
	}
	return func(task *Task) {
		task.CreatedAt = createdAt.Truncate(time.Second)
	}
}

func WithDeadline(deadline time.Time) Option {
	if deadline.IsZero() {
		return nil
	}
	return func(task *Task) {
		d := deadline.Truncate(time.Second)
		task.Deadline = &d
	}
}

func WithoutDeadline() Option {
	return func(task *Task) {
		task.Deadline = nil
	}
}

func WithChangedAt(changedAt time.Time) Option {
	if changedAt.IsZero() {
		return nil
	}
	return func(task *Task) {
		c := changedAt.Truncate(time.Second)
		task.ChangedAt = &c
	}
}

func WithImportance(importance Importance) Option {
	if importance == "" {
		return nil
	}
	return func(task *Task) {
		task.Importance = importance
	}
}

func WithDone(done bool) Option {
	return func(task *Task) {
		task.IsDone = done
	}
}
