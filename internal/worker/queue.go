package worker

import (
	"errors"
	"sync"
)

var ErrQueueClosed = errors.New("очередь закрыта")

type Job func()

// Queue выполняет задания строго по одному в порядке поступления.
type Queue struct {
	jobs   chan Job
	done   chan struct{}
	mtx    sync.RWMutex
	closed bool
}

func NewQueue(size int) *Queue {
	if size < 0 {
		size = 0
	}
	q := &Queue{
		jobs: make(chan Job, size),
		done: make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.done)
	for job := range q.jobs {
		job()
	}
}

// Submit ставит задание в очередь. Блокируется, если буфер заполнен.
func (q *Queue) Submit(job Job) error {
	q.mtx.RLock()
	defer q.mtx.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}
	q.jobs <- job
	return nil
}

// Close перестаёт принимать задания и ждёт выполнения уже поставленных.
func (q *Queue) Close() {
	q.mtx.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mtx.Unlock()

	<-q.done
}
