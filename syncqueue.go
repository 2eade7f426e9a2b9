package livemetro

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// SyncTask is one best-effort write-back unit. A failing task is logged
// and dropped; there is no retry and no delivery guarantee.
type SyncTask struct {
	Name string
	Run  func(ctx context.Context) error
}

// SyncQueue executes tasks strictly in FIFO order, one at a time. A
// drain starts on the first enqueue and keeps consuming tasks appended
// while it runs; the draining flag guarantees a single drain at a time,
// which keeps write-backs to the same backend from racing each other.
type SyncQueue struct {
	log     zerolog.Logger
	onError func(name string, err error)

	mu       sync.Mutex
	idle     *sync.Cond
	tasks    []SyncTask
	draining bool
}

func NewSyncQueue(log zerolog.Logger) *SyncQueue {
	q := &SyncQueue{log: log}
	q.idle = sync.NewCond(&q.mu)

	return q
}

// OnError installs a hook invoked after a task fails, in addition to the
// log line. Must be set before the first Enqueue.
func (q *SyncQueue) OnError(fn func(name string, err error)) {
	q.onError = fn
}

// Enqueue appends task and starts a drain if none is running. It never
// blocks on task execution.
func (q *SyncQueue) Enqueue(task SyncTask) {
	q.mu.Lock()
	q.tasks = append(q.tasks, task)

	if q.draining {
		q.mu.Unlock()
		return
	}

	q.draining = true
	q.mu.Unlock()

	go q.drain()
}

// Pending returns the number of tasks not yet started.
func (q *SyncQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.tasks)
}

// Flush blocks until the queue is empty and no drain is running.
func (q *SyncQueue) Flush() {
	q.mu.Lock()
	for q.draining || len(q.tasks) > 0 {
		q.idle.Wait()
	}
	q.mu.Unlock()
}

func (q *SyncQueue) drain() {
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			q.draining = false
			q.idle.Broadcast()
			q.mu.Unlock()
			return
		}

		task := q.tasks[0]
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		if err := task.Run(context.Background()); err != nil {
			q.log.Err(err).Str("task", task.Name).Msg("sync task failed")

			if q.onError != nil {
				q.onError(task.Name, err)
			}
		}
	}
}
