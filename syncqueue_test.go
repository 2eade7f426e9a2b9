package livemetro

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestSyncQueueRunsTasksInOrder(t *testing.T) {
	queue := NewSyncQueue(zerolog.Nop())

	var mu sync.Mutex
	var order []int

	for i := 0; i < 20; i++ {
		i := i
		queue.Enqueue(SyncTask{
			Name: "task",
			Run: func(ctx context.Context) error {
				mu.Lock()
				defer mu.Unlock()
				order = append(order, i)
				return nil
			},
		})
	}

	queue.Flush()

	assert.Len(t, order, 20)
	for i, got := range order {
		assert.Equal(t, i, got)
	}
}

func TestSyncQueueNeverRunsTasksConcurrently(t *testing.T) {
	queue := NewSyncQueue(zerolog.Nop())

	var mu sync.Mutex
	running := 0
	maxRunning := 0

	for i := 0; i < 10; i++ {
		queue.Enqueue(SyncTask{
			Name: "task",
			Run: func(ctx context.Context) error {
				mu.Lock()
				running++
				if running > maxRunning {
					maxRunning = running
				}
				mu.Unlock()

				time.Sleep(2 * time.Millisecond)

				mu.Lock()
				running--
				mu.Unlock()
				return nil
			},
		})
	}

	queue.Flush()
	assert.Equal(t, 1, maxRunning)
}

func TestSyncQueueDropsFailingTask(t *testing.T) {
	queue := NewSyncQueue(zerolog.Nop())

	var mu sync.Mutex
	var failed []string
	queue.OnError(func(name string, err error) {
		mu.Lock()
		defer mu.Unlock()
		failed = append(failed, name)
	})

	ran := false

	queue.Enqueue(SyncTask{Name: "broken", Run: func(ctx context.Context) error {
		return errors.New("replica unreachable")
	}})
	queue.Enqueue(SyncTask{Name: "next", Run: func(ctx context.Context) error {
		ran = true
		return nil
	}})

	queue.Flush()

	// The failure does not block the next task and is reported once.
	assert.True(t, ran)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"broken"}, failed)
}

func TestSyncQueuePendingAndFlush(t *testing.T) {
	queue := NewSyncQueue(zerolog.Nop())

	assert.Equal(t, 0, queue.Pending())

	gate := make(chan struct{})
	queue.Enqueue(SyncTask{Name: "slow", Run: func(ctx context.Context) error {
		<-gate
		return nil
	}})
	queue.Enqueue(SyncTask{Name: "queued", Run: func(ctx context.Context) error {
		return nil
	}})

	// The first task is started (no longer pending), the second waits.
	assert.Eventually(t, func() bool { return queue.Pending() == 1 }, time.Second, time.Millisecond)

	close(gate)
	queue.Flush()
	assert.Equal(t, 0, queue.Pending())
}
