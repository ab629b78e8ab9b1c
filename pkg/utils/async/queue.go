package async

import (
	"context"
	"sync"

	"github.com/hivemind-lab/hivemind/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Task is a unit of background work
type Task func(ctx context.Context) error

// Queue runs fire-and-forget tasks on a single worker goroutine with a
// bounded buffer. Unlike a bare `go func()`, pending tasks are drained on
// Close so writes queued before shutdown are never silently dropped.
type Queue struct {
	tasks  chan Task
	done   chan struct{}
	closed bool
	mu     sync.Mutex
}

// NewQueue creates a queue with the given buffer size and starts its worker.
// The context carries the logger; worker tasks run detached from request
// cancellation.
func NewQueue(ctx context.Context, size int) *Queue {
	if size <= 0 {
		size = 64
	}

	q := &Queue{
		tasks: make(chan Task, size),
		done:  make(chan struct{}),
	}

	bgCtx := logging.With(context.Background(), logging.From(ctx))
	go q.run(bgCtx)

	return q
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.done)

	for task := range q.tasks {
		q.exec(ctx, task)
	}
}

func (q *Queue) exec(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			logging.From(ctx).Error("panic in background task", "panic", r)
		}
	}()

	if err := task(ctx); err != nil {
		logging.From(ctx).Error("background task failed", "error", goerr.Unwrap(err))
	}
}

// Enqueue submits a task. It never blocks: when the buffer is full or the
// queue is closed the task is rejected and the caller gets an error to log.
func (q *Queue) Enqueue(ctx context.Context, task Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return goerr.New("queue is closed")
	}

	select {
	case q.tasks <- task:
		return nil
	default:
		return goerr.New("queue is full", goerr.V("capacity", cap(q.tasks)))
	}
}

// Close stops accepting tasks and blocks until all pending tasks have run.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()

	<-q.done
}
