package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/actionmesh/logging"
)

// QueueOptions configures a Queue.
type QueueOptions struct {
	Logger logging.Logger
}

// Queue runs units strictly one after another in enqueue order. A failing or
// panicking unit is logged and never blocks its successors.
type Queue struct {
	logger logging.Logger

	mu   sync.Mutex
	tail chan struct{} // closed once the most recently enqueued unit settled
	size int
}

// NewQueue creates an empty Queue.
func NewQueue(optFns ...func(o *QueueOptions)) *Queue {
	opts := QueueOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Queue{logger: logging.Scoped(opts.Logger, "ActionQueue")}
}

// Enqueue appends fn behind every unit already queued. It never blocks.
func (q *Queue) Enqueue(name string, fn func() error) {
	done := make(chan struct{})

	q.mu.Lock()
	prev := q.tail
	q.tail = done
	q.size++
	q.mu.Unlock()

	go func() {
		if prev != nil {
			<-prev
		}
		defer func() {
			q.mu.Lock()
			q.size--
			q.mu.Unlock()
			close(done)
		}()

		if err := q.run(fn); err != nil {
			q.logger.Error("Queued unit failed", "unit", name, "error", err)
		}
	}()
}

func (q *Queue) run(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// Wait blocks until every unit enqueued before the call settled or ctx is done.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	tail := q.tail
	q.mu.Unlock()

	if tail == nil {
		return nil
	}

	select {
	case <-tail:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of units queued or in flight.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}
