package style

import (
	"context"
	"sync"
)

// Queue runs jobs one at a time per key, in submission order. Jobs for
// different keys run concurrently. A key's worker exits once its queue
// drains, so idle keys hold no goroutine.
type Queue struct {
	mu      sync.Mutex
	pending map[string][]*job
}

type job struct {
	ctx  context.Context
	fn   func(context.Context) error
	done chan error
}

func NewQueue() *Queue {
	return &Queue{pending: make(map[string][]*job)}
}

// Do enqueues fn under key and waits for it to finish. If ctx ends before
// fn starts, fn is skipped and ctx.Err() is returned; once started it runs
// to completion.
func (q *Queue) Do(ctx context.Context, key string, fn func(context.Context) error) error {
	j := &job{ctx: ctx, fn: fn, done: make(chan error, 1)}

	q.mu.Lock()
	_, busy := q.pending[key]
	q.pending[key] = append(q.pending[key], j)
	q.mu.Unlock()

	if !busy {
		go q.drain(key)
	}
	return <-j.done
}

func (q *Queue) drain(key string) {
	for {
		q.mu.Lock()
		jobs := q.pending[key]
		if len(jobs) == 0 {
			delete(q.pending, key)
			q.mu.Unlock()
			return
		}
		j := jobs[0]
		q.mu.Unlock()

		if err := j.ctx.Err(); err != nil {
			j.done <- err
		} else {
			j.done <- j.fn(j.ctx)
		}

		q.mu.Lock()
		q.pending[key] = q.pending[key][1:]
		q.mu.Unlock()
	}
}

// Len reports how many jobs are queued or running for key.
func (q *Queue) Len(key string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending[key])
}
