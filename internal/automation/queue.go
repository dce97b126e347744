package automation

import "sync"

// keyedQueue runs tasks one at a time per key, in the order they were
// pushed. Each key with pending work gets its own goroutine, so keys never
// wait on each other. The zero value is ready to use.
type keyedQueue struct {
	mu      sync.Mutex
	pending map[string][]func()
	wg      sync.WaitGroup
}

// Push appends task to key's queue without blocking.
func (q *keyedQueue) Push(key string, task func()) {
	q.wg.Add(1)

	q.mu.Lock()
	if q.pending == nil {
		q.pending = make(map[string][]func())
	}
	tasks, running := q.pending[key]
	q.pending[key] = append(tasks, task)
	q.mu.Unlock()

	if !running {
		go q.drain(key)
	}
}

// drain owns key until its queue is empty. The map entry exists exactly
// while a drain goroutine is running for the key.
func (q *keyedQueue) drain(key string) {
	for {
		q.mu.Lock()
		tasks := q.pending[key]
		if len(tasks) == 0 {
			delete(q.pending, key)
			q.mu.Unlock()
			return
		}
		task := tasks[0]
		tasks[0] = nil
		q.pending[key] = tasks[1:]
		q.mu.Unlock()

		q.run(task)
	}
}

func (q *keyedQueue) run(task func()) {
	defer q.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("queued task panicked: %v", r)
		}
	}()
	task()
}

// wait blocks until every pushed task has finished.
func (q *keyedQueue) wait() {
	q.wg.Wait()
}
