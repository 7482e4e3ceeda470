package snapshot

import "sync"

// TaskQueue runs posted tasks on a single goroutine. Tasks run in post
// order until the buffer fills; overflow tasks run after the task in hand.
// It plays the role of a track's owning thread: work posted from frame
// callbacks runs later, outside the producer's call stack.
type TaskQueue struct {
	tasks  chan func()
	done   chan struct{}
	mu     sync.RWMutex
	closed bool

	// Overflow tasks that did not fit in the channel; never dropped.
	overflowMu sync.Mutex
	overflow   []func()
}

// NewTaskQueue starts a queue buffering up to size tasks before spilling
// into an unbounded overflow list.
func NewTaskQueue(size int) *TaskQueue {
	if size <= 0 {
		size = 16
	}
	q := &TaskQueue{
		tasks: make(chan func(), size),
		done:  make(chan struct{}),
	}
	go q.run()
	return q
}

// Post implements Executor. Posting to a closed queue runs task on a new
// goroutine so it still runs exactly once.
func (q *TaskQueue) Post(task func()) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		go task()
		return
	}
	select {
	case q.tasks <- task:
	default:
		q.overflowMu.Lock()
		q.overflow = append(q.overflow, task)
		q.overflowMu.Unlock()
		// Wake the runner; a nil task only drains overflow.
		select {
		case q.tasks <- nil:
		default:
		}
	}
}

// Close stops accepting tasks and waits for queued tasks to finish.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()
	<-q.done
}

func (q *TaskQueue) run() {
	defer close(q.done)
	for task := range q.tasks {
		if task != nil {
			task()
		}
		q.drainOverflow()
	}
	q.drainOverflow()
}

func (q *TaskQueue) drainOverflow() {
	for {
		q.overflowMu.Lock()
		if len(q.overflow) == 0 {
			q.overflowMu.Unlock()
			return
		}
		pending := q.overflow
		q.overflow = nil
		q.overflowMu.Unlock()
		for _, task := range pending {
			task()
		}
	}
}

// goExecutor runs each task on its own goroutine.
type goExecutor struct{}

func (goExecutor) Post(task func()) { go task() }
