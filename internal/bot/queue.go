package bot

import "sync"

// chatQueue runs jobs for the same chat one at a time, in the order they were
// pushed. Each chat with pending work has one worker goroutine.
type chatQueue struct {
	mu      sync.Mutex
	pending map[int64][]func()
}

func newChatQueue() *chatQueue {
	return &chatQueue{pending: make(map[int64][]func())}
}

func (q *chatQueue) push(chatID int64, job func()) {
	q.mu.Lock()
	jobs, busy := q.pending[chatID]
	q.pending[chatID] = append(jobs, job)
	q.mu.Unlock()
	if !busy {
		go q.drain(chatID)
	}
}

func (q *chatQueue) drain(chatID int64) {
	for {
		q.mu.Lock()
		jobs := q.pending[chatID]
		if len(jobs) == 0 {
			delete(q.pending, chatID)
			q.mu.Unlock()
			return
		}
		job := jobs[0]
		q.pending[chatID] = jobs[1:]
		q.mu.Unlock()
		job()
	}
}
