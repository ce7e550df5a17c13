package service

import "sync"

// LearnerLocks serialises work on the same learner within this process.
// Entries are reference counted and dropped once no goroutine holds or waits
// on them.
type LearnerLocks struct {
	mu    sync.Mutex
	locks map[uint]*learnerLock
}

type learnerLock struct {
	mu   sync.Mutex
	refs int
}

// NewLearnerLocks constructs an empty lock table.
func NewLearnerLocks() *LearnerLocks {
	return &LearnerLocks{locks: make(map[uint]*learnerLock)}
}

// Lock blocks until the learner's lock is held and returns its release func.
func (l *LearnerLocks) Lock(learnerID uint) func() {
	l.mu.Lock()
	entry, ok := l.locks[learnerID]
	if !ok {
		entry = &learnerLock{}
		l.locks[learnerID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			entry.mu.Unlock()

			l.mu.Lock()
			entry.refs--
			if entry.refs == 0 {
				delete(l.locks, learnerID)
			}
			l.mu.Unlock()
		})
	}
}

func (l *LearnerLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
