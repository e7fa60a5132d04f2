package inference

import "sync"

// LockState is the state of the job lock.
type LockState int

const (
	// Idle means no job is running.
	Idle LockState = iota
	// Running means a job holds the lock.
	Running
)

// String returns a human-readable name for the lock state.
func (s LockState) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// JobLock guards the single "active job" resource. It never blocks: a caller
// that loses TryAcquire is expected to report contention and return.
type JobLock struct {
	mu    sync.Mutex
	state LockState
}

// NewJobLock returns an idle lock.
func NewJobLock() *JobLock {
	return &JobLock{}
}

// TryAcquire moves Idle to Running and reports whether it did.
func (l *JobLock) TryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == Running {
		return false
	}
	l.state = Running
	return true
}

// Release returns the lock to Idle. Releasing an idle lock is a no-op.
func (l *JobLock) Release() {
	l.mu.Lock()
	l.state = Idle
	l.mu.Unlock()
}

// State returns the current state.
func (l *JobLock) State() LockState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}
