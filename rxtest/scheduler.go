package rxtest

import "sync"

// ManualScheduler queues scheduled actions until the test runs them.
// It implements rx.Scheduler and is safe for concurrent use.
type ManualScheduler struct {
	mu      sync.Mutex
	pending []func()
	ran     int
}

// NewManualScheduler returns a ManualScheduler with nothing queued.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// Schedule queues action.
func (m *ManualScheduler) Schedule(action func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, action)
}

// Pending returns the number of queued actions.
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Ran returns the number of actions run so far.
func (m *ManualScheduler) Ran() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ran
}

// RunNext runs the oldest queued action and reports whether there was one.
func (m *ManualScheduler) RunNext() bool {
	return m.run(func(n int) int { return 0 })
}

// RunLast runs the newest queued action, so tests can execute actions in
// the reverse of their submission order.
func (m *ManualScheduler) RunLast() bool {
	return m.run(func(n int) int { return n - 1 })
}

func (m *ManualScheduler) run(pick func(n int) int) bool {
	m.mu.Lock()
	if len(m.pending) == 0 {
		m.mu.Unlock()
		return false
	}
	i := pick(len(m.pending))
	action := m.pending[i]
	m.pending = append(m.pending[:i:i], m.pending[i+1:]...)
	m.ran++
	m.mu.Unlock()

	// Run outside the lock; actions may schedule more actions.
	action()
	return true
}

// Flush runs queued actions in FIFO order, including actions scheduled
// while flushing, until none remain. It returns how many ran.
func (m *ManualScheduler) Flush() int {
	n := 0
	for m.RunNext() {
		n++
	}
	return n
}
