// Package semaphore provides a counting semaphore with FIFO wake-up, used to
// bound how many cells execute concurrently.
package semaphore

import "sync"

// Semaphore is a counting semaphore. Release hands a freed permit directly to
// the oldest waiter instead of incrementing the count, so waiters are served
// in arrival order.
//
// Acquire has no timeout or cancellation: the orchestrator cancels at coarser
// granularity (between cells, between sub-steps).
type Semaphore struct {
	mu        sync.Mutex
	available int
	waiters   []chan struct{}
}

// New returns a semaphore with n permits. n must be positive.
func New(n int) *Semaphore {
	if n <= 0 {
		panic("semaphore: permit count must be positive")
	}
	return &Semaphore{available: n}
}

// Acquire blocks until a permit is available. Waiters are woken in FIFO
// order.
func (s *Semaphore) Acquire() {
	s.mu.Lock()
	if s.available > 0 {
		s.available--
		s.mu.Unlock()
		return
	}
	wait := make(chan struct{})
	s.waiters = append(s.waiters, wait)
	s.mu.Unlock()
	<-wait
}

// Release returns a permit, waking the oldest waiter if any.
func (s *Semaphore) Release() {
	s.mu.Lock()
	if len(s.waiters) > 0 {
		wait := s.waiters[0]
		s.waiters = s.waiters[1:]
		s.mu.Unlock()
		close(wait)
		return
	}
	s.available++
	s.mu.Unlock()
}

// Available returns the current number of free permits.
func (s *Semaphore) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available
}
