package concurrency

import (
	"errors"
	"sync"
)

var ErrBusy = errors.New("a transfer is already in progress")

// ConcurrencyGuard admits one operation at a time. Callers that are turned
// away get ErrBusy instead of waiting.
type ConcurrencyGuard struct {
	mu     sync.Mutex
	isBusy bool
}

func NewConcurrencyGuard() *ConcurrencyGuard {
	return &ConcurrencyGuard{}
}

// TryAcquire marks the guard busy. It fails with ErrBusy if it already was.
func (g *ConcurrencyGuard) TryAcquire() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.isBusy {
		return ErrBusy
	}
	g.isBusy = true
	return nil
}

// Release frees the guard. Releasing an idle guard is a no-op.
func (g *ConcurrencyGuard) Release() {
	g.mu.Lock()
	g.isBusy = false
	g.mu.Unlock()
}
