package verify

import "sync"

// Counter is a monotonic refresh signal. Observers reload attendance
// history whenever it moves.
type Counter struct {
	mu   sync.Mutex
	n    uint64
	subs map[chan uint64]struct{}
}

// Inc bumps the counter and notifies watchers.
func (c *Counter) Inc() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	for ch := range c.subs {
		// Watchers only care about the latest value.
		select {
		case <-ch:
		default:
		}
		ch <- c.n
	}
	return c.n
}

// Value returns the current count.
func (c *Counter) Value() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// Watch returns a channel that receives the counter value after each
// increment, and a function to stop watching.
func (c *Counter) Watch() (<-chan uint64, func()) {
	ch := make(chan uint64, 1)

	c.mu.Lock()
	if c.subs == nil {
		c.subs = make(map[chan uint64]struct{})
	}
	c.subs[ch] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, ch)
			c.mu.Unlock()
		})
	}
}
