package processor

import (
	"sync"
)

// ConcLimiter bounds the number of in-flight column workers in the
// grid reshaper. Columns are independent, so the limiter is the only
// coordination they need.
type ConcLimiter struct {
	*sync.WaitGroup
	Pool chan struct{}
}

func (c *ConcLimiter) Increase() {
	c.Add(1)
	c.Pool <- struct{}{}
}

func (c *ConcLimiter) Decrease() {
	select {
	case <-c.Pool:
		c.Done()
	default:
	}
}

func NewConcLimiter(cLevel int) *ConcLimiter {
	var wg sync.WaitGroup
	return &ConcLimiter{&wg, make(chan struct{}, cLevel)}
}
