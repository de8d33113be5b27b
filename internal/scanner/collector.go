package scanner

import (
	"slices"
	"sync"
)

// Collector accumulates bypass-positive results from concurrent tasks.
type Collector struct {
	mu      sync.Mutex
	results []ProbeResult
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Add appends r if it is a bypass. It reports whether r was kept.
func (c *Collector) Add(r ProbeResult) bool {
	if !r.Bypass {
		return false
	}
	c.mu.Lock()
	c.results = append(c.results, r)
	c.mu.Unlock()
	return true
}

// Results returns a snapshot of everything collected so far.
func (c *Collector) Results() []ProbeResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.results)
}

// Len returns the number of collected results.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}
