package service

import (
	"sync"

	"github.com/kjstillabower/weather-map-service/internal/observability"
)

// stampedeTracker counts in-progress cache misses per key. Two or more at once
// means concurrent requests are each fetching the same upstream data.
type stampedeTracker struct {
	mu     sync.Mutex
	active map[string]int
}

func newStampedeTracker() *stampedeTracker {
	return &stampedeTracker{active: make(map[string]int)}
}

// begin registers a miss on key and returns the number of misses now in
// progress for it, plus a func that must be called once the fetch resolves.
// Concurrent misses are counted under kind.
func (st *stampedeTracker) begin(kind, key string) (int, func()) {
	st.mu.Lock()
	st.active[key]++
	n := st.active[key]
	st.mu.Unlock()

	if n > 1 {
		observability.CacheStampedeDetectedTotal.WithLabelValues(kind).Inc()
	}
	return n, func() { st.end(key) }
}

func (st *stampedeTracker) end(key string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if n, ok := st.active[key]; ok {
		if n <= 1 {
			delete(st.active, key)
			return
		}
		st.active[key] = n - 1
	}
}

func (st *stampedeTracker) inProgress(key string) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.active[key]
}
