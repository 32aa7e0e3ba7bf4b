package http

import (
	"context"
	"sync"
)

// routeTracker counts requests in progress per route template so shutdown can
// wait for them and report which routes are still busy.
type routeTracker struct {
	mu     sync.Mutex
	routes map[string]int64
	total  int64
	idle   chan struct{} // closed while total is zero
}

func newRouteTracker() *routeTracker {
	idle := make(chan struct{})
	close(idle)
	return &routeTracker{routes: make(map[string]int64), idle: idle}
}

// begin marks a request on route as started and returns the matching end func.
func (t *routeTracker) begin(route string) func() {
	t.mu.Lock()
	if t.total == 0 {
		t.idle = make(chan struct{})
	}
	t.total++
	t.routes[route]++
	t.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { t.end(route) }) }
}

func (t *routeTracker) end(route string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total--
	if t.routes[route]--; t.routes[route] <= 0 {
		delete(t.routes, route)
	}
	if t.total == 0 {
		close(t.idle)
	}
}

func (t *routeTracker) count() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// byRoute returns a copy of the per-route counts. Idle routes are omitted.
func (t *routeTracker) byRoute() map[string]int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int64, len(t.routes))
	for route, n := range t.routes {
		out[route] = n
	}
	return out
}

// wait blocks until no request is in progress or ctx is done.
func (t *routeTracker) wait(ctx context.Context) error {
	t.mu.Lock()
	idle := t.idle
	t.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// inFlight is fed by MetricsMiddleware and drained by main after the listener closes.
var inFlight = newRouteTracker()

// InFlightCount returns the number of requests in progress.
func InFlightCount() int64 { return inFlight.count() }

// InFlightByRoute returns the requests in progress keyed by route template.
func InFlightByRoute() map[string]int64 { return inFlight.byRoute() }

// WaitForInFlight blocks until every request has finished or ctx is done.
func WaitForInFlight(ctx context.Context) error { return inFlight.wait(ctx) }
