package resilience

import (
	"sync"

	crerr "github.com/cockroachdb/errors"
)

// ErrFlightPanicked is returned to callers that shared a call whose leader
// panicked. The leader itself re-panics.
var ErrFlightPanicked = crerr.New("shared call panicked")

// Group collapses concurrent calls for the same key into one execution. Used
// to share one upstream request (or token refresh) between callers.
type Group[T any] struct {
	mu       sync.Mutex
	inFlight map[string]*flight[T]
}

type flight[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Do runs fn once per key at a time. shared reports whether the result came
// from a call started by another goroutine.
func (g *Group[T]) Do(key string, fn func() (T, error)) (v T, err error, shared bool) {
	g.mu.Lock()
	if f, ok := g.inFlight[key]; ok {
		g.mu.Unlock()
		<-f.done
		return f.val, f.err, true
	}
	if g.inFlight == nil {
		g.inFlight = make(map[string]*flight[T])
	}
	f := &flight[T]{done: make(chan struct{}), err: ErrFlightPanicked}
	g.inFlight[key] = f
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.inFlight, key)
		g.mu.Unlock()
		close(f.done)
	}()

	f.val, f.err = fn()
	return f.val, f.err, false
}
