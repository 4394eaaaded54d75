package generate

import (
	"sync"

	"github.com/google/uuid"
)

// jobRegistry tracks in-flight workers so callers can block until a job's
// worker has finished. Channels are closed exactly once by the worker.
type jobRegistry struct {
	mu   sync.Mutex
	done map[uuid.UUID]chan struct{}
}

func newJobRegistry() *jobRegistry {
	return &jobRegistry{done: make(map[uuid.UUID]chan struct{})}
}

func (r *jobRegistry) register(id uuid.UUID) chan struct{} {
	ch := make(chan struct{})
	r.mu.Lock()
	r.done[id] = ch
	r.mu.Unlock()
	return ch
}

// await returns a channel closed when the job's worker finishes. Unknown
// jobs get an already-closed channel: either the job never existed or its
// worker is long gone, and in both cases there is nothing to wait for.
func (r *jobRegistry) await(id uuid.UUID) <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ch, ok := r.done[id]; ok {
		return ch
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}
