package booking

import (
	"sync"

	"github.com/google/uuid"
)

// Registry hands out one Coordinator per booking flow. Callers open a flow
// when the user starts booking and close it when they leave; there is no
// process-wide coordinator.
type Registry struct {
	cfg Config

	mu    sync.Mutex
	flows map[string]*Coordinator
}

func NewRegistry(cfg Config) *Registry {
	return &Registry{cfg: cfg, flows: make(map[string]*Coordinator)}
}

// Open starts a new flow and returns its id.
func (r *Registry) Open() (string, *Coordinator) {
	c := NewCoordinator(r.cfg)
	id := uuid.NewString()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.flows[id] = c
	return id, c
}

func (r *Registry) Get(id string) (*Coordinator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.flows[id]
	return c, ok
}

// Close resets and forgets a flow. Responses still in flight for it are
// discarded on arrival.
func (r *Registry) Close(id string) bool {
	r.mu.Lock()
	c, ok := r.flows[id]
	delete(r.flows, id)
	r.mu.Unlock()
	if ok {
		c.Reset()
	}
	return ok
}

// Len is the number of open flows.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.flows)
}
