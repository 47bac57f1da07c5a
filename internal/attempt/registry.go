package attempt

import "sync"

// Registry holds the live controllers of this process keyed by attempt id.
type Registry struct {
	mu   sync.RWMutex
	byID map[string]*Controller
}

func NewRegistry() *Registry {
	return &Registry{byID: map[string]*Controller{}}
}

func (r *Registry) Put(id string, c *Controller) {
	r.mu.Lock()
	r.byID[id] = c
	r.mu.Unlock()
}

func (r *Registry) Get(id string) (*Controller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	return c, ok
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.byID, id)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
