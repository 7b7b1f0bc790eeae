package payment

import "sync"

// Registry holds the live tracking of each session, at most one per checkout request id.
type Registry struct {
	mu        sync.RWMutex
	trackings map[string]*Tracking
}

func NewRegistry() *Registry {
	return &Registry{trackings: make(map[string]*Tracking)}
}

// Add registers a tracking. It reports false when the session is already tracked.
func (r *Registry) Add(id string, t *Tracking) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.trackings[id]; exists {
		return false
	}
	r.trackings[id] = t
	return true
}

func (r *Registry) Get(id string) (*Tracking, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.trackings[id]
	return t, ok
}

// Remove unregisters id only if it still maps to t. It reports whether anything was removed.
func (r *Registry) Remove(id string, t *Tracking) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.trackings[id]; ok && cur == t {
		delete(r.trackings, id)
		return true
	}
	return false
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.trackings)
}

// StopAll stops every tracking and returns those that ended without a gateway resolution.
func (r *Registry) StopAll() []*Tracking {
	r.mu.Lock()
	all := make([]*Tracking, 0, len(r.trackings))
	for id, t := range r.trackings {
		all = append(all, t)
		delete(r.trackings, id)
	}
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, t := range all {
		wg.Add(1)
		go func(t *Tracking) {
			defer wg.Done()
			t.Stop()
			<-t.Done()
		}(t)
	}
	wg.Wait()

	unresolved := make([]*Tracking, 0, len(all))
	for _, t := range all {
		if !t.Resolved() {
			unresolved = append(unresolved, t)
		}
	}
	return unresolved
}
