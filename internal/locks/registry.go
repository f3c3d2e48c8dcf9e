package locks

import "sync"

// Registry issues one mutex per resource name. Named locks are created
// lazily on first request and cached for the lifetime of the process; the
// set of distinct names is small and bounded per run, so entries are never
// evicted.
type Registry struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewRegistry constructs an empty lock registry.
func NewRegistry() *Registry {
	return &Registry{locks: make(map[string]*sync.Mutex)}
}

// Get returns the mutex for the given resource name, creating it if absent.
// The registry lock is held only for the lookup-or-insert step, so holders
// of unrelated named locks never serialize through the registry.
func (r *Registry) Get(name string) *sync.Mutex {
	r.mu.Lock()
	lock, ok := r.locks[name]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[name] = lock
	}
	r.mu.Unlock()
	return lock
}

// WithLock runs fn while holding the named lock, releasing it on every exit
// path including panics.
func (r *Registry) WithLock(name string, fn func()) {
	lock := r.Get(name)
	lock.Lock()
	defer lock.Unlock()
	fn()
}

// Len reports the number of distinct named locks created so far.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}
