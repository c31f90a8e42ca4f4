package keygraph

import "sync"

// scopeRegistry hands out one RWMutex per scope so rebuilds exclude reads of
// that scope only. Unrelated scopes never contend.
type scopeRegistry struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

func newScopeRegistry() *scopeRegistry {
	return &scopeRegistry{locks: make(map[string]*sync.RWMutex)}
}

func (r *scopeRegistry) get(scope string) *sync.RWMutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[scope]
	if !ok {
		lock = &sync.RWMutex{}
		r.locks[scope] = lock
	}
	return lock
}

// lockWrite acquires the scope's exclusive lock for a clear-and-build
// critical section.
func (r *scopeRegistry) lockWrite(scope string) func() {
	lock := r.get(scope)
	lock.Lock()
	return lock.Unlock
}

// lockRead blocks until no rebuild holds the scope, then takes a shared lock.
func (r *scopeRegistry) lockRead(scope string) func() {
	lock := r.get(scope)
	lock.RLock()
	return lock.RUnlock
}

// tryLockRead takes a shared lock only if no rebuild is in progress. The
// second return is false when the scope is mid-rebuild.
func (r *scopeRegistry) tryLockRead(scope string) (func(), bool) {
	lock := r.get(scope)
	if !lock.TryRLock() {
		return nil, false
	}
	return lock.RUnlock, true
}
