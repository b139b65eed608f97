package repository

import "sync"

// keyMutex serializes lifecycle operations per logical key within this
// process. The store has no compare-and-swap, so a close/insert pair from
// another process can still interleave with ours; the resolver's
// max-valid_from tie-break keeps reads deterministic when that happens.
type keyMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyMutex() *keyMutex {
	return &keyMutex{locks: map[string]*sync.Mutex{}}
}

// lock acquires the mutex for key and returns its unlock func.
func (m *keyMutex) lock(key string) func() {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	m.mu.Unlock()
	l.Lock()
	return l.Unlock
}
