package session

import "sync"

// Locker serializes work on a conversation key. Lock blocks until the key is
// free and returns the function that releases it.
type Locker interface {
	Lock(key string) (unlock func())
}

// NopLocker never blocks. Concurrent requests for one key race on
// load/persist and the last writer wins.
type NopLocker struct{}

// Lock implements Locker.
func (NopLocker) Lock(string) func() { return func() {} }

// KeyLocker is an in-process mutex per conversation key. It only orders
// requests handled by this process; replicas sharing a store still race.
type KeyLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewKeyLocker creates an empty KeyLocker.
func NewKeyLocker() *KeyLocker {
	return &KeyLocker{locks: make(map[string]*keyLock)}
}

// Lock implements Locker. Entries are dropped once no caller holds or waits
// on them, so the map stays bounded by in-flight keys.
func (l *KeyLocker) Lock(key string) func() {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	kl.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			kl.mu.Unlock()

			l.mu.Lock()
			kl.refs--
			if kl.refs == 0 {
				delete(l.locks, key)
			}
			l.mu.Unlock()
		})
	}
}

// Held returns the number of keys currently held or waited on.
func (l *KeyLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
