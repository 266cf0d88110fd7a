package minter

import "sync"

// accountLock serializes transaction submission per ledger account. Two
// concurrent mints from the same issuer would race on suggested params and
// account sequencing at the ledger layer, so at most one submit-and-confirm
// sequence per account may be in flight.
type accountLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newAccountLock() *accountLock {
	return &accountLock{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for the given account address, creating it on first use.
func (l *accountLock) Lock(addr string) {
	l.mu.Lock()
	m, ok := l.locks[addr]
	if !ok {
		m = &sync.Mutex{}
		l.locks[addr] = m
	}
	l.mu.Unlock()
	m.Lock()
}

// Unlock releases the mutex for the given account address.
func (l *accountLock) Unlock(addr string) {
	l.mu.Lock()
	m := l.locks[addr]
	l.mu.Unlock()
	if m != nil {
		m.Unlock()
	}
}
