package ledger

import "sync"

// lotLocks hands out one mutex per lot and forgets it once nobody holds or
// waits for it, so the map does not grow with the number of lots ever seen.
type lotLocks struct {
	mu    sync.Mutex
	locks map[string]*lotLock
}

type lotLock struct {
	sync.Mutex
	refs int
}

func newLotLocks() *lotLocks {
	return &lotLocks{locks: make(map[string]*lotLock)}
}

// lock blocks until the caller owns lotID and returns the matching unlock
func (l *lotLocks) lock(lotID string) func() {
	l.mu.Lock()
	lk, ok := l.locks[lotID]
	if !ok {
		lk = &lotLock{}
		l.locks[lotID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	lk.Lock()

	return func() {
		lk.Unlock()

		l.mu.Lock()
		lk.refs--
		if lk.refs == 0 {
			delete(l.locks, lotID)
		}
		l.mu.Unlock()
	}
}
