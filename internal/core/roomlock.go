package core

import "sync"

// roomLocks hands out one mutex per room, freed once nobody holds or waits on it.
type roomLocks struct {
	mu    sync.Mutex
	locks map[string]*roomLock
}

type roomLock struct {
	sync.Mutex
	refs int
}

func newRoomLocks() *roomLocks {
	return &roomLocks{locks: make(map[string]*roomLock)}
}

// lock blocks until room is free and returns the matching unlock.
func (rl *roomLocks) lock(room string) func() {
	rl.mu.Lock()
	l, ok := rl.locks[room]
	if !ok {
		l = &roomLock{}
		rl.locks[room] = l
	}
	l.refs++
	rl.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		rl.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(rl.locks, room)
		}
		rl.mu.Unlock()
	}
}

func (rl *roomLocks) len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.locks)
}
