package service

import (
	"hash/maphash"
	"sync"
	"sync/atomic"
)

const lockStripes = 256

// stripedLocks serializes writes per session with a fixed set of mutexes, so
// memory does not grow with the number of sessions seen. Sessions hashing to
// the same stripe share its lock and write generation.
type stripedLocks struct {
	seed    maphash.Seed
	stripes [lockStripes]lockStripe
}

type lockStripe struct {
	sync.Mutex
	// gen is bumped under the lock after every write to a session of the
	// stripe. Readers load it without the lock.
	gen atomic.Uint64
}

func newStripedLocks() *stripedLocks {
	return &stripedLocks{seed: maphash.MakeSeed()}
}

func (l *stripedLocks) stripe(sessionID string) *lockStripe {
	return &l.stripes[maphash.String(l.seed, sessionID)%lockStripes]
}

// lock acquires the session's stripe. The caller unlocks it.
func (l *stripedLocks) lock(sessionID string) *lockStripe {
	st := l.stripe(sessionID)
	st.Lock()
	return st
}

func (l *stripedLocks) generation(sessionID string) uint64 {
	return l.stripe(sessionID).gen.Load()
}
