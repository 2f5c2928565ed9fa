package latches

import (
	"sync"

	"github.com/dgryski/go-farm"
	"github.com/pingcap-incubator/tinymvcc/kv/util/codec"
)

// Latching makes commits of versioned transactions atomic with respect to each other. Conflict detection reads the
// newest committed version of every written key and then writes the new versions; if two commits writing the same
// key raced between those steps, both could pass the check. By latching the keys a commit writes, we ensure that the
// two commits will not race to write the same keys.
//
// A latch is a per-key lock. Latches are keyed by the fingerprint of the user key, so two keys may share a latch;
// that only costs concurrency, never correctness. Only one thread can hold a latch at a time and all keys that a
// commit writes must be locked at once.
//
// Latching is implemented using a single map which maps fingerprints to a Go WaitGroup. Access to this map is guarded
// by a mutex to ensure that latching is atomic and consistent.

type Latches struct {
	// Before committing a write to a key, the thread must have the latch for that key. `Latches` maps each latched
	// fingerprint to a WaitGroup. Threads who find a key locked should wait on that WaitGroup.
	latchMap map[uint64]*sync.WaitGroup
	// Mutex to guard latchMap. A thread must hold this mutex while it makes any change to latchMap.
	latchGuard sync.Mutex
	// An optional validation function, only used for testing.
	Validation func(version codec.CommitVersion, keys [][]byte)
}

// NewLatches creates a new Latches object for managing a store's latches. There should only be one such object,
// shared between all threads.
func NewLatches() *Latches {
	l := new(Latches)
	l.latchMap = make(map[uint64]*sync.WaitGroup)
	return l
}

func fingerprints(keys [][]byte) []uint64 {
	seen := make(map[uint64]struct{}, len(keys))
	fps := make([]uint64, 0, len(keys))
	for _, key := range keys {
		fp := farm.Fingerprint64(key)
		if _, ok := seen[fp]; ok {
			continue
		}
		seen[fp] = struct{}{}
		fps = append(fps, fp)
	}
	return fps
}

// AcquireLatches tries lock all Latches specified by keys. If this succeeds, nil is returned. If any of the keys are
// locked, then AcquireLatches requires a WaitGroup which the thread can use to be woken when the lock is free.
func (l *Latches) AcquireLatches(keysToLatch [][]byte) *sync.WaitGroup {
	fps := fingerprints(keysToLatch)

	l.latchGuard.Lock()
	defer l.latchGuard.Unlock()

	// Check none of the keys we want to write are locked.
	for _, fp := range fps {
		if latchWg, ok := l.latchMap[fp]; ok {
			// Return a wait group to wait on.
			return latchWg
		}
	}

	// All Latches are available, lock them all with a new wait group.
	wg := new(sync.WaitGroup)
	wg.Add(1)
	for _, fp := range fps {
		l.latchMap[fp] = wg
	}

	return nil
}

// ReleaseLatches releases the latches for all keys in keysToUnlatch. It will wakeup any threads blocked on one of the
// latches. All keys in keysToUnlatch must have been locked together in one call to AcquireLatches.
func (l *Latches) ReleaseLatches(keysToUnlatch [][]byte) {
	fps := fingerprints(keysToUnlatch)

	l.latchGuard.Lock()
	defer l.latchGuard.Unlock()

	var released *sync.WaitGroup
	for _, fp := range fps {
		if wg, ok := l.latchMap[fp]; ok && released == nil {
			wg.Done()
			released = wg
		}
		delete(l.latchMap, fp)
	}
}

// WaitForLatches attempts to lock all keys in keysToLatch using AcquireLatches. If a latch is already locked, then
// WaitForLatches will wait for it to become unlocked then try again. Therefore WaitForLatches may block for an
// unbounded length of time.
func (l *Latches) WaitForLatches(keysToLatch [][]byte) {
	for {
		wg := l.AcquireLatches(keysToLatch)
		if wg == nil {
			return
		}
		wg.Wait()
	}
}

// Validate calls the function in Validation, if it exists.
func (l *Latches) Validate(version codec.CommitVersion, latched [][]byte) {
	if l.Validation != nil {
		l.Validation(version, latched)
	}
}
