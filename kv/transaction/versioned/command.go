package versioned

import (
	"bytes"
	"time"

	"github.com/google/btree"
	"github.com/pingcap-incubator/tinymvcc/kv/transaction/mvcc"
	"github.com/pingcap-incubator/tinymvcc/kv/util/codec"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

const pendingDegree = 16

// VersionedCommandTxn is a versioned transaction which can write.
type VersionedCommandTxn interface {
	VersionedQueryTxn
	Set(key, value []byte) error
	Remove(key []byte) error
	Commit() (codec.CommitVersion, error)
	Rollback() error
}

type pendingWrite struct {
	key     []byte
	value   []byte
	removed bool
}

func (w *pendingWrite) Less(than btree.Item) bool {
	return bytes.Compare(w.key, than.(*pendingWrite).key) < 0
}

// CommandTxn buffers writes in memory and applies them at a new commit version on Commit. It is not safe for
// concurrent use.
type CommandTxn struct {
	reader
	id TxnID

	pending *btree.BTree
	drops   []mvcc.Delta
	// reads are the keys read by point lookups from the store, checked for conflicts on commit.
	reads    [][]byte
	finished bool
}

var _ VersionedCommandTxn = &CommandTxn{}

func newCommandTxn(m *Manager, id TxnID, version codec.CommitVersion) *CommandTxn {
	return &CommandTxn{
		reader:  reader{m: m, version: version},
		id:      id,
		pending: btree.New(pendingDegree),
	}
}

func (txn *CommandTxn) Version() codec.CommitVersion {
	return txn.version
}

func (txn *CommandTxn) ID() TxnID {
	return txn.id
}

func (txn *CommandTxn) Set(key, value []byte) error {
	if txn.finished {
		return ErrTxnFinished
	}
	if value == nil {
		value = []byte{}
	}
	txn.pending.ReplaceOrInsert(&pendingWrite{key: key, value: value})
	return nil
}

// Remove deletes key. The deletion is recorded as a tombstone at the commit version, older versions stay readable.
func (txn *CommandTxn) Remove(key []byte) error {
	if txn.finished {
		return ErrTxnFinished
	}
	txn.pending.ReplaceOrInsert(&pendingWrite{key: key, removed: true})
	return nil
}

// Drop erases the versions of key selected by spec when the transaction commits. A version written by this
// transaction is never dropped.
func (txn *CommandTxn) Drop(key []byte, spec mvcc.DropSpec) error {
	if txn.finished {
		return ErrTxnFinished
	}
	txn.drops = append(txn.drops, mvcc.Drop(key, spec))
	return nil
}

func (txn *CommandTxn) pendingOf(key []byte) *pendingWrite {
	if item := txn.pending.Get(&pendingWrite{key: key}); item != nil {
		return item.(*pendingWrite)
	}
	return nil
}

func (txn *CommandTxn) Get(key []byte) (*Versioned, error) {
	if txn.finished {
		return nil, ErrTxnFinished
	}
	if p := txn.pendingOf(key); p != nil {
		if p.removed {
			return nil, nil
		}
		return &Versioned{Key: key, Value: p.value, Version: codec.NoVersion}, nil
	}
	txn.reads = append(txn.reads, key)
	return txn.get(key)
}

func (txn *CommandTxn) ContainsKey(key []byte) (bool, error) {
	item, err := txn.Get(key)
	return item != nil, err
}

func (txn *CommandTxn) Scan() (VersionedIter, error) {
	return txn.merged(mvcc.FullRange(), false)
}

func (txn *CommandTxn) ScanRev() (VersionedIter, error) {
	return txn.merged(mvcc.FullRange(), true)
}

func (txn *CommandTxn) Range(r mvcc.KeyRange) (VersionedIter, error) {
	return txn.merged(r, false)
}

func (txn *CommandTxn) RangeRev(r mvcc.KeyRange) (VersionedIter, error) {
	return txn.merged(r, true)
}

func (txn *CommandTxn) Prefix(prefix []byte) (VersionedIter, error) {
	return txn.merged(mvcc.PrefixRange(prefix), false)
}

func (txn *CommandTxn) PrefixRev(prefix []byte) (VersionedIter, error) {
	return txn.merged(mvcc.PrefixRange(prefix), true)
}

// merged iterates over r with the pending writes at the time of the call applied.
func (txn *CommandTxn) merged(r mvcc.KeyRange, reverse bool) (VersionedIter, error) {
	if txn.finished {
		return nil, ErrTxnFinished
	}
	var pending []*pendingWrite
	txn.pending.Ascend(func(item btree.Item) bool {
		if w := item.(*pendingWrite); r.Contains(w.key) {
			pending = append(pending, w)
		}
		return true
	})
	if reverse {
		for i, j := 0, len(pending)-1; i < j; i, j = i+1, j-1 {
			pending[i], pending[j] = pending[j], pending[i]
		}
	}
	return &mergeIter{store: txn.iter(r, reverse), pending: pending, reverse: reverse}, nil
}

// PendingKeys returns the keys written by the transaction in ascending order.
func (txn *CommandTxn) PendingKeys() [][]byte {
	keys := make([][]byte, 0, txn.pending.Len())
	txn.pending.Ascend(func(item btree.Item) bool {
		keys = append(keys, item.(*pendingWrite).key)
		return true
	})
	return keys
}

// Commit writes the pending writes at a new commit version and returns it. A transaction without writes commits
// at its read version. The transaction is finished afterwards, whether or not the commit succeeded.
func (txn *CommandTxn) Commit() (codec.CommitVersion, error) {
	if txn.finished {
		return codec.NoVersion, ErrTxnFinished
	}
	txn.finished = true
	if txn.pending.Len() == 0 && len(txn.drops) == 0 {
		return txn.version, nil
	}

	deltas := make([]mvcc.Delta, 0, txn.pending.Len()+len(txn.drops))
	conflictKeys := make([][]byte, 0, txn.pending.Len()+len(txn.reads))
	txn.pending.Ascend(func(item btree.Item) bool {
		w := item.(*pendingWrite)
		if w.removed {
			deltas = append(deltas, mvcc.Remove(w.key))
		} else {
			deltas = append(deltas, mvcc.Set(w.key, w.value))
		}
		conflictKeys = append(conflictKeys, w.key)
		return true
	})
	m := txn.m
	if m.detectConflicts {
		conflictKeys = append(conflictKeys, txn.reads...)
	}
	latched := conflictKeys
	for _, d := range txn.drops {
		deltas = append(deltas, d)
		latched = append(latched, d.Key)
	}

	m.latches.WaitForLatches(latched)
	defer m.latches.ReleaseLatches(latched)

	if m.detectConflicts {
		if err := txn.checkConflicts(conflictKeys); err != nil {
			return codec.NoVersion, err
		}
	}

	start := time.Now()
	version := m.oracle.allocate()
	err := m.store.Commit(deltas, version)
	// A failed commit still publishes its version so later commits become visible.
	m.oracle.publish(version)
	if err != nil {
		log.Warn("commit versioned transaction failed",
			zap.Uint64("txn", uint64(txn.id)), zap.Uint64("version", uint64(version)), zap.Error(err))
		return codec.NoVersion, errors.Trace(err)
	}
	log.Debug("committed versioned transaction",
		zap.Uint64("txn", uint64(txn.id)),
		zap.Uint64("version", uint64(version)),
		zap.Int("writes", len(deltas)),
		zap.Duration("duration", time.Since(start)))
	m.latches.Validate(version, latched)
	txn.reset()
	return version, nil
}

func (txn *CommandTxn) checkConflicts(keys [][]byte) error {
	for _, key := range keys {
		latest, ok, err := txn.m.store.LatestVersion(key)
		if err != nil {
			return errors.Trace(err)
		}
		if ok && latest > txn.version {
			log.Debug("write conflict",
				zap.Uint64("txn", uint64(txn.id)),
				zap.Uint64("read-version", uint64(txn.version)),
				zap.Uint64("conflict-version", uint64(latest)),
				zap.Binary("key", key))
			return errors.Annotatef(ErrWriteConflict, "key %q committed at %d after %d", key, latest, txn.version)
		}
	}
	return nil
}

// Rollback discards the pending writes.
func (txn *CommandTxn) Rollback() error {
	if txn.finished {
		return ErrTxnFinished
	}
	txn.finished = true
	txn.reset()
	return nil
}

func (txn *CommandTxn) reset() {
	txn.pending = btree.New(pendingDegree)
	txn.drops = nil
	txn.reads = nil
}
