package versioned

import (
	"bytes"

	"github.com/pingcap-incubator/tinymvcc/kv/transaction/mvcc"
	"github.com/pingcap-incubator/tinymvcc/kv/util/codec"
)

// Versioned is a key with its newest value visible to a transaction.
type Versioned = mvcc.Versioned

// VersionedIter iterates over the live keys of a range. Next returns nil, nil when the iteration is done.
type VersionedIter interface {
	Next() (*Versioned, error)
	Close()
}

// storeIter reads a key range of a MultiStore at a fixed version, one batch at a time.
type storeIter struct {
	store     *mvcc.MultiStore
	cursor    mvcc.RangeCursor
	r         mvcc.KeyRange
	version   codec.CommitVersion
	batchSize int
	reverse   bool

	buf []Versioned
	pos int
}

func newStoreIter(store *mvcc.MultiStore, r mvcc.KeyRange, version codec.CommitVersion, batchSize int, reverse bool) *storeIter {
	return &storeIter{
		store:     store,
		r:         r,
		version:   version,
		batchSize: batchSize,
		reverse:   reverse,
	}
}

func (it *storeIter) Next() (*Versioned, error) {
	for it.pos == len(it.buf) {
		if it.cursor.Exhausted {
			return nil, nil
		}
		var (
			batch *mvcc.VersionedBatch
			err   error
		)
		if it.reverse {
			batch, err = it.store.RangeRevNext(&it.cursor, it.r, it.version, it.batchSize)
		} else {
			batch, err = it.store.RangeNext(&it.cursor, it.r, it.version, it.batchSize)
		}
		if err != nil {
			return nil, err
		}
		it.buf, it.pos = batch.Items, 0
	}
	item := &it.buf[it.pos]
	it.pos++
	return item, nil
}

func (it *storeIter) Close() {
	it.buf = nil
	it.cursor.Exhausted = true
}

// mergeIter overlays the pending writes of a command transaction on a storeIter. Pending writes win over committed
// versions of the same key and pending removals hide them.
type mergeIter struct {
	store   *storeIter
	pending []*pendingWrite
	reverse bool

	next *Versioned
	done bool
}

func (it *mergeIter) Next() (*Versioned, error) {
	for {
		if it.next == nil && !it.done {
			item, err := it.store.Next()
			if err != nil {
				return nil, err
			}
			it.next = item
			it.done = item == nil
		}
		if len(it.pending) == 0 {
			item := it.next
			it.next = nil
			return item, nil
		}

		p := it.pending[0]
		// cmp < 0 when the pending write comes first in scan order.
		cmp := -1
		if it.next != nil {
			cmp = bytes.Compare(p.key, it.next.Key)
			if it.reverse {
				cmp = -cmp
			}
		}
		if cmp > 0 {
			item := it.next
			it.next = nil
			return item, nil
		}
		it.pending = it.pending[1:]
		if cmp == 0 {
			it.next = nil
		}
		if p.removed {
			continue
		}
		return &Versioned{Key: p.key, Value: p.value, Version: codec.NoVersion}, nil
	}
}

func (it *mergeIter) Close() {
	it.store.Close()
	it.pending = nil
}
