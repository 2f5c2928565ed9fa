package mvcc

import (
	"bytes"

	"github.com/google/btree"
	"github.com/pingcap-incubator/tinymvcc/kv/storage"
	"github.com/pingcap-incubator/tinymvcc/kv/util/codec"
	"github.com/pingcap-incubator/tinymvcc/kv/util/engine_util"
	"github.com/pingcap/errors"
)

const memDegree = 32

// Versioned is a logical key with the value of its newest visible version.
type Versioned struct {
	Key     []byte
	Value   []byte
	Version codec.CommitVersion
}

// VersionedBatch is one batch of a versioned range scan.
type VersionedBatch struct {
	Items   []Versioned
	HasMore bool
}

// KeyRange is a range of logical keys.
type KeyRange struct {
	Start storage.Bound
	End   storage.Bound
}

// FullRange covers every key.
func FullRange() KeyRange {
	return KeyRange{Start: storage.UnboundedBound(), End: storage.UnboundedBound()}
}

// PrefixRange covers every key starting with prefix.
func PrefixRange(prefix []byte) KeyRange {
	r := KeyRange{Start: storage.IncludedBound(prefix), End: storage.UnboundedBound()}
	if end := engine_util.PrefixEnd(prefix); end != nil {
		r.End = storage.ExcludedBound(end)
	}
	return r
}

// Contains reports whether key lies in the range.
func (r KeyRange) Contains(key []byte) bool {
	return storage.InRange(key, r.Start, r.End)
}

// physical maps the logical range to a range of encoded keys covering every version of every key in it.
func (r KeyRange) physical() (start, end storage.Bound) {
	switch r.Start.Kind {
	case storage.Included:
		start = storage.IncludedBound(codec.EncodeVersionedKey(r.Start.Key, codec.MaxVersion))
	case storage.Excluded:
		start = storage.ExcludedBound(codec.EncodeVersionedKey(r.Start.Key, codec.NoVersion))
	default:
		start = storage.UnboundedBound()
	}
	switch r.End.Kind {
	case storage.Included:
		end = storage.IncludedBound(codec.EncodeVersionedKey(r.End.Key, codec.NoVersion))
	case storage.Excluded:
		end = storage.ExcludedBound(codec.EncodeVersionedKey(r.End.Key, codec.MaxVersion))
	default:
		end = storage.UnboundedBound()
	}
	return
}

// RangeCursor tracks a versioned range scan over all tiers of a MultiStore. The zero value starts a new scan; a
// cursor must be used with a single direction, range and version.
type RangeCursor struct {
	started bool
	reverse bool
	tiers   []tierCursor
	// pending holds the best version seen so far of keys which some tier may still hold versions of.
	pending   *btree.BTree
	Exhausted bool
}

type tierCursor struct {
	cursor storage.RangeCursor
	// frontier is the logical key of the last entry scanned, nil before the first batch.
	frontier []byte
}

type candidate struct {
	key     []byte
	value   []byte
	version codec.CommitVersion
}

func (c *candidate) Less(than btree.Item) bool {
	return bytes.Compare(c.key, than.(*candidate).key) < 0
}

// RangeNext returns up to limit live keys of r in ascending order, each with its newest value at or below version.
func (ms *MultiStore) RangeNext(cursor *RangeCursor, r KeyRange, version codec.CommitVersion, limit int) (*VersionedBatch, error) {
	return ms.rangeScan(cursor, r, version, limit, false)
}

// RangeRevNext is RangeNext in descending key order.
func (ms *MultiStore) RangeRevNext(cursor *RangeCursor, r KeyRange, version codec.CommitVersion, limit int) (*VersionedBatch, error) {
	return ms.rangeScan(cursor, r, version, limit, true)
}

func (ms *MultiStore) rangeScan(cursor *RangeCursor, r KeyRange, version codec.CommitVersion, limit int, reverse bool) (*VersionedBatch, error) {
	if limit <= 0 {
		return nil, errors.Errorf("range scan limit must be positive, got %d", limit)
	}
	if !cursor.started {
		cursor.started = true
		cursor.reverse = reverse
		cursor.tiers = make([]tierCursor, len(ms.tiers))
		cursor.pending = btree.New(memDegree)
	} else if cursor.reverse != reverse {
		return nil, errors.New("mvcc: range cursor used in both directions")
	}
	batch := &VersionedBatch{}
	if cursor.Exhausted {
		return batch, nil
	}
	start, end := r.physical()

	for {
		ms.emitComplete(cursor, batch, limit)
		if len(batch.Items) == limit {
			break
		}
		next := ms.nextTier(cursor)
		if next < 0 {
			// Every tier is exhausted, so every pending key is complete.
			ms.emitComplete(cursor, batch, limit)
			break
		}
		if err := ms.fetch(cursor, next, start, end, version); err != nil {
			return nil, err
		}
	}

	if ms.nextTier(cursor) < 0 && cursor.pending.Len() == 0 {
		cursor.Exhausted = true
	}
	batch.HasMore = !cursor.Exhausted
	return batch, nil
}

// nextTier picks the tier to fetch from: one that has not started yet, otherwise the one whose frontier lags
// behind. It returns -1 when every tier is exhausted.
func (ms *MultiStore) nextTier(cursor *RangeCursor) int {
	best := -1
	for i := range cursor.tiers {
		tc := &cursor.tiers[i]
		if tc.cursor.Exhausted {
			continue
		}
		if tc.frontier == nil {
			return i
		}
		if best < 0 || cursor.behind(tc.frontier, cursor.tiers[best].frontier) {
			best = i
		}
	}
	return best
}

// behind reports whether a comes before b in scan order.
func (cursor *RangeCursor) behind(a, b []byte) bool {
	if cursor.reverse {
		return bytes.Compare(a, b) > 0
	}
	return bytes.Compare(a, b) < 0
}

// complete reports whether no tier can hold an unseen version of key.
func (cursor *RangeCursor) complete(key []byte) bool {
	for i := range cursor.tiers {
		tc := &cursor.tiers[i]
		if tc.cursor.Exhausted {
			continue
		}
		if tc.frontier == nil || !cursor.behind(key, tc.frontier) {
			return false
		}
	}
	return true
}

func (ms *MultiStore) fetch(cursor *RangeCursor, idx int, start, end storage.Bound, version codec.CommitVersion) error {
	t := ms.tiers[idx]
	tc := &cursor.tiers[idx]
	var (
		res *storage.Batch
		err error
	)
	if cursor.reverse {
		res, err = t.RangeRevNext(engine_util.CfMulti, &tc.cursor, start, end, ms.scanChunk)
	} else {
		res, err = t.RangeNext(engine_util.CfMulti, &tc.cursor, start, end, ms.scanChunk)
	}
	if err != nil {
		return errors.Annotatef(err, "range scan %s tier", t.name)
	}
	tierScanCounter.WithLabelValues(t.name).Inc()

	for _, e := range res.Entries {
		key, v, ok := codec.DecodeVersionedKey(e.Key)
		if !ok {
			continue
		}
		tc.frontier = key
		if v > version {
			continue
		}
		c := &candidate{key: key, value: e.Value, version: v}
		if old := cursor.pending.Get(c); old != nil && old.(*candidate).version >= v {
			continue
		}
		cursor.pending.ReplaceOrInsert(c)
	}
	return nil
}

// emitComplete moves complete pending keys to batch in scan order. Tombstones are consumed without being emitted.
func (ms *MultiStore) emitComplete(cursor *RangeCursor, batch *VersionedBatch, limit int) {
	for len(batch.Items) < limit && cursor.pending.Len() > 0 {
		var item btree.Item
		if cursor.reverse {
			item = cursor.pending.Max()
		} else {
			item = cursor.pending.Min()
		}
		c := item.(*candidate)
		if !cursor.complete(c.key) {
			return
		}
		cursor.pending.Delete(c)
		if c.value == nil {
			continue
		}
		batch.Items = append(batch.Items, Versioned{Key: c.key, Value: c.value, Version: c.version})
	}
}
