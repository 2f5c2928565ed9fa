package storage

import (
	"bytes"

	"github.com/pingcap-incubator/tinymvcc/kv/util/engine_util"
	"github.com/pingcap/errors"
)

// ScanNext implements RangeScanner.RangeNext on top of a reader. Storages share it so every tier agrees on bound
// and cursor semantics.
func ScanNext(reader StorageReader, cf string, cursor *RangeCursor, start, end Bound, limit int) (*Batch, error) {
	if cursor.Exhausted {
		return &Batch{}, nil
	}
	iter := reader.IterCF(cf)
	defer iter.Close()

	switch {
	case cursor.LastKey != nil:
		seekPast(iter, cursor.LastKey)
	case start.Kind == Unbounded:
		iter.Rewind()
	case start.Kind == Included:
		iter.Seek(start.Key)
	default:
		seekPast(iter, start.Key)
	}

	return collect(iter, cursor, limit, func(key []byte) bool {
		switch end.Kind {
		case Included:
			return bytes.Compare(key, end.Key) > 0
		case Excluded:
			return bytes.Compare(key, end.Key) >= 0
		}
		return false
	})
}

// ScanRevNext is the reverse counterpart of ScanNext: it starts at the end bound and walks towards the start bound.
func ScanRevNext(reader StorageReader, cf string, cursor *RangeCursor, start, end Bound, limit int) (*Batch, error) {
	if cursor.Exhausted {
		return &Batch{}, nil
	}
	iter := reader.ReverseIterCF(cf)
	defer iter.Close()

	switch {
	case cursor.LastKey != nil:
		seekPast(iter, cursor.LastKey)
	case end.Kind == Unbounded:
		iter.Rewind()
	case end.Kind == Included:
		iter.Seek(end.Key)
	default:
		seekPast(iter, end.Key)
	}

	return collect(iter, cursor, limit, func(key []byte) bool {
		switch start.Kind {
		case Included:
			return bytes.Compare(key, start.Key) < 0
		case Excluded:
			return bytes.Compare(key, start.Key) <= 0
		}
		return false
	})
}

// seekPast positions iter on the first key after key in iteration order.
func seekPast(iter engine_util.DBIterator, key []byte) {
	iter.Seek(key)
	if iter.Valid() && bytes.Equal(iter.Item().Key(), key) {
		iter.Next()
	}
}

func collect(iter engine_util.DBIterator, cursor *RangeCursor, limit int, beyond func([]byte) bool) (*Batch, error) {
	if limit <= 0 {
		return nil, errors.Errorf("range scan limit must be positive, got %d", limit)
	}
	batch := &Batch{Entries: make([]Entry, 0, minInt(limit, 64))}
	for ; iter.Valid(); iter.Next() {
		item := iter.Item()
		if beyond(item.Key()) {
			break
		}
		if len(batch.Entries) == limit {
			batch.HasMore = true
			break
		}
		// A non-nil destination keeps empty keys distinguishable from an unset cursor.
		entry := Entry{Key: item.KeyCopy([]byte{})}
		if !item.IsTombstone() {
			value, err := item.ValueCopy(nil)
			if err != nil {
				return nil, errors.Trace(err)
			}
			if value == nil {
				value = []byte{}
			}
			entry.Value = value
		}
		batch.Entries = append(batch.Entries, entry)
	}
	if n := len(batch.Entries); n > 0 {
		cursor.LastKey = batch.Entries[n-1].Key
	}
	if !batch.HasMore {
		cursor.Exhausted = true
	}
	return batch, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
