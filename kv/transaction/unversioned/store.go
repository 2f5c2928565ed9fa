// Package unversioned holds keys which keep a single current value and no history. It lives next to the versioned
// store, for data such as secondary indexes, and is not part of the atomicity unit of versioned transactions.
package unversioned

import (
	"bytes"
	"sort"

	"github.com/pingcap-incubator/tinymvcc/kv/storage"
	"github.com/pingcap-incubator/tinymvcc/kv/util/engine_util"
	"github.com/pingcap/errors"
)

// Store is the unversioned store. It hands out handles which are only valid during the call that created them.
type Store struct {
	storage   storage.Storage
	batchSize int
}

func NewStore(s storage.Storage, batchSize int) *Store {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Store{storage: s, batchSize: batchSize}
}

// WithQuery runs f with a query handle over a snapshot of the store.
func (s *Store) WithQuery(f func(q *Query) error) error {
	reader, err := s.storage.Reader()
	if err != nil {
		return err
	}
	defer reader.Close()
	return f(&Query{reader: reader, batchSize: s.batchSize})
}

// WithCommand runs f with a command handle. Writes of the handle are committed when f returns nil and discarded
// when it returns an error.
func (s *Store) WithCommand(f func(c *Command) error) error {
	reader, err := s.storage.Reader()
	if err != nil {
		return err
	}
	defer reader.Close()
	c := &Command{
		Query:   Query{reader: reader, batchSize: s.batchSize},
		pending: make(map[string][]byte),
	}
	if err := f(c); err != nil {
		return err
	}
	if len(c.pending) == 0 {
		return nil
	}
	return s.storage.Write(c.modifies())
}

// Close stops the underlying storage.
func (s *Store) Close() error {
	return s.storage.Stop()
}

// Query reads the unversioned store.
type Query struct {
	reader    storage.StorageReader
	batchSize int
}

// Get returns the value of key, or nil if there is none.
func (q *Query) Get(key []byte) ([]byte, error) {
	return q.reader.GetCF(engine_util.CfSingle, key)
}

func (q *Query) Contains(key []byte) (bool, error) {
	val, err := q.Get(key)
	return val != nil, err
}

// Range returns up to limit entries between start and end in ascending order. A limit <= 0 means no limit.
func (q *Query) Range(start, end storage.Bound, limit int) ([]storage.Entry, error) {
	return q.collect(start, end, limit, false)
}

// RangeRev is Range in descending order.
func (q *Query) RangeRev(start, end storage.Bound, limit int) ([]storage.Entry, error) {
	return q.collect(start, end, limit, true)
}

// Prefix returns up to limit entries whose key starts with prefix.
func (q *Query) Prefix(prefix []byte, limit int) ([]storage.Entry, error) {
	start, end := prefixBounds(prefix)
	return q.collect(start, end, limit, false)
}

func (q *Query) collect(start, end storage.Bound, limit int, reverse bool) ([]storage.Entry, error) {
	var entries []storage.Entry
	cursor := &storage.RangeCursor{}
	for !cursor.Exhausted && (limit <= 0 || len(entries) < limit) {
		n := q.batchSize
		if limit > 0 && limit-len(entries) < n {
			n = limit - len(entries)
		}
		var (
			batch *storage.Batch
			err   error
		)
		if reverse {
			batch, err = storage.ScanRevNext(q.reader, engine_util.CfSingle, cursor, start, end, n)
		} else {
			batch, err = storage.ScanNext(q.reader, engine_util.CfSingle, cursor, start, end, n)
		}
		if err != nil {
			return nil, errors.Trace(err)
		}
		entries = append(entries, batch.Entries...)
	}
	return entries, nil
}

func prefixBounds(prefix []byte) (start, end storage.Bound) {
	start = storage.IncludedBound(prefix)
	end = storage.UnboundedBound()
	if e := engine_util.PrefixEnd(prefix); e != nil {
		end = storage.ExcludedBound(e)
	}
	return
}

// Command reads and writes the unversioned store. Reads observe the handle's own writes.
type Command struct {
	Query
	// pending maps keys to their new value; a nil value removes the key.
	pending map[string][]byte
}

func (c *Command) Set(key, value []byte) {
	if value == nil {
		value = []byte{}
	}
	c.pending[string(key)] = value
}

func (c *Command) Remove(key []byte) {
	c.pending[string(key)] = nil
}

func (c *Command) Get(key []byte) ([]byte, error) {
	if val, ok := c.pending[string(key)]; ok {
		return val, nil
	}
	return c.Query.Get(key)
}

func (c *Command) Contains(key []byte) (bool, error) {
	val, err := c.Get(key)
	return val != nil, err
}

func (c *Command) Range(start, end storage.Bound, limit int) ([]storage.Entry, error) {
	return c.merged(start, end, limit, false)
}

func (c *Command) RangeRev(start, end storage.Bound, limit int) ([]storage.Entry, error) {
	return c.merged(start, end, limit, true)
}

func (c *Command) Prefix(prefix []byte, limit int) ([]storage.Entry, error) {
	start, end := prefixBounds(prefix)
	return c.merged(start, end, limit, false)
}

// merged overlays pending writes on the stored entries of the range.
func (c *Command) merged(start, end storage.Bound, limit int, reverse bool) ([]storage.Entry, error) {
	if len(c.pending) == 0 {
		return c.Query.collect(start, end, limit, reverse)
	}
	stored, err := c.Query.collect(start, end, 0, reverse)
	if err != nil {
		return nil, err
	}
	values := make(map[string][]byte, len(stored)+len(c.pending))
	for _, e := range stored {
		values[string(e.Key)] = e.Value
	}
	for k, v := range c.pending {
		if storage.InRange([]byte(k), start, end) {
			values[k] = v
		}
	}
	entries := make([]storage.Entry, 0, len(values))
	for k, v := range values {
		if v != nil {
			entries = append(entries, storage.Entry{Key: []byte(k), Value: v})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		less := bytes.Compare(entries[i].Key, entries[j].Key) < 0
		if reverse {
			return !less
		}
		return less
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (c *Command) modifies() []storage.Modify {
	keys := make([]string, 0, len(c.pending))
	for k := range c.pending {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	modifies := make([]storage.Modify, 0, len(keys))
	for _, k := range keys {
		if v := c.pending[k]; v != nil {
			modifies = append(modifies, storage.Modify{Data: storage.Put{Cf: engine_util.CfSingle, Key: []byte(k), Value: v}})
		} else {
			modifies = append(modifies, storage.Modify{Data: storage.Delete{Cf: engine_util.CfSingle, Key: []byte(k)}})
		}
	}
	return modifies
}
