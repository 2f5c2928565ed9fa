package storage

import (
	"testing"

	"github.com/pingcap-incubator/tinymvcc/kv/config"
	"github.com/pingcap-incubator/tinymvcc/kv/util/engine_util"
	"github.com/pingcap/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func put(key, value string) Modify {
	return Modify{Data: Put{Cf: engine_util.CfMulti, Key: []byte(key), Value: []byte(value)}}
}

func tombstone(key string) Modify {
	return Modify{Data: Tombstone{Cf: engine_util.CfMulti, Key: []byte(key)}}
}

func del(key string) Modify {
	return Modify{Data: Delete{Cf: engine_util.CfMulti, Key: []byte(key)}}
}

func keysOf(batch *Batch) []string {
	keys := make([]string, 0, len(batch.Entries))
	for _, e := range batch.Entries {
		keys = append(keys, string(e.Key))
	}
	return keys
}

func newFilledMemStorage(t *testing.T) *MemStorage {
	s := NewMemStorage()
	require.Nil(t, s.Write([]Modify{
		put("a", "1"), put("b", "2"), put("c", "3"), tombstone("d"), put("e", "5"), put("f", ""),
	}))
	return s
}

func TestMemStorageReader(t *testing.T) {
	s := newFilledMemStorage(t)
	reader, err := s.Reader()
	require.Nil(t, err)
	defer reader.Close()

	val, err := reader.GetCF(engine_util.CfMulti, []byte("a"))
	require.Nil(t, err)
	assert.Equal(t, []byte("1"), val)

	// Tombstones and missing keys both read as nil.
	val, err = reader.GetCF(engine_util.CfMulti, []byte("d"))
	require.Nil(t, err)
	assert.Nil(t, val)
	val, err = reader.GetCF(engine_util.CfMulti, []byte("zz"))
	require.Nil(t, err)
	assert.Nil(t, val)

	// An empty value is not a tombstone.
	val, err = reader.GetCF(engine_util.CfMulti, []byte("f"))
	require.Nil(t, err)
	assert.Equal(t, []byte{}, val)

	_, err = reader.GetCF("nope", []byte("a"))
	assert.NotNil(t, err)
	assert.NotNil(t, s.Write([]Modify{{Data: Put{Cf: "nope", Key: []byte("a")}}}))
}

func TestMemStorageSnapshotIsolation(t *testing.T) {
	s := newFilledMemStorage(t)
	reader, err := s.Reader()
	require.Nil(t, err)
	defer reader.Close()

	require.Nil(t, s.Write([]Modify{put("a", "changed"), del("b")}))

	val, _ := reader.GetCF(engine_util.CfMulti, []byte("a"))
	assert.Equal(t, []byte("1"), val)
	val, _ = reader.GetCF(engine_util.CfMulti, []byte("b"))
	assert.Equal(t, []byte("2"), val)

	fresh, err := s.Reader()
	require.Nil(t, err)
	val, _ = fresh.GetCF(engine_util.CfMulti, []byte("a"))
	assert.Equal(t, []byte("changed"), val)
	val, _ = fresh.GetCF(engine_util.CfMulti, []byte("b"))
	assert.Nil(t, val)
	assert.Equal(t, 5, s.Len(engine_util.CfMulti))
	assert.Equal(t, 0, s.Len(engine_util.CfSingle))
}

func TestMemIter(t *testing.T) {
	s := newFilledMemStorage(t)
	reader, _ := s.Reader()
	defer reader.Close()

	iter := reader.IterCF(engine_util.CfMulti)
	defer iter.Close()
	iter.Seek([]byte("bb"))
	require.True(t, iter.Valid())
	assert.Equal(t, []byte("c"), iter.Item().Key())
	iter.Next()
	assert.Equal(t, []byte("d"), iter.Item().Key())
	assert.True(t, iter.Item().IsTombstone())
	iter.Seek([]byte("zz"))
	assert.False(t, iter.Valid())

	rev := reader.ReverseIterCF(engine_util.CfMulti)
	defer rev.Close()
	rev.Rewind()
	assert.Equal(t, []byte("f"), rev.Item().Key())
	rev.Seek([]byte("bb"))
	assert.Equal(t, []byte("b"), rev.Item().Key())
	rev.Next()
	assert.Equal(t, []byte("a"), rev.Item().Key())
	rev.Next()
	assert.False(t, rev.Valid())
}

func TestRangeNextBounds(t *testing.T) {
	s := newFilledMemStorage(t)
	cf := engine_util.CfMulti

	cases := []struct {
		start, end Bound
		expected   []string
	}{
		{UnboundedBound(), UnboundedBound(), []string{"a", "b", "c", "d", "e", "f"}},
		{IncludedBound([]byte("b")), IncludedBound([]byte("d")), []string{"b", "c", "d"}},
		{ExcludedBound([]byte("b")), ExcludedBound([]byte("d")), []string{"c"}},
		{IncludedBound([]byte("bb")), UnboundedBound(), []string{"c", "d", "e", "f"}},
		{UnboundedBound(), ExcludedBound([]byte("c")), []string{"a", "b"}},
		{IncludedBound([]byte("x")), UnboundedBound(), []string{}},
	}
	for _, c := range cases {
		batch, err := s.RangeNext(cf, &RangeCursor{}, c.start, c.end, 100)
		require.Nil(t, err)
		assert.Equal(t, c.expected, keysOf(batch), "forward %v %v", c.start, c.end)
		assert.False(t, batch.HasMore)

		batch, err = s.RangeRevNext(cf, &RangeCursor{}, c.start, c.end, 100)
		require.Nil(t, err)
		reversed := make([]string, len(c.expected))
		for i, k := range c.expected {
			reversed[len(c.expected)-1-i] = k
		}
		assert.Equal(t, reversed, keysOf(batch), "reverse %v %v", c.start, c.end)
	}
}

func TestRangeNextCursor(t *testing.T) {
	s := newFilledMemStorage(t)
	cf := engine_util.CfMulti
	cursor := &RangeCursor{}

	var all []string
	for i := 0; i < 10 && !cursor.Exhausted; i++ {
		batch, err := s.RangeNext(cf, cursor, UnboundedBound(), UnboundedBound(), 4)
		require.Nil(t, err)
		assert.True(t, len(batch.Entries) <= 4)
		all = append(all, keysOf(batch)...)
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, all)
	assert.True(t, cursor.Exhausted)

	batch, err := s.RangeNext(cf, cursor, UnboundedBound(), UnboundedBound(), 4)
	require.Nil(t, err)
	assert.Empty(t, batch.Entries)

	rev := &RangeCursor{}
	batch, err = s.RangeRevNext(cf, rev, UnboundedBound(), UnboundedBound(), 2)
	require.Nil(t, err)
	assert.Equal(t, []string{"f", "e"}, keysOf(batch))
	assert.True(t, batch.HasMore)
	batch, err = s.RangeRevNext(cf, rev, UnboundedBound(), UnboundedBound(), 2)
	require.Nil(t, err)
	assert.Equal(t, []string{"d", "c"}, keysOf(batch))
	assert.True(t, batch.Entries[0].IsTombstone())

	_, err = s.RangeNext(cf, &RangeCursor{}, UnboundedBound(), UnboundedBound(), 0)
	assert.NotNil(t, err)
}

func TestRangeNextEmptyKey(t *testing.T) {
	s := NewMemStorage()
	cf := engine_util.CfSingle
	require.Nil(t, s.Write([]Modify{
		{Data: Put{Cf: cf, Key: []byte{}, Value: []byte("root")}},
		{Data: Put{Cf: cf, Key: []byte("a"), Value: []byte("1")}},
	}))
	cursor := &RangeCursor{}
	batch, err := s.RangeNext(cf, cursor, UnboundedBound(), UnboundedBound(), 1)
	require.Nil(t, err)
	require.Len(t, batch.Entries, 1)
	assert.NotNil(t, batch.Entries[0].Key)
	batch, err = s.RangeNext(cf, cursor, UnboundedBound(), UnboundedBound(), 1)
	require.Nil(t, err)
	assert.Equal(t, []string{"a"}, keysOf(batch))
}

func TestRegistry(t *testing.T) {
	s, err := Create(config.EngineMemory, config.NewTestConfig(), "")
	require.Nil(t, err)
	assert.IsType(t, &MemStorage{}, s)

	_, err = Create("rocksdb", config.NewTestConfig(), "")
	require.NotNil(t, err)
	assert.Contains(t, errors.ErrorStack(err), "unknown engine \"rocksdb\"")
	assert.Contains(t, errors.ErrorStack(err), "storage.go")

	assert.Panics(t, func() {
		Register(config.EngineMemory, func(*config.Config, string) (Storage, error) { return nil, nil })
	})
}
