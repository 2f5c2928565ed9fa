package standalone_storage

import (
	"io/ioutil"
	"os"
	"testing"

	"github.com/pingcap-incubator/tinymvcc/kv/config"
	"github.com/pingcap-incubator/tinymvcc/kv/storage"
	"github.com/pingcap-incubator/tinymvcc/kv/util/engine_util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) (*StandAloneStorage, func()) {
	dir, err := ioutil.TempDir("", "standalone_storage")
	require.Nil(t, err)
	conf := config.NewTestConfig()
	s := NewStandAloneStorage(&conf.Engine, dir)
	require.Nil(t, s.Start())
	return s, func() {
		assert.Nil(t, s.Destroy())
	}
}

func TestReader(t *testing.T) {
	s, cleanup := newTestStorage(t)
	defer cleanup()

	cf := engine_util.CfMulti
	require.Nil(t, s.Write([]storage.Modify{
		{Data: storage.Put{Cf: cf, Key: []byte("a"), Value: []byte("1")}},
		{Data: storage.Put{Cf: cf, Key: []byte("b"), Value: []byte{}}},
		{Data: storage.Tombstone{Cf: cf, Key: []byte("c")}},
		{Data: storage.Put{Cf: engine_util.CfSingle, Key: []byte("a"), Value: []byte("single")}},
	}))

	reader, err := s.Reader()
	require.Nil(t, err)
	defer reader.Close()

	val, err := reader.GetCF(cf, []byte("a"))
	require.Nil(t, err)
	assert.Equal(t, []byte("1"), val)
	val, err = reader.GetCF(cf, []byte("b"))
	require.Nil(t, err)
	assert.Equal(t, []byte{}, val)
	val, err = reader.GetCF(cf, []byte("c"))
	require.Nil(t, err)
	assert.Nil(t, val)
	val, err = reader.GetCF(cf, []byte("missing"))
	require.Nil(t, err)
	assert.Nil(t, val)
	val, err = reader.GetCF(engine_util.CfSingle, []byte("a"))
	require.Nil(t, err)
	assert.Equal(t, []byte("single"), val)
}

func TestRangeScan(t *testing.T) {
	s, cleanup := newTestStorage(t)
	defer cleanup()

	cf := engine_util.CfMulti
	var batch []storage.Modify
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		batch = append(batch, storage.Modify{Data: storage.Put{Cf: cf, Key: []byte(k), Value: []byte(k + k)}})
	}
	batch = append(batch, storage.Modify{Data: storage.Tombstone{Cf: cf, Key: []byte("f")}})
	// Keys in the other column family must never leak into a scan.
	batch = append(batch, storage.Modify{Data: storage.Put{Cf: engine_util.CfSingle, Key: []byte("c"), Value: []byte("x")}})
	require.Nil(t, s.Write(batch))
	require.Nil(t, s.Write([]storage.Modify{{Data: storage.Delete{Cf: cf, Key: []byte("b")}}}))

	cursor := &storage.RangeCursor{}
	var keys []string
	for !cursor.Exhausted {
		res, err := s.RangeNext(cf, cursor, storage.UnboundedBound(), storage.UnboundedBound(), 2)
		require.Nil(t, err)
		for _, e := range res.Entries {
			keys = append(keys, string(e.Key))
		}
	}
	assert.Equal(t, []string{"a", "c", "d", "e", "f"}, keys)

	res, err := s.RangeRevNext(cf, &storage.RangeCursor{}, storage.ExcludedBound([]byte("a")),
		storage.UnboundedBound(), 10)
	require.Nil(t, err)
	require.Len(t, res.Entries, 4)
	assert.Equal(t, []byte("f"), res.Entries[0].Key)
	assert.True(t, res.Entries[0].IsTombstone())
	assert.Equal(t, []byte("ee"), res.Entries[1].Value)
	assert.Equal(t, []byte("c"), res.Entries[3].Key)

	res, err = s.RangeRevNext(engine_util.CfSingle, &storage.RangeCursor{}, storage.UnboundedBound(),
		storage.UnboundedBound(), 10)
	require.Nil(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, []byte("x"), res.Entries[0].Value)
}

func TestReaderSnapshot(t *testing.T) {
	s, cleanup := newTestStorage(t)
	defer cleanup()

	cf := engine_util.CfSingle
	require.Nil(t, s.Write([]storage.Modify{{Data: storage.Put{Cf: cf, Key: []byte("k"), Value: []byte("v1")}}}))
	reader, err := s.Reader()
	require.Nil(t, err)
	defer reader.Close()
	require.Nil(t, s.Write([]storage.Modify{{Data: storage.Put{Cf: cf, Key: []byte("k"), Value: []byte("v2")}}}))

	val, err := reader.GetCF(cf, []byte("k"))
	require.Nil(t, err)
	assert.Equal(t, []byte("v1"), val)
}

func TestRegisteredEngine(t *testing.T) {
	dir, err := ioutil.TempDir("", "standalone_storage")
	require.Nil(t, err)
	defer os.RemoveAll(dir)

	s, err := storage.Create(config.EngineBadger, config.NewTestConfig(), dir)
	require.Nil(t, err)
	assert.IsType(t, &StandAloneStorage{}, s)
	assert.Nil(t, s.Stop())

	_, err = s.Reader()
	assert.NotNil(t, err)
}

func TestDestroy(t *testing.T) {
	s, _ := newTestStorage(t)
	require.Nil(t, s.Write([]storage.Modify{
		{Data: storage.Put{Cf: engine_util.CfMulti, Key: []byte("a"), Value: []byte("1")}},
	}))
	require.Nil(t, s.Destroy())
	_, err := os.Stat(s.path)
	assert.True(t, os.IsNotExist(err))
	_, err = s.Reader()
	assert.NotNil(t, err)

	// A stopped storage still has its directory removed.
	s, _ = newTestStorage(t)
	require.Nil(t, s.Stop())
	require.Nil(t, s.Destroy())
	_, err = os.Stat(s.path)
	assert.True(t, os.IsNotExist(err))
}
