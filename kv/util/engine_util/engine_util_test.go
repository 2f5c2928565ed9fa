package engine_util

import (
	"bytes"
	"io/ioutil"
	"os"
	"testing"

	"github.com/Connor1996/badger"
	"github.com/pingcap-incubator/tinymvcc/kv/config"
	"github.com/stretchr/testify/require"
)

func newTestEngines(t *testing.T) *Engines {
	dir, err := ioutil.TempDir("", "engine_util")
	require.Nil(t, err)
	conf := config.NewTestConfig()
	db, err := CreateDB(dir, &conf.Engine)
	require.Nil(t, err)
	return NewEngines(db, dir)
}

func TestEngineUtil(t *testing.T) {
	engines := newTestEngines(t)
	defer engines.Destroy()
	db := engines.Kv

	batch := new(WriteBatch)
	batch.SetCF(CfMulti, []byte("a"), []byte("a1"))
	batch.SetCF(CfMulti, []byte("b"), []byte("b1"))
	batch.SetCF(CfMulti, []byte("c"), []byte("c1"))
	batch.SetCF(CfMulti, []byte("d"), []byte("d1"))
	batch.SetCF(CfSingle, []byte("a"), []byte("a2"))
	batch.SetCF(CfSingle, []byte("b"), []byte("b2"))
	batch.SetCF(CfSingle, []byte("d"), []byte("d2"))
	batch.SetCF(CfMulti, []byte("e"), []byte("e1"))
	batch.DeleteCF(CfMulti, []byte("e"))
	require.Nil(t, engines.WriteKV(batch))

	getE := func() ([]byte, error) {
		txn := db.NewTransaction(false)
		defer txn.Discard()
		return GetCFFromTxn(txn, CfMulti, []byte("e"))
	}
	_, err := getE()
	require.True(t, IsNotFound(err))

	batch = new(WriteBatch)
	batch.SetCF(CfMulti, []byte("e"), []byte("e2"))
	require.Equal(t, 1, batch.Len())
	require.Nil(t, engines.WriteKV(batch))
	val, err := getE()
	require.Nil(t, err)
	require.Equal(t, []byte("e2"), val)

	batch = new(WriteBatch)
	batch.TombstoneCF(CfMulti, []byte("e"))
	require.Nil(t, engines.WriteKV(batch))
	_, err = getE()
	require.True(t, IsNotFound(err))

	batch = new(WriteBatch)
	batch.SetCF(CfMulti, []byte("e"), nil)
	require.Nil(t, engines.WriteKV(batch))
	val, err = getE()
	require.Nil(t, err)
	require.Equal(t, []byte{}, val)

	batch = new(WriteBatch)
	batch.DeleteCF(CfMulti, []byte("e"))
	require.Nil(t, engines.WriteKV(batch))

	txn := db.NewTransaction(false)
	defer txn.Discard()
	multiIter := NewCFIterator(CfMulti, txn)
	multiIter.Seek([]byte("a"))
	for _, expected := range []string{"a", "b", "c", "d"} {
		require.True(t, multiIter.Valid())
		item := multiIter.Item()
		require.True(t, bytes.Equal(item.Key(), []byte(expected)))
		val, _ = item.Value()
		require.True(t, bytes.Equal(val, []byte(expected+"1")))
		require.False(t, item.IsTombstone())
		multiIter.Next()
	}
	require.False(t, multiIter.Valid())
	multiIter.Close()

	singleIter := NewCFIterator(CfSingle, txn)
	singleIter.Seek([]byte("b"))
	item := singleIter.Item()
	require.True(t, bytes.Equal(item.Key(), []byte("b")))
	singleIter.Next()
	item = singleIter.Item()
	require.True(t, bytes.Equal(item.Key(), []byte("d")))
	singleIter.Next()
	require.False(t, singleIter.Valid())
	singleIter.Close()

	reverse := NewReverseCFIterator(CfMulti, txn)
	reverse.Rewind()
	for _, expected := range []string{"d", "c", "b", "a"} {
		require.True(t, reverse.Valid())
		require.Equal(t, []byte(expected), reverse.Item().Key())
		reverse.Next()
	}
	require.False(t, reverse.Valid())
	reverse.Seek([]byte("bb"))
	require.True(t, reverse.Valid())
	require.Equal(t, []byte("b"), reverse.Item().Key())
	reverse.Close()
}

func TestTombstoneCF(t *testing.T) {
	engines := newTestEngines(t)
	defer engines.Destroy()

	batch := new(WriteBatch)
	batch.SetCF(CfMulti, []byte("k1"), []byte{})
	batch.TombstoneCF(CfMulti, []byte("k2"))
	require.Nil(t, engines.WriteKV(batch))

	err := engines.Kv.View(func(txn *badger.Txn) error {
		it := NewCFIterator(CfMulti, txn)
		defer it.Close()
		it.Rewind()
		require.True(t, it.Valid())
		require.Equal(t, []byte("k1"), it.Item().Key())
		require.False(t, it.Item().IsTombstone())
		it.Next()
		require.True(t, it.Valid())
		require.Equal(t, []byte("k2"), it.Item().Key())
		require.True(t, it.Item().IsTombstone())
		return nil
	})
	require.Nil(t, err)
}

func TestDestroy(t *testing.T) {
	engines := newTestEngines(t)
	require.Nil(t, engines.Destroy())
	_, err := os.Stat(engines.KvPath)
	require.True(t, os.IsNotExist(err))
}

func TestPrefixEnd(t *testing.T) {
	require.Equal(t, []byte("multi`"), PrefixEnd([]byte("multi_")))
	require.Equal(t, []byte{2}, PrefixEnd([]byte{1, 0xff}))
	require.Nil(t, PrefixEnd([]byte{0xff, 0xff}))
}
