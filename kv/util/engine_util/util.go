package engine_util

import (
	"github.com/Connor1996/badger"
	"github.com/pingcap/errors"
)

// KeyWithCF prefixes key with its column family. All column families share one badger keyspace.
func KeyWithCF(cf string, key []byte) []byte {
	return append([]byte(cf+"_"), key...)
}

// PrefixEnd returns the smallest key greater than every key starting with prefix, or nil if there is none.
func PrefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

// GetCFFromTxn reads key of cf in txn. A missing key and a tombstone both yield badger.ErrKeyNotFound; an empty value
// is returned as a non-nil empty slice.
func GetCFFromTxn(txn *badger.Txn, cf string, key []byte) (val []byte, err error) {
	item, err := txn.Get(KeyWithCF(cf, key))
	if err != nil {
		return nil, err
	}
	if meta := item.UserMeta(); len(meta) == 1 && IsTombstoneMeta(meta[0]) {
		return nil, badger.ErrKeyNotFound
	}
	val, err = item.ValueCopy(val)
	if err == nil && val == nil {
		val = []byte{}
	}
	return
}

// IsNotFound reports whether err is badger's missing key error.
func IsNotFound(err error) bool {
	return errors.Cause(err) == badger.ErrKeyNotFound
}
