package engine_util

import (
	"github.com/Connor1996/badger"
	"github.com/pingcap/errors"
)

type WriteBatch struct {
	entries []*badger.Entry
	deletes []bool
}

const (
	// CfMulti holds versioned keys, see codec.EncodeVersionedKey.
	CfMulti string = "multi"
	// CfSingle holds unversioned keys which keep a single current value.
	CfSingle string = "single"
	// CfMeta holds bookkeeping of the store itself, such as the last commit version.
	CfMeta string = "meta"
)

var CFs [3]string = [3]string{CfMulti, CfSingle, CfMeta}

func (wb *WriteBatch) Len() int {
	return len(wb.entries)
}

func (wb *WriteBatch) push(entry *badger.Entry, deleted bool) {
	wb.entries = append(wb.entries, entry)
	wb.deletes = append(wb.deletes, deleted)
}

func (wb *WriteBatch) SetCF(cf string, key, val []byte) {
	if val == nil {
		val = []byte{}
	}
	wb.push(&badger.Entry{
		Key:   KeyWithCF(cf, key),
		Value: val,
	}, false)
}

// TombstoneCF writes a deletion marker for key. Unlike DeleteCF the key stays visible to iterators.
func (wb *WriteBatch) TombstoneCF(cf string, key []byte) {
	wb.push(&badger.Entry{
		Key:      KeyWithCF(cf, key),
		Value:    []byte{},
		UserMeta: []byte{tombstoneMeta},
	}, false)
}

func (wb *WriteBatch) DeleteCF(cf string, key []byte) {
	wb.push(&badger.Entry{
		Key: KeyWithCF(cf, key),
	}, true)
}

func (wb *WriteBatch) WriteToDB(db *badger.DB) error {
	if len(wb.entries) > 0 {
		err := db.Update(func(txn *badger.Txn) error {
			for i, entry := range wb.entries {
				var err1 error
				if wb.deletes[i] {
					err1 = txn.Delete(entry.Key)
				} else {
					err1 = txn.SetEntry(entry)
				}
				if err1 != nil {
					return err1
				}
			}
			return nil
		})
		if err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

