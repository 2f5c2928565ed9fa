package versioned

import (
	"github.com/pingcap-incubator/tinymvcc/kv/transaction/mvcc"
	"github.com/pingcap-incubator/tinymvcc/kv/util/codec"
)

// VersionedQueryTxn reads the versioned store at a fixed version.
type VersionedQueryTxn interface {
	Version() codec.CommitVersion
	ID() TxnID
	// Get returns the newest visible value of key, or nil if key is absent or deleted.
	Get(key []byte) (*Versioned, error)
	ContainsKey(key []byte) (bool, error)
	Scan() (VersionedIter, error)
	ScanRev() (VersionedIter, error)
	Range(r mvcc.KeyRange) (VersionedIter, error)
	RangeRev(r mvcc.KeyRange) (VersionedIter, error)
	Prefix(prefix []byte) (VersionedIter, error)
	PrefixRev(prefix []byte) (VersionedIter, error)
}

// reader reads committed data at a version.
type reader struct {
	m       *Manager
	version codec.CommitVersion
}

func (r *reader) get(key []byte) (*Versioned, error) {
	res, err := r.m.store.Get(key, r.version)
	if err != nil {
		return nil, err
	}
	if res.Kind != mvcc.HasValue {
		return nil, nil
	}
	return &Versioned{Key: key, Value: res.Value, Version: res.Version}, nil
}

func (r *reader) iter(kr mvcc.KeyRange, reverse bool) *storeIter {
	return newStoreIter(r.m.store, kr, r.version, r.m.scanBatch, reverse)
}

// QueryTxn is a read-only transaction. It needs no commit or rollback.
type QueryTxn struct {
	reader
	id TxnID
}

var _ VersionedQueryTxn = &QueryTxn{}

func (txn *QueryTxn) Version() codec.CommitVersion {
	return txn.version
}

func (txn *QueryTxn) ID() TxnID {
	return txn.id
}

func (txn *QueryTxn) Get(key []byte) (*Versioned, error) {
	return txn.get(key)
}

func (txn *QueryTxn) ContainsKey(key []byte) (bool, error) {
	return txn.m.store.Contains(key, txn.version)
}

func (txn *QueryTxn) Scan() (VersionedIter, error) {
	return txn.iter(mvcc.FullRange(), false), nil
}

func (txn *QueryTxn) ScanRev() (VersionedIter, error) {
	return txn.iter(mvcc.FullRange(), true), nil
}

func (txn *QueryTxn) Range(r mvcc.KeyRange) (VersionedIter, error) {
	return txn.iter(r, false), nil
}

func (txn *QueryTxn) RangeRev(r mvcc.KeyRange) (VersionedIter, error) {
	return txn.iter(r, true), nil
}

func (txn *QueryTxn) Prefix(prefix []byte) (VersionedIter, error) {
	return txn.iter(mvcc.PrefixRange(prefix), false), nil
}

func (txn *QueryTxn) PrefixRev(prefix []byte) (VersionedIter, error) {
	return txn.iter(mvcc.PrefixRange(prefix), true), nil
}
