package transaction

import (
	"github.com/pingcap-incubator/tinymvcc/kv/transaction/mvcc"
	"github.com/pingcap-incubator/tinymvcc/kv/transaction/unversioned"
	"github.com/pingcap-incubator/tinymvcc/kv/transaction/versioned"
	"github.com/pingcap-incubator/tinymvcc/kv/util/codec"
)

// ActiveQueryTxn is a read-only transaction over both stores.
type ActiveQueryTxn struct {
	query       *versioned.QueryTxn
	unversioned *unversioned.Store
}

var _ versioned.VersionedQueryTxn = &ActiveQueryTxn{}

func NewActiveQueryTxn(query *versioned.QueryTxn, store *unversioned.Store) *ActiveQueryTxn {
	return &ActiveQueryTxn{query: query, unversioned: store}
}

func (txn *ActiveQueryTxn) Version() codec.CommitVersion {
	return txn.query.Version()
}

func (txn *ActiveQueryTxn) ID() versioned.TxnID {
	return txn.query.ID()
}

func (txn *ActiveQueryTxn) Get(key []byte) (*versioned.Versioned, error) {
	return txn.query.Get(key)
}

func (txn *ActiveQueryTxn) ContainsKey(key []byte) (bool, error) {
	return txn.query.ContainsKey(key)
}

func (txn *ActiveQueryTxn) Scan() (versioned.VersionedIter, error) {
	return txn.query.Scan()
}

func (txn *ActiveQueryTxn) ScanRev() (versioned.VersionedIter, error) {
	return txn.query.ScanRev()
}

func (txn *ActiveQueryTxn) Range(r mvcc.KeyRange) (versioned.VersionedIter, error) {
	return txn.query.Range(r)
}

func (txn *ActiveQueryTxn) RangeRev(r mvcc.KeyRange) (versioned.VersionedIter, error) {
	return txn.query.RangeRev(r)
}

func (txn *ActiveQueryTxn) Prefix(prefix []byte) (versioned.VersionedIter, error) {
	return txn.query.Prefix(prefix)
}

func (txn *ActiveQueryTxn) PrefixRev(prefix []byte) (versioned.VersionedIter, error) {
	return txn.query.PrefixRev(prefix)
}

// WithUnversionedQuery runs f with a query handle of the unversioned store. The handle must not be used after f
// returns.
func (txn *ActiveQueryTxn) WithUnversionedQuery(f func(q *unversioned.Query) error) error {
	return txn.unversioned.WithQuery(f)
}
