package versioned

import (
	"github.com/pingcap-incubator/tinymvcc/kv/config"
	"github.com/pingcap-incubator/tinymvcc/kv/transaction/latches"
	"github.com/pingcap-incubator/tinymvcc/kv/transaction/mvcc"
	"github.com/pingcap-incubator/tinymvcc/kv/util/codec"
	"github.com/pingcap/errors"
	"go.uber.org/atomic"
)

// TxnID identifies a transaction for the lifetime of its Manager.
type TxnID uint64

// Manager starts versioned transactions over a MultiStore.
type Manager struct {
	store   *mvcc.MultiStore
	latches *latches.Latches
	oracle  *oracle
	nextID  atomic.Uint64

	detectConflicts bool
	scanBatch       int
}

// NewManager creates a Manager which resumes after the last commit recorded in store.
func NewManager(store *mvcc.MultiStore, conf *config.Config) (*Manager, error) {
	last, err := store.LastCommitVersion()
	if err != nil {
		return nil, errors.Annotate(err, "recover last commit version")
	}
	return &Manager{
		store:           store,
		latches:         latches.NewLatches(),
		oracle:          newOracle(last),
		detectConflicts: conf.Txn.DetectConflicts,
		scanBatch:       conf.Store.ScanBatchSize,
	}, nil
}

// Version returns the newest commit version visible to new transactions.
func (m *Manager) Version() codec.CommitVersion {
	return m.oracle.readVersion()
}

func (m *Manager) Store() *mvcc.MultiStore {
	return m.store
}

func (m *Manager) Latches() *latches.Latches {
	return m.latches
}

// BeginQuery starts a read-only transaction at the newest visible version.
func (m *Manager) BeginQuery() *QueryTxn {
	return m.newQuery(m.oracle.readVersion())
}

// BeginQueryAt starts a read-only transaction which reads the store as of version.
func (m *Manager) BeginQueryAt(version codec.CommitVersion) (*QueryTxn, error) {
	if version > m.oracle.readVersion() {
		return nil, errors.Annotatef(ErrFutureVersion, "read at %d, newest is %d", version, m.oracle.readVersion())
	}
	return m.newQuery(version), nil
}

func (m *Manager) newQuery(version codec.CommitVersion) *QueryTxn {
	return &QueryTxn{
		reader: reader{m: m, version: version},
		id:     TxnID(m.nextID.Inc()),
	}
}

// BeginCommand starts a read-write transaction at the newest visible version.
func (m *Manager) BeginCommand() *CommandTxn {
	return newCommandTxn(m, TxnID(m.nextID.Inc()), m.oracle.readVersion())
}
