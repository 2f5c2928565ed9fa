package transaction

import (
	"time"

	"github.com/pingcap-incubator/tinymvcc/kv/transaction/mvcc"
	"github.com/pingcap-incubator/tinymvcc/kv/transaction/unversioned"
	"github.com/pingcap-incubator/tinymvcc/kv/transaction/versioned"
	"github.com/pingcap-incubator/tinymvcc/kv/util/codec"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

type TxnState int

const (
	TxnStateActive TxnState = iota
	TxnStateCommitted
	TxnStateRolledBack
)

func (s TxnState) String() string {
	switch s {
	case TxnStateActive:
		return "active"
	case TxnStateCommitted:
		return "committed"
	case TxnStateRolledBack:
		return "rolled-back"
	}
	return "unknown"
}

// VersionedCommand is what WithVersionedCommand hands to its closure: a versioned transaction which can read and
// write, but which only the ActiveCommandTxn can finish.
type VersionedCommand interface {
	versioned.VersionedQueryTxn
	Set(key, value []byte) error
	Remove(key []byte) error
	Drop(key []byte, spec mvcc.DropSpec) error
}

// PreCommitHook runs at the start of Commit. An error aborts the commit and leaves the transaction Active.
type PreCommitHook func(txn *ActiveCommandTxn) error

// PostCommitHook runs after a successful commit.
type PostCommitHook func(id versioned.TxnID, version codec.CommitVersion)

// ActiveCommandTxn is a read-write transaction over both stores. See the package docs for its life cycle.
type ActiveCommandTxn struct {
	// cmd is nil once the transaction left the Active state.
	cmd         *versioned.CommandTxn
	unversioned *unversioned.Store
	state       TxnState
	id          versioned.TxnID
	version     codec.CommitVersion
	begin       time.Time

	preCommit  []PreCommitHook
	postCommit []PostCommitHook
}

var _ versioned.VersionedCommandTxn = &ActiveCommandTxn{}

func NewActiveCommandTxn(cmd *versioned.CommandTxn, store *unversioned.Store) *ActiveCommandTxn {
	return &ActiveCommandTxn{
		cmd:         cmd,
		unversioned: store,
		state:       TxnStateActive,
		id:          cmd.ID(),
		version:     cmd.Version(),
		begin:       time.Now(),
	}
}

func (txn *ActiveCommandTxn) State() TxnState {
	return txn.state
}

func (txn *ActiveCommandTxn) ID() versioned.TxnID {
	return txn.id
}

// Version returns the version the transaction reads at.
func (txn *ActiveCommandTxn) Version() codec.CommitVersion {
	return txn.version
}

func (txn *ActiveCommandTxn) checkActive() error {
	switch txn.state {
	case TxnStateCommitted:
		return ErrTxnAlreadyCommitted
	case TxnStateRolledBack:
		return ErrTxnAlreadyRolledBack
	}
	return nil
}

// OnPreCommit registers a hook which runs, in registration order, at the start of Commit.
func (txn *ActiveCommandTxn) OnPreCommit(hook PreCommitHook) {
	txn.preCommit = append(txn.preCommit, hook)
}

// OnPostCommit registers a hook which runs, in registration order, after a successful Commit.
func (txn *ActiveCommandTxn) OnPostCommit(hook PostCommitHook) {
	txn.postCommit = append(txn.postCommit, hook)
}

// WithUnversionedQuery runs f with a query handle of the unversioned store.
func (txn *ActiveCommandTxn) WithUnversionedQuery(f func(q *unversioned.Query) error) error {
	if err := txn.checkActive(); err != nil {
		return err
	}
	return txn.unversioned.WithQuery(f)
}

// WithUnversionedCommand runs f with a command handle of the unversioned store. Writes made through the handle are
// committed when f succeeds. An error does not roll back the versioned transaction.
func (txn *ActiveCommandTxn) WithUnversionedCommand(f func(c *unversioned.Command) error) error {
	if err := txn.checkActive(); err != nil {
		return err
	}
	return txn.unversioned.WithCommand(f)
}

// WithVersionedCommand runs f with the versioned transaction. If f fails the transaction is rolled back and the
// error of f is returned.
func (txn *ActiveCommandTxn) WithVersionedCommand(f func(cmd VersionedCommand) error) error {
	if err := txn.checkActive(); err != nil {
		return err
	}
	if err := f(txn.cmd); err != nil {
		txn.rollbackOnError("versioned command failed", err)
		return err
	}
	return nil
}

// WithVersionedQuery runs f with read access to the versioned transaction, pending writes included. If f fails the
// transaction is rolled back and the error of f is returned.
func (txn *ActiveCommandTxn) WithVersionedQuery(f func(query versioned.VersionedQueryTxn) error) error {
	if err := txn.checkActive(); err != nil {
		return err
	}
	if err := f(txn.cmd); err != nil {
		txn.rollbackOnError("versioned query failed", err)
		return err
	}
	return nil
}

// Commit runs the pre-commit hooks, then commits the versioned transaction and returns its commit version. A failing
// pre-commit hook leaves the transaction active. Once the versioned commit starts the transaction is committed whatever
// the outcome: if the versioned commit fails nothing was written, the error is returned, and the post-commit hooks
// do not run.
func (txn *ActiveCommandTxn) Commit() (codec.CommitVersion, error) {
	if err := txn.checkActive(); err != nil {
		return codec.NoVersion, err
	}
	for _, hook := range txn.preCommit {
		if err := hook(txn); err != nil {
			return codec.NoVersion, err
		}
	}

	cmd := txn.take(TxnStateCommitted)
	start := time.Now()
	version, err := cmd.Commit()
	commitDurationHistogram.Observe(time.Since(start).Seconds())
	if err != nil {
		txn.observe("failed")
		log.Info("commit failed", zap.Uint64("txn", uint64(txn.id)), zap.Error(err))
		return codec.NoVersion, errors.Trace(err)
	}
	txn.observe("")
	for _, hook := range txn.postCommit {
		hook(txn.id, version)
	}
	return version, nil
}

// Rollback discards every versioned write of the transaction.
func (txn *ActiveCommandTxn) Rollback() error {
	if err := txn.checkActive(); err != nil {
		return err
	}
	cmd := txn.take(TxnStateRolledBack)
	txn.observe("")
	return cmd.Rollback()
}

// Discard rolls back the transaction if it is still Active. It is meant to be deferred right after the transaction
// begins.
func (txn *ActiveCommandTxn) Discard() {
	if txn.state != TxnStateActive {
		return
	}
	txn.rollbackOnError("discarded while active", nil)
}

// take hands out the versioned transaction exactly once and moves to state.
func (txn *ActiveCommandTxn) take(state TxnState) *versioned.CommandTxn {
	cmd := txn.cmd
	if cmd == nil {
		panic("transaction: active transaction without versioned transaction")
	}
	txn.cmd = nil
	txn.state = state
	return cmd
}

// rollbackOnError rolls back the versioned transaction on behalf of a failed or abandoned caller. Its own error is
// logged and dropped, the caller reports the original one.
func (txn *ActiveCommandTxn) rollbackOnError(reason string, cause error) {
	cmd := txn.take(TxnStateRolledBack)
	txn.observe("")
	if err := cmd.Rollback(); err != nil {
		log.Warn("best-effort rollback failed",
			zap.Uint64("txn", uint64(txn.id)),
			zap.String("reason", reason),
			zap.NamedError("cause", cause),
			zap.Error(err))
		return
	}
	log.Debug("transaction rolled back",
		zap.Uint64("txn", uint64(txn.id)), zap.String("reason", reason), zap.NamedError("cause", cause))
}

// observe reports a finished transaction. An empty outcome means the name of its state.
func (txn *ActiveCommandTxn) observe(outcome string) {
	if outcome == "" {
		outcome = txn.state.String()
	}
	txnCounter.WithLabelValues(outcome).Inc()
	txnDurationHistogram.WithLabelValues(outcome).Observe(time.Since(txn.begin).Seconds())
}

func (txn *ActiveCommandTxn) Set(key, value []byte) error {
	if err := txn.checkActive(); err != nil {
		return err
	}
	return txn.cmd.Set(key, value)
}

func (txn *ActiveCommandTxn) Remove(key []byte) error {
	if err := txn.checkActive(); err != nil {
		return err
	}
	return txn.cmd.Remove(key)
}

// Drop erases old versions of key on commit, see mvcc.DropSpec.
func (txn *ActiveCommandTxn) Drop(key []byte, spec mvcc.DropSpec) error {
	if err := txn.checkActive(); err != nil {
		return err
	}
	return txn.cmd.Drop(key, spec)
}

func (txn *ActiveCommandTxn) Get(key []byte) (*versioned.Versioned, error) {
	if err := txn.checkActive(); err != nil {
		return nil, err
	}
	return txn.cmd.Get(key)
}

func (txn *ActiveCommandTxn) ContainsKey(key []byte) (bool, error) {
	if err := txn.checkActive(); err != nil {
		return false, err
	}
	return txn.cmd.ContainsKey(key)
}

func (txn *ActiveCommandTxn) Scan() (versioned.VersionedIter, error) {
	if err := txn.checkActive(); err != nil {
		return nil, err
	}
	return txn.cmd.Scan()
}

func (txn *ActiveCommandTxn) ScanRev() (versioned.VersionedIter, error) {
	if err := txn.checkActive(); err != nil {
		return nil, err
	}
	return txn.cmd.ScanRev()
}

func (txn *ActiveCommandTxn) Range(r mvcc.KeyRange) (versioned.VersionedIter, error) {
	if err := txn.checkActive(); err != nil {
		return nil, err
	}
	return txn.cmd.Range(r)
}

func (txn *ActiveCommandTxn) RangeRev(r mvcc.KeyRange) (versioned.VersionedIter, error) {
	if err := txn.checkActive(); err != nil {
		return nil, err
	}
	return txn.cmd.RangeRev(r)
}

func (txn *ActiveCommandTxn) Prefix(prefix []byte) (versioned.VersionedIter, error) {
	if err := txn.checkActive(); err != nil {
		return nil, err
	}
	return txn.cmd.Prefix(prefix)
}

func (txn *ActiveCommandTxn) PrefixRev(prefix []byte) (versioned.VersionedIter, error) {
	if err := txn.checkActive(); err != nil {
		return nil, err
	}
	return txn.cmd.PrefixRev(prefix)
}
