package transaction

// The transaction package implements TinyMVCC's active transactions, the handles callers use to read and write the
// database. Each active transaction combines a transaction over the versioned store (see the versioned package) with
// access to the unversioned store (see the unversioned package).
//
// There are two kinds of active transactions. An ActiveQueryTxn is read-only: it forwards every read to a versioned
// query transaction and has nothing to commit. An ActiveCommandTxn can write, and it is a small state machine:
//
//        Commit()
//   Active ──────────► Committed
//     │
//     │ Rollback(), Discard(), or a failed WithVersionedCommand/WithVersionedQuery
//     └──────────────► RolledBack
//
// Committed and RolledBack are terminal. A Commit whose versioned commit fails (a write conflict, say) still ends
// Committed and returns the error; nothing was written. Every operation on a terminal transaction fails with ErrTxnAlreadyCommitted
// or ErrTxnAlreadyRolledBack, so callers can tell which end the transaction reached.
//
// An error returned by the closure of WithVersionedCommand or WithVersionedQuery rolls the versioned transaction back
// before the error is returned; the only way to commit is an uninterrupted sequence of successful calls followed by
// Commit. Errors from the unversioned store do not roll back the versioned side. The unversioned store is auxiliary
// (it holds things like secondary indexes) and is not part of the atomicity unit, so reacting to its failures is left
// to the caller.
//
// Go has no destructors, so dropping a transaction is spelled `defer txn.Discard()`. Discard rolls back a transaction
// which is still Active and does nothing otherwise.
//
// Handles of the unversioned store are only valid inside the closure they are passed to. Each call of
// WithUnversionedCommand commits its own writes when its closure succeeds.
//
// Active transactions are not safe for concurrent use. Different transactions may be used from different goroutines;
// isolation between them is provided by the versioned store.
