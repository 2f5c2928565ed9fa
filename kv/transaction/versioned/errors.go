package versioned

import "github.com/pingcap/errors"

var (
	// ErrTxnFinished is returned by operations on a transaction which was already committed or rolled back.
	ErrTxnFinished = errors.New("versioned: transaction already finished")
	// ErrWriteConflict is returned by Commit when a key the transaction depends on was committed by another
	// transaction after this one started.
	ErrWriteConflict = errors.New("versioned: write conflict")
	// ErrFutureVersion is returned when reading at a version which is not visible yet.
	ErrFutureVersion = errors.New("versioned: version is not committed yet")
)
