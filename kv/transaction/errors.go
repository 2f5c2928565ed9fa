package transaction

import "github.com/pingcap/errors"

var (
	ErrTxnAlreadyCommitted  = errors.New("transaction: already committed")
	ErrTxnAlreadyRolledBack = errors.New("transaction: already rolled back")
)
