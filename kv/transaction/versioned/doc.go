// Package versioned implements transactions over the versioned store.
//
// A Manager hands out two kinds of transactions. A QueryTxn reads a consistent snapshot: every read sees exactly the
// commits whose version is at most the version the transaction started at. A CommandTxn reads the same way and
// buffers its own writes, which it reads back, until Commit writes them all at a single new commit version.
//
// Commit versions come from an oracle. Versions are allocated in commit order and published in version order, so a
// transaction starting at version v never misses a commit at a version <= v which is still being written.
//
// When conflict detection is enabled, a commit fails with ErrWriteConflict if any key it wrote or read by point
// lookup has a committed version newer than the transaction's read version. Commits latch those keys (see the latches
// package) so that the check and the write are atomic with respect to other commits touching the same keys.
package versioned
