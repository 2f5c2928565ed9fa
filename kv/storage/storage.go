package storage

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/pingcap-incubator/tinymvcc/kv/config"
	"github.com/pingcap-incubator/tinymvcc/kv/util/engine_util"
	"github.com/pingcap/errors"
)

// Storage represents one physical tier of TinyMVCC. It reads and writes raw keys grouped in column families and
// answers range scans; it knows nothing about versions.
type Storage interface {
	Start() error
	Stop() error
	Write(batch []Modify) error
	Reader() (StorageReader, error)
	RangeScanner
}

// StorageReader is a consistent snapshot of a Storage. It must be closed after use.
type StorageReader interface {
	// When the key doesn't exist or is a tombstone, return nil for the value
	GetCF(cf string, key []byte) ([]byte, error)
	IterCF(cf string) engine_util.DBIterator
	ReverseIterCF(cf string) engine_util.DBIterator
	Close()
}

// RangeScanner fetches ordered batches of raw entries. Successive calls with the same cursor continue where the
// previous batch stopped.
type RangeScanner interface {
	RangeNext(cf string, cursor *RangeCursor, start, end Bound, limit int) (*Batch, error)
	RangeRevNext(cf string, cursor *RangeCursor, start, end Bound, limit int) (*Batch, error)
}

// Entry is a raw key/value pair. A nil Value marks a tombstone.
type Entry struct {
	Key   []byte
	Value []byte
}

func (e *Entry) IsTombstone() bool {
	return e.Value == nil
}

// Batch is the result of one range scan call. Entries are in ascending key order for a forward scan and descending
// order for a reverse scan.
type Batch struct {
	Entries []Entry
	HasMore bool
}

// RangeCursor tracks the progress of a range scan. The zero value starts at the beginning of the range.
type RangeCursor struct {
	LastKey   []byte
	Exhausted bool
}

type BoundKind int

const (
	Unbounded BoundKind = iota
	Included
	Excluded
)

type Bound struct {
	Kind BoundKind
	Key  []byte
}

func IncludedBound(key []byte) Bound {
	return Bound{Kind: Included, Key: key}
}

func ExcludedBound(key []byte) Bound {
	return Bound{Kind: Excluded, Key: key}
}

func UnboundedBound() Bound {
	return Bound{Kind: Unbounded}
}

func (b Bound) String() string {
	switch b.Kind {
	case Included:
		return fmt.Sprintf("[%x", b.Key)
	case Excluded:
		return fmt.Sprintf("(%x", b.Key)
	}
	return "unbounded"
}

// InRange reports whether key lies between start and end.
func InRange(key []byte, start, end Bound) bool {
	switch start.Kind {
	case Included:
		if bytes.Compare(key, start.Key) < 0 {
			return false
		}
	case Excluded:
		if bytes.Compare(key, start.Key) <= 0 {
			return false
		}
	}
	switch end.Kind {
	case Included:
		return bytes.Compare(key, end.Key) <= 0
	case Excluded:
		return bytes.Compare(key, end.Key) < 0
	}
	return true
}

// NewStorageFunc opens an engine rooted at path.
type NewStorageFunc func(conf *config.Config, path string) (Storage, error)

var (
	enginesMu sync.RWMutex
	engines   = make(map[string]NewStorageFunc)
)

// Register makes an engine available by name. It panics if called twice for the same name.
func Register(name string, f NewStorageFunc) {
	enginesMu.Lock()
	defer enginesMu.Unlock()

	if f == nil {
		panic("storage: Register new func is nil")
	}
	if _, dup := engines[name]; dup {
		panic("storage: Register called twice for engine " + name)
	}
	engines[name] = f
}

// Create opens the engine registered under name.
func Create(name string, conf *config.Config, path string) (Storage, error) {
	enginesMu.RLock()
	f, ok := engines[name]
	enginesMu.RUnlock()
	if !ok {
		return nil, errors.Errorf("storage: unknown engine %q", name)
	}
	return f(conf, path)
}

func init() {
	Register(config.EngineMemory, func(*config.Config, string) (Storage, error) {
		return NewMemStorage(), nil
	})
}
