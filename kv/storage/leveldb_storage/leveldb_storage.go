package leveldb_storage

import (
	"bytes"

	"github.com/ngaut/log"
	"github.com/pingcap-incubator/tinymvcc/kv/config"
	"github.com/pingcap-incubator/tinymvcc/kv/storage"
	"github.com/pingcap-incubator/tinymvcc/kv/util/engine_util"
	"github.com/pingcap/errors"
	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	lstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Every stored value starts with a flag byte, since leveldb has no per-entry metadata to mark tombstones.
const (
	flagTombstone byte = 0x00
	flagValue     byte = 0x01
)

// LevelDBStorage is a Storage backed by goleveldb. Column families share one keyspace, separated by the same
// prefixes the badger engine uses.
type LevelDBStorage struct {
	db   *leveldb.DB
	path string
	wo   *opt.WriteOptions
}

func options(conf *config.Engine) *opt.Options {
	return &opt.Options{
		BlockCacheCapacity: int(conf.BlockCacheSize),
		WriteBuffer:        int(conf.MaxTableSize / 4),
		Filter:             filter.NewBloomFilter(10),
		NoSync:             !conf.SyncWrite,
	}
}

// Open opens or creates a leveldb database in path.
func Open(conf *config.Engine, path string) (*LevelDBStorage, error) {
	db, err := leveldb.OpenFile(path, options(conf))
	if _, corrupted := err.(*lerrors.ErrCorrupted); corrupted {
		log.Warnf("leveldb at %s is corrupted, recovering: %v", path, err)
		db, err = leveldb.RecoverFile(path, options(conf))
	}
	if err != nil {
		return nil, errors.Annotatef(err, "open leveldb at %s", path)
	}
	log.Infof("leveldb engine opened at %s", path)
	return &LevelDBStorage{db: db, path: path, wo: &opt.WriteOptions{Sync: conf.SyncWrite}}, nil
}

// OpenMem opens a leveldb database on an in-memory filesystem.
func OpenMem(conf *config.Engine) (*LevelDBStorage, error) {
	db, err := leveldb.Open(lstorage.NewMemStorage(), options(conf))
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &LevelDBStorage{db: db, path: ":memory:", wo: &opt.WriteOptions{}}, nil
}

func (s *LevelDBStorage) Start() error {
	return nil
}

func (s *LevelDBStorage) Stop() error {
	if err := s.db.Close(); err != nil && err != leveldb.ErrClosed {
		return errors.Annotatef(err, "close leveldb at %s", s.path)
	}
	return nil
}

func (s *LevelDBStorage) Write(batch []storage.Modify) error {
	wb := new(leveldb.Batch)
	for _, m := range batch {
		switch data := m.Data.(type) {
		case storage.Put:
			wb.Put(engine_util.KeyWithCF(data.Cf, data.Key), encodeValue(data.Value))
		case storage.Tombstone:
			wb.Put(engine_util.KeyWithCF(data.Cf, data.Key), []byte{flagTombstone})
		case storage.Delete:
			wb.Delete(engine_util.KeyWithCF(data.Cf, data.Key))
		}
	}
	return errors.Trace(s.db.Write(wb, s.wo))
}

// Reader returns a reader over a leveldb snapshot.
func (s *LevelDBStorage) Reader() (storage.StorageReader, error) {
	snap, err := s.db.GetSnapshot()
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &levelDBReader{snap: snap}, nil
}

func (s *LevelDBStorage) RangeNext(cf string, cursor *storage.RangeCursor, start, end storage.Bound, limit int) (*storage.Batch, error) {
	reader, err := s.Reader()
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return storage.ScanNext(reader, cf, cursor, start, end, limit)
}

func (s *LevelDBStorage) RangeRevNext(cf string, cursor *storage.RangeCursor, start, end storage.Bound, limit int) (*storage.Batch, error) {
	reader, err := s.Reader()
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return storage.ScanRevNext(reader, cf, cursor, start, end, limit)
}

func encodeValue(value []byte) []byte {
	buf := make([]byte, 0, len(value)+1)
	buf = append(buf, flagValue)
	return append(buf, value...)
}

type levelDBReader struct {
	snap *leveldb.Snapshot
}

func (r *levelDBReader) GetCF(cf string, key []byte) ([]byte, error) {
	val, err := r.snap.Get(engine_util.KeyWithCF(cf, key), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	if len(val) == 0 || val[0] == flagTombstone {
		return nil, nil
	}
	return val[1:], nil
}

func (r *levelDBReader) IterCF(cf string) engine_util.DBIterator {
	return r.newIter(cf, false)
}

func (r *levelDBReader) ReverseIterCF(cf string) engine_util.DBIterator {
	return r.newIter(cf, true)
}

func (r *levelDBReader) newIter(cf string, reverse bool) *levelDBIter {
	prefix := []byte(cf + "_")
	return &levelDBIter{
		iter:    r.snap.NewIterator(util.BytesPrefix(prefix), nil),
		prefix:  prefix,
		reverse: reverse,
	}
}

func (r *levelDBReader) Close() {
	r.snap.Release()
}

// levelDBIter adapts a goleveldb iterator restricted to one column family to engine_util.DBIterator.
type levelDBIter struct {
	iter    iterator.Iterator
	prefix  []byte
	reverse bool
}

func (it *levelDBIter) Item() engine_util.DBItem {
	return &levelDBItem{key: it.iter.Key()[len(it.prefix):], value: it.iter.Value()}
}

func (it *levelDBIter) Valid() bool {
	return it.iter.Valid()
}

func (it *levelDBIter) Next() {
	if it.reverse {
		it.iter.Prev()
	} else {
		it.iter.Next()
	}
}

func (it *levelDBIter) Seek(key []byte) {
	target := append(append([]byte{}, it.prefix...), key...)
	found := it.iter.Seek(target)
	if !it.reverse {
		return
	}
	if !found {
		it.iter.Last()
		return
	}
	if bytes.Compare(it.iter.Key(), target) > 0 {
		it.iter.Prev()
	}
}

func (it *levelDBIter) Rewind() {
	if it.reverse {
		it.iter.Last()
	} else {
		it.iter.First()
	}
}

func (it *levelDBIter) Close() {
	it.iter.Release()
}

type levelDBItem struct {
	key   []byte
	value []byte
}

func (i *levelDBItem) Key() []byte {
	return i.key
}

func (i *levelDBItem) KeyCopy(dst []byte) []byte {
	return append(dst[:0], i.key...)
}

func (i *levelDBItem) Value() ([]byte, error) {
	if i.IsTombstone() {
		return nil, nil
	}
	return i.value[1:], nil
}

func (i *levelDBItem) ValueSize() int {
	if i.IsTombstone() {
		return 0
	}
	return len(i.value) - 1
}

func (i *levelDBItem) ValueCopy(dst []byte) ([]byte, error) {
	val, err := i.Value()
	if err != nil {
		return nil, err
	}
	return append(dst[:0], val...), nil
}

func (i *levelDBItem) IsTombstone() bool {
	return len(i.value) == 0 || i.value[0] == flagTombstone
}

func init() {
	storage.Register(config.EngineLevelDB, func(conf *config.Config, path string) (storage.Storage, error) {
		return Open(&conf.Engine, path)
	})
}
