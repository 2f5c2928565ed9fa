package standalone_storage

import (
	"os"

	"github.com/Connor1996/badger"
	"github.com/ngaut/log"
	"github.com/pingcap-incubator/tinymvcc/kv/config"
	"github.com/pingcap-incubator/tinymvcc/kv/storage"
	"github.com/pingcap-incubator/tinymvcc/kv/util/engine_util"
	"github.com/pingcap/errors"
)

// StandAloneStorage is an implementation of `Storage` backed by a single local badger instance. Every tier that
// uses the badger engine gets its own instance in its own directory.
type StandAloneStorage struct {
	conf    *config.Engine
	path    string
	engines *engine_util.Engines
}

func NewStandAloneStorage(conf *config.Engine, path string) *StandAloneStorage {
	return &StandAloneStorage{conf: conf, path: path}
}

func (s *StandAloneStorage) Start() error {
	if s.engines != nil {
		return nil
	}
	db, err := engine_util.CreateDB(s.path, s.conf)
	if err != nil {
		return err
	}
	s.engines = engine_util.NewEngines(db, s.path)
	return nil
}

func (s *StandAloneStorage) Stop() error {
	if s.engines == nil {
		return nil
	}
	err := s.engines.Close()
	s.engines = nil
	if err != nil {
		log.Errorf("close badger at %s: %v", s.path, err)
		return errors.Trace(err)
	}
	return nil
}

// Destroy stops the storage and removes its directory.
func (s *StandAloneStorage) Destroy() error {
	if s.engines == nil {
		return errors.Trace(os.RemoveAll(s.path))
	}
	err := s.engines.Destroy()
	s.engines = nil
	return errors.Trace(err)
}

// Reader returns a reader over a badger read-only transaction, so it observes a consistent snapshot.
func (s *StandAloneStorage) Reader() (storage.StorageReader, error) {
	if s.engines == nil {
		return nil, errors.Errorf("badger storage at %s is not started", s.path)
	}
	return NewBadgerReader(s.engines.Kv.NewTransaction(false)), nil
}

func (s *StandAloneStorage) Write(batch []storage.Modify) error {
	if s.engines == nil {
		return errors.Errorf("badger storage at %s is not started", s.path)
	}
	wb := new(engine_util.WriteBatch)
	for _, m := range batch {
		switch data := m.Data.(type) {
		case storage.Put:
			wb.SetCF(data.Cf, data.Key, data.Value)
		case storage.Tombstone:
			wb.TombstoneCF(data.Cf, data.Key)
		case storage.Delete:
			wb.DeleteCF(data.Cf, data.Key)
		}
	}
	if wb.Len() == 0 {
		return nil
	}
	return s.engines.WriteKV(wb)
}

func (s *StandAloneStorage) RangeNext(cf string, cursor *storage.RangeCursor, start, end storage.Bound, limit int) (*storage.Batch, error) {
	reader, err := s.Reader()
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return storage.ScanNext(reader, cf, cursor, start, end, limit)
}

func (s *StandAloneStorage) RangeRevNext(cf string, cursor *storage.RangeCursor, start, end storage.Bound, limit int) (*storage.Batch, error) {
	reader, err := s.Reader()
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return storage.ScanRevNext(reader, cf, cursor, start, end, limit)
}

// BadgerReader is a StorageReader over a badger transaction.
type BadgerReader struct {
	txn *badger.Txn
}

func NewBadgerReader(txn *badger.Txn) *BadgerReader {
	return &BadgerReader{txn}
}

func (b *BadgerReader) GetCF(cf string, key []byte) ([]byte, error) {
	val, err := engine_util.GetCFFromTxn(b.txn, cf, key)
	if engine_util.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	return val, nil
}

func (b *BadgerReader) IterCF(cf string) engine_util.DBIterator {
	return engine_util.NewCFIterator(cf, b.txn)
}

func (b *BadgerReader) ReverseIterCF(cf string) engine_util.DBIterator {
	return engine_util.NewReverseCFIterator(cf, b.txn)
}

func (b *BadgerReader) Close() {
	b.txn.Discard()
}

func init() {
	storage.Register(config.EngineBadger, func(conf *config.Config, path string) (storage.Storage, error) {
		s := NewStandAloneStorage(&conf.Engine, path)
		if err := s.Start(); err != nil {
			return nil, err
		}
		return s, nil
	})
}
