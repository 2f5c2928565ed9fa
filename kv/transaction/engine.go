package transaction

import (
	"path/filepath"

	"github.com/ngaut/log"
	"github.com/pingcap-incubator/tinymvcc/kv/config"
	"github.com/pingcap-incubator/tinymvcc/kv/storage"
	_ "github.com/pingcap-incubator/tinymvcc/kv/storage/leveldb_storage"
	_ "github.com/pingcap-incubator/tinymvcc/kv/storage/standalone_storage"
	"github.com/pingcap-incubator/tinymvcc/kv/transaction/mvcc"
	"github.com/pingcap-incubator/tinymvcc/kv/transaction/unversioned"
	"github.com/pingcap-incubator/tinymvcc/kv/transaction/versioned"
	"github.com/pingcap-incubator/tinymvcc/kv/util/codec"
	"github.com/pingcap/errors"
)

// Engine opens the stores described by a Config and begins active transactions over them.
type Engine struct {
	conf        *config.Config
	multi       *mvcc.MultiStore
	manager     *versioned.Manager
	unversioned *unversioned.Store
}

func NewEngine(conf *config.Config) (*Engine, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	log.SetLevelByString(conf.LogLevel)

	var opened []storage.Storage
	open := func(engine, dir string) (storage.Storage, error) {
		if engine == "" {
			return nil, nil
		}
		s, err := storage.Create(engine, conf, filepath.Join(conf.DBPath, dir))
		if err != nil {
			return nil, errors.Annotatef(err, "open %s tier", dir)
		}
		opened = append(opened, s)
		return s, nil
	}
	closeOpened := func() {
		for _, s := range opened {
			if err := s.Stop(); err != nil {
				log.Errorf("stop storage: %v", err)
			}
		}
	}

	var (
		tiers  mvcc.Tiers
		single storage.Storage
	)
	for _, t := range []struct {
		engine, dir string
		dst         *storage.Storage
	}{
		{conf.Store.Hot, "hot", &tiers.Hot},
		{conf.Store.Warm, "warm", &tiers.Warm},
		{conf.Store.Cold, "cold", &tiers.Cold},
		{conf.Store.Unversioned, "unversioned", &single},
	} {
		s, err := open(t.engine, t.dir)
		if err != nil {
			closeOpened()
			return nil, err
		}
		*t.dst = s
	}

	multi := mvcc.NewMultiStore(tiers, conf.Store.TierScanChunkSize)
	manager, err := versioned.NewManager(multi, conf)
	if err != nil {
		closeOpened()
		return nil, err
	}
	log.Infof("engine started at version %d", manager.Version())
	return &Engine{
		conf:        conf,
		multi:       multi,
		manager:     manager,
		unversioned: unversioned.NewStore(single, conf.Store.ScanBatchSize),
	}, nil
}

// BeginQuery starts a read-only transaction at the newest committed version.
func (e *Engine) BeginQuery() *ActiveQueryTxn {
	return NewActiveQueryTxn(e.manager.BeginQuery(), e.unversioned)
}

// BeginQueryAt starts a read-only transaction which reads the versioned store as of version.
func (e *Engine) BeginQueryAt(version codec.CommitVersion) (*ActiveQueryTxn, error) {
	query, err := e.manager.BeginQueryAt(version)
	if err != nil {
		return nil, err
	}
	return NewActiveQueryTxn(query, e.unversioned), nil
}

// BeginCommand starts a read-write transaction. The caller must Commit, Rollback or Discard it.
func (e *Engine) BeginCommand() *ActiveCommandTxn {
	return NewActiveCommandTxn(e.manager.BeginCommand(), e.unversioned)
}

// Version returns the newest committed version.
func (e *Engine) Version() codec.CommitVersion {
	return e.manager.Version()
}

func (e *Engine) Stats() mvcc.StorageStats {
	return e.multi.Stats()
}

func (e *Engine) Close() error {
	err := e.multi.Close()
	if uerr := e.unversioned.Close(); err == nil {
		err = uerr
	}
	return err
}
