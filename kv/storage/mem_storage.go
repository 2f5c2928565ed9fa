package storage

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/google/btree"
	"github.com/pingcap-incubator/tinymvcc/kv/util/engine_util"
)

const memBtreeDegree = 32

// MemStorage is a storage tier backed by memory. Data is not written to disk. It serves as the hot tier and in tests.
type MemStorage struct {
	mu  sync.Mutex
	cfs map[string]*btree.BTree
}

func NewMemStorage() *MemStorage {
	cfs := make(map[string]*btree.BTree, len(engine_util.CFs))
	for _, cf := range engine_util.CFs {
		cfs[cf] = btree.New(memBtreeDegree)
	}
	return &MemStorage{cfs: cfs}
}

func (s *MemStorage) Start() error {
	return nil
}

func (s *MemStorage) Stop() error {
	return nil
}

// Reader returns a snapshot of all column families. Later writes are not visible through it.
func (s *MemStorage) Reader() (StorageReader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make(map[string]*btree.BTree, len(s.cfs))
	for cf, tree := range s.cfs {
		snapshot[cf] = tree.Clone()
	}
	return &memReader{cfs: snapshot}, nil
}

func (s *MemStorage) Write(batch []Modify) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range batch {
		tree, ok := s.cfs[m.Cf()]
		if !ok {
			return fmt.Errorf("mem-storage: bad CF %s", m.Cf())
		}
		switch data := m.Data.(type) {
		case Put:
			value := data.Value
			if value == nil {
				value = []byte{}
			}
			tree.ReplaceOrInsert(&memItem{key: data.Key, value: value})
		case Tombstone:
			tree.ReplaceOrInsert(&memItem{key: data.Key, tombstone: true})
		case Delete:
			tree.Delete(&memItem{key: data.Key})
		}
	}
	return nil
}

func (s *MemStorage) RangeNext(cf string, cursor *RangeCursor, start, end Bound, limit int) (*Batch, error) {
	reader, err := s.Reader()
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return ScanNext(reader, cf, cursor, start, end, limit)
}

func (s *MemStorage) RangeRevNext(cf string, cursor *RangeCursor, start, end Bound, limit int) (*Batch, error) {
	reader, err := s.Reader()
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return ScanRevNext(reader, cf, cursor, start, end, limit)
}

// Len returns the number of physical entries in cf, tombstones included.
func (s *MemStorage) Len(cf string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tree, ok := s.cfs[cf]; ok {
		return tree.Len()
	}
	return -1
}

// memReader is a StorageReader which reads from a MemStorage snapshot.
type memReader struct {
	cfs map[string]*btree.BTree
}

func (r *memReader) GetCF(cf string, key []byte) ([]byte, error) {
	tree, ok := r.cfs[cf]
	if !ok {
		return nil, fmt.Errorf("mem-storage: bad CF %s", cf)
	}
	result := tree.Get(&memItem{key: key})
	if result == nil || result.(*memItem).tombstone {
		return nil, nil
	}
	return result.(*memItem).value, nil
}

func (r *memReader) IterCF(cf string) engine_util.DBIterator {
	return &memIter{data: r.treeOf(cf)}
}

func (r *memReader) ReverseIterCF(cf string) engine_util.DBIterator {
	return &memIter{data: r.treeOf(cf), reverse: true}
}

func (r *memReader) treeOf(cf string) *btree.BTree {
	if tree, ok := r.cfs[cf]; ok {
		return tree
	}
	return btree.New(memBtreeDegree)
}

func (r *memReader) Close() {}

type memIter struct {
	data    *btree.BTree
	item    *memItem
	reverse bool
}

func (it *memIter) Item() engine_util.DBItem {
	return it.item
}

func (it *memIter) Valid() bool {
	return it.item != nil
}

func (it *memIter) Next() {
	if it.item == nil {
		return
	}
	first := true
	old := it.item
	it.item = nil
	visit := func(i btree.Item) bool {
		// Skip the first item, which will be the current one.
		if first {
			first = false
			return true
		}
		it.item = i.(*memItem)
		return false
	}
	if it.reverse {
		it.data.DescendLessOrEqual(old, visit)
	} else {
		it.data.AscendGreaterOrEqual(old, visit)
	}
}

func (it *memIter) Seek(key []byte) {
	it.item = nil
	visit := func(i btree.Item) bool {
		it.item = i.(*memItem)
		return false
	}
	if it.reverse {
		it.data.DescendLessOrEqual(&memItem{key: key}, visit)
	} else {
		it.data.AscendGreaterOrEqual(&memItem{key: key}, visit)
	}
}

func (it *memIter) Rewind() {
	var first btree.Item
	if it.reverse {
		first = it.data.Max()
	} else {
		first = it.data.Min()
	}
	if first == nil {
		it.item = nil
		return
	}
	it.item = first.(*memItem)
}

func (it *memIter) Close() {}

type memItem struct {
	key       []byte
	value     []byte
	tombstone bool
}

func (it *memItem) Key() []byte {
	return it.key
}

func (it *memItem) KeyCopy(dst []byte) []byte {
	return append(dst[:0], it.key...)
}

func (it *memItem) Value() ([]byte, error) {
	return it.value, nil
}

func (it *memItem) ValueSize() int {
	return len(it.value)
}

func (it *memItem) ValueCopy(dst []byte) ([]byte, error) {
	return append(dst[:0], it.value...), nil
}

func (it *memItem) IsTombstone() bool {
	return it.tombstone
}

func (it *memItem) Less(than btree.Item) bool {
	return bytes.Compare(it.key, than.(*memItem).key) < 0
}
