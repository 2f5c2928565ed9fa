package storage

// Modify is a single modification to TinyMVCC's underlying storage.
type Modify struct {
	Data interface{}
}

// Put writes a value.
type Put struct {
	Key   []byte
	Value []byte
	Cf    string
}

// Tombstone writes a deletion marker which stays visible to range scans.
type Tombstone struct {
	Key []byte
	Cf  string
}

// Delete physically removes a key.
type Delete struct {
	Key []byte
	Cf  string
}

func (m *Modify) Key() []byte {
	switch m.Data.(type) {
	case Put:
		return m.Data.(Put).Key
	case Tombstone:
		return m.Data.(Tombstone).Key
	case Delete:
		return m.Data.(Delete).Key
	}
	return nil
}

func (m *Modify) Cf() string {
	switch m.Data.(type) {
	case Put:
		return m.Data.(Put).Cf
	case Tombstone:
		return m.Data.(Tombstone).Cf
	case Delete:
		return m.Data.(Delete).Cf
	}
	return ""
}
