package mvcc

// DeltaKind is the kind of change a Delta applies to a key.
type DeltaKind int

const (
	// DeltaSet writes a new version holding a value.
	DeltaSet DeltaKind = iota
	// DeltaUnset writes a tombstone for a key whose current value the caller already knows.
	DeltaUnset
	// DeltaRemove writes a tombstone.
	DeltaRemove
	// DeltaDrop erases existing versions without writing a tombstone.
	DeltaDrop
)

func (k DeltaKind) String() string {
	switch k {
	case DeltaSet:
		return "set"
	case DeltaUnset:
		return "unset"
	case DeltaRemove:
		return "remove"
	case DeltaDrop:
		return "drop"
	}
	return "unknown"
}

// Delta is one change of a commit.
type Delta struct {
	Kind DeltaKind
	Key  []byte
	// Value is the new value for DeltaSet and the value being removed for DeltaUnset.
	Value []byte
	// Drop selects the versions erased by DeltaDrop.
	Drop DropSpec
}

func Set(key, value []byte) Delta {
	return Delta{Kind: DeltaSet, Key: key, Value: value}
}

func Unset(key, value []byte) Delta {
	return Delta{Kind: DeltaUnset, Key: key, Value: value}
}

func Remove(key []byte) Delta {
	return Delta{Kind: DeltaRemove, Key: key}
}

// Drop erases the versions of key selected by spec. PendingVersion is filled in by the store when the same commit
// writes key.
func Drop(key []byte, spec DropSpec) Delta {
	return Delta{Kind: DeltaDrop, Key: key, Drop: spec}
}

// writes reports whether the delta writes a new version.
func (d *Delta) writes() bool {
	return d.Kind != DeltaDrop
}
