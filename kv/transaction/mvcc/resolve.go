package mvcc

import (
	"bytes"

	"github.com/pingcap-incubator/tinymvcc/kv/storage"
	"github.com/pingcap-incubator/tinymvcc/kv/util/codec"
)

// ResultKind tells what GetAtVersion found.
type ResultKind int

const (
	// NotFound means no version of the key exists at or below the requested version.
	NotFound ResultKind = iota
	// HasValue means a live value was found.
	HasValue
	// Tombstone means the newest version at or below the requested version is a deletion.
	Tombstone
)

func (k ResultKind) String() string {
	switch k {
	case HasValue:
		return "HasValue"
	case Tombstone:
		return "Tombstone"
	}
	return "NotFound"
}

// VersionedGetResult is the answer of a point-in-time lookup. Version is set for HasValue and Tombstone results.
type VersionedGetResult struct {
	Kind    ResultKind
	Value   []byte
	Version codec.CommitVersion
}

// PreviousVersionInfo describes the newest entry of a key at or before some version. KeyBytes is the size of the
// encoded key; ValueBytes is 0 for tombstones.
type PreviousVersionInfo struct {
	Version    codec.CommitVersion
	KeyBytes   uint64
	ValueBytes uint64
}

// versionEntry is the newest physical entry of a key at or below some version.
type versionEntry struct {
	storage.Entry
	version codec.CommitVersion
}

// newestAtOrBelow finds the newest entry of key whose version is <= version. Because versions sort in descending
// order, this is a forward scan of [encode(key, version), encode(key, 0)] limited to one entry. The extracted key
// must be checked: once the versions of key are exhausted the scan may return an adjacent key.
func newestAtOrBelow(s storage.RangeScanner, cf string, key []byte, version codec.CommitVersion) (*versionEntry, error) {
	start := codec.EncodeVersionedKey(key, version)
	end := codec.EncodeVersionedKey(key, codec.NoVersion)
	batch, err := s.RangeNext(cf, &storage.RangeCursor{}, storage.IncludedBound(start), storage.IncludedBound(end), 1)
	if err != nil {
		return nil, err
	}
	if len(batch.Entries) == 0 {
		return nil, nil
	}
	entry := batch.Entries[0]
	userKey, entryVersion, ok := codec.DecodeVersionedKey(entry.Key)
	if !ok || !bytes.Equal(userKey, key) {
		return nil, nil
	}
	return &versionEntry{Entry: entry, version: entryVersion}, nil
}

// GetAtVersion returns the state of key as seen by a reader at version.
func GetAtVersion(s storage.RangeScanner, cf string, key []byte, version codec.CommitVersion) (VersionedGetResult, error) {
	entry, err := newestAtOrBelow(s, cf, key, version)
	if err != nil || entry == nil {
		return VersionedGetResult{}, err
	}
	if entry.IsTombstone() {
		return VersionedGetResult{Kind: Tombstone, Version: entry.version}, nil
	}
	return VersionedGetResult{Kind: HasValue, Value: entry.Value, Version: entry.version}, nil
}

// GetLatestVersion returns the newest version of key, tombstones included. ok is false if the key was never written.
func GetLatestVersion(s storage.RangeScanner, cf string, key []byte) (version codec.CommitVersion, ok bool, err error) {
	entry, err := newestAtOrBelow(s, cf, key, codec.MaxVersion)
	if err != nil || entry == nil {
		return codec.NoVersion, false, err
	}
	return entry.version, true, nil
}

// GetVersionInfoBefore describes the newest entry of key strictly before the given version, or returns nil.
func GetVersionInfoBefore(s storage.RangeScanner, cf string, key []byte, before codec.CommitVersion) (*PreviousVersionInfo, error) {
	if before <= 1 {
		return nil, nil
	}
	entry, err := newestAtOrBelow(s, cf, key, before-1)
	if err != nil || entry == nil {
		return nil, err
	}
	return entry.info(), nil
}

// GetPreviousVersionInfo describes the newest entry of key, or returns nil if the key was never written.
func GetPreviousVersionInfo(s storage.RangeScanner, cf string, key []byte) (*PreviousVersionInfo, error) {
	entry, err := newestAtOrBelow(s, cf, key, codec.MaxVersion)
	if err != nil || entry == nil {
		return nil, err
	}
	return entry.info(), nil
}

func (e *versionEntry) info() *PreviousVersionInfo {
	return &PreviousVersionInfo{
		Version:    e.version,
		KeyBytes:   uint64(len(e.Key)),
		ValueBytes: uint64(len(e.Value)),
	}
}
