package mvcc

import (
	"sort"

	"github.com/pingcap-incubator/tinymvcc/kv/storage"
	"github.com/pingcap-incubator/tinymvcc/kv/util/codec"
)

// dropScanLimit is the number of versions fetched per round trip while looking for versions to drop.
const dropScanLimit = 1024

// DropSpec selects versions of a key to erase. Zero fields are unset. When both UpToVersion and KeepLastVersions
// are set a version is dropped only if both allow it. With neither set every version is dropped.
type DropSpec struct {
	// Drop versions strictly below UpToVersion.
	UpToVersion codec.CommitVersion
	// Protect the KeepLastVersions newest versions.
	KeepLastVersions int
	// PendingVersion is a version of the key being written in the same batch. It counts as the newest version
	// and is never dropped.
	PendingVersion codec.CommitVersion
}

// DropEntry is a physical entry selected for removal.
type DropEntry struct {
	VersionedKey []byte
	Version      codec.CommitVersion
	// Size of the dropped value, 0 for tombstones.
	ValueBytes uint64

	// tier is the index of the MultiStore tier holding the entry.
	tier int
}

// FindKeysToDrop lists the versions of key in cf which spec selects. Dropped versions are erased without writing
// tombstones.
func FindKeysToDrop(s storage.RangeScanner, cf string, key []byte, spec DropSpec) ([]DropEntry, error) {
	entries, err := scanVersions(s, cf, key, nil)
	if err != nil {
		return nil, err
	}
	return selectDrops(key, entries, spec), nil
}

// scanVersions appends every version of key stored in cf to entries.
func scanVersions(s storage.RangeScanner, cf string, key []byte, entries []DropEntry) ([]DropEntry, error) {
	start, end := codec.KeyVersionRange(key)
	cursor := &storage.RangeCursor{}
	for !cursor.Exhausted {
		batch, err := s.RangeNext(cf, cursor, storage.IncludedBound(start), storage.IncludedBound(end), dropScanLimit)
		if err != nil {
			return nil, err
		}
		for _, e := range batch.Entries {
			version, ok := codec.ExtractVersion(e.Key)
			if !ok {
				continue
			}
			entries = append(entries, DropEntry{
				VersionedKey: e.Key,
				Version:      version,
				ValueBytes:   uint64(len(e.Value)),
			})
		}
	}
	return entries, nil
}

// selectDrops applies spec to the versions of key. The order of entries does not matter.
func selectDrops(key []byte, entries []DropEntry, spec DropSpec) []DropEntry {
	if spec.PendingVersion != codec.NoVersion {
		entries = append(entries, DropEntry{
			VersionedKey: codec.EncodeVersionedKey(key, spec.PendingVersion),
			Version:      spec.PendingVersion,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Version > entries[j].Version
	})

	var dropped []DropEntry
	for idx, e := range entries {
		if spec.PendingVersion != codec.NoVersion && e.Version == spec.PendingVersion {
			continue
		}
		if spec.UpToVersion != codec.NoVersion && e.Version >= spec.UpToVersion {
			continue
		}
		if spec.KeepLastVersions > 0 && idx < spec.KeepLastVersions {
			continue
		}
		dropped = append(dropped, e)
	}
	return dropped
}
