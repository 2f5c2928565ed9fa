package mvcc

import (
	"testing"

	"github.com/pingcap-incubator/tinymvcc/kv/storage"
	"github.com/pingcap-incubator/tinymvcc/kv/util/codec"
	"github.com/pingcap-incubator/tinymvcc/kv/util/engine_util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func droppedVersions(entries []DropEntry) []uint64 {
	versions := make([]uint64, 0, len(entries))
	for _, e := range entries {
		versions = append(versions, uint64(e.Version))
	}
	return versions
}

func TestFindKeysToDrop(t *testing.T) {
	s := storage.NewMemStorage()
	putVersions(t, s, "test_key", 1, 5, 10, 20, 100)
	putVersions(t, s, "test_key2", 1, 2)

	cases := []struct {
		name     string
		spec     DropSpec
		expected []uint64
	}{
		{"all", DropSpec{}, []uint64{100, 20, 10, 5, 1}},
		{"up to version", DropSpec{UpToVersion: 10}, []uint64{5, 1}},
		{"keep last", DropSpec{KeepLastVersions: 2}, []uint64{10, 5, 1}},
		{"keep more than exist", DropSpec{KeepLastVersions: 10}, []uint64{}},
		{"both constraints", DropSpec{UpToVersion: 50, KeepLastVersions: 3}, []uint64{5, 1}},
		{"keep protects below threshold", DropSpec{UpToVersion: 100, KeepLastVersions: 4}, []uint64{1}},
		// The pending version counts as the newest version and is never returned.
		{"pending", DropSpec{KeepLastVersions: 1, PendingVersion: 200}, []uint64{100, 20, 10, 5, 1}},
		{"pending with up to", DropSpec{UpToVersion: 300, PendingVersion: 200}, []uint64{100, 20, 10, 5, 1}},
	}
	for _, c := range cases {
		entries, err := FindKeysToDrop(s, engine_util.CfMulti, []byte("test_key"), c.spec)
		require.Nil(t, err, c.name)
		assert.Equal(t, c.expected, droppedVersions(entries), c.name)
		for _, e := range entries {
			key, ok := codec.ExtractKey(e.VersionedKey)
			require.True(t, ok)
			assert.Equal(t, []byte("test_key"), key, c.name)
			assert.Equal(t, uint64(1), e.ValueBytes)
		}
	}
}

func TestFindKeysToDropBoundary(t *testing.T) {
	s := storage.NewMemStorage()
	putVersions(t, s, "k", 9, 10, 11)
	putTombstone(t, s, "k", 8)

	entries, err := FindKeysToDrop(s, engine_util.CfMulti, []byte("k"), DropSpec{UpToVersion: 10})
	require.Nil(t, err)
	assert.Equal(t, []uint64{9, 8}, droppedVersions(entries))
	assert.Equal(t, uint64(0), entries[1].ValueBytes)

	entries, err = FindKeysToDrop(s, engine_util.CfMulti, []byte("missing"), DropSpec{})
	require.Nil(t, err)
	assert.Empty(t, entries)
}

func TestFindKeysToDropManyVersions(t *testing.T) {
	s := storage.NewMemStorage()
	var versions []uint64
	for v := uint64(1); v <= dropScanLimit+10; v++ {
		versions = append(versions, v)
	}
	putVersions(t, s, "k", versions...)

	entries, err := FindKeysToDrop(s, engine_util.CfMulti, []byte("k"), DropSpec{KeepLastVersions: 1})
	require.Nil(t, err)
	assert.Len(t, entries, dropScanLimit+9)
}
