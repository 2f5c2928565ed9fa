package mvcc

import (
	"encoding/binary"
	"sync"

	"github.com/ngaut/log"
	"github.com/pingcap-incubator/tinymvcc/kv/storage"
	"github.com/pingcap-incubator/tinymvcc/kv/util/codec"
	"github.com/pingcap-incubator/tinymvcc/kv/util/engine_util"
	"github.com/pingcap/errors"
)

// Tiers are the storages of a MultiStore. Hot is required and receives every commit; Warm and Cold are optional
// and only read from.
type Tiers struct {
	Hot  storage.Storage
	Warm storage.Storage
	Cold storage.Storage
}

// lastVersionKey records the newest commit version in the meta column family of the hot tier.
var lastVersionKey = []byte("last_commit_version")

type tier struct {
	name string
	storage.Storage
}

// MultiStore is the versioned store. It keeps every committed version of every key in the multi column family of
// its tiers, encoded with codec.EncodeVersionedKey, and answers reads at any version.
type MultiStore struct {
	tiers     []tier
	scanChunk int

	// mu serializes commits so that statistics stay consistent with the data.
	mu    sync.Mutex
	stats StorageStats
}

func NewMultiStore(tiers Tiers, scanChunk int) *MultiStore {
	if tiers.Hot == nil {
		panic("mvcc: hot tier is required")
	}
	if scanChunk <= 0 {
		scanChunk = 1
	}
	ms := &MultiStore{scanChunk: scanChunk}
	ms.tiers = append(ms.tiers, tier{"hot", tiers.Hot})
	if tiers.Warm != nil {
		ms.tiers = append(ms.tiers, tier{"warm", tiers.Warm})
	}
	if tiers.Cold != nil {
		ms.tiers = append(ms.tiers, tier{"cold", tiers.Cold})
	}
	return ms
}

// Get returns the newest version of key at or below version across all tiers.
func (ms *MultiStore) Get(key []byte, version codec.CommitVersion) (VersionedGetResult, error) {
	var best VersionedGetResult
	for _, t := range ms.tiers {
		res, err := GetAtVersion(t, engine_util.CfMulti, key, version)
		if err != nil {
			return VersionedGetResult{}, errors.Annotatef(err, "get from %s tier", t.name)
		}
		if res.Kind != NotFound && (best.Kind == NotFound || res.Version > best.Version) {
			best = res
		}
	}
	return best, nil
}

// Contains reports whether key holds a live value at version.
func (ms *MultiStore) Contains(key []byte, version codec.CommitVersion) (bool, error) {
	res, err := ms.Get(key, version)
	if err != nil {
		return false, err
	}
	return res.Kind == HasValue, nil
}

// LatestVersion returns the newest committed version of key, tombstones included.
func (ms *MultiStore) LatestVersion(key []byte) (codec.CommitVersion, bool, error) {
	info, err := ms.previousVersion(key, codec.NoVersion)
	if err != nil || info == nil {
		return codec.NoVersion, false, err
	}
	return info.Version, true, nil
}

// GetPreviousVersion describes the newest version of key strictly before the given version.
func (ms *MultiStore) GetPreviousVersion(key []byte, before codec.CommitVersion) (*PreviousVersionInfo, error) {
	if before <= 1 {
		return nil, nil
	}
	return ms.previousVersion(key, before)
}

// previousVersion looks up the newest version before the given one across tiers. NoVersion means no bound.
func (ms *MultiStore) previousVersion(key []byte, before codec.CommitVersion) (*PreviousVersionInfo, error) {
	var best *PreviousVersionInfo
	for _, t := range ms.tiers {
		var (
			info *PreviousVersionInfo
			err  error
		)
		if before == codec.NoVersion {
			info, err = GetPreviousVersionInfo(t, engine_util.CfMulti, key)
		} else {
			info, err = GetVersionInfoBefore(t, engine_util.CfMulti, key, before)
		}
		if err != nil {
			return nil, errors.Annotatef(err, "version info from %s tier", t.name)
		}
		if info != nil && (best == nil || info.Version > best.Version) {
			best = info
		}
	}
	return best, nil
}

// Commit writes deltas at version. New versions go to the hot tier; drops are applied to the tier holding the
// dropped version.
func (ms *MultiStore) Commit(deltas []Delta, version codec.CommitVersion) error {
	if version == codec.NoVersion {
		return errors.New("mvcc: cannot commit at version 0")
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()

	// A key written twice in one commit keeps its last write.
	written := make(map[string]int)
	for i := range deltas {
		if deltas[i].writes() {
			written[string(deltas[i].Key)] = i
		}
	}

	var (
		stats   statsDelta
		metrics commitMetrics
	)
	perTier := make([][]storage.Modify, len(ms.tiers))
	for i := range deltas {
		d := &deltas[i]
		switch d.Kind {
		case DeltaSet, DeltaUnset, DeltaRemove:
			if written[string(d.Key)] != i {
				continue
			}
			if err := ms.supersede(d, &stats); err != nil {
				return err
			}
			encoded := codec.EncodeVersionedKey(d.Key, version)
			info := PreviousVersionInfo{Version: version, KeyBytes: uint64(len(encoded))}
			if d.Kind == DeltaSet {
				perTier[0] = append(perTier[0], storage.Modify{Data: storage.Put{
					Cf: engine_util.CfMulti, Key: encoded, Value: d.Value,
				}})
				info.ValueBytes = uint64(len(d.Value))
				metrics.setBytes += len(encoded) + len(d.Value)
			} else {
				perTier[0] = append(perTier[0], storage.Modify{Data: storage.Tombstone{
					Cf: engine_util.CfMulti, Key: encoded,
				}})
				metrics.tombstoneBytes += len(encoded)
			}
			stats.write(info)
			metrics.versions[d.Kind]++
		case DeltaDrop:
			_, pending := written[string(d.Key)]
			if err := ms.drop(d, version, pending, &stats, &metrics, perTier); err != nil {
				return err
			}
		default:
			return errors.Errorf("mvcc: unknown delta kind %d", d.Kind)
		}
	}

	perTier[0] = append(perTier[0], storage.Modify{Data: storage.Put{
		Cf: engine_util.CfMeta, Key: lastVersionKey, Value: encodeVersion(version),
	}})
	for i, t := range ms.tiers {
		if len(perTier[i]) == 0 {
			continue
		}
		if err := t.Write(perTier[i]); err != nil {
			log.Errorf("commit version %d to %s tier failed: %v", version, t.name, err)
			return errors.Annotatef(err, "write %s tier", t.name)
		}
	}
	metrics.observe()
	ms.stats.apply(&stats)
	return nil
}

// LastCommitVersion returns the version of the newest commit written to the hot tier, NoVersion for a new store.
func (ms *MultiStore) LastCommitVersion() (codec.CommitVersion, error) {
	reader, err := ms.tiers[0].Reader()
	if err != nil {
		return codec.NoVersion, err
	}
	defer reader.Close()
	val, err := reader.GetCF(engine_util.CfMeta, lastVersionKey)
	if err != nil {
		return codec.NoVersion, errors.Trace(err)
	}
	if val == nil {
		return codec.NoVersion, nil
	}
	if len(val) != 8 {
		return codec.NoVersion, errors.Errorf("mvcc: corrupt last commit version %x", val)
	}
	return codec.CommitVersion(binary.BigEndian.Uint64(val)), nil
}

func encodeVersion(version codec.CommitVersion) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(version))
	return buf[:]
}

// supersede accounts the version a write replaces.
func (ms *MultiStore) supersede(d *Delta, stats *statsDelta) error {
	if d.Kind == DeltaUnset {
		stats.supersede(&PreviousVersionInfo{
			KeyBytes:   uint64(codec.EncodedLen(d.Key)),
			ValueBytes: uint64(len(d.Value)),
		})
		return nil
	}
	prev, err := ms.previousVersion(d.Key, codec.NoVersion)
	if err != nil {
		return err
	}
	stats.supersede(prev)
	return nil
}

func (ms *MultiStore) drop(d *Delta, version codec.CommitVersion, pending bool, stats *statsDelta, metrics *commitMetrics, perTier [][]storage.Modify) error {
	spec := d.Drop
	if pending {
		spec.PendingVersion = version
	}
	latest, hasLatest, err := ms.LatestVersion(d.Key)
	if err != nil {
		return err
	}
	var entries []DropEntry
	for i, t := range ms.tiers {
		n := len(entries)
		if entries, err = scanVersions(t, engine_util.CfMulti, d.Key, entries); err != nil {
			return errors.Annotatef(err, "find versions to drop in %s tier", t.name)
		}
		for j := n; j < len(entries); j++ {
			entries[j].tier = i
		}
	}
	// Retention applies to the versions of all tiers together.
	for _, e := range selectDrops(d.Key, entries, spec) {
		perTier[e.tier] = append(perTier[e.tier], storage.Modify{Data: storage.Delete{
			Cf: engine_util.CfMulti, Key: e.VersionedKey,
		}})
		stats.drop(e, !pending && hasLatest && e.Version == latest)
		metrics.dropBytes += len(e.VersionedKey) + int(e.ValueBytes)
		metrics.versions[DeltaDrop]++
	}
	return nil
}

// commitMetrics collects what a commit reports, so that failed commits report nothing.
type commitMetrics struct {
	setBytes, tombstoneBytes, dropBytes int
	versions                            [DeltaDrop + 1]int
}

func (m *commitMetrics) observe() {
	storageBytesCounter.WithLabelValues("set").Add(float64(m.setBytes))
	storageBytesCounter.WithLabelValues("tombstone").Add(float64(m.tombstoneBytes))
	storageBytesCounter.WithLabelValues("drop").Add(float64(m.dropBytes))
	for kind, n := range m.versions {
		if n > 0 {
			versionsCounter.WithLabelValues(DeltaKind(kind).String()).Add(float64(n))
		}
	}
}

// Stats returns the storage statistics accumulated by commits of this store.
func (ms *MultiStore) Stats() StorageStats {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.stats
}

// Close stops every tier.
func (ms *MultiStore) Close() error {
	var firstErr error
	for _, t := range ms.tiers {
		if err := t.Stop(); err != nil {
			log.Errorf("stop %s tier: %v", t.name, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
