package mvcc

// StorageStats accounts the bytes held by the versioned store. Current counts the newest version of every key,
// Historical counts versions superseded by a newer one.
type StorageStats struct {
	CurrentKeyBytes      uint64
	CurrentValueBytes    uint64
	CurrentCount         uint64
	HistoricalKeyBytes   uint64
	HistoricalValueBytes uint64
	HistoricalCount      uint64
}

// TotalBytes is the physical size of every version.
func (s StorageStats) TotalBytes() uint64 {
	return s.CurrentKeyBytes + s.CurrentValueBytes + s.HistoricalKeyBytes + s.HistoricalValueBytes
}

// statsDelta is the change one commit applies to StorageStats. It is applied only once the commit is written.
type statsDelta struct {
	addCurrent, removeCurrent       PreviousVersionInfo
	addHistorical, removeHistorical PreviousVersionInfo
	currentCount, historicalCount   int64
}

func (d *statsDelta) write(info PreviousVersionInfo) {
	d.addCurrent.KeyBytes += info.KeyBytes
	d.addCurrent.ValueBytes += info.ValueBytes
	d.currentCount++
}

// supersede moves a previous newest version from current to historical.
func (d *statsDelta) supersede(prev *PreviousVersionInfo) {
	if prev == nil {
		return
	}
	d.removeCurrent.KeyBytes += prev.KeyBytes
	d.removeCurrent.ValueBytes += prev.ValueBytes
	d.currentCount--
	d.addHistorical.KeyBytes += prev.KeyBytes
	d.addHistorical.ValueBytes += prev.ValueBytes
	d.historicalCount++
}

func (d *statsDelta) drop(entry DropEntry, current bool) {
	keyBytes := uint64(len(entry.VersionedKey))
	if current {
		d.removeCurrent.KeyBytes += keyBytes
		d.removeCurrent.ValueBytes += entry.ValueBytes
		d.currentCount--
		return
	}
	d.removeHistorical.KeyBytes += keyBytes
	d.removeHistorical.ValueBytes += entry.ValueBytes
	d.historicalCount--
}

func (s *StorageStats) apply(d *statsDelta) {
	s.CurrentKeyBytes = sub(s.CurrentKeyBytes+d.addCurrent.KeyBytes, d.removeCurrent.KeyBytes)
	s.CurrentValueBytes = sub(s.CurrentValueBytes+d.addCurrent.ValueBytes, d.removeCurrent.ValueBytes)
	s.HistoricalKeyBytes = sub(s.HistoricalKeyBytes+d.addHistorical.KeyBytes, d.removeHistorical.KeyBytes)
	s.HistoricalValueBytes = sub(s.HistoricalValueBytes+d.addHistorical.ValueBytes, d.removeHistorical.ValueBytes)
	s.CurrentCount = addSigned(s.CurrentCount, d.currentCount)
	s.HistoricalCount = addSigned(s.HistoricalCount, d.historicalCount)
}

// sub saturates at zero. Stats of data written before the store was opened are unknown.
func sub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

func addSigned(a uint64, d int64) uint64 {
	if d < 0 {
		return sub(a, uint64(-d))
	}
	return a + uint64(d)
}
