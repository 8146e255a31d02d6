package store

import (
	"io/fs"
	"path/filepath"
)

// PebbleMetrics is a compact view of store health for the telemetry layer.
type PebbleMetrics struct {
	DiskBytes      uint64
	WALBytes       uint64
	L0Files        int
	CompactionsRun int64
}

// GetPebbleMetrics returns best-effort metrics about the pebble DB: on-disk
// footprint plus a few fields lifted from pebble's own metrics.
func GetPebbleMetrics() PebbleMetrics {
	var m PebbleMetrics
	if db == nil {
		return m
	}
	if dbPath != "" {
		var total uint64
		_ = filepath.WalkDir(dbPath, func(p string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if fi, ferr := d.Info(); ferr == nil {
				total += uint64(fi.Size())
			}
			return nil
		})
		m.DiskBytes = total
	}
	if pm := db.Metrics(); pm != nil {
		m.WALBytes = pm.WAL.Size
		m.L0Files = int(pm.Levels[0].NumFiles)
		m.CompactionsRun = pm.Compact.Count
	}
	return m
}

// Compact runs a full manual compaction over the message keyspace. Invoked
// by the maintenance scheduler.
func Compact() error {
	if db == nil {
		return nil
	}
	return db.Compact([]byte(msgPrefix), []byte(msgPrefixEnd), true)
}
