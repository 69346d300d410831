package export

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// RegistryConfig bounds the in-memory export registry.
type RegistryConfig struct {
	KeepRecent          int
	StorageWarningBytes int64
	StorageCleanupBytes int64
}

// Registry maps export ids to records. Eviction forces run in order on every
// insertion and sweep: TTL, keep-last-N, storage pressure. Entries pinned by
// a download in flight are tombstoned instead of removed and reclaimed when
// the last reader releases.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*registryEntry
	cfg     RegistryConfig
	logger  Logger
	now     func() time.Time
}

type registryEntry struct {
	record    ExportRecord
	refs      int
	tombstone bool
}

// SweepStats reports removals by cause.
type SweepStats struct {
	TTL       int
	Retention int
	Storage   int
}

func (s SweepStats) Total() int {
	return s.TTL + s.Retention + s.Storage
}

// RegistryStats reports aggregate registry occupancy.
type RegistryStats struct {
	Entries int
	Bytes   int64
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg RegistryConfig, logger Logger) *Registry {
	if cfg.KeepRecent <= 0 {
		cfg.KeepRecent = 5
	}
	if logger == nil {
		logger = NopLogger{}
	}
	return &Registry{
		entries: make(map[string]*registryEntry),
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Insert registers a completed export and applies the eviction forces. After
// a successful insertion the N most recent exports are always present.
func (r *Registry) Insert(record ExportRecord) error {
	if record.ID == "" {
		return NewError(KindInternal, "export record requires an id", nil)
	}
	if !record.ExpiresAt.After(record.CreatedAt) {
		return NewError(KindInternal, "export record expiry precedes creation", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.entries[record.ID]; ok && !existing.tombstone {
		return NewError(KindInternal, fmt.Sprintf("export %q already registered", record.ID), nil)
	}
	r.entries[record.ID] = &registryEntry{record: record}
	r.sweepLocked(r.now())
	return nil
}

// Get returns a record's metadata without pinning it.
func (r *Registry) Get(id string) (ExportRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok || entry.tombstone {
		return ExportRecord{}, NewError(KindNotFound, fmt.Sprintf("export %q not found", id), nil)
	}
	if !r.now().Before(entry.record.ExpiresAt) {
		return ExportRecord{}, NewError(KindExpired, fmt.Sprintf("export %q has expired", id), nil)
	}
	return entry.record, nil
}

// LookupAndPin returns a record and a release function. While pinned the
// entry cannot be reclaimed; the sweeper tombstones it instead.
func (r *Registry) LookupAndPin(id string) (ExportRecord, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok || entry.tombstone {
		return ExportRecord{}, nil, NewError(KindNotFound, fmt.Sprintf("export %q not found", id), nil)
	}
	if !r.now().Before(entry.record.ExpiresAt) {
		return ExportRecord{}, nil, NewError(KindExpired, fmt.Sprintf("export %q has expired", id), nil)
	}

	entry.refs++
	var once sync.Once
	release := func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			entry.refs--
			if entry.tombstone && entry.refs <= 0 {
				delete(r.entries, id)
			}
		})
	}
	return entry.record, release, nil
}

// Sweep applies TTL, keep-last-N, and storage-pressure eviction.
func (r *Registry) Sweep() SweepStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweepLocked(r.now())
}

// ForcePurge drops every entry regardless of retention. Pinned entries are
// tombstoned and reclaimed on release.
func (r *Registry) ForcePurge() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, entry := range r.entries {
		if entry.tombstone {
			continue
		}
		r.removeLocked(id, entry)
		removed++
	}
	return removed
}

// Stats reports live entry count and total artifact bytes.
func (r *Registry) Stats() RegistryStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := RegistryStats{}
	for _, entry := range r.entries {
		if entry.tombstone {
			continue
		}
		stats.Entries++
		stats.Bytes += entry.record.TotalBytes()
	}
	return stats
}

func (r *Registry) sweepLocked(now time.Time) SweepStats {
	stats := SweepStats{}

	for id, entry := range r.entries {
		if entry.tombstone {
			continue
		}
		if !now.Before(entry.record.ExpiresAt) {
			r.removeLocked(id, entry)
			stats.TTL++
		}
	}

	live := r.liveOldestFirstLocked()
	for len(live) > r.cfg.KeepRecent {
		oldest := live[0]
		r.removeLocked(oldest.record.ID, oldest)
		stats.Retention++
		live = live[1:]
	}

	if r.cfg.StorageCleanupBytes > 0 {
		var total int64
		for _, entry := range live {
			total += entry.record.TotalBytes()
		}
		if total > r.cfg.StorageCleanupBytes {
			target := r.cfg.StorageWarningBytes
			if target <= 0 || target > r.cfg.StorageCleanupBytes {
				target = r.cfg.StorageCleanupBytes
			}
			for len(live) > 0 && total > target {
				oldest := live[0]
				total -= oldest.record.TotalBytes()
				r.removeLocked(oldest.record.ID, oldest)
				stats.Storage++
				live = live[1:]
			}
		}
	}

	if stats.Total() > 0 {
		r.logger.Debugf("registry sweep removed %d entries (ttl=%d retention=%d storage=%d)",
			stats.Total(), stats.TTL, stats.Retention, stats.Storage)
	}
	return stats
}

func (r *Registry) liveOldestFirstLocked() []*registryEntry {
	live := make([]*registryEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		if !entry.tombstone {
			live = append(live, entry)
		}
	}
	sort.Slice(live, func(i, j int) bool {
		return live[i].record.CreatedAt.Before(live[j].record.CreatedAt)
	})
	return live
}

func (r *Registry) removeLocked(id string, entry *registryEntry) {
	if entry.refs > 0 {
		entry.tombstone = true
		return
	}
	delete(r.entries, id)
}

// Sweeper periodically enforces registry retention.
type Sweeper struct {
	Registry *Registry
	Interval time.Duration
	Logger   Logger
}

// Run sweeps on the configured interval until the context is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	logger := s.Logger
	if logger == nil {
		logger = NopLogger{}
	}
	interval := s.Interval
	if interval <= 0 {
		interval = 30 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := s.Registry.Sweep()
			if stats.Total() > 0 {
				logger.Infof("scheduled sweep removed %d export(s)", stats.Total())
			}
		}
	}
}
