package export

import (
	"fmt"
	"testing"
	"time"
)

func testRecord(id string, createdAt time.Time, ttl time.Duration, size int) ExportRecord {
	return ExportRecord{
		ID:           id,
		Strategy:     StrategySingle,
		ExportType:   TypeParticipants,
		TemplateName: "standard",
		Single: &Artifact{
			Bytes:    make([]byte, size),
			Filename: id + ".xlsx",
		},
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(ttl),
	}
}

func newTestRegistry(cfg RegistryConfig, now time.Time) (*Registry, *time.Time) {
	clock := now
	r := NewRegistry(cfg, nil)
	r.now = func() time.Time { return clock }
	return r, &clock
}

func TestRegistry_KeepLastN(t *testing.T) {
	base := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	r, _ := newTestRegistry(RegistryConfig{KeepRecent: 3}, base)

	for i := 1; i <= 4; i++ {
		rec := testRecord(fmt.Sprintf("e%d", i), base.Add(time.Duration(i)*time.Minute), time.Hour, 100)
		if err := r.Insert(rec); err != nil {
			t.Fatalf("insert e%d: %v", i, err)
		}
	}

	if _, err := r.Get("e1"); err == nil {
		t.Fatalf("expected oldest record evicted")
	}
	for _, id := range []string{"e2", "e3", "e4"} {
		if _, err := r.Get(id); err != nil {
			t.Fatalf("expected %s present: %v", id, err)
		}
	}
	if stats := r.Stats(); stats.Entries != 3 {
		t.Fatalf("expected 3 entries, got %d", stats.Entries)
	}
}

func TestRegistry_TTLExpiry(t *testing.T) {
	base := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	r, clock := newTestRegistry(RegistryConfig{KeepRecent: 10}, base)

	if err := r.Insert(testRecord("short", base, time.Hour, 100)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	*clock = base.Add(30 * time.Minute)
	if _, err := r.Get("short"); err != nil {
		t.Fatalf("expected record alive before expiry: %v", err)
	}

	*clock = base.Add(time.Hour)
	_, err := r.Get("short")
	if err == nil {
		t.Fatalf("expected expiry at exactly expires_at")
	}
	if exportErr, ok := err.(*ExportError); !ok || exportErr.Kind != KindExpired {
		t.Fatalf("expected expired kind, got %v", err)
	}

	stats := r.Sweep()
	if stats.TTL != 1 {
		t.Fatalf("expected 1 ttl removal, got %+v", stats)
	}
	if _, _, err := r.LookupAndPin("short"); err == nil {
		t.Fatalf("expected not found after sweep")
	}
}

func TestRegistry_PinTombstone(t *testing.T) {
	base := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	r, _ := newTestRegistry(RegistryConfig{KeepRecent: 1}, base)

	if err := r.Insert(testRecord("old", base, time.Hour, 100)); err != nil {
		t.Fatalf("insert old: %v", err)
	}
	pinned, release, err := r.LookupAndPin("old")
	if err != nil {
		t.Fatalf("pin: %v", err)
	}
	if pinned.ID != "old" {
		t.Fatalf("expected pinned record, got %+v", pinned)
	}

	// Inserting a newer record forces keep-last-1 eviction of the pinned one.
	if err := r.Insert(testRecord("new", base.Add(time.Minute), time.Hour, 100)); err != nil {
		t.Fatalf("insert new: %v", err)
	}

	if _, err := r.Get("old"); err == nil {
		t.Fatalf("expected tombstoned record invisible to lookups")
	}
	if len(pinned.Single.Bytes) != 100 {
		t.Fatalf("expected pinned artifact bytes still readable")
	}

	release()
	release() // idempotent

	if stats := r.Stats(); stats.Entries != 1 {
		t.Fatalf("expected only the new record, got %d entries", stats.Entries)
	}
}

func TestRegistry_StoragePressure(t *testing.T) {
	base := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	r, _ := newTestRegistry(RegistryConfig{
		KeepRecent:          10,
		StorageWarningBytes: 250,
		StorageCleanupBytes: 400,
	}, base)

	for i := 1; i <= 5; i++ {
		rec := testRecord(fmt.Sprintf("s%d", i), base.Add(time.Duration(i)*time.Minute), time.Hour, 100)
		if err := r.Insert(rec); err != nil {
			t.Fatalf("insert s%d: %v", i, err)
		}
	}

	// 500 bytes total exceeds the 400 cleanup threshold; eviction runs until
	// under the 250 warning threshold, dropping the oldest entries.
	stats := r.Stats()
	if stats.Bytes > 250 {
		t.Fatalf("expected bytes under warning threshold, got %d", stats.Bytes)
	}
	if _, err := r.Get("s5"); err != nil {
		t.Fatalf("expected newest record kept: %v", err)
	}
	if _, err := r.Get("s1"); err == nil {
		t.Fatalf("expected oldest record evicted under pressure")
	}
}

func TestRegistry_ForcePurge(t *testing.T) {
	base := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	r, _ := newTestRegistry(RegistryConfig{KeepRecent: 10}, base)

	for i := 1; i <= 3; i++ {
		if err := r.Insert(testRecord(fmt.Sprintf("p%d", i), base.Add(time.Duration(i)*time.Second), time.Hour, 10)); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if removed := r.ForcePurge(); removed != 3 {
		t.Fatalf("expected 3 purged, got %d", removed)
	}
	if stats := r.Stats(); stats.Entries != 0 {
		t.Fatalf("expected empty registry, got %d", stats.Entries)
	}
}

func TestRegistry_DuplicateInsertRejected(t *testing.T) {
	base := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	r, _ := newTestRegistry(RegistryConfig{KeepRecent: 10}, base)

	rec := testRecord("dup", base, time.Hour, 10)
	if err := r.Insert(rec); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := r.Insert(rec); err == nil {
		t.Fatalf("expected duplicate insert rejection")
	}
}
