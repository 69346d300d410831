package export

import (
	"context"
	"strings"
	"testing"
	"time"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func testCoordinator(t *testing.T, cfg Config, opts ...CoordinatorOption) (*Coordinator, *Registry) {
	t.Helper()
	registry := NewRegistry(RegistryConfig{KeepRecent: cfg.KeepRecent}, nil)
	base := time.Date(2025, 7, 4, 9, 30, 0, 0, time.UTC)
	registry.now = fixedClock(base)

	defaults := []CoordinatorOption{
		WithClock(fixedClock(base)),
		WithIDGenerator(func() string { return "aabbccdd-0000-0000-0000-000000000000" }),
	}
	return NewCoordinator(cfg, registry, append(defaults, opts...)...), registry
}

func TestCoordinator_InlineSingleExport(t *testing.T) {
	coord, registry := testCoordinator(t, Defaults())

	record, err := coord.Export(context.Background(), ExportRequest{
		ExportType: TypeParticipants,
		Data:       participantFixture(),
	})
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	if record.Strategy != StrategySingle {
		t.Fatalf("expected single strategy, got %s", record.Strategy)
	}
	if record.RecordCount != 2 {
		t.Fatalf("expected 2 records, got %d", record.RecordCount)
	}
	if record.Single == nil {
		t.Fatalf("expected single artifact")
	}
	if err := ValidateArtifactBytes(record.Single.Bytes); err != nil {
		t.Fatalf("artifact gate: %v", err)
	}
	if !strings.HasPrefix(record.Single.Filename, "participants_standard_aabbccdd_") {
		t.Fatalf("unexpected filename %q", record.Single.Filename)
	}
	if !strings.HasSuffix(record.Single.Filename, ".xlsx") {
		t.Fatalf("expected xlsx extension, got %q", record.Single.Filename)
	}

	if record.Metrics.ElapsedMS < 1 {
		t.Fatalf("expected elapsed_ms >= 1, got %d", record.Metrics.ElapsedMS)
	}
	if record.Metrics.RecordsPerSecond <= 0 {
		t.Fatalf("expected positive records_per_second")
	}
	if record.ExpiresAt.Sub(record.CreatedAt) != coord.Config().RetentionWindow {
		t.Fatalf("expected expires_at = created_at + retention window")
	}

	stored, err := registry.Get(record.ID)
	if err != nil {
		t.Fatalf("expected record registered: %v", err)
	}
	if stored.ID != record.ID {
		t.Fatalf("registered id mismatch")
	}
}

func TestCoordinator_ForcedChunkingProducesArchive(t *testing.T) {
	coord, _ := testCoordinator(t, Defaults())

	records := make([]Record, 10)
	for i := range records {
		records[i] = Record{"id": i, "full_name": "P", "email": "p@example.com"}
	}

	record, err := coord.Export(context.Background(), ExportRequest{
		ExportType:    TypeParticipants,
		Data:          records,
		ChunkSize:     4,
		ForceChunking: true,
	})
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	if record.Strategy != StrategyMulti {
		t.Fatalf("expected multi strategy, got %s", record.Strategy)
	}
	if len(record.Chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(record.Chunks))
	}

	var covered int
	prevEnd := 0
	for i, chunk := range record.Chunks {
		if chunk.BatchNumber != i+1 {
			t.Fatalf("chunk %d: unexpected batch number %d", i, chunk.BatchNumber)
		}
		if chunk.RangeStart != prevEnd+1 {
			t.Fatalf("chunk %d: range not contiguous", i)
		}
		prevEnd = chunk.RangeEnd
		covered += chunk.RecordCount
		if err := ValidateArtifactBytes(chunk.Bytes); err != nil {
			t.Fatalf("chunk %d gate: %v", i, err)
		}
		if !strings.Contains(chunk.Filename, "_batch_") {
			t.Fatalf("chunk %d: filename %q lacks batch marker", i, chunk.Filename)
		}
	}
	if covered != 10 {
		t.Fatalf("chunk record counts sum to %d, expected 10", covered)
	}

	if record.Archive == nil {
		t.Fatalf("expected archive artifact")
	}
	if !strings.HasSuffix(record.Archive.Filename, ".zip") {
		t.Fatalf("expected zip archive, got %q", record.Archive.Filename)
	}
	if record.ArchiveStats.UncompressedTotal == 0 {
		t.Fatalf("expected archive stats recorded")
	}
	if len(record.Metrics.ChunkElapsedMS) != 3 {
		t.Fatalf("expected per-chunk timings, got %v", record.Metrics.ChunkElapsedMS)
	}
}

func TestCoordinator_EmptyInlineSet(t *testing.T) {
	coord, _ := testCoordinator(t, Defaults())

	record, err := coord.Export(context.Background(), ExportRequest{
		ExportType: TypeParticipants,
		Data:       []Record{},
	})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if record.Strategy != StrategySingle || record.RecordCount != 0 {
		t.Fatalf("expected empty single export, got %+v", record)
	}
	if record.Single == nil || len(record.Single.Bytes) == 0 {
		t.Fatalf("expected header-only artifact")
	}
}

func TestCoordinator_ValidationDoesNotRegister(t *testing.T) {
	coord, registry := testCoordinator(t, Defaults())

	_, err := coord.Export(context.Background(), ExportRequest{
		ExportType: TypeParticipants,
		Template:   "nope",
		Data:       []Record{},
	})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if kind := KindFromError(err); kind != KindValidation {
		t.Fatalf("expected validation kind, got %s", kind)
	}
	if stats := registry.Stats(); stats.Entries != 0 {
		t.Fatalf("expected empty registry after failed job, got %d", stats.Entries)
	}
}

func TestCoordinator_FilteredWithoutAdapter(t *testing.T) {
	coord, _ := testCoordinator(t, Defaults())

	_, err := coord.Export(context.Background(), ExportRequest{
		ExportType: TypeParticipants,
		Filters:    &FilterSpec{ProgramID: "prog-1"},
	})
	if err == nil {
		t.Fatalf("expected source_unavailable")
	}
	if kind := KindFromError(err); kind != KindSourceDown {
		t.Fatalf("expected source_unavailable, got %s", kind)
	}
}

func TestCoordinator_CSVFormat(t *testing.T) {
	coord, _ := testCoordinator(t, Defaults())

	record, err := coord.Export(context.Background(), ExportRequest{
		ExportType: TypeParticipants,
		Format:     FormatCSV,
		Data:       participantFixture(),
	})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if record.Single == nil || record.Single.MIMEType != MIMECSV {
		t.Fatalf("expected csv artifact, got %+v", record.Single)
	}
	if !strings.HasSuffix(record.Single.Filename, ".csv") {
		t.Fatalf("expected csv filename, got %q", record.Single.Filename)
	}
}

func TestSelectArtifact_Variants(t *testing.T) {
	single := ExportRecord{
		ID:       "s1",
		Strategy: StrategySingle,
		Single:   &Artifact{Filename: "one.xlsx"},
	}
	multi := ExportRecord{
		ID:       "m1",
		Strategy: StrategyMulti,
		Chunks: []Artifact{
			{Filename: "b1.xlsx", BatchNumber: 1},
			{Filename: "b2.xlsx", BatchNumber: 2},
		},
		Archive: &Artifact{Filename: "all.zip"},
	}

	got, err := SelectArtifact(single, DownloadVariant{})
	if err != nil || got.Filename != "one.xlsx" {
		t.Fatalf("default single: %v %+v", err, got)
	}
	got, err = SelectArtifact(multi, DownloadVariant{})
	if err != nil || got.Filename != "all.zip" {
		t.Fatalf("default multi should serve archive: %v %+v", err, got)
	}
	got, err = SelectArtifact(multi, DownloadVariant{Kind: "batch", Batch: 2})
	if err != nil || got.Filename != "b2.xlsx" {
		t.Fatalf("batch select: %v %+v", err, got)
	}

	if _, err := SelectArtifact(single, DownloadVariant{Kind: "zip"}); KindFromError(err) != KindVariantMismatch {
		t.Fatalf("expected variant mismatch for zip on single, got %v", err)
	}
	if _, err := SelectArtifact(single, DownloadVariant{Kind: "batch", Batch: 1}); KindFromError(err) != KindVariantMismatch {
		t.Fatalf("expected variant mismatch for batch on single, got %v", err)
	}
	if _, err := SelectArtifact(multi, DownloadVariant{Kind: "batch", Batch: 9}); KindFromError(err) != KindNotFound {
		t.Fatalf("expected not_found for out-of-range batch, got %v", err)
	}
	if _, err := SelectArtifact(multi, DownloadVariant{Kind: "single"}); KindFromError(err) != KindVariantMismatch {
		t.Fatalf("expected variant mismatch for single on multi, got %v", err)
	}
}
