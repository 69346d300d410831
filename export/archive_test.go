package export

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"
	"time"
)

func fakeChunk(name string, payload []byte, records int) Artifact {
	return Artifact{
		Bytes:       payload,
		MIMEType:    MIMEXLSX,
		Filename:    name,
		Size:        int64(len(payload)),
		RecordCount: records,
	}
}

func TestBuildArchive_RoundTrip(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	partA := fakeChunk("a_batch_1.xlsx", bytes.Repeat([]byte("alpha"), 100), 10)
	partB := fakeChunk("a_batch_2.xlsx", bytes.Repeat([]byte("bravo"), 100), 7)

	archive, stats, err := buildArchive("a_complete.zip", []Artifact{partA, partB}, now)
	if err != nil {
		t.Fatalf("build archive: %v", err)
	}
	if archive.Filename != "a_complete.zip" || archive.MIMEType != MIMEZip {
		t.Fatalf("unexpected archive metadata: %+v", archive)
	}
	if archive.RecordCount != 17 {
		t.Fatalf("expected summed record count 17, got %d", archive.RecordCount)
	}
	if stats.UncompressedTotal != partA.Size+partB.Size {
		t.Fatalf("expected uncompressed total %d, got %d", partA.Size+partB.Size, stats.UncompressedTotal)
	}
	if stats.Ratio <= 0 || stats.Ratio >= 1 {
		t.Fatalf("expected compression of repetitive input, ratio %v", stats.Ratio)
	}

	reader, err := zip.NewReader(bytes.NewReader(archive.Bytes), int64(len(archive.Bytes)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(reader.File) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(reader.File))
	}

	want := map[string][]byte{
		"a_batch_1.xlsx": partA.Bytes,
		"a_batch_2.xlsx": partB.Bytes,
	}
	for _, entry := range reader.File {
		expected, ok := want[entry.Name]
		if !ok {
			t.Fatalf("unexpected entry %q", entry.Name)
		}
		rc, err := entry.Open()
		if err != nil {
			t.Fatalf("open entry: %v", err)
		}
		extracted, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read entry: %v", err)
		}
		if !bytes.Equal(extracted, expected) {
			t.Fatalf("entry %q differs after extraction", entry.Name)
		}
	}
}

func TestBuildArchive_PreservesOrder(t *testing.T) {
	now := time.Now()
	parts := []Artifact{
		fakeChunk("batch_1.xlsx", bytes.Repeat([]byte("one"), 50), 1),
		fakeChunk("batch_2.xlsx", bytes.Repeat([]byte("two"), 50), 1),
		fakeChunk("batch_3.xlsx", bytes.Repeat([]byte("three"), 50), 1),
	}
	archive, _, err := buildArchive("complete.zip", parts, now)
	if err != nil {
		t.Fatalf("build archive: %v", err)
	}
	reader, err := zip.NewReader(bytes.NewReader(archive.Bytes), int64(len(archive.Bytes)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	for i, entry := range reader.File {
		if entry.Name != parts[i].Filename {
			t.Fatalf("entry %d: expected %q, got %q", i, parts[i].Filename, entry.Name)
		}
	}
}

func TestBuildArchive_RejectsEmpty(t *testing.T) {
	_, _, err := buildArchive("x.zip", nil, time.Now())
	if err == nil {
		t.Fatalf("expected error for empty archive")
	}
}
