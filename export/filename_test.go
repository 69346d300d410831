package export

import (
	"strings"
	"testing"
	"time"
)

var filenameClock = time.Date(2025, 3, 14, 9, 30, 15, 0, time.UTC)

func TestBuildFilenames_Default(t *testing.T) {
	tmpl := mustTemplate(t, TypeParticipants, "standard")
	req := ExportRequest{ExportType: TypeParticipants}
	names := buildFilenames(req, tmpl, "aabbccdd-1234", ".xlsx", filenameClock)

	if names.single != "participants_standard_aabbccdd_14-03-2025_093015.xlsx" {
		t.Fatalf("unexpected single name %q", names.single)
	}
	if names.archive != "participants_standard_aabbccdd_complete_14-03-2025.zip" {
		t.Fatalf("unexpected archive name %q", names.archive)
	}
	chunk := names.chunk(2, 3)
	if chunk != "participants_standard_aabbccdd_batch_2_14-03-2025_093015.xlsx" {
		t.Fatalf("unexpected chunk name %q", chunk)
	}
}

func TestBuildFilenames_CustomBase(t *testing.T) {
	tmpl := mustTemplate(t, TypeParticipants, "standard")
	req := ExportRequest{ExportType: TypeParticipants, Filename: "spring_cohort.xlsx"}
	names := buildFilenames(req, tmpl, "aabbccdd-1234", ".xlsx", filenameClock)

	if names.single != "spring_cohort.xlsx" {
		t.Fatalf("unexpected single name %q", names.single)
	}
	if names.archive != "spring_cohort_complete_export.zip" {
		t.Fatalf("unexpected archive name %q", names.archive)
	}
	if got := names.chunk(1, 4); got != "spring_cohort_batch_1_of_4.xlsx" {
		t.Fatalf("unexpected chunk name %q", got)
	}
}

func TestSanitizeDownloadFilename(t *testing.T) {
	cases := []struct {
		name string
		in   string
		ext  string
		want string
	}{
		{"path traversal", `..\..\evil.xlsx`, ".xlsx", "evil.xlsx"},
		{"reserved chars", `re<po>rt:?.xlsx`, ".xlsx", "report.xlsx"},
		{"missing extension", "report", ".xlsx", "report.xlsx"},
		{"wrong extension", "report.csv", ".xlsx", "report.xlsx"},
		{"empty", "", ".xlsx", "export.xlsx"},
	}
	for _, tc := range cases {
		if got := SanitizeDownloadFilename(tc.in, tc.ext); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestSanitizeDownloadFilename_Truncates(t *testing.T) {
	long := strings.Repeat("a", 300) + ".xlsx"
	got := SanitizeDownloadFilename(long, ".xlsx")
	if len(got) > maxFilenameLen {
		t.Fatalf("expected truncation to %d, got %d", maxFilenameLen, len(got))
	}
	if !strings.HasSuffix(got, ".xlsx") {
		t.Fatalf("expected extension preserved, got %q", got)
	}
}
