package export

import (
	"context"
	"time"
)

// ExportType identifies an exportable dataset.
type ExportType string

const (
	TypeParticipants ExportType = "participants"
	TypePayments     ExportType = "payments"
	TypeAmbassadors  ExportType = "ambassadors"
)

// KnownTypes lists every exportable dataset.
func KnownTypes() []ExportType {
	return []ExportType{TypeParticipants, TypePayments, TypeAmbassadors}
}

// Format is the export output format.
type Format string

const (
	FormatExcel Format = "excel"
	FormatCSV   Format = "csv"
)

// Strategy describes how many artifacts a job produces.
type Strategy string

const (
	StrategySingle Strategy = "single"
	StrategyMulti  Strategy = "multi"
)

// MIME types for produced artifacts.
const (
	MIMEXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MIMECSV  = "text/csv"
	MIMEZip  = "application/zip"
)

// Record is one raw source row: field name to scalar value. Absent fields and
// explicit nils are equivalent.
type Record map[string]any

// RecordIterator streams records. Next returns io.EOF when exhausted.
type RecordIterator interface {
	Next(ctx context.Context) (Record, error)
	Close() error
}

// SourceAdapter materializes rows from a backing store. Open returns a fresh
// iterator each call, so exports are restartable per request.
type SourceAdapter interface {
	Count(ctx context.Context, exportType ExportType, filters FilterSpec) (int, error)
	Open(ctx context.Context, exportType ExportType, filters FilterSpec) (RecordIterator, error)
}

// FilterSpec is the closed predicate set understood by the source adapter.
type FilterSpec struct {
	ProgramID                string
	DateFrom                 time.Time
	DateTo                   time.Time
	Categories               []string
	ScoreStatuses            []string
	HasSuccessfulPayment     *bool
	HasSubmittedRegistration *bool
	Limit                    int
	SortBy                   string
	SortOrder                string
}

// TransformKind selects a value transformation. The set is closed.
type TransformKind string

const (
	TransformPassthrough      TransformKind = "passthrough"
	TransformStatusMap        TransformKind = "status_map"
	TransformPaymentStatusMap TransformKind = "payment_status_map"
	TransformBooleanYesNo     TransformKind = "boolean_yes_no"
	TransformDateISO          TransformKind = "date_iso"
	TransformDateLocale       TransformKind = "date_locale"
	TransformCurrency         TransformKind = "currency"
	TransformPhoneConcat      TransformKind = "phone_concat"
	TransformJoinLookup       TransformKind = "join_lookup"
	TransformDefaultIfAbsent  TransformKind = "default_if_absent"
)

// TransformParams carries kind-specific data for a column transform.
type TransformParams struct {
	// Symbol prefixes currency values, e.g. "$".
	Symbol string
	// Default substitutes absent values for default_if_absent.
	Default string
	// CodeField names the country-code field for phone_concat; the
	// descriptor's source field holds the local number.
	CodeField string
	// Path is the lookup-key chain for join_lookup.
	Path []string
}

// ColumnDescriptor specifies how one output column is sourced and transformed.
type ColumnDescriptor struct {
	Field     string
	Label     string
	Transform TransformKind
	Params    TransformParams
}

// Template is a named, ordered projection with per-template limits.
// Templates are code-defined and immutable at runtime.
type Template struct {
	ExportType           ExportType
	Name                 string
	Columns              []ColumnDescriptor
	MaxRecordsSingleFile int
	RecommendedChunkSize int
	IncludesSensitive    bool
}

// Labels returns header labels in column order.
func (t Template) Labels() []string {
	labels := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		labels[i] = col.Label
	}
	return labels
}

// ExportRequest captures one validated export job.
type ExportRequest struct {
	ExportType    ExportType
	Template      string
	Format        Format
	Filename      string
	SheetName     string
	Data          []Record
	Filters       *FilterSpec
	ChunkSize     int
	ForceChunking bool
	SortBy        string
	SortOrder     string
}

// Inline reports whether the request carries inlined rows.
func (r ExportRequest) Inline() bool {
	return r.Data != nil
}

// Artifact is one downloadable file held in memory.
type Artifact struct {
	Bytes       []byte
	MIMEType    string
	Filename    string
	Size        int64
	RecordCount int
	BatchNumber int
	RangeStart  int
	RangeEnd    int
}

// ArchiveStats captures archive compression figures.
type ArchiveStats struct {
	UncompressedTotal int64
	CompressedTotal   int64
	Ratio             float64
}

// ProcessingMetrics reports per-job measurements. PeakRSSMB is nil when
// process memory sampling is unavailable.
type ProcessingMetrics struct {
	ElapsedMS        int64
	PeakRSSMB        *float64
	BytesPerRecord   float64
	RecordsPerSecond float64
	ChunkElapsedMS   []int64
}

// ExportRecord is one completed export and its artifacts.
type ExportRecord struct {
	ID           string
	Strategy     Strategy
	ExportType   ExportType
	TemplateName string
	RecordCount  int
	Single       *Artifact
	Chunks       []Artifact
	Archive      *Artifact
	ArchiveStats ArchiveStats
	CreatedAt    time.Time
	ExpiresAt    time.Time
	Metrics      ProcessingMetrics
}

// TotalBytes sums the byte lengths of every stored artifact.
func (r ExportRecord) TotalBytes() int64 {
	var total int64
	if r.Single != nil {
		total += int64(len(r.Single.Bytes))
	}
	for i := range r.Chunks {
		total += int64(len(r.Chunks[i].Bytes))
	}
	if r.Archive != nil {
		total += int64(len(r.Archive.Bytes))
	}
	return total
}

// DownloadVariant selects which artifact of a record to serve.
type DownloadVariant struct {
	// Kind is "", "single", "archive", or "batch".
	Kind string
	// Batch is the 1-indexed chunk number when Kind is "batch".
	Batch int
}

// Logger provides logging hooks.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
}

// NopLogger is a no-op logger.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any) {}
func (NopLogger) Infof(string, ...any)  {}
func (NopLogger) Errorf(string, ...any) {}

// MetricsEvent describes lifecycle metrics for one export job.
type MetricsEvent struct {
	Name       string
	ExportID   string
	ExportType ExportType
	Template   string
	Strategy   Strategy
	Records    int64
	Bytes      int64
	Duration   time.Duration
	ErrorKind  ErrorKind
	Timestamp  time.Time
}

// MetricsHook emits metrics-friendly lifecycle observations.
type MetricsHook interface {
	Emit(ctx context.Context, evt MetricsEvent) error
}
