package export

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/process"
	"golang.org/x/sync/semaphore"
)

// Coordinator runs export jobs end to end: validate, plan, project, render,
// archive, register. One Coordinator serves all request types.
type Coordinator struct {
	adapter  SourceAdapter
	registry *Registry
	cfg      Config
	logger   Logger
	metrics  MetricsHook

	totalSem *semaphore.Weighted
	largeSem *semaphore.Weighted

	now   func() time.Time
	newID func() string
	rss   func() *float64
}

// CoordinatorOption mutates a Coordinator during construction.
type CoordinatorOption func(*Coordinator)

// WithAdapter sets the backing source adapter. Without one, filtered exports
// fail with source_unavailable; inline exports still work.
func WithAdapter(adapter SourceAdapter) CoordinatorOption {
	return func(c *Coordinator) {
		c.adapter = adapter
	}
}

// WithLogger sets the coordinator logger.
func WithLogger(logger Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetricsHook sets the lifecycle metrics hook.
func WithMetricsHook(hook MetricsHook) CoordinatorOption {
	return func(c *Coordinator) {
		c.metrics = hook
	}
}

// WithClock overrides the coordinator clock.
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIDGenerator overrides export id generation.
func WithIDGenerator(gen func() string) CoordinatorOption {
	return func(c *Coordinator) {
		if gen != nil {
			c.newID = gen
		}
	}
}

// NewCoordinator wires a Coordinator over a registry.
func NewCoordinator(cfg Config, registry *Registry, opts ...CoordinatorOption) *Coordinator {
	if cfg.MaxConcurrentExports <= 0 {
		cfg.MaxConcurrentExports = 20
	}
	if cfg.MaxConcurrentLarge <= 0 {
		cfg.MaxConcurrentLarge = 3
	}
	if cfg.MaxChunkSize <= 0 {
		cfg.MaxChunkSize = 5000
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 3 * time.Minute
	}
	if cfg.RetentionWindow <= 0 {
		cfg.RetentionWindow = 7 * 24 * time.Hour
	}

	c := &Coordinator{
		registry: registry,
		cfg:      cfg,
		logger:   NopLogger{},
		totalSem: semaphore.NewWeighted(int64(cfg.MaxConcurrentExports)),
		largeSem: semaphore.NewWeighted(int64(cfg.MaxConcurrentLarge)),
		now:      time.Now,
		newID:    uuid.NewString,
		rss:      sampleRSSMB,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry exposes the coordinator's export registry.
func (c *Coordinator) Registry() *Registry {
	return c.registry
}

// Config exposes the effective coordinator configuration.
func (c *Coordinator) Config() Config {
	return c.cfg
}

// Export runs one export job. Capacity is checked before any work: a full
// semaphore rejects immediately with backpressure rather than queueing.
func (c *Coordinator) Export(ctx context.Context, req ExportRequest) (ExportRecord, error) {
	if err := ValidateRequest(req); err != nil {
		return ExportRecord{}, err
	}
	tmpl, err := LookupTemplate(req.ExportType, req.Template)
	if err != nil {
		return ExportRecord{}, err
	}

	if !c.totalSem.TryAcquire(1) {
		return ExportRecord{}, NewError(KindBackpressure, "export capacity exhausted, retry later", nil)
	}
	defer c.totalSem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	if c.cfg.CleanupOnExport && c.registry != nil {
		c.registry.Sweep()
	}

	started := c.now()
	record, err := c.run(ctx, req, tmpl, started)
	elapsed := c.now().Sub(started)
	if err != nil {
		kind := KindFromError(err)
		c.logger.Errorf("export %s/%s failed after %s: %v", req.ExportType, tmpl.Name, elapsed, err)
		c.emit(ctx, MetricsEvent{
			Name:       "export_failed",
			ExportType: req.ExportType,
			Template:   tmpl.Name,
			Duration:   elapsed,
			ErrorKind:  kind,
			Timestamp:  c.now(),
		})
		if kind == KindTimeout {
			return ExportRecord{}, NewError(KindTimeout,
				fmt.Sprintf("export exceeded the %s deadline", c.cfg.RequestTimeout), err)
		}
		return ExportRecord{}, err
	}

	c.logger.Infof("export %s complete: type=%s template=%s strategy=%s records=%d bytes=%d elapsed=%s",
		record.ID, record.ExportType, record.TemplateName, record.Strategy,
		record.RecordCount, record.TotalBytes(), elapsed)
	c.emit(ctx, MetricsEvent{
		Name:       "export_completed",
		ExportID:   record.ID,
		ExportType: record.ExportType,
		Template:   record.TemplateName,
		Strategy:   record.Strategy,
		Records:    int64(record.RecordCount),
		Bytes:      record.TotalBytes(),
		Duration:   elapsed,
		Timestamp:  c.now(),
	})
	return record, nil
}

func (c *Coordinator) run(ctx context.Context, req ExportRequest, tmpl Template, started time.Time) (ExportRecord, error) {
	total, source, err := c.openSource(ctx, req)
	if err != nil {
		return ExportRecord{}, err
	}
	defer func() {
		_ = source.Close()
	}()

	plan, err := PlanStrategy(tmpl, req, total, c.cfg.MaxChunkSize)
	if err != nil {
		return ExportRecord{}, err
	}

	if plan.Strategy == StrategyMulti {
		if !c.largeSem.TryAcquire(1) {
			return ExportRecord{}, NewError(KindBackpressure, "large-export capacity exhausted, retry later", nil)
		}
		defer c.largeSem.Release(1)
	}

	engine := c.engineFor(req.Format)
	id := c.newID()
	names := buildFilenames(req, tmpl, id, engine.Extension(), started)
	sheetLabel := sanitizeSheetLabel(req.SheetName, req.ExportType, started)

	record := ExportRecord{
		ID:           id,
		Strategy:     plan.Strategy,
		ExportType:   req.ExportType,
		TemplateName: tmpl.Name,
		RecordCount:  total,
		CreatedAt:    started,
		ExpiresAt:    started.Add(c.cfg.RetentionWindow),
	}

	var peak *float64
	observe := func() {
		if sample := c.rss(); sample != nil {
			if peak == nil || *sample > *peak {
				peak = sample
			}
		}
	}
	observe()

	switch plan.Strategy {
	case StrategySingle:
		data, err := engine.Render(ctx, sheetLabel, newProjector(tmpl, source))
		if err != nil {
			return ExportRecord{}, err
		}
		record.Single = &Artifact{
			Bytes:       data,
			MIMEType:    engine.MIMEType(),
			Filename:    names.single,
			Size:        int64(len(data)),
			RecordCount: total,
			RangeStart:  min(1, total),
			RangeEnd:    total,
		}
		observe()

	case StrategyMulti:
		chunks := make([]Artifact, 0, len(plan.Chunks))
		chunkElapsed := make([]int64, 0, len(plan.Chunks))
		for _, chunk := range plan.Chunks {
			chunkStart := c.now()
			slice := newLimitIterator(source, chunk.Count())
			data, err := engine.Render(ctx, sheetLabel, newProjector(tmpl, slice))
			if err != nil {
				return ExportRecord{}, err
			}
			chunks = append(chunks, Artifact{
				Bytes:       data,
				MIMEType:    engine.MIMEType(),
				Filename:    names.chunk(chunk.Batch, len(plan.Chunks)),
				Size:        int64(len(data)),
				RecordCount: chunk.Count(),
				BatchNumber: chunk.Batch,
				RangeStart:  chunk.Start,
				RangeEnd:    chunk.End,
			})
			chunkElapsed = append(chunkElapsed, durationMS(c.now().Sub(chunkStart)))
			observe()
			c.logger.Debugf("export %s rendered batch %d/%d (records %d-%d)",
				id, chunk.Batch, len(plan.Chunks), chunk.Start, chunk.End)
		}

		archive, stats, err := buildArchive(names.archive, chunks, started)
		if err != nil {
			return ExportRecord{}, err
		}
		record.Chunks = chunks
		record.Archive = &archive
		record.ArchiveStats = stats
		record.Metrics.ChunkElapsedMS = chunkElapsed
		observe()
	}

	record.Metrics.ElapsedMS = durationMS(c.now().Sub(started))
	record.Metrics.PeakRSSMB = peak
	if total > 0 {
		record.Metrics.BytesPerRecord = float64(record.TotalBytes()) / float64(total)
		record.Metrics.RecordsPerSecond = float64(total) / (float64(record.Metrics.ElapsedMS) / 1000.0)
	}

	if c.registry != nil {
		if err := c.registry.Insert(record); err != nil {
			return ExportRecord{}, err
		}
	}
	return record, nil
}

// openSource resolves the record count and iterator for a request. Inline
// data short-circuits the adapter entirely.
func (c *Coordinator) openSource(ctx context.Context, req ExportRequest) (int, RecordIterator, error) {
	if req.Inline() {
		return len(req.Data), newSliceIterator(req.Data), nil
	}

	if c.adapter == nil {
		return 0, nil, NewError(KindSourceDown, "no source adapter configured for filtered exports", nil)
	}

	filters := *req.Filters
	if filters.SortBy == "" {
		filters.SortBy = req.SortBy
	}
	if filters.SortOrder == "" {
		filters.SortOrder = req.SortOrder
	}

	total, err := c.adapter.Count(ctx, req.ExportType, filters)
	if err != nil {
		return 0, nil, wrapSourceErr("counting records failed", err)
	}
	iter, err := c.adapter.Open(ctx, req.ExportType, filters)
	if err != nil {
		return 0, nil, wrapSourceErr("opening record stream failed", err)
	}
	return total, iter, nil
}

func (c *Coordinator) engineFor(format Format) WorkbookEngine {
	if format == FormatCSV {
		return CSVEngine{}
	}
	return XLSXEngine{}
}

func (c *Coordinator) emit(ctx context.Context, evt MetricsEvent) {
	if c.metrics == nil {
		return
	}
	if err := c.metrics.Emit(ctx, evt); err != nil {
		c.logger.Debugf("metrics emit failed: %v", err)
	}
}

func wrapSourceErr(msg string, err error) error {
	switch KindFromError(err) {
	case KindTimeout:
		return err
	case KindInternal:
		return NewError(KindSourceDown, msg, err)
	default:
		return err
	}
}

// SelectArtifact resolves a download variant against a record. The default
// variant serves the single artifact or, for multi exports, the archive.
func SelectArtifact(record ExportRecord, variant DownloadVariant) (Artifact, error) {
	switch variant.Kind {
	case "", "default":
		if record.Strategy == StrategyMulti {
			return selectArchive(record)
		}
		return selectSingle(record)
	case "single":
		return selectSingle(record)
	case "archive", "zip":
		return selectArchive(record)
	case "batch":
		if record.Strategy != StrategyMulti {
			return Artifact{}, NewError(KindVariantMismatch,
				fmt.Sprintf("export %q is a single-file export without batches", record.ID), nil)
		}
		if variant.Batch < 1 || variant.Batch > len(record.Chunks) {
			return Artifact{}, NewError(KindNotFound,
				fmt.Sprintf("export %q has no batch %d", record.ID, variant.Batch), nil)
		}
		return record.Chunks[variant.Batch-1], nil
	default:
		return Artifact{}, NewError(KindValidation,
			fmt.Sprintf("unknown download variant %q", variant.Kind), nil)
	}
}

func selectSingle(record ExportRecord) (Artifact, error) {
	if record.Strategy != StrategySingle || record.Single == nil {
		return Artifact{}, NewError(KindVariantMismatch,
			fmt.Sprintf("export %q is a multi-file export, download the archive or a batch", record.ID), nil)
	}
	return *record.Single, nil
}

func selectArchive(record ExportRecord) (Artifact, error) {
	if record.Strategy != StrategyMulti || record.Archive == nil {
		return Artifact{}, NewError(KindVariantMismatch,
			fmt.Sprintf("export %q has no archive, download the single file", record.ID), nil)
	}
	return *record.Archive, nil
}

// durationMS rounds a duration to whole milliseconds, never reporting zero
// for completed work.
func durationMS(d time.Duration) int64 {
	ms := d.Milliseconds()
	if ms < 1 {
		return 1
	}
	return ms
}

// sampleRSSMB reads the process resident set size. Returns nil when the
// platform or procfs makes sampling unavailable.
func sampleRSSMB() *float64 {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil
	}
	info, err := proc.MemoryInfo()
	if err != nil || info == nil {
		return nil
	}
	mb := float64(info.RSS) / (1 << 20)
	return &mb
}
