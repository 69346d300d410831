package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/goliatone/go-registration-export/export"
)

// successEnvelope wraps every JSON success response.
type successEnvelope struct {
	Status             string `json:"status"`
	Data               any    `json:"data"`
	PerformanceMetrics any    `json:"performance_metrics,omitempty"`
	SystemInfo         any    `json:"system_info,omitempty"`
	RequestID          string `json:"request_id,omitempty"`
}

// errorEnvelope wraps every JSON error response.
type errorEnvelope struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	ErrorCode string `json:"error_code"`
	RequestID string `json:"request_id,omitempty"`
}

func respondSuccess(c *fiber.Ctx, status int, data any, metrics any, system any) error {
	return c.Status(status).JSON(successEnvelope{
		Status:             "success",
		Data:               data,
		PerformanceMetrics: metrics,
		SystemInfo:         system,
		RequestID:          requestIDFrom(c),
	})
}

func respondError(c *fiber.Ctx, err error) error {
	kind := export.KindFromError(err)
	ge := export.AsGoError(err)
	message := "internal error"
	if ge != nil && ge.Message != "" {
		message = ge.Message
	}
	return c.Status(statusForKind(kind)).JSON(errorEnvelope{
		Status:    "error",
		Message:   message,
		ErrorCode: string(kind),
		RequestID: requestIDFrom(c),
	})
}

func statusForKind(kind export.ErrorKind) int {
	switch kind {
	case export.KindValidation, export.KindTemplateLimit, export.KindVariantMismatch:
		return http.StatusBadRequest
	case export.KindBackpressure:
		return http.StatusTooManyRequests
	case export.KindSourceDown:
		return http.StatusServiceUnavailable
	case export.KindTimeout:
		return http.StatusGatewayTimeout
	case export.KindNotFound, export.KindExpired:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// exportData shapes the creation and status payloads.
func exportData(record export.ExportRecord) fiber.Map {
	data := fiber.Map{
		"export_id":    record.ID,
		"export_type":  record.ExportType,
		"template":     record.TemplateName,
		"strategy":     record.Strategy,
		"record_count": record.RecordCount,
		"download_url": fmt.Sprintf("/export/%s/download", record.ID),
		"created_at":   record.CreatedAt.UTC().Format(time.RFC3339),
		"expires_at":   record.ExpiresAt.UTC().Format(time.RFC3339),
	}

	switch record.Strategy {
	case export.StrategySingle:
		if record.Single != nil {
			data["file_name"] = record.Single.Filename
			data["file_size"] = record.Single.Size
		}
	case export.StrategyMulti:
		files := make([]fiber.Map, len(record.Chunks))
		for i, chunk := range record.Chunks {
			files[i] = fiber.Map{
				"batch_number": chunk.BatchNumber,
				"file_name":    chunk.Filename,
				"file_size":    chunk.Size,
				"record_count": chunk.RecordCount,
				"record_range": fmt.Sprintf("%d-%d", chunk.RangeStart, chunk.RangeEnd),
			}
		}
		data["total_files"] = len(record.Chunks)
		data["individual_files"] = files
		if record.Archive != nil {
			data["file_name"] = record.Archive.Filename
			data["file_size"] = record.ArchiveStats.CompressedTotal
			data["archive"] = fiber.Map{
				"filename":          record.Archive.Filename,
				"compressed_size":   record.ArchiveStats.CompressedTotal,
				"uncompressed_size": record.ArchiveStats.UncompressedTotal,
				"compression_ratio": record.ArchiveStats.Ratio,
			}
		}
	}
	return data
}

func metricsData(m export.ProcessingMetrics) fiber.Map {
	data := fiber.Map{
		"elapsed_ms":         m.ElapsedMS,
		"records_per_second": m.RecordsPerSecond,
		"bytes_per_record":   m.BytesPerRecord,
	}
	if m.PeakRSSMB != nil {
		data["peak_rss_mb"] = *m.PeakRSSMB
	}
	if len(m.ChunkElapsedMS) > 0 {
		data["chunk_elapsed_ms"] = m.ChunkElapsedMS
	}
	return data
}

func templateData(tmpl export.Template) fiber.Map {
	columns := make([]fiber.Map, len(tmpl.Columns))
	for i, col := range tmpl.Columns {
		entry := fiber.Map{
			"field": col.Field,
			"label": col.Label,
		}
		if col.Transform != export.TransformPassthrough {
			entry["transform"] = col.Transform
		}
		columns[i] = entry
	}
	return fiber.Map{
		"name":                    tmpl.Name,
		"export_type":             tmpl.ExportType,
		"columns":                 columns,
		"max_records_single_file": tmpl.MaxRecordsSingleFile,
		"recommended_chunk_size":  tmpl.RecommendedChunkSize,
		"includes_sensitive":      tmpl.IncludesSensitive,
	}
}
