// Package httpapi exposes the export engine over fiber.
package httpapi

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/goliatone/go-registration-export/export"
)

const requestIDKey = "request_id"

// Handler serves the export HTTP surface.
type Handler struct {
	coordinator *export.Coordinator
	logger      export.Logger
	hasAdapter  bool
	startedAt   time.Time
}

// NewHandler wires a handler over a coordinator.
func NewHandler(coordinator *export.Coordinator, hasAdapter bool, logger export.Logger) *Handler {
	if logger == nil {
		logger = export.NopLogger{}
	}
	return &Handler{
		coordinator: coordinator,
		logger:      logger,
		hasAdapter:  hasAdapter,
		startedAt:   time.Now(),
	}
}

// Register mounts all routes on the app.
func (h *Handler) Register(app *fiber.App) {
	app.Use(requestIDMiddleware())

	app.Post("/export/:type", h.CreateExport)
	app.Get("/export/:id/status", h.ExportStatus)
	app.Get("/export/:id/download", h.Download)
	app.Get("/export/:id/download/batch/:n", h.DownloadBatch)
	app.Get("/export/:id/download/zip", h.DownloadArchive)
	app.Get("/templates", h.ListAllTemplates)
	app.Get("/templates/:type", h.ListTemplates)
	app.Get("/health", h.Health)
	app.Post("/cleanup", h.Cleanup)
	app.Post("/cleanup/force", h.CleanupForce)
	app.Get("/storage/info", h.StorageInfo)
}

// requestIDMiddleware assigns every request an id for log correlation. A
// client-supplied X-Request-ID is echoed back as-is.
func requestIDMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(fiber.HeaderXRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Locals(requestIDKey, id)
		c.Set(fiber.HeaderXRequestID, id)
		return c.Next()
	}
}

func requestIDFrom(c *fiber.Ctx) string {
	if id, ok := c.Locals(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// CreateExport runs an export job to completion and returns its metadata.
func (h *Handler) CreateExport(c *fiber.Ctx) error {
	exportType := export.ExportType(c.Params("type"))

	req, err := decodeExportRequest(c.Body(), exportType)
	if err != nil {
		return respondError(c, err)
	}

	record, err := h.coordinator.Export(c.UserContext(), req)
	if err != nil {
		h.logger.Errorf("request %s: export failed: %v", requestIDFrom(c), err)
		return respondError(c, err)
	}

	return respondSuccess(c, fiber.StatusCreated,
		exportData(record), metricsData(record.Metrics), h.systemInfo())
}

// ExportStatus returns record metadata without touching artifact bytes.
func (h *Handler) ExportStatus(c *fiber.Ctx) error {
	record, err := h.coordinator.Registry().Get(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return respondSuccess(c, fiber.StatusOK,
		exportData(record), metricsData(record.Metrics), nil)
}

// Download serves the default artifact: the single file, or the archive for
// multi exports. ?type=single|zip selects a variant explicitly.
func (h *Handler) Download(c *fiber.Ctx) error {
	variant := export.DownloadVariant{}
	switch c.Query("type") {
	case "":
	case "single":
		variant.Kind = "single"
	case "zip":
		variant.Kind = "zip"
	default:
		return respondError(c, export.NewError(export.KindValidation,
			fmt.Sprintf("unknown download type %q", c.Query("type")), nil))
	}
	return h.serveArtifact(c, c.Params("id"), variant)
}

// DownloadBatch serves one chunk of a multi export.
func (h *Handler) DownloadBatch(c *fiber.Ctx) error {
	batch, err := strconv.Atoi(c.Params("n"))
	if err != nil {
		return respondError(c, export.NewError(export.KindValidation, "batch number must be an integer", nil))
	}
	return h.serveArtifact(c, c.Params("id"), export.DownloadVariant{Kind: "batch", Batch: batch})
}

// DownloadArchive serves the archive of a multi export.
func (h *Handler) DownloadArchive(c *fiber.Ctx) error {
	return h.serveArtifact(c, c.Params("id"), export.DownloadVariant{Kind: "archive"})
}

func (h *Handler) serveArtifact(c *fiber.Ctx, id string, variant export.DownloadVariant) error {
	record, release, err := h.coordinator.Registry().LookupAndPin(id)
	if err != nil {
		return respondError(c, err)
	}
	defer release()

	artifact, err := export.SelectArtifact(record, variant)
	if err != nil {
		return respondError(c, err)
	}

	c.Set(fiber.HeaderContentType, artifact.MIMEType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", artifact.Filename))
	c.Set(fiber.HeaderContentLength, strconv.Itoa(len(artifact.Bytes)))
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Status(fiber.StatusOK).Send(artifact.Bytes)
}

// ListTemplates returns the template descriptors for one export type.
func (h *Handler) ListTemplates(c *fiber.Ctx) error {
	templates, err := export.TemplatesFor(export.ExportType(c.Params("type")))
	if err != nil {
		return respondError(c, err)
	}
	items := make([]fiber.Map, len(templates))
	for i, tmpl := range templates {
		items[i] = templateData(tmpl)
	}
	return respondSuccess(c, fiber.StatusOK, fiber.Map{"templates": items}, nil, nil)
}

// ListAllTemplates returns the template descriptors for every export type.
func (h *Handler) ListAllTemplates(c *fiber.Ctx) error {
	catalog := fiber.Map{}
	for _, exportType := range export.KnownTypes() {
		templates, err := export.TemplatesFor(exportType)
		if err != nil {
			return respondError(c, err)
		}
		items := make([]fiber.Map, len(templates))
		for i, tmpl := range templates {
			items[i] = templateData(tmpl)
		}
		catalog[string(exportType)] = items
	}
	return respondSuccess(c, fiber.StatusOK, fiber.Map{"templates": catalog}, nil, nil)
}

// Health reports liveness and dependency presence.
func (h *Handler) Health(c *fiber.Ctx) error {
	stats := h.coordinator.Registry().Stats()
	return respondSuccess(c, fiber.StatusOK, fiber.Map{
		"healthy":          true,
		"uptime":           time.Since(h.startedAt).Round(time.Second).String(),
		"source_adapter":   h.hasAdapter,
		"active_exports":   stats.Entries,
		"registered_bytes": stats.Bytes,
	}, nil, h.systemInfo())
}

// Cleanup runs a manual sweep and reports removals by cause.
func (h *Handler) Cleanup(c *fiber.Ctx) error {
	stats := h.coordinator.Registry().Sweep()
	return respondSuccess(c, fiber.StatusOK, fiber.Map{
		"removed": fiber.Map{
			"ttl":       stats.TTL,
			"retention": stats.Retention,
			"storage":   stats.Storage,
		},
		"total": stats.Total(),
	}, nil, nil)
}

// CleanupForce purges every record regardless of retention.
func (h *Handler) CleanupForce(c *fiber.Ctx) error {
	removed := h.coordinator.Registry().ForcePurge()
	h.logger.Infof("request %s: force purge removed %d export(s)", requestIDFrom(c), removed)
	return respondSuccess(c, fiber.StatusOK, fiber.Map{"removed": removed}, nil, nil)
}

// StorageInfo reports aggregate registry occupancy and thresholds.
func (h *Handler) StorageInfo(c *fiber.Ctx) error {
	cfg := h.coordinator.Config()
	stats := h.coordinator.Registry().Stats()
	return respondSuccess(c, fiber.StatusOK, fiber.Map{
		"entries":           stats.Entries,
		"total_bytes":       stats.Bytes,
		"total_size":        humanize.Bytes(uint64(stats.Bytes)),
		"warning_threshold": humanize.Bytes(uint64(cfg.StorageWarningBytes)),
		"cleanup_threshold": humanize.Bytes(uint64(cfg.StorageCleanupBytes)),
		"retention_window":  cfg.RetentionWindow.String(),
		"keep_recent":       cfg.KeepRecent,
	}, nil, nil)
}

func (h *Handler) systemInfo() fiber.Map {
	stats := h.coordinator.Registry().Stats()
	return fiber.Map{
		"registered_exports": stats.Entries,
		"registered_bytes":   stats.Bytes,
		"registered_size":    humanize.Bytes(uint64(stats.Bytes)),
	}
}
