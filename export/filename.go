package export

import (
	"fmt"
	"strings"
	"time"
)

const maxFilenameLen = 200

// exportFilenames holds the resolved artifact names for one job.
type exportFilenames struct {
	single  string
	archive string
	chunk   func(batch, totalBatches int) string
}

// buildFilenames resolves the naming conventions: a caller-provided base
// wins, otherwise names derive from type, template, short id, and timestamp.
func buildFilenames(req ExportRequest, tmpl Template, id string, ext string, now time.Time) exportFilenames {
	shortID := id
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}
	date := now.Format("02-01-2006")
	clock := now.Format("150405")

	custom := strings.TrimSpace(req.Filename)
	if custom != "" {
		base := trimKnownExtension(custom)
		return exportFilenames{
			single:  SanitizeDownloadFilename(custom, ext),
			archive: SanitizeDownloadFilename(base+"_complete_export.zip", ".zip"),
			chunk: func(batch, totalBatches int) string {
				return SanitizeDownloadFilename(fmt.Sprintf("%s_batch_%d_of_%d%s", base, batch, totalBatches, ext), ext)
			},
		}
	}

	prefix := fmt.Sprintf("%s_%s_%s", req.ExportType, tmpl.Name, shortID)
	return exportFilenames{
		single:  SanitizeDownloadFilename(fmt.Sprintf("%s_%s_%s%s", prefix, date, clock, ext), ext),
		archive: SanitizeDownloadFilename(fmt.Sprintf("%s_complete_%s.zip", prefix, date), ".zip"),
		chunk: func(batch, totalBatches int) string {
			_ = totalBatches
			return SanitizeDownloadFilename(fmt.Sprintf("%s_batch_%d_%s_%s%s", prefix, batch, date, clock, ext), ext)
		},
	}
}

func trimKnownExtension(name string) string {
	lower := strings.ToLower(name)
	for _, ext := range []string{".xlsx", ".csv", ".zip"} {
		if strings.HasSuffix(lower, ext) {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}

// SanitizeDownloadFilename strips path separators and disposition-unsafe
// characters, truncates to 200 characters, and guarantees the extension.
func SanitizeDownloadFilename(name, ext string) string {
	name = strings.TrimSpace(name)
	name = strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			return -1
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, name)
	name = strings.TrimLeft(name, ".")

	if name == "" || strings.EqualFold(name, ext) {
		name = "export" + ext
	}
	if !strings.HasSuffix(strings.ToLower(name), strings.ToLower(ext)) {
		name = trimKnownExtension(name) + ext
	}
	if len(name) > maxFilenameLen {
		base := trimKnownExtension(name)
		keep := maxFilenameLen - len(ext)
		if keep < 1 {
			keep = 1
		}
		runes := []rune(base)
		if len(runes) > keep {
			runes = runes[:keep]
		}
		name = string(runes) + ext
	}
	return name
}
