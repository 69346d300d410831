package httpapi

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goliatone/go-registration-export/export"
)

// exportPayload mirrors the recognized request body. The option set is
// closed: unknown top-level keys are rejected before decoding.
type exportPayload struct {
	Data          []map[string]any `json:"data"`
	Filters       map[string]any   `json:"filters"`
	Template      string           `json:"template"`
	Format        string           `json:"format"`
	Filename      string           `json:"filename"`
	SheetName     string           `json:"sheet_name"`
	ChunkSize     int              `json:"chunk_size"`
	ForceChunking bool             `json:"force_chunking"`
	Options       *exportOptions   `json:"options"`
}

type exportOptions struct {
	SortBy    string `json:"sort_by"`
	SortOrder string `json:"sort_order"`
}

var recognizedPayloadKeys = map[string]struct{}{
	"data":           {},
	"filters":        {},
	"template":       {},
	"format":         {},
	"filename":       {},
	"sheet_name":     {},
	"chunk_size":     {},
	"force_chunking": {},
	"options":        {},
}

// decodeExportRequest parses and validates a request body into an
// export.ExportRequest for the given type.
func decodeExportRequest(body []byte, exportType export.ExportType) (export.ExportRequest, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return export.ExportRequest{}, export.NewError(export.KindValidation, "request body is required", nil)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return export.ExportRequest{}, export.NewError(export.KindValidation, "request body is not a JSON object", err)
	}
	for key := range raw {
		if _, ok := recognizedPayloadKeys[key]; !ok {
			return export.ExportRequest{}, export.NewError(export.KindValidation,
				fmt.Sprintf("unknown option %q", key), nil)
		}
	}

	var payload exportPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return export.ExportRequest{}, export.NewError(export.KindValidation, "malformed request body", err)
	}

	req := export.ExportRequest{
		ExportType:    exportType,
		Template:      payload.Template,
		Format:        export.Format(payload.Format),
		Filename:      payload.Filename,
		SheetName:     payload.SheetName,
		ChunkSize:     payload.ChunkSize,
		ForceChunking: payload.ForceChunking,
	}
	if payload.Options != nil {
		req.SortBy = payload.Options.SortBy
		req.SortOrder = payload.Options.SortOrder
	}

	if payload.Data != nil {
		records := make([]export.Record, len(payload.Data))
		for i, item := range payload.Data {
			records[i] = export.Record(item)
		}
		req.Data = records
	}
	if payload.Filters != nil {
		spec, err := export.ParseFilterSpec(payload.Filters)
		if err != nil {
			return export.ExportRequest{}, err
		}
		req.Filters = &spec
	}

	return req, nil
}
