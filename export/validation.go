package export

import (
	"fmt"
	"strings"
	"time"
)

// ValidateRequest checks an export request against the closed option and
// template sets. Validation failures never reach the registry.
func ValidateRequest(req ExportRequest) error {
	if _, err := LookupTemplate(req.ExportType, req.Template); err != nil {
		return err
	}

	switch req.Format {
	case "", FormatExcel, FormatCSV:
	default:
		return NewError(KindValidation, fmt.Sprintf("unknown format %q", req.Format), nil)
	}

	if req.Data != nil && req.Filters != nil {
		return NewError(KindValidation, "data and filters are mutually exclusive", nil)
	}
	if req.Data == nil && req.Filters == nil {
		return NewError(KindValidation, "either data or filters is required", nil)
	}

	if req.Filters != nil {
		if err := validateFilters(*req.Filters); err != nil {
			return err
		}
	}

	if req.ChunkSize < 0 {
		return NewError(KindValidation, "chunk_size must be positive", nil)
	}

	switch strings.ToLower(req.SortOrder) {
	case "", "asc", "desc":
	default:
		return NewError(KindValidation, fmt.Sprintf("unknown sort_order %q", req.SortOrder), nil)
	}

	return nil
}

func validateFilters(filters FilterSpec) error {
	if strings.TrimSpace(filters.ProgramID) == "" {
		return NewError(KindValidation, "program_id is required for filtered exports", nil)
	}
	if !filters.DateFrom.IsZero() && !filters.DateTo.IsZero() && filters.DateTo.Before(filters.DateFrom) {
		return NewError(KindValidation, "date_to precedes date_from", nil)
	}
	if filters.Limit < 0 {
		return NewError(KindValidation, "limit must be positive", nil)
	}
	return nil
}

// filterFieldSet is the closed set of recognized filter keys.
var filterFieldSet = map[string]struct{}{
	"program_id":                 {},
	"date_from":                  {},
	"date_to":                    {},
	"category":                   {},
	"score_status":               {},
	"has_successful_payment":     {},
	"has_submitted_registration": {},
	"limit":                      {},
	"sort_by":                    {},
	"sort_order":                 {},
}

// ParseFilterSpec builds a FilterSpec from a decoded JSON object. Unknown
// keys are rejected.
func ParseFilterSpec(raw map[string]any) (FilterSpec, error) {
	var spec FilterSpec
	for key := range raw {
		if _, ok := filterFieldSet[key]; !ok {
			return FilterSpec{}, NewError(KindValidation, fmt.Sprintf("unknown filter field %q", key), nil)
		}
	}

	spec.ProgramID = strings.TrimSpace(stringify(raw["program_id"]))

	var err error
	if spec.DateFrom, err = parseFilterDate(raw, "date_from"); err != nil {
		return FilterSpec{}, err
	}
	if spec.DateTo, err = parseFilterDate(raw, "date_to"); err != nil {
		return FilterSpec{}, err
	}
	if spec.Categories, err = parseFilterList(raw, "category"); err != nil {
		return FilterSpec{}, err
	}
	if spec.ScoreStatuses, err = parseFilterList(raw, "score_status"); err != nil {
		return FilterSpec{}, err
	}
	if spec.HasSuccessfulPayment, err = parseFilterBool(raw, "has_successful_payment"); err != nil {
		return FilterSpec{}, err
	}
	if spec.HasSubmittedRegistration, err = parseFilterBool(raw, "has_submitted_registration"); err != nil {
		return FilterSpec{}, err
	}

	if value, ok := raw["limit"]; ok && value != nil {
		limit, ok := coerceInt(value)
		if !ok || limit < 0 {
			return FilterSpec{}, NewError(KindValidation, "limit must be a positive integer", nil)
		}
		spec.Limit = int(limit)
	}
	spec.SortBy = strings.TrimSpace(stringify(raw["sort_by"]))
	spec.SortOrder = strings.ToLower(strings.TrimSpace(stringify(raw["sort_order"])))

	return spec, nil
}

func parseFilterDate(raw map[string]any, key string) (time.Time, error) {
	value, ok := raw[key]
	if !ok || value == nil {
		return time.Time{}, nil
	}
	parsed, _, ok := coerceTemporal(value)
	if !ok {
		return time.Time{}, NewError(KindValidation, fmt.Sprintf("invalid %s", key), nil)
	}
	return parsed, nil
}

func parseFilterList(raw map[string]any, key string) ([]string, error) {
	value, ok := raw[key]
	if !ok || value == nil {
		return nil, nil
	}
	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		items := make([]string, 0, len(v))
		for _, item := range v {
			text, ok := item.(string)
			if !ok {
				return nil, NewError(KindValidation, fmt.Sprintf("%s entries must be strings", key), nil)
			}
			items = append(items, text)
		}
		return items, nil
	default:
		return nil, NewError(KindValidation, fmt.Sprintf("%s must be a string or list", key), nil)
	}
}

func parseFilterBool(raw map[string]any, key string) (*bool, error) {
	value, ok := raw[key]
	if !ok || value == nil {
		return nil, nil
	}
	parsed, ok := coerceBool(value)
	if !ok {
		return nil, NewError(KindValidation, fmt.Sprintf("%s must be a boolean", key), nil)
	}
	return &parsed, nil
}
